package playback

import (
	"fmt"
	"unsafe"

	"github.com/rs/zerolog"

	"github.com/crucifix86/JellyTV/internal/ffmpeg"
)

// VideoDecoder turns compressed packets into RGBA frames. One packet may
// yield zero or more frames.
type VideoDecoder interface {
	Decode(p *Packet) ([]*VideoFrame, error)
	// Flush discards buffered decoder state after a seek.
	Flush()
	Close()
}

// AudioDecoder turns compressed packets into interleaved S16 PCM frames.
type AudioDecoder interface {
	Decode(p *Packet) ([]*AudioFrame, error)
	// OutputFormat reports the PCM format every decoded frame carries.
	OutputFormat() (sampleRate, channels int)
	Flush()
	Close()
}

// maxAudioFrameBytes bounds one converted audio frame: 8 channels of S16 at
// 8192 samples.
const maxAudioFrameBytes = 8192 * 8 * 2

type videoDecoder struct {
	ctx    ffmpeg.CodecContext
	hw     *HWAccel
	devRef ffmpeg.BufferRef

	frame   ffmpeg.Frame // receive target
	swFrame ffmpeg.Frame // hw transfer target, allocated on demand

	sws    ffmpeg.SwsContext
	swsW   int
	swsH   int
	swsFmt int32

	timeBase ffmpeg.Rational
	pool     *BufferPool
	poolW    int
	poolH    int

	stats *Statistics
	log   zerolog.Logger
}

// NewVideoDecoder opens a decoder for the given video stream. When hw is
// non-nil the decoder attaches a hardware device context first and falls
// back to software if the codec will not open with it.
func NewVideoDecoder(info StreamInfo, hw *HWAccel, stats *Statistics, log zerolog.Logger) (VideoDecoder, error) {
	d := &videoDecoder{
		timeBase: ffmpeg.Rational{Num: int32(info.TimeBase.Num), Den: int32(info.TimeBase.Den)},
		stats:    stats,
		log:      log.With().Str("component", "video-decoder").Str("codec", info.Codec).Logger(),
	}
	if err := d.open(info, hw); err != nil {
		if hw == nil {
			return nil, err
		}
		// Hardware setup failed; retry in software before giving up.
		d.log.Warn().Err(err).Str("backend", hw.Name).Msg("hardware decode unavailable, using software")
		if err := d.open(info, nil); err != nil {
			return nil, err
		}
	}
	d.frame = ffmpeg.FrameAlloc()
	if d.frame == nil {
		d.Close()
		return nil, fmt.Errorf("frame alloc failed")
	}
	return d, nil
}

func (d *videoDecoder) open(info StreamInfo, hw *HWAccel) error {
	codec := ffmpeg.FindDecoder(info.codecID)
	if codec == nil {
		return engineErr(KindCodecOpenFailure, fmt.Errorf("no decoder for %s", info.Codec))
	}
	ctx := ffmpeg.AllocContext(codec)
	if ctx == nil {
		return engineErr(KindCodecOpenFailure, fmt.Errorf("context alloc failed"))
	}
	if info.par != nil {
		if err := ffmpeg.ParametersToContext(ctx, info.par); err != nil {
			ffmpeg.FreeContext(&ctx)
			return engineErr(KindCodecOpenFailure, err)
		}
	}
	if hw != nil {
		dev, err := hw.NewDeviceContext()
		if err != nil {
			ffmpeg.FreeContext(&ctx)
			return engineErr(KindHWAccelFailure, err)
		}
		ffmpeg.SetCtxHWDeviceCtx(ctx, dev)
		d.devRef = dev
	}
	if err := ffmpeg.OpenContext(ctx, codec); err != nil {
		ffmpeg.FreeContext(&ctx)
		if d.devRef != nil {
			ffmpeg.BufferUnref(&d.devRef)
		}
		kind := KindCodecOpenFailure
		if hw != nil {
			kind = KindHWAccelFailure
		}
		return engineErr(kind, err)
	}
	d.ctx = ctx
	d.hw = hw
	return nil
}

// Decode submits one packet and drains every frame it produces, converted
// to RGBA. The caller keeps ownership of p.
func (d *videoDecoder) Decode(p *Packet) ([]*VideoFrame, error) {
	if p == nil || p.raw == nil {
		return nil, engineErr(KindDecodeFailure, fmt.Errorf("packet has no native payload"))
	}
	if code := ffmpeg.SendPacket(d.ctx, p.raw); code < 0 && !ffmpeg.IsEAGAIN(code) {
		d.stats.RecordDecodeError()
		return nil, engineErr(KindDecodeFailure, ffmpeg.Err(code, "avcodec_send_packet"))
	}
	return d.drain()
}

func (d *videoDecoder) drain() ([]*VideoFrame, error) {
	var out []*VideoFrame
	for {
		code := ffmpeg.ReceiveFrame(d.ctx, d.frame)
		if ffmpeg.IsEAGAIN(code) || ffmpeg.IsEOF(code) {
			return out, nil
		}
		if code < 0 {
			d.stats.RecordDecodeError()
			return out, engineErr(KindDecodeFailure, ffmpeg.Err(code, "avcodec_receive_frame"))
		}

		src := d.frame
		if d.hw.IsHWFrame(ffmpeg.FrameFormat(d.frame)) {
			if d.swFrame == nil {
				d.swFrame = ffmpeg.FrameAlloc()
			}
			if err := ffmpeg.HWFrameTransferData(d.swFrame, d.frame); err != nil {
				// Keep playing; the frame is lost but the stream is fine.
				d.log.Warn().Err(err).Msg("hw frame transfer failed, dropping frame")
				d.stats.RecordDecodeError()
				ffmpeg.FrameUnref(d.frame)
				continue
			}
			src = d.swFrame
		}

		f := d.convert(src)
		ffmpeg.FrameUnref(d.swFrame)
		ffmpeg.FrameUnref(d.frame)
		if f != nil {
			out = append(out, f)
		}
	}
}

// convert scales/converts one decoded frame into a pooled RGBA buffer.
func (d *videoDecoder) convert(src ffmpeg.Frame) *VideoFrame {
	w := ffmpeg.FrameWidth(src)
	h := ffmpeg.FrameHeight(src)
	fmt32 := ffmpeg.FrameFormat(src)
	if w <= 0 || h <= 0 {
		return nil
	}

	if d.sws == nil || w != d.swsW || h != d.swsH || fmt32 != d.swsFmt {
		ffmpeg.SwsFreeContext(d.sws)
		d.sws = ffmpeg.SwsGetContext(w, h, fmt32, w, h, ffmpeg.PixFmtRGBA)
		d.swsW, d.swsH, d.swsFmt = w, h, fmt32
	}
	if d.sws == nil {
		d.stats.RecordDecodeError()
		return nil
	}
	if d.pool == nil || w != d.poolW || h != d.poolH {
		d.pool = NewBufferPool(w * h * 4)
		d.poolW, d.poolH = w, h
	}

	pts := ffmpeg.FrameBestEffortTimestamp(src)
	if pts == ffmpeg.NoPTSValue {
		pts = ffmpeg.FramePTS(src)
	}
	ptsMs := int64(0)
	if pts != ffmpeg.NoPTSValue {
		ptsMs = ffmpeg.RescaleQ(pts, d.timeBase, msTimeBase)
	}

	vf := NewVideoFrame(d.pool, w, h, ptsMs)
	ffmpeg.SwsScaleFrame(d.sws, src, h, unsafe.Pointer(&vf.Data[0]), w*4)
	return vf
}

func (d *videoDecoder) Flush() {
	if d.ctx != nil {
		ffmpeg.FlushBuffers(d.ctx)
	}
}

func (d *videoDecoder) Close() {
	ffmpeg.FrameFree(&d.frame)
	ffmpeg.FrameFree(&d.swFrame)
	ffmpeg.SwsFreeContext(d.sws)
	d.sws = nil
	if d.ctx != nil {
		ffmpeg.FreeContext(&d.ctx)
	}
	if d.devRef != nil {
		ffmpeg.BufferUnref(&d.devRef)
	}
}

type audioDecoder struct {
	ctx   ffmpeg.CodecContext
	frame ffmpeg.Frame

	swr     ffmpeg.SwrContext
	srcFmt  int32
	srcRate int
	srcCh   int

	outRate int
	outCh   int

	timeBase ffmpeg.Rational
	pool     *BufferPool

	stats *Statistics
	log   zerolog.Logger
}

// NewAudioDecoder opens a decoder for the given audio stream. With downmix
// set, sources with more than two channels are converted to stereo.
func NewAudioDecoder(info StreamInfo, downmix bool, stats *Statistics, log zerolog.Logger) (AudioDecoder, error) {
	codec := ffmpeg.FindDecoder(info.codecID)
	if codec == nil {
		return nil, engineErr(KindCodecOpenFailure, fmt.Errorf("no decoder for %s", info.Codec))
	}
	ctx := ffmpeg.AllocContext(codec)
	if ctx == nil {
		return nil, engineErr(KindCodecOpenFailure, fmt.Errorf("context alloc failed"))
	}
	if info.par != nil {
		if err := ffmpeg.ParametersToContext(ctx, info.par); err != nil {
			ffmpeg.FreeContext(&ctx)
			return nil, engineErr(KindCodecOpenFailure, err)
		}
	}
	if err := ffmpeg.OpenContext(ctx, codec); err != nil {
		ffmpeg.FreeContext(&ctx)
		return nil, engineErr(KindCodecOpenFailure, err)
	}

	outCh := info.Channels
	if downmix && outCh > 2 {
		outCh = 2
	}
	if outCh <= 0 {
		outCh = 2
	}
	outRate := info.SampleRate
	if outRate <= 0 {
		outRate = 48000
	}
	d := &audioDecoder{
		ctx:      ctx,
		frame:    ffmpeg.FrameAlloc(),
		outRate:  outRate,
		outCh:    outCh,
		timeBase: ffmpeg.Rational{Num: int32(info.TimeBase.Num), Den: int32(info.TimeBase.Den)},
		pool:     NewBufferPool(maxAudioFrameBytes),
		stats:    stats,
		log:      log.With().Str("component", "audio-decoder").Str("codec", info.Codec).Logger(),
	}
	if d.frame == nil {
		d.Close()
		return nil, fmt.Errorf("frame alloc failed")
	}
	return d, nil
}

// OutputFormat reports the PCM format of every frame Decode produces.
func (d *audioDecoder) OutputFormat() (int, int) { return d.outRate, d.outCh }

// Decode submits one packet and drains every PCM frame it produces. The
// caller keeps ownership of p.
func (d *audioDecoder) Decode(p *Packet) ([]*AudioFrame, error) {
	if p == nil || p.raw == nil {
		return nil, engineErr(KindDecodeFailure, fmt.Errorf("packet has no native payload"))
	}
	if code := ffmpeg.SendPacket(d.ctx, p.raw); code < 0 && !ffmpeg.IsEAGAIN(code) {
		d.stats.RecordDecodeError()
		return nil, engineErr(KindDecodeFailure, ffmpeg.Err(code, "avcodec_send_packet"))
	}

	var out []*AudioFrame
	for {
		code := ffmpeg.ReceiveFrame(d.ctx, d.frame)
		if ffmpeg.IsEAGAIN(code) || ffmpeg.IsEOF(code) {
			return out, nil
		}
		if code < 0 {
			d.stats.RecordDecodeError()
			return out, engineErr(KindDecodeFailure, ffmpeg.Err(code, "avcodec_receive_frame"))
		}
		f := d.convert(d.frame)
		ffmpeg.FrameUnref(d.frame)
		if f != nil {
			out = append(out, f)
		}
	}
}

// convert resamples one decoded frame to interleaved S16 in a pooled buffer.
func (d *audioDecoder) convert(src ffmpeg.Frame) *AudioFrame {
	fmt32 := ffmpeg.FrameFormat(src)
	rate := ffmpeg.FrameSampleRate(src)
	ch := ffmpeg.FrameChannels(src)
	if rate <= 0 || ch <= 0 {
		return nil
	}

	if d.swr == nil || fmt32 != d.srcFmt || rate != d.srcRate || ch != d.srcCh {
		ffmpeg.SwrFree(&d.swr)
		swr, err := ffmpeg.NewSwrContext(ffmpeg.SwrConfig{
			InSampleFmt:   fmt32,
			InSampleRate:  rate,
			InChannels:    ch,
			OutSampleFmt:  ffmpeg.SampleFmtS16,
			OutSampleRate: d.outRate,
			OutChannels:   d.outCh,
		})
		if err != nil {
			d.log.Warn().Err(err).Msg("resampler init failed")
			d.stats.RecordDecodeError()
			return nil
		}
		d.swr = swr
		d.srcFmt, d.srcRate, d.srcCh = fmt32, rate, ch
	}

	pts := ffmpeg.FrameBestEffortTimestamp(src)
	if pts == ffmpeg.NoPTSValue {
		pts = ffmpeg.FramePTS(src)
	}
	ptsMs := int64(0)
	if pts != ffmpeg.NoPTSValue {
		ptsMs = ffmpeg.RescaleQ(pts, d.timeBase, msTimeBase)
	}

	af := NewAudioFrame(d.pool, d.outCh, d.outRate, ptsMs)
	maxSamples := len(af.Data) / (d.outCh * 2)
	n, err := ffmpeg.SwrConvertFrame(d.swr, src, unsafe.Pointer(&af.Data[0]), maxSamples)
	if err != nil {
		d.log.Warn().Err(err).Msg("resample failed")
		d.stats.RecordDecodeError()
		af.Release()
		return nil
	}
	af.N = n * d.outCh * 2
	return af
}

func (d *audioDecoder) Flush() {
	if d.ctx != nil {
		ffmpeg.FlushBuffers(d.ctx)
	}
}

func (d *audioDecoder) Close() {
	ffmpeg.FrameFree(&d.frame)
	ffmpeg.SwrFree(&d.swr)
	if d.ctx != nil {
		ffmpeg.FreeContext(&d.ctx)
	}
}
