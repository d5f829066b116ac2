package playback

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/crucifix86/JellyTV/internal/ffmpeg"
)

// DemuxSource reads compressed packets from a container. The FFmpeg-backed
// Demuxer is the production implementation; tests substitute scripted
// sources.
type DemuxSource interface {
	// Streams describes every elementary stream found at open.
	Streams() []StreamInfo

	// ReadPacket returns the next packet in container order. At end of
	// stream it returns (nil, nil).
	ReadPacket() (*Packet, error)

	// Seek repositions to timeMs. With keyframeOnly the demuxer lands on
	// the nearest preceding keyframe; otherwise it may land on any packet.
	// Returns false when the container could not seek.
	Seek(timeMs int64, keyframeOnly bool) bool

	// DurationMs returns the container duration in milliseconds, 0 when
	// unknown.
	DurationMs() int64

	Close() error
}

// millisecond timebase used for all engine-facing timestamps.
var msTimeBase = ffmpeg.Rational{Num: 1, Den: 1000}

// Demuxer wraps an FFmpeg format context and normalizes every packet
// timestamp to milliseconds.
type Demuxer struct {
	fctx    ffmpeg.FormatContext
	streams []StreamInfo
	// native per-stream timebases, indexed by stream index
	timeBases []ffmpeg.Rational
	log       zerolog.Logger
	closed    bool
}

// OpenDemuxer opens the container at path and probes its streams.
func OpenDemuxer(path string, log zerolog.Logger) (*Demuxer, error) {
	if err := ffmpeg.Load(); err != nil {
		return nil, err
	}
	fctx, err := ffmpeg.OpenInput(path)
	if err != nil {
		return nil, err
	}
	if err := ffmpeg.FindStreamInfo(fctx); err != nil {
		ffmpeg.CloseInput(&fctx)
		return nil, err
	}

	d := &Demuxer{
		fctx: fctx,
		log:  log.With().Str("component", "demuxer").Logger(),
	}
	n := ffmpeg.NbStreams(fctx)
	for i := 0; i < n; i++ {
		st := ffmpeg.StreamAt(fctx, i)
		d.timeBases = append(d.timeBases, ffmpeg.StreamTimeBase(st))
		d.streams = append(d.streams, describeStream(fctx, st))
	}
	d.log.Debug().
		Str("path", path).
		Int("streams", n).
		Int64("duration_ms", d.DurationMs()).
		Msg("container opened")
	return d, nil
}

func describeStream(fctx ffmpeg.FormatContext, st ffmpeg.Stream) StreamInfo {
	par := ffmpeg.StreamCodecPar(st)
	tb := ffmpeg.StreamTimeBase(st)
	info := StreamInfo{
		Index:     ffmpeg.StreamIndex(st),
		Codec:     ffmpeg.CodecName(ffmpeg.ParCodecID(par)),
		Language:  ffmpeg.StreamLanguage(st),
		BitRate:   ffmpeg.ParBitRate(par),
		TimeBase:  Rational{Num: int(tb.Num), Den: int(tb.Den)},
		Extradata: ffmpeg.ParExtradata(par),
		codecID:   ffmpeg.ParCodecID(par),
		par:       par,
	}
	switch ffmpeg.ParType(par) {
	case ffmpeg.MediaTypeVideo:
		info.Type = MediaTypeVideo
		info.Width = ffmpeg.ParWidth(par)
		info.Height = ffmpeg.ParHeight(par)
		info.FrameRate = ffmpeg.GuessFrameRate(fctx, st).Float()
	case ffmpeg.MediaTypeAudio:
		info.Type = MediaTypeAudio
		info.Channels = ffmpeg.ParChannels(par)
		info.SampleRate = ffmpeg.ParSampleRate(par)
	case ffmpeg.MediaTypeSubtitle:
		info.Type = MediaTypeSubtitle
	default:
		info.Type = MediaTypeUnknown
	}
	return info
}

// Streams returns the stream descriptions probed at open.
func (d *Demuxer) Streams() []StreamInfo { return d.streams }

// DurationMs returns the container duration in milliseconds, 0 when the
// container does not declare one.
func (d *Demuxer) DurationMs() int64 {
	dur := ffmpeg.Duration(d.fctx)
	if dur <= 0 {
		return 0
	}
	return dur * 1000 / ffmpeg.TimeBase
}

// ReadPacket reads the next packet, rescaling its timestamps to
// milliseconds. Returns (nil, nil) at end of stream.
func (d *Demuxer) ReadPacket() (*Packet, error) {
	raw := ffmpeg.PacketAlloc()
	if raw == nil {
		return nil, fmt.Errorf("packet alloc failed")
	}
	code := ffmpeg.ReadFrame(d.fctx, raw)
	if code < 0 {
		ffmpeg.PacketFree(&raw)
		if ffmpeg.IsEOF(code) {
			return nil, nil
		}
		return nil, ffmpeg.Err(code, "av_read_frame")
	}

	idx := ffmpeg.PacketStreamIndex(raw)
	pts := ffmpeg.PacketPTS(raw)
	if pts == ffmpeg.NoPTSValue {
		pts = ffmpeg.PacketDTS(raw)
	}
	pkt := &Packet{
		StreamIndex: idx,
		Keyframe:    ffmpeg.PacketFlags(raw)&ffmpeg.PacketFlagKey != 0,
		raw:         raw,
	}
	if idx >= 0 && idx < len(d.timeBases) {
		tb := d.timeBases[idx]
		if pts != ffmpeg.NoPTSValue {
			pkt.PTS = ffmpeg.RescaleQ(pts, tb, msTimeBase)
		}
		if dur := ffmpeg.PacketDuration(raw); dur > 0 {
			pkt.DurationMs = ffmpeg.RescaleQ(dur, tb, msTimeBase)
		}
	}
	return pkt, nil
}

// Seek repositions the container to timeMs. Keyframe-only seeks land on the
// nearest preceding keyframe; otherwise any packet is an acceptable target.
func (d *Demuxer) Seek(timeMs int64, keyframeOnly bool) bool {
	flags := ffmpeg.SeekFlagBackward
	if !keyframeOnly {
		flags |= ffmpeg.SeekFlagAny
	}
	// Stream index -1 seeks in AV_TIME_BASE units.
	ts := timeMs * (ffmpeg.TimeBase / 1000)
	if err := ffmpeg.SeekFrame(d.fctx, -1, ts, flags); err != nil {
		d.log.Warn().Err(err).Int64("time_ms", timeMs).Msg("seek failed")
		return false
	}
	return true
}

// Close releases the format context. Safe to call once only.
func (d *Demuxer) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	ffmpeg.CloseInput(&d.fctx)
	return nil
}
