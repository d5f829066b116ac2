//go:build darwin || linux

package ffmpeg

import (
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

// FormatContext is an opaque FFmpeg AVFormatContext pointer.
type FormatContext = unsafe.Pointer

// Stream is an opaque FFmpeg AVStream pointer.
type Stream = unsafe.Pointer

// Seek flags (AVSEEK_FLAG_*).
const (
	SeekFlagBackward = int32(1)
	SeekFlagByte     = int32(2)
	SeekFlagAny      = int32(4)
	SeekFlagFrame    = int32(8)
)

var (
	avformatOpenInput      func(ctx *unsafe.Pointer, url string, fmt uintptr, options *unsafe.Pointer) int32
	avformatCloseInput     func(ctx *unsafe.Pointer)
	avformatFindStreamInfo func(ctx uintptr, options *unsafe.Pointer) int32
	avReadFrame            func(ctx, pkt uintptr) int32
	avSeekFrame            func(ctx uintptr, streamIndex int32, timestamp int64, flags int32) int32
	avGuessFrameRate       func(ctx, stream, frame uintptr) uint64
)

func registerAVFormat(lib uintptr) {
	purego.RegisterLibFunc(&avformatOpenInput, lib, "avformat_open_input")
	purego.RegisterLibFunc(&avformatCloseInput, lib, "avformat_close_input")
	purego.RegisterLibFunc(&avformatFindStreamInfo, lib, "avformat_find_stream_info")
	purego.RegisterLibFunc(&avReadFrame, lib, "av_read_frame")
	purego.RegisterLibFunc(&avSeekFrame, lib, "av_seek_frame")
	registerOptional(&avGuessFrameRate, lib, "av_guess_frame_rate")
}

// OpenInput opens a media file or URL and probes the container header.
func OpenInput(url string) (FormatContext, error) {
	if avformatOpenInput == nil {
		return nil, ErrNotLoaded
	}
	var ctx unsafe.Pointer
	code := avformatOpenInput(&ctx, url, 0, nil)
	runtime.KeepAlive(url)
	if code < 0 {
		return nil, Err(code, "avformat_open_input")
	}
	return ctx, nil
}

// CloseInput closes the input and frees the format context.
func CloseInput(ctx *FormatContext) {
	if ctx == nil || *ctx == nil || avformatCloseInput == nil {
		return
	}
	avformatCloseInput(ctx)
}

// FindStreamInfo probes stream parameters (codec, dimensions, rates).
func FindStreamInfo(ctx FormatContext) error {
	if avformatFindStreamInfo == nil {
		return ErrNotLoaded
	}
	if code := avformatFindStreamInfo(uintptr(ctx), nil); code < 0 {
		return Err(code, "avformat_find_stream_info")
	}
	return nil
}

// ReadFrame reads the next packet from the container into pkt.
// Returns 0 on success, AVERROR_EOF at end of stream.
func ReadFrame(ctx FormatContext, pkt Packet) int32 {
	return avReadFrame(uintptr(ctx), uintptr(pkt))
}

// SeekFrame seeks to timestamp (in the stream's timebase, or AV_TIME_BASE
// units when streamIndex is -1) honoring the given flags.
func SeekFrame(ctx FormatContext, streamIndex int, timestamp int64, flags int32) error {
	if avSeekFrame == nil {
		return ErrNotLoaded
	}
	if code := avSeekFrame(uintptr(ctx), int32(streamIndex), timestamp, flags); code < 0 {
		return Err(code, "av_seek_frame")
	}
	return nil
}

// AVFormatContext struct field offsets (FFmpeg 6.x, avformat 60).
const (
	offsetFmtNbStreams = 44 // unsigned int nb_streams
	offsetFmtStreams   = 48 // AVStream **streams
	offsetFmtDuration  = 72 // int64_t duration (AV_TIME_BASE units)
	offsetFmtBitRate   = 80 // int64_t bit_rate
)

// NbStreams returns the number of elementary streams.
func NbStreams(ctx FormatContext) int {
	if ctx == nil {
		return 0
	}
	return int(*(*uint32)(unsafe.Pointer(uintptr(ctx) + offsetFmtNbStreams)))
}

// StreamAt returns the stream at index i, or nil when out of range.
func StreamAt(ctx FormatContext, i int) Stream {
	if ctx == nil || i < 0 || i >= NbStreams(ctx) {
		return nil
	}
	streams := *(*unsafe.Pointer)(unsafe.Pointer(uintptr(ctx) + offsetFmtStreams))
	if streams == nil {
		return nil
	}
	return *(*unsafe.Pointer)(unsafe.Pointer(uintptr(streams) + uintptr(i)*8))
}

// Duration returns the container duration in AV_TIME_BASE (microsecond) units.
func Duration(ctx FormatContext) int64 {
	if ctx == nil {
		return 0
	}
	return *(*int64)(unsafe.Pointer(uintptr(ctx) + offsetFmtDuration))
}

// BitRate returns the total container bitrate in bits per second.
func BitRate(ctx FormatContext) int64 {
	if ctx == nil {
		return 0
	}
	return *(*int64)(unsafe.Pointer(uintptr(ctx) + offsetFmtBitRate))
}

// AVStream struct field offsets (FFmpeg 6.x).
const (
	offsetStreamIndex        = 8  // int index
	offsetStreamCodecPar     = 16 // AVCodecParameters *codecpar
	offsetStreamTimeBase     = 32 // AVRational time_base
	offsetStreamMetadata     = 80 // AVDictionary *metadata
	offsetStreamAvgFrameRate = 88 // AVRational avg_frame_rate
)

// StreamLanguage returns the stream's "language" metadata tag, or "".
func StreamLanguage(stream Stream) string {
	if stream == nil {
		return ""
	}
	dict := *(*unsafe.Pointer)(unsafe.Pointer(uintptr(stream) + offsetStreamMetadata))
	return DictGet(dict, "language")
}

// StreamIndex returns the stream's index within the container.
func StreamIndex(stream Stream) int {
	if stream == nil {
		return -1
	}
	return int(*(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamIndex)))
}

// StreamCodecPar returns the stream's codec parameters.
func StreamCodecPar(stream Stream) CodecParameters {
	if stream == nil {
		return nil
	}
	return *(*unsafe.Pointer)(unsafe.Pointer(uintptr(stream) + offsetStreamCodecPar))
}

// StreamTimeBase returns the stream's timebase.
func StreamTimeBase(stream Stream) Rational {
	if stream == nil {
		return Rational{}
	}
	return Rational{
		Num: *(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamTimeBase)),
		Den: *(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamTimeBase + 4)),
	}
}

// StreamAvgFrameRate returns the average frame rate, which may be 0/0.
func StreamAvgFrameRate(stream Stream) Rational {
	if stream == nil {
		return Rational{}
	}
	return Rational{
		Num: *(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamAvgFrameRate)),
		Den: *(*int32)(unsafe.Pointer(uintptr(stream) + offsetStreamAvgFrameRate + 4)),
	}
}

// GuessFrameRate asks libavformat for the stream's best frame-rate estimate.
// The AVRational return value is packed into a uint64 by the C ABI.
func GuessFrameRate(ctx FormatContext, stream Stream) Rational {
	if avGuessFrameRate == nil {
		return StreamAvgFrameRate(stream)
	}
	packed := avGuessFrameRate(uintptr(ctx), uintptr(stream), 0)
	return Rational{Num: int32(packed & 0xFFFFFFFF), Den: int32(packed >> 32)}
}

// AVCodecParameters struct field offsets (FFmpeg 6.x).
const (
	offsetParType          = 0   // enum AVMediaType codec_type
	offsetParCodecID       = 4   // enum AVCodecID codec_id
	offsetParExtradata     = 16  // uint8_t *extradata
	offsetParExtradataSize = 24  // int extradata_size
	offsetParFormat        = 28  // int format
	offsetParBitRate       = 32  // int64_t bit_rate
	offsetParWidth         = 56  // int width
	offsetParHeight        = 60  // int height
	offsetParSampleRate    = 116 // int sample_rate
	offsetParChannels      = 148 // ch_layout.nb_channels
)

// ParType returns the media type from codec parameters.
func ParType(par CodecParameters) int32 {
	if par == nil {
		return MediaTypeUnknown
	}
	return *(*int32)(unsafe.Pointer(uintptr(par) + offsetParType))
}

// ParCodecID returns the codec ID.
func ParCodecID(par CodecParameters) int32 {
	if par == nil {
		return CodecIDNone
	}
	return *(*int32)(unsafe.Pointer(uintptr(par) + offsetParCodecID))
}

// ParWidth returns the video width.
func ParWidth(par CodecParameters) int {
	if par == nil {
		return 0
	}
	return int(*(*int32)(unsafe.Pointer(uintptr(par) + offsetParWidth)))
}

// ParHeight returns the video height.
func ParHeight(par CodecParameters) int {
	if par == nil {
		return 0
	}
	return int(*(*int32)(unsafe.Pointer(uintptr(par) + offsetParHeight)))
}

// ParSampleRate returns the audio sample rate.
func ParSampleRate(par CodecParameters) int {
	if par == nil {
		return 0
	}
	return int(*(*int32)(unsafe.Pointer(uintptr(par) + offsetParSampleRate)))
}

// ParChannels returns the audio channel count.
func ParChannels(par CodecParameters) int {
	if par == nil {
		return 0
	}
	return int(*(*int32)(unsafe.Pointer(uintptr(par) + offsetParChannels)))
}

// ParBitRate returns the per-stream bitrate in bits per second.
func ParBitRate(par CodecParameters) int64 {
	if par == nil {
		return 0
	}
	return *(*int64)(unsafe.Pointer(uintptr(par) + offsetParBitRate))
}

// ParExtradata copies the stream's extra codec configuration bytes.
func ParExtradata(par CodecParameters) []byte {
	if par == nil {
		return nil
	}
	dataPtr := *(*unsafe.Pointer)(unsafe.Pointer(uintptr(par) + offsetParExtradata))
	size := *(*int32)(unsafe.Pointer(uintptr(par) + offsetParExtradataSize))
	if dataPtr == nil || size <= 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(dataPtr), size))
	return out
}
