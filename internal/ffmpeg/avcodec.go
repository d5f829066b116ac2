//go:build darwin || linux

package ffmpeg

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

// Codec is an opaque FFmpeg AVCodec pointer.
type Codec = unsafe.Pointer

// CodecContext is an opaque FFmpeg AVCodecContext pointer.
type CodecContext = unsafe.Pointer

// Packet is an opaque FFmpeg AVPacket pointer.
type Packet = unsafe.Pointer

// CodecParameters is an opaque FFmpeg AVCodecParameters pointer.
type CodecParameters = unsafe.Pointer

// Media types (enum AVMediaType).
const (
	MediaTypeUnknown  = int32(-1)
	MediaTypeVideo    = int32(0)
	MediaTypeAudio    = int32(1)
	MediaTypeData     = int32(2)
	MediaTypeSubtitle = int32(3)
)

// Codec IDs (enum AVCodecID). Values mirror libavcodec.
const (
	CodecIDNone       = int32(0)
	CodecIDMPEG2Video = int32(2)
	CodecIDMPEG4      = int32(12)
	CodecIDH264       = int32(27)
	CodecIDVP8        = int32(139)
	CodecIDVP9        = int32(167)
	CodecIDHEVC       = int32(173)
	CodecIDAV1        = int32(226)

	CodecIDMP3  = int32(86017)
	CodecIDAAC  = int32(86018)
	CodecIDAC3  = int32(86019)
	CodecIDFLAC = int32(86028)
	CodecIDOpus = int32(86076)

	CodecIDDVDSubtitle = int32(94208)
	CodecIDText        = int32(94210)
	CodecIDSSA         = int32(94212)
	CodecIDMovText     = int32(94213)
	CodecIDHDMVPGS     = int32(94214)
	CodecIDSRT         = int32(94216)
	CodecIDEIA608      = int32(94218)
)

// Packet flags.
const (
	PacketFlagKey     = int32(0x0001) // AV_PKT_FLAG_KEY
	PacketFlagCorrupt = int32(0x0002) // AV_PKT_FLAG_CORRUPT
)

var (
	avcodecFindDecoder       func(id int32) uintptr
	avcodecFindDecoderByName func(name string) uintptr
	avcodecAllocContext3     func(codec uintptr) uintptr
	avcodecFreeContext       func(ctx *unsafe.Pointer)
	avcodecOpen2             func(ctx, codec uintptr, options *unsafe.Pointer) int32
	avcodecSendPacket        func(ctx, pkt uintptr) int32
	avcodecReceiveFrame      func(ctx, frame uintptr) int32
	avcodecFlushBuffers      func(ctx uintptr)
	avcodecParametersToCtx   func(ctx, par uintptr) int32
	avcodecGetName           func(id int32) uintptr

	avPacketAlloc func() uintptr
	avPacketFree  func(pkt *unsafe.Pointer)
	avPacketUnref func(pkt uintptr)
)

func registerAVCodec(lib uintptr) {
	purego.RegisterLibFunc(&avcodecFindDecoder, lib, "avcodec_find_decoder")
	purego.RegisterLibFunc(&avcodecFindDecoderByName, lib, "avcodec_find_decoder_by_name")
	purego.RegisterLibFunc(&avcodecAllocContext3, lib, "avcodec_alloc_context3")
	purego.RegisterLibFunc(&avcodecFreeContext, lib, "avcodec_free_context")
	purego.RegisterLibFunc(&avcodecOpen2, lib, "avcodec_open2")
	purego.RegisterLibFunc(&avcodecSendPacket, lib, "avcodec_send_packet")
	purego.RegisterLibFunc(&avcodecReceiveFrame, lib, "avcodec_receive_frame")
	purego.RegisterLibFunc(&avcodecFlushBuffers, lib, "avcodec_flush_buffers")
	purego.RegisterLibFunc(&avcodecParametersToCtx, lib, "avcodec_parameters_to_context")
	registerOptional(&avcodecGetName, lib, "avcodec_get_name")

	purego.RegisterLibFunc(&avPacketAlloc, lib, "av_packet_alloc")
	purego.RegisterLibFunc(&avPacketFree, lib, "av_packet_free")
	purego.RegisterLibFunc(&avPacketUnref, lib, "av_packet_unref")
}

// FindDecoder finds a decoder by codec ID.
func FindDecoder(id int32) Codec {
	if avcodecFindDecoder == nil {
		return nil
	}
	return unsafe.Pointer(avcodecFindDecoder(id))
}

// FindDecoderByName finds a decoder by name (e.g. "h264_cuvid").
func FindDecoderByName(name string) Codec {
	if avcodecFindDecoderByName == nil {
		return nil
	}
	return unsafe.Pointer(avcodecFindDecoderByName(name))
}

// CodecName returns the canonical name for a codec ID ("h264", "aac", ...).
func CodecName(id int32) string {
	if avcodecGetName == nil {
		return "unknown"
	}
	return goString(avcodecGetName(id))
}

// AllocContext allocates an AVCodecContext for the given codec.
func AllocContext(codec Codec) CodecContext {
	if avcodecAllocContext3 == nil {
		return nil
	}
	return unsafe.Pointer(avcodecAllocContext3(uintptr(codec)))
}

// FreeContext frees a codec context and sets the pointer to nil.
func FreeContext(ctx *CodecContext) {
	if ctx == nil || *ctx == nil || avcodecFreeContext == nil {
		return
	}
	avcodecFreeContext(ctx)
}

// ParametersToContext fills a codec context from stream codec parameters.
func ParametersToContext(ctx CodecContext, par CodecParameters) error {
	if avcodecParametersToCtx == nil {
		return ErrNotLoaded
	}
	if code := avcodecParametersToCtx(uintptr(ctx), uintptr(par)); code < 0 {
		return Err(code, "avcodec_parameters_to_context")
	}
	return nil
}

// OpenContext opens the codec context for decoding.
func OpenContext(ctx CodecContext, codec Codec) error {
	if avcodecOpen2 == nil {
		return ErrNotLoaded
	}
	if code := avcodecOpen2(uintptr(ctx), uintptr(codec), nil); code < 0 {
		return Err(code, "avcodec_open2")
	}
	return nil
}

// SendPacket submits a packet for decoding. A nil packet drains the decoder.
func SendPacket(ctx CodecContext, pkt Packet) int32 {
	return avcodecSendPacket(uintptr(ctx), uintptr(pkt))
}

// ReceiveFrame fetches the next decoded frame. Returns 0 on success,
// AVERROR(EAGAIN) when more input is needed, AVERROR_EOF when drained.
func ReceiveFrame(ctx CodecContext, frame Frame) int32 {
	return avcodecReceiveFrame(uintptr(ctx), uintptr(frame))
}

// FlushBuffers resets decoder internal state (used after a seek).
func FlushBuffers(ctx CodecContext) {
	if ctx == nil || avcodecFlushBuffers == nil {
		return
	}
	avcodecFlushBuffers(uintptr(ctx))
}

// PacketAlloc allocates an AVPacket.
func PacketAlloc() Packet {
	if avPacketAlloc == nil {
		return nil
	}
	return unsafe.Pointer(avPacketAlloc())
}

// PacketFree frees an AVPacket and sets the pointer to nil.
func PacketFree(pkt *Packet) {
	if pkt == nil || *pkt == nil || avPacketFree == nil {
		return
	}
	avPacketFree(pkt)
}

// PacketUnref unreferences the packet's payload buffer.
func PacketUnref(pkt Packet) {
	if pkt == nil || avPacketUnref == nil {
		return
	}
	avPacketUnref(uintptr(pkt))
}

// AVPacket struct field offsets (FFmpeg 6.x).
const (
	offsetPacketPTS         = 8  // int64 pts
	offsetPacketDTS         = 16 // int64 dts
	offsetPacketData        = 24 // uint8_t *data
	offsetPacketSize        = 32 // int size
	offsetPacketStreamIndex = 36 // int stream_index
	offsetPacketFlags       = 40 // int flags
	offsetPacketDuration    = 64 // int64 duration
)

// PacketPTS returns the packet presentation timestamp in stream timebase units.
func PacketPTS(pkt Packet) int64 {
	return *(*int64)(unsafe.Pointer(uintptr(pkt) + offsetPacketPTS))
}

// PacketDTS returns the packet decode timestamp.
func PacketDTS(pkt Packet) int64 {
	return *(*int64)(unsafe.Pointer(uintptr(pkt) + offsetPacketDTS))
}

// PacketStreamIndex returns the source stream index.
func PacketStreamIndex(pkt Packet) int {
	return int(*(*int32)(unsafe.Pointer(uintptr(pkt) + offsetPacketStreamIndex)))
}

// PacketFlags returns the packet flags.
func PacketFlags(pkt Packet) int32 {
	return *(*int32)(unsafe.Pointer(uintptr(pkt) + offsetPacketFlags))
}

// PacketDuration returns the packet duration in stream timebase units.
func PacketDuration(pkt Packet) int64 {
	return *(*int64)(unsafe.Pointer(uintptr(pkt) + offsetPacketDuration))
}

// PacketData copies the packet payload into a Go slice.
func PacketData(pkt Packet) []byte {
	dataPtr := *(*unsafe.Pointer)(unsafe.Pointer(uintptr(pkt) + offsetPacketData))
	size := *(*int32)(unsafe.Pointer(uintptr(pkt) + offsetPacketSize))
	if dataPtr == nil || size <= 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(dataPtr), size))
	return out
}

// AVCodecContext field offsets (FFmpeg 6.x, avcodec 60).
const (
	offsetCtxPixFmt       = 136 // enum AVPixelFormat pix_fmt
	offsetCtxHWDeviceCtx  = 864 // AVBufferRef *hw_device_ctx
	offsetCtxSampleRate   = 352 // int sample_rate
	offsetCtxSampleFmt    = 360 // enum AVSampleFormat sample_fmt
	offsetCtxWidth        = 116 // int width
	offsetCtxHeight       = 120 // int height
	offsetCtxChLayoutNbCh = 924 // ch_layout.nb_channels
)

// SetCtxHWDeviceCtx attaches a hardware device context to the codec context.
// The codec context takes its own reference.
func SetCtxHWDeviceCtx(ctx CodecContext, device BufferRef) {
	if ctx == nil {
		return
	}
	*(*unsafe.Pointer)(unsafe.Pointer(uintptr(ctx) + offsetCtxHWDeviceCtx)) = BufferRefNew(device)
}

// CtxWidth returns the coded width.
func CtxWidth(ctx CodecContext) int {
	return int(*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxWidth)))
}

// CtxHeight returns the coded height.
func CtxHeight(ctx CodecContext) int {
	return int(*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxHeight)))
}

// CtxPixFmt returns the negotiated pixel format.
func CtxPixFmt(ctx CodecContext) int32 {
	return *(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxPixFmt))
}

// CtxSampleRate returns the audio sample rate.
func CtxSampleRate(ctx CodecContext) int {
	return int(*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxSampleRate)))
}

// CtxSampleFmt returns the audio sample format.
func CtxSampleFmt(ctx CodecContext) int32 {
	return *(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxSampleFmt))
}

// CtxChannels returns ch_layout.nb_channels.
func CtxChannels(ctx CodecContext) int {
	return int(*(*int32)(unsafe.Pointer(uintptr(ctx) + offsetCtxChLayoutNbCh)))
}

// goString converts a NUL-terminated C string pointer to a Go string.
func goString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	var n int
	for *(*byte)(unsafe.Pointer(ptr + uintptr(n))) != 0 && n < 1024 {
		n++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n))
}
