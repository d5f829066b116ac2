//go:build darwin || linux

package ffmpeg

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Frame is an opaque FFmpeg AVFrame pointer.
type Frame = unsafe.Pointer

// BufferRef is an opaque FFmpeg AVBufferRef pointer.
type BufferRef = unsafe.Pointer

// Rational mirrors AVRational.
type Rational struct {
	Num int32
	Den int32
}

// Float returns the rational as a float64, or 0 when undefined.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// TimeBase is FFmpeg's internal AV_TIME_BASE (microseconds).
const TimeBase = 1000000

// NoPTSValue is AV_NOPTS_VALUE: int64 minimum, used for unset timestamps.
const NoPTSValue = int64(-0x8000000000000000)

// Pixel formats (enum AVPixelFormat).
const (
	PixFmtNone         = int32(-1)
	PixFmtYUV420P      = int32(0)
	PixFmtNV12         = int32(23)
	PixFmtRGBA         = int32(26)
	PixFmtVAAPI        = int32(44)
	PixFmtCUDA         = int32(117)
	PixFmtVideoToolbox = int32(158)
)

// Sample formats (enum AVSampleFormat).
const (
	SampleFmtNone = int32(-1)
	SampleFmtS16  = int32(1)
	SampleFmtFLTP = int32(8)
)

// Hardware device types (enum AVHWDeviceType).
const (
	HWDeviceTypeNone         = int32(0)
	HWDeviceTypeVDPAU        = int32(1)
	HWDeviceTypeCUDA         = int32(2)
	HWDeviceTypeVAAPI        = int32(3)
	HWDeviceTypeDXVA2        = int32(4)
	HWDeviceTypeQSV          = int32(5)
	HWDeviceTypeVideoToolbox = int32(6)
	HWDeviceTypeD3D11VA      = int32(7)
	HWDeviceTypeDRM          = int32(8)
	HWDeviceTypeMediaCodec   = int32(10)
)

var (
	avFrameAlloc             func() uintptr
	avFrameFree              func(frame *unsafe.Pointer)
	avFrameUnref             func(frame uintptr)
	avStrerror               func(errnum int32, buf uintptr, bufSize uint64) int32
	avHWDeviceCtxCreate      func(ref *unsafe.Pointer, deviceType int32, device uintptr, opts uintptr, flags int32) int32
	avHWFrameTransferData    func(dst, src uintptr, flags int32) int32
	avHWDeviceFindTypeByName func(name string) int32
	avBufferRef              func(buf uintptr) uintptr
	avBufferUnref            func(buf *unsafe.Pointer)
	avOptSetInt              func(obj uintptr, name string, val int64, flags int32) int32
	avOptSetSampleFmt        func(obj uintptr, name string, fmt int32, flags int32) int32
	avOptSetChlayout         func(obj uintptr, name string, layout uintptr, flags int32) int32
	avChannelLayoutDefault   func(layout uintptr, nbChannels int32)
	avRescale                func(a, b, c int64) int64
	avDictGet                func(m uintptr, key string, prev uintptr, flags int32) uintptr
)

func registerAVUtil(lib uintptr) {
	purego.RegisterLibFunc(&avFrameAlloc, lib, "av_frame_alloc")
	purego.RegisterLibFunc(&avFrameFree, lib, "av_frame_free")
	purego.RegisterLibFunc(&avFrameUnref, lib, "av_frame_unref")
	purego.RegisterLibFunc(&avStrerror, lib, "av_strerror")
	purego.RegisterLibFunc(&avHWDeviceCtxCreate, lib, "av_hwdevice_ctx_create")
	purego.RegisterLibFunc(&avHWFrameTransferData, lib, "av_hwframe_transfer_data")
	purego.RegisterLibFunc(&avHWDeviceFindTypeByName, lib, "av_hwdevice_find_type_by_name")
	purego.RegisterLibFunc(&avBufferRef, lib, "av_buffer_ref")
	purego.RegisterLibFunc(&avBufferUnref, lib, "av_buffer_unref")
	purego.RegisterLibFunc(&avOptSetInt, lib, "av_opt_set_int")
	purego.RegisterLibFunc(&avOptSetSampleFmt, lib, "av_opt_set_sample_fmt")
	registerOptional(&avOptSetChlayout, lib, "av_opt_set_chlayout")
	registerOptional(&avChannelLayoutDefault, lib, "av_channel_layout_default")
	registerOptional(&avRescale, lib, "av_rescale")
	registerOptional(&avDictGet, lib, "av_dict_get")
}

// Dictionary is an opaque AVDictionary pointer.
type Dictionary = unsafe.Pointer

// DictGet looks up a key in an AVDictionary, returning "" when absent.
// AVDictionaryEntry is {char *key; char *value}.
func DictGet(dict Dictionary, key string) string {
	if dict == nil || avDictGet == nil {
		return ""
	}
	entry := avDictGet(uintptr(dict), key, 0, 0)
	if entry == 0 {
		return ""
	}
	valPtr := *(*uintptr)(unsafe.Pointer(entry + 8))
	return goString(valPtr)
}

// Err wraps a negative FFmpeg return code into a Go error using av_strerror.
func Err(code int32, op string) error {
	if code >= 0 {
		return nil
	}
	buf := make([]byte, 128)
	if avStrerror != nil && avStrerror(code, uintptr(unsafe.Pointer(&buf[0])), uint64(len(buf))) == 0 {
		n := 0
		for n < len(buf) && buf[n] != 0 {
			n++
		}
		return fmt.Errorf("%s: %s (%d)", op, string(buf[:n]), code)
	}
	return fmt.Errorf("%s: ffmpeg error %d", op, code)
}

// AVERROR(EAGAIN) differs by platform errno; AVERROR_EOF is FFERRTAG('E','O','F',' ').
const (
	errEAGAINLinux  = int32(-11)
	errEAGAINDarwin = int32(-35)
	// ErrCodeEOF is AVERROR_EOF.
	ErrCodeEOF = int32(-541478725)
)

// IsEAGAIN reports whether code is AVERROR(EAGAIN) on any supported platform.
func IsEAGAIN(code int32) bool {
	return code == errEAGAINLinux || code == errEAGAINDarwin
}

// IsEOF reports whether code is AVERROR_EOF.
func IsEOF(code int32) bool {
	return code == ErrCodeEOF
}

// FrameAlloc allocates an AVFrame.
func FrameAlloc() Frame {
	if avFrameAlloc == nil {
		return nil
	}
	return unsafe.Pointer(avFrameAlloc())
}

// FrameFree frees an AVFrame and sets the pointer to nil.
func FrameFree(frame *Frame) {
	if frame == nil || *frame == nil || avFrameFree == nil {
		return
	}
	avFrameFree(frame)
}

// FrameUnref unreferences the buffers held by an AVFrame.
func FrameUnref(frame Frame) {
	if frame == nil || avFrameUnref == nil {
		return
	}
	avFrameUnref(uintptr(frame))
}

// AVFrame struct field offsets (FFmpeg 6.x, avutil 58).
// uint8_t *data[8] occupies bytes 0..63, int linesize[8] bytes 64..95.
const (
	offsetFrameData         = 0
	offsetFrameLinesize     = 64
	offsetFrameWidth        = 104
	offsetFrameHeight       = 108
	offsetFrameNbSamples    = 112
	offsetFrameFormat       = 116
	offsetFramePTS          = 136
	offsetFramePktDTS       = 144
	offsetFrameSampleRate   = 408
	offsetFrameHWFramesCtx  = 416
	offsetFrameChLayoutNbCh = 452 // ch_layout.nb_channels
	offsetFrameBestEffort   = 480 // best_effort_timestamp
)

// FrameDataPtr returns the raw pointer of plane i.
func FrameDataPtr(frame Frame, i int) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(uintptr(frame) + offsetFrameData + uintptr(i)*8))
}

// FrameLinesize returns the stride of plane i in bytes.
func FrameLinesize(frame Frame, i int) int {
	return int(*(*int32)(unsafe.Pointer(uintptr(frame) + offsetFrameLinesize + uintptr(i)*4)))
}

// FrameWidth returns the frame width in pixels.
func FrameWidth(frame Frame) int {
	return int(*(*int32)(unsafe.Pointer(uintptr(frame) + offsetFrameWidth)))
}

// FrameHeight returns the frame height in pixels.
func FrameHeight(frame Frame) int {
	return int(*(*int32)(unsafe.Pointer(uintptr(frame) + offsetFrameHeight)))
}

// FrameNbSamples returns the per-channel sample count of an audio frame.
func FrameNbSamples(frame Frame) int {
	return int(*(*int32)(unsafe.Pointer(uintptr(frame) + offsetFrameNbSamples)))
}

// FrameFormat returns the pixel format (video) or sample format (audio).
func FrameFormat(frame Frame) int32 {
	return *(*int32)(unsafe.Pointer(uintptr(frame) + offsetFrameFormat))
}

// FramePTS returns the presentation timestamp in stream timebase units.
func FramePTS(frame Frame) int64 {
	return *(*int64)(unsafe.Pointer(uintptr(frame) + offsetFramePTS))
}

// FrameBestEffortTimestamp returns the frame timestamp estimated from
// various heuristics; falls back to PTS when the symbol layout predates it.
func FrameBestEffortTimestamp(frame Frame) int64 {
	ts := *(*int64)(unsafe.Pointer(uintptr(frame) + offsetFrameBestEffort))
	if ts == NoPTSValue {
		return FramePTS(frame)
	}
	return ts
}

// FrameSampleRate returns the audio sample rate.
func FrameSampleRate(frame Frame) int {
	return int(*(*int32)(unsafe.Pointer(uintptr(frame) + offsetFrameSampleRate)))
}

// FrameChannels returns ch_layout.nb_channels.
func FrameChannels(frame Frame) int {
	return int(*(*int32)(unsafe.Pointer(uintptr(frame) + offsetFrameChLayoutNbCh)))
}

// FrameHWFramesCtx returns the frame's hardware frames context, or nil for
// software frames.
func FrameHWFramesCtx(frame Frame) BufferRef {
	return *(*unsafe.Pointer)(unsafe.Pointer(uintptr(frame) + offsetFrameHWFramesCtx))
}

// HWDeviceCtxCreate opens a hardware device context of the given type.
func HWDeviceCtxCreate(deviceType int32) (BufferRef, error) {
	if avHWDeviceCtxCreate == nil {
		return nil, ErrNotLoaded
	}
	var ref unsafe.Pointer
	if code := avHWDeviceCtxCreate(&ref, deviceType, 0, 0, 0); code < 0 {
		return nil, Err(code, "av_hwdevice_ctx_create")
	}
	return ref, nil
}

// HWDeviceTypeByName resolves a device type name ("vaapi", "cuda", ...).
func HWDeviceTypeByName(name string) int32 {
	if avHWDeviceFindTypeByName == nil {
		return HWDeviceTypeNone
	}
	return avHWDeviceFindTypeByName(name)
}

// HWFrameTransferData copies a hardware frame into the destination software
// frame. The destination must be an unreferenced AVFrame.
func HWFrameTransferData(dst, src Frame) error {
	if avHWFrameTransferData == nil {
		return ErrNotLoaded
	}
	if code := avHWFrameTransferData(uintptr(dst), uintptr(src), 0); code < 0 {
		return Err(code, "av_hwframe_transfer_data")
	}
	return nil
}

// BufferRefNew duplicates a buffer reference (av_buffer_ref).
func BufferRefNew(buf BufferRef) BufferRef {
	if buf == nil || avBufferRef == nil {
		return nil
	}
	return unsafe.Pointer(avBufferRef(uintptr(buf)))
}

// BufferUnref releases a buffer reference.
func BufferUnref(buf *BufferRef) {
	if buf == nil || *buf == nil || avBufferUnref == nil {
		return
	}
	avBufferUnref(buf)
}

// RescaleQ rescales a from timebase bq to timebase cq. av_rescale_q takes
// its AVRationals by value, which purego cannot express, so the identity
// a * (bq.num*cq.den) / (bq.den*cq.num) is routed through av_rescale, which
// takes plain int64s.
func RescaleQ(a int64, bq, cq Rational) int64 {
	b := int64(bq.Num) * int64(cq.Den)
	c := int64(bq.Den) * int64(cq.Num)
	if c == 0 {
		return 0
	}
	if avRescale != nil {
		return avRescale(a, b, c)
	}
	return a * b / c
}
