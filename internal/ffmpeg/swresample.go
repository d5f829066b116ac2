//go:build darwin || linux

package ffmpeg

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

// SwrContext is an opaque libswresample context pointer.
type SwrContext = unsafe.Pointer

var (
	swrAlloc   func() uintptr
	swrInit    func(ctx uintptr) int32
	swrConvert func(ctx uintptr, out uintptr, outCount int32, in uintptr, inCount int32) int32
	swrFree    func(ctx *unsafe.Pointer)
)

func registerSWResample(lib uintptr) {
	purego.RegisterLibFunc(&swrAlloc, lib, "swr_alloc")
	purego.RegisterLibFunc(&swrInit, lib, "swr_init")
	purego.RegisterLibFunc(&swrConvert, lib, "swr_convert")
	purego.RegisterLibFunc(&swrFree, lib, "swr_free")
}

// channelLayout mirrors AVChannelLayout (FFmpeg 5.1+): order, nb_channels,
// a 64-bit mask union, and an opaque pointer.
type channelLayout struct {
	Order      int32
	NbChannels int32
	Mask       uint64
	Opaque     uintptr
}

// SwrConfig describes an audio conversion: decoded frames in, interleaved
// fixed-format PCM out.
type SwrConfig struct {
	InSampleFmt   int32
	InSampleRate  int
	InChannels    int
	OutSampleFmt  int32
	OutSampleRate int
	OutChannels   int
}

// NewSwrContext allocates and initializes a resampler for the given
// conversion using the AVOption interface on the swr context.
func NewSwrContext(cfg SwrConfig) (SwrContext, error) {
	if swrAlloc == nil {
		return nil, ErrNotLoaded
	}
	ctx := swrAlloc()
	if ctx == 0 {
		return nil, Err(-1, "swr_alloc")
	}

	in := &channelLayout{}
	out := &channelLayout{}
	if avChannelLayoutDefault != nil {
		avChannelLayoutDefault(uintptr(unsafe.Pointer(in)), int32(cfg.InChannels))
		avChannelLayoutDefault(uintptr(unsafe.Pointer(out)), int32(cfg.OutChannels))
	}
	if avOptSetChlayout != nil {
		avOptSetChlayout(ctx, "in_chlayout", uintptr(unsafe.Pointer(in)), 0)
		avOptSetChlayout(ctx, "out_chlayout", uintptr(unsafe.Pointer(out)), 0)
	}
	avOptSetInt(ctx, "in_sample_rate", int64(cfg.InSampleRate), 0)
	avOptSetInt(ctx, "out_sample_rate", int64(cfg.OutSampleRate), 0)
	avOptSetSampleFmt(ctx, "in_sample_fmt", cfg.InSampleFmt, 0)
	avOptSetSampleFmt(ctx, "out_sample_fmt", cfg.OutSampleFmt, 0)

	if code := swrInit(ctx); code < 0 {
		p := unsafe.Pointer(ctx)
		swrFree(&p)
		return nil, Err(code, "swr_init")
	}
	return unsafe.Pointer(ctx), nil
}

// SwrFree releases a resampler context.
func SwrFree(ctx *SwrContext) {
	if ctx == nil || *ctx == nil || swrFree == nil {
		return
	}
	swrFree(ctx)
}

// SwrConvertFrame converts the audio frame's samples into dst (a single
// interleaved output plane with room for maxSamples per channel) and returns
// the number of samples written per channel.
func SwrConvertFrame(ctx SwrContext, src Frame, dst unsafe.Pointer, maxSamples int) (int, error) {
	if ctx == nil || swrConvert == nil {
		return 0, ErrNotLoaded
	}
	// extended_data for planar input lives at the frame's data array for up to
	// 8 channels, which covers every layout the engine downmixes.
	srcData := uintptr(src) + offsetFrameData
	outPlanes := [1]uintptr{uintptr(dst)}

	n := swrConvert(uintptr(ctx), uintptr(unsafe.Pointer(&outPlanes[0])), int32(maxSamples),
		srcData, int32(FrameNbSamples(src)))
	if n < 0 {
		return 0, Err(n, "swr_convert")
	}
	return int(n), nil
}
