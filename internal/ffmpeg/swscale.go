//go:build darwin || linux

package ffmpeg

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

// SwsContext is an opaque libswscale context pointer.
type SwsContext = unsafe.Pointer

// SwsBilinear is the SWS_BILINEAR scaling algorithm flag.
const SwsBilinear = int32(2)

var (
	swsGetContext  func(srcW, srcH, srcFmt, dstW, dstH, dstFmt, flags int32, srcFilter, dstFilter, param uintptr) uintptr
	swsScale       func(ctx uintptr, srcSlice uintptr, srcStride uintptr, srcSliceY, srcSliceH int32, dst uintptr, dstStride uintptr) int32
	swsFreeContext func(ctx uintptr)
)

func registerSWScale(lib uintptr) {
	purego.RegisterLibFunc(&swsGetContext, lib, "sws_getContext")
	purego.RegisterLibFunc(&swsScale, lib, "sws_scale")
	purego.RegisterLibFunc(&swsFreeContext, lib, "sws_freeContext")
}

// SwsGetContext allocates a scaling/conversion context.
func SwsGetContext(srcW, srcH int, srcFmt int32, dstW, dstH int, dstFmt int32) SwsContext {
	if swsGetContext == nil {
		return nil
	}
	return unsafe.Pointer(swsGetContext(int32(srcW), int32(srcH), srcFmt, int32(dstW), int32(dstH), dstFmt, SwsBilinear, 0, 0, 0))
}

// SwsFreeContext releases a scaling context.
func SwsFreeContext(ctx SwsContext) {
	if ctx == nil || swsFreeContext == nil {
		return
	}
	swsFreeContext(uintptr(ctx))
}

// SwsScaleFrame converts the source frame's pixel data into the destination
// buffer laid out as a single packed plane with the given stride.
func SwsScaleFrame(ctx SwsContext, src Frame, height int, dst unsafe.Pointer, dstStride int) int {
	if ctx == nil || swsScale == nil {
		return -1
	}
	// Source plane pointers and strides live inside the AVFrame struct, which
	// is laid out exactly as sws_scale expects.
	srcData := uintptr(src) + offsetFrameData
	srcStride := uintptr(src) + offsetFrameLinesize

	dstPlanes := [4]uintptr{uintptr(dst)}
	dstStrides := [4]int32{int32(dstStride)}

	return int(swsScale(uintptr(ctx), srcData, srcStride, 0, int32(height),
		uintptr(unsafe.Pointer(&dstPlanes[0])), uintptr(unsafe.Pointer(&dstStrides[0]))))
}
