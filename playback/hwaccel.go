package playback

import (
	"runtime"

	"github.com/rs/zerolog"

	"github.com/crucifix86/JellyTV/internal/ffmpeg"
)

// HWAccel identifies a usable hardware decode backend. A nil *HWAccel means
// software decode.
type HWAccel struct {
	// Name is the FFmpeg device type name, e.g. "vaapi".
	Name string

	deviceType int32
	// hwPixFmt is the opaque pixel format frames arrive in before transfer
	// to system memory.
	hwPixFmt int32
}

type hwCandidate struct {
	name     string
	devType  int32
	hwPixFmt int32
}

// hwCandidates returns probe order per platform. First working backend wins.
func hwCandidates() []hwCandidate {
	switch runtime.GOOS {
	case "darwin":
		return []hwCandidate{
			{"videotoolbox", ffmpeg.HWDeviceTypeVideoToolbox, ffmpeg.PixFmtVideoToolbox},
		}
	case "linux":
		return []hwCandidate{
			{"vaapi", ffmpeg.HWDeviceTypeVAAPI, ffmpeg.PixFmtVAAPI},
			{"cuda", ffmpeg.HWDeviceTypeCUDA, ffmpeg.PixFmtCUDA},
		}
	default:
		return nil
	}
}

// DetectHWAccel probes the platform's hardware decode backends and returns
// the first one whose device context can be created, or nil when none work.
// Detection failure is not an error; playback proceeds in software.
func DetectHWAccel(log zerolog.Logger) *HWAccel {
	if err := ffmpeg.Load(); err != nil {
		return nil
	}
	for _, c := range hwCandidates() {
		if ffmpeg.HWDeviceTypeByName(c.name) != c.devType {
			continue
		}
		dev, err := ffmpeg.HWDeviceCtxCreate(c.devType)
		if err != nil {
			log.Debug().Str("backend", c.name).Err(err).Msg("hwaccel probe failed")
			continue
		}
		ffmpeg.BufferUnref(&dev)
		log.Info().Str("backend", c.name).Msg("hwaccel available")
		return &HWAccel{Name: c.name, deviceType: c.devType, hwPixFmt: c.hwPixFmt}
	}
	return nil
}

// NewDeviceContext creates a fresh device context for attaching to a codec
// context. The caller owns the returned ref.
func (h *HWAccel) NewDeviceContext() (ffmpeg.BufferRef, error) {
	return ffmpeg.HWDeviceCtxCreate(h.deviceType)
}

// IsHWFrame reports whether a decoded frame's format is this backend's
// opaque format, meaning its pixels still live in device memory.
func (h *HWAccel) IsHWFrame(format int32) bool {
	return h != nil && format == h.hwPixFmt
}
