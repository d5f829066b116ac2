package playback

import (
	"os"
	"strconv"
)

// PlayerOptions tune one Open call. The zero value plays the first video
// and audio streams from the start.
type PlayerOptions struct {
	// StartTimeMs positions the initial seek. Ignored when 0.
	StartTimeMs int64
	// StartPercent positions the initial seek as a fraction of the
	// duration, in [0, 100]. StartTimeMs wins when both are set.
	StartPercent float64

	// VideoOnly skips audio stream selection entirely.
	VideoOnly bool
	// StereoDownmix converts sources with more than two channels to
	// stereo.
	StereoDownmix bool

	// ResumeState is an opaque host token carried on the options. The
	// engine never reads it.
	ResumeState string
}

// OptionsFromEnv builds options from JELLYTV_* environment variables.
// Unset or malformed values keep the zero default.
func OptionsFromEnv() PlayerOptions {
	var o PlayerOptions
	if v := os.Getenv("JELLYTV_START_TIME_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			o.StartTimeMs = n
		}
	}
	if v := os.Getenv("JELLYTV_START_PERCENT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 100 {
			o.StartPercent = f
		}
	}
	if v := os.Getenv("JELLYTV_VIDEO_ONLY"); v != "" {
		o.VideoOnly, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("JELLYTV_STEREO_DOWNMIX"); v != "" {
		o.StereoDownmix, _ = strconv.ParseBool(v)
	}
	return o
}
