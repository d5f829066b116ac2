// Core stream and media types used across the playback package.
package playback

import "github.com/crucifix86/JellyTV/internal/ffmpeg"

// MediaType identifies the kind of an elementary stream.
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeVideo
	MediaTypeAudio
	MediaTypeSubtitle
)

func (t MediaType) String() string {
	switch t {
	case MediaTypeVideo:
		return "video"
	case MediaTypeAudio:
		return "audio"
	case MediaTypeSubtitle:
		return "subtitle"
	default:
		return "unknown"
	}
}

// Rational is a stream timebase expressed as a fraction of a second.
type Rational struct {
	Num int
	Den int
}

// Float returns the rational as a float64, or 0 when undefined.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// StreamInfo describes one elementary stream of an open container. Created at
// open, immutable afterwards.
type StreamInfo struct {
	Index    int
	Type     MediaType
	Codec    string // canonical codec name, e.g. "h264", "aac"
	Language string // ISO language tag from container metadata, may be empty

	// Video
	Width     int
	Height    int
	FrameRate float64

	// Audio
	Channels   int
	SampleRate int

	BitRate  int64
	TimeBase Rational
	// Extradata holds out-of-band codec configuration (SPS/PPS, ASC, ...).
	Extradata []byte

	codecID int32 // raw libavcodec ID, used to open the matching decoder
	// par points at the stream's native codec parameters; valid while the
	// demuxer that produced this StreamInfo stays open. Nil on non-FFmpeg
	// sources.
	par ffmpeg.CodecParameters
}

// IsVideo reports whether the stream carries video.
func (s StreamInfo) IsVideo() bool { return s.Type == MediaTypeVideo }

// IsAudio reports whether the stream carries audio.
func (s StreamInfo) IsAudio() bool { return s.Type == MediaTypeAudio }
