package playback

import (
	"sync/atomic"

	"github.com/crucifix86/JellyTV/internal/ffmpeg"
)

// Packet is one compressed unit read from the container. Ownership passes
// from the demuxer through a queue to exactly one consumer, which must call
// Free exactly once regardless of decode outcome. Free is idempotent.
type Packet struct {
	StreamIndex int
	// PTS is the presentation timestamp in milliseconds.
	PTS int64
	// DurationMs is the packet duration in milliseconds, 0 when unknown.
	DurationMs int64
	Keyframe   bool

	raw     ffmpeg.Packet
	payload []byte
	freed   atomic.Bool
}

// NewPacket creates a detached packet carrying its payload in Go memory.
// Used by replacement demux sources and tests; the FFmpeg demuxer produces
// packets backed by native memory instead.
func NewPacket(streamIndex int, ptsMs int64, keyframe bool, payload []byte) *Packet {
	return &Packet{
		StreamIndex: streamIndex,
		PTS:         ptsMs,
		Keyframe:    keyframe,
		payload:     payload,
	}
}

// Data returns the packet payload, copying it out of native memory on first
// access.
func (p *Packet) Data() []byte {
	if p.payload == nil && p.raw != nil && !p.freed.Load() {
		p.payload = ffmpeg.PacketData(p.raw)
	}
	return p.payload
}

// Free releases the native packet. Safe to call more than once; only the
// first call releases anything.
func (p *Packet) Free() {
	if p == nil || !p.freed.CompareAndSwap(false, true) {
		return
	}
	if p.raw != nil {
		ffmpeg.PacketFree(&p.raw)
	}
}
