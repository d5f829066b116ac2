package playback

import (
	"sync"
	"sync/atomic"
	"time"
)

// Statistics collects pipeline counters and gauges. Counters increase
// monotonically within one media session; Reset clears everything at
// open/close boundaries. All methods are safe for concurrent use.
type Statistics struct {
	videoDecoded atomic.Int64
	audioDecoded atomic.Int64
	videoDropped atomic.Int64
	decodeErrors atomic.Int64

	videoQueueDepth    atomic.Int32
	audioQueueDepth    atomic.Int32
	subtitleQueueDepth atomic.Int32
	rendererDepth      atomic.Int32
	audioOutDepth      atomic.Int32

	mu             sync.Mutex
	sessionID      string
	fps            float64
	fpsLastAt      time.Time
	fpsLastDecoded int64
}

// StatisticsSnapshot is a point-in-time copy of all counters and gauges.
type StatisticsSnapshot struct {
	SessionID string

	VideoFramesDecoded int64
	AudioFramesDecoded int64
	VideoFramesDropped int64
	DecodeErrors       int64

	FPS float64

	VideoQueueDepth    int
	AudioQueueDepth    int
	SubtitleQueueDepth int
	RendererDepth      int
	AudioOutputDepth   int
}

// NewStatistics creates an empty collector.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// The Record methods tolerate a nil receiver so decoders built without a
// statistics sink stay counter-free.

// RecordVideoFrame counts one decoded video frame.
func (s *Statistics) RecordVideoFrame() {
	if s != nil {
		s.videoDecoded.Add(1)
	}
}

// RecordAudioFrame counts one decoded audio frame.
func (s *Statistics) RecordAudioFrame() {
	if s != nil {
		s.audioDecoded.Add(1)
	}
}

// RecordDroppedFrame counts one video frame dropped by the renderer.
func (s *Statistics) RecordDroppedFrame() {
	if s != nil {
		s.videoDropped.Add(1)
	}
}

// RecordDecodeError counts one absorbed per-unit decode failure.
func (s *Statistics) RecordDecodeError() {
	if s != nil {
		s.decodeErrors.Add(1)
	}
}

// VideoFramesDropped returns the dropped-frame counter.
func (s *Statistics) VideoFramesDropped() int64 { return s.videoDropped.Load() }

// SetQueueDepths refreshes the queue-depth gauges. Called from the clock loop.
func (s *Statistics) SetQueueDepths(video, audio, subtitle, renderer, audioOut int) {
	s.videoQueueDepth.Store(int32(video))
	s.audioQueueDepth.Store(int32(audio))
	s.subtitleQueueDepth.Store(int32(subtitle))
	s.rendererDepth.Store(int32(renderer))
	s.audioOutDepth.Store(int32(audioOut))
}

// SetSessionID tags the statistics with the current media session.
func (s *Statistics) SetSessionID(id string) {
	s.mu.Lock()
	s.sessionID = id
	s.mu.Unlock()
}

// SampleFPS recomputes the live FPS from the decoded-frame counter over the
// elapsed interval since the previous sample. Called from the clock loop.
func (s *Statistics) SampleFPS(now time.Time) {
	decoded := s.videoDecoded.Load()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fpsLastAt.IsZero() {
		s.fpsLastAt = now
		s.fpsLastDecoded = decoded
		return
	}
	dt := now.Sub(s.fpsLastAt).Seconds()
	if dt < 0.5 {
		return // sample at most ~2 Hz to keep the gauge stable
	}
	s.fps = float64(decoded-s.fpsLastDecoded) / dt
	s.fpsLastAt = now
	s.fpsLastDecoded = decoded
}

// Snapshot returns a copy of all counters and gauges.
func (s *Statistics) Snapshot() StatisticsSnapshot {
	s.mu.Lock()
	sessionID := s.sessionID
	fps := s.fps
	s.mu.Unlock()
	return StatisticsSnapshot{
		SessionID:          sessionID,
		VideoFramesDecoded: s.videoDecoded.Load(),
		AudioFramesDecoded: s.audioDecoded.Load(),
		VideoFramesDropped: s.videoDropped.Load(),
		DecodeErrors:       s.decodeErrors.Load(),
		FPS:                fps,
		VideoQueueDepth:    int(s.videoQueueDepth.Load()),
		AudioQueueDepth:    int(s.audioQueueDepth.Load()),
		SubtitleQueueDepth: int(s.subtitleQueueDepth.Load()),
		RendererDepth:      int(s.rendererDepth.Load()),
		AudioOutputDepth:   int(s.audioOutDepth.Load()),
	}
}

// Reset clears all counters and gauges.
func (s *Statistics) Reset() {
	s.videoDecoded.Store(0)
	s.audioDecoded.Store(0)
	s.videoDropped.Store(0)
	s.decodeErrors.Store(0)
	s.SetQueueDepths(0, 0, 0, 0, 0)
	s.mu.Lock()
	s.sessionID = ""
	s.fps = 0
	s.fpsLastAt = time.Time{}
	s.fpsLastDecoded = 0
	s.mu.Unlock()
}
