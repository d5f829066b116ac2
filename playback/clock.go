package playback

import (
	"sync"
	"time"
)

// AudioClock is the playback master clock. All position reporting and the
// audio-ahead throttle reference it exclusively; video never runs its own
// clock.
//
// GetTime is monotonic non-decreasing while the clock runs, frozen while
// paused, and reset only by an explicit Seek.
type AudioClock struct {
	mu        sync.Mutex
	baseMs    int64
	startedAt time.Time
	speed     float64
	running   bool
	paused    bool

	now func() time.Time // injectable for tests
}

// NewAudioClock creates a stopped clock at time zero with speed 1.0.
func NewAudioClock() *AudioClock {
	return &AudioClock{speed: 1.0, now: time.Now}
}

// Start begins advancing the clock from its current base.
func (c *AudioClock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.paused = false
	c.startedAt = c.now()
}

// Stop freezes the clock and folds elapsed time into the base.
func (c *AudioClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running && !c.paused {
		c.baseMs += c.elapsedLocked()
	}
	c.running = false
	c.paused = false
}

// Pause freezes GetTime without stopping the session.
func (c *AudioClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.paused {
		return
	}
	c.baseMs += c.elapsedLocked()
	c.paused = true
}

// Resume continues advancing after Pause.
func (c *AudioClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || !c.paused {
		return
	}
	c.paused = false
	c.startedAt = c.now()
}

// Seek resets the clock base to timeMs and restarts the underlying timer.
// The paused state is preserved.
func (c *AudioClock) Seek(timeMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseMs = timeMs
	c.startedAt = c.now()
}

// SetSpeed changes the playback-speed multiplier. Elapsed time up to now is
// folded into the base so the position does not jump.
func (c *AudioClock) SetSpeed(factor float64) {
	if factor <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running && !c.paused {
		c.baseMs += c.elapsedLocked()
		c.startedAt = c.now()
	}
	c.speed = factor
}

// Speed returns the current playback-speed multiplier.
func (c *AudioClock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// GetTime returns the current playback position in milliseconds.
func (c *AudioClock) GetTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || c.paused {
		return c.baseMs
	}
	return c.baseMs + c.elapsedLocked()
}

// Running reports whether the clock is started and not paused.
func (c *AudioClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running && !c.paused
}

func (c *AudioClock) elapsedLocked() int64 {
	return int64(float64(c.now().Sub(c.startedAt).Milliseconds()) * c.speed)
}
