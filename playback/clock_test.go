package playback

import (
	"sync"
	"testing"
	"time"
)

// fakeNow gives tests deterministic control over the clock's time source.
// It is safe for use while pipeline goroutines read the clock.
type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeNow() *fakeNow {
	return &fakeNow{t: time.Unix(1000, 0)}
}

func (f *fakeNow) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func TestAudioClock_AdvancesWhileRunning(t *testing.T) {
	fn := newFakeNow()
	c := NewAudioClock()
	c.now = fn.now

	c.Start()
	fn.advance(1500 * time.Millisecond)
	if got := c.GetTime(); got != 1500 {
		t.Errorf("GetTime() = %d, want 1500", got)
	}
}

func TestAudioClock_StoppedStaysAtBase(t *testing.T) {
	fn := newFakeNow()
	c := NewAudioClock()
	c.now = fn.now

	fn.advance(time.Second)
	if got := c.GetTime(); got != 0 {
		t.Errorf("GetTime() before Start = %d, want 0", got)
	}
}

func TestAudioClock_PauseFreezesResumeContinues(t *testing.T) {
	fn := newFakeNow()
	c := NewAudioClock()
	c.now = fn.now

	c.Start()
	fn.advance(2 * time.Second)
	c.Pause()
	fn.advance(5 * time.Second)
	if got := c.GetTime(); got != 2000 {
		t.Errorf("GetTime() while paused = %d, want 2000", got)
	}

	c.Resume()
	fn.advance(time.Second)
	if got := c.GetTime(); got != 3000 {
		t.Errorf("GetTime() after resume = %d, want 3000", got)
	}
}

func TestAudioClock_SeekResetsBase(t *testing.T) {
	fn := newFakeNow()
	c := NewAudioClock()
	c.now = fn.now

	c.Start()
	fn.advance(4 * time.Second)
	c.Seek(1000)
	if got := c.GetTime(); got != 1000 {
		t.Errorf("GetTime() right after Seek = %d, want 1000", got)
	}
	fn.advance(500 * time.Millisecond)
	if got := c.GetTime(); got != 1500 {
		t.Errorf("GetTime() after Seek+500ms = %d, want 1500", got)
	}
}

func TestAudioClock_SpeedScalesElapsed(t *testing.T) {
	fn := newFakeNow()
	c := NewAudioClock()
	c.now = fn.now

	c.Start()
	fn.advance(time.Second)
	c.SetSpeed(2.0)
	fn.advance(time.Second)
	// 1s at 1x, then 1s at 2x.
	if got := c.GetTime(); got != 3000 {
		t.Errorf("GetTime() = %d, want 3000", got)
	}

	c.SetSpeed(0.5)
	fn.advance(2 * time.Second)
	if got := c.GetTime(); got != 4000 {
		t.Errorf("GetTime() = %d, want 4000", got)
	}
}

func TestAudioClock_SetSpeedRejectsNonPositive(t *testing.T) {
	c := NewAudioClock()
	c.SetSpeed(0)
	if got := c.Speed(); got != 1.0 {
		t.Errorf("Speed() = %v after SetSpeed(0), want 1.0", got)
	}
	c.SetSpeed(-1)
	if got := c.Speed(); got != 1.0 {
		t.Errorf("Speed() = %v after SetSpeed(-1), want 1.0", got)
	}
}

func TestAudioClock_MonotonicWhileRunning(t *testing.T) {
	fn := newFakeNow()
	c := NewAudioClock()
	c.now = fn.now

	c.Start()
	prev := c.GetTime()
	for i := 0; i < 100; i++ {
		fn.advance(7 * time.Millisecond)
		got := c.GetTime()
		if got < prev {
			t.Fatalf("GetTime() went backwards: %d -> %d", prev, got)
		}
		prev = got
	}
}
