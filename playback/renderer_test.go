package playback

import "testing"

func testFrame(pool *BufferPool, ptsMs int64) *VideoFrame {
	return NewVideoFrame(pool, 2, 2, ptsMs)
}

func TestVideoRenderer_FrameNotDueYet(t *testing.T) {
	pool := NewBufferPool(16)
	r := NewVideoRenderer(NewStatistics())
	r.Push(testFrame(pool, 1000))

	if got := r.GetNextFrame(900); got != nil {
		t.Errorf("GetNextFrame(900) = frame PTS %d, want nil (head 80ms ahead)", got.PTS)
	}
	if r.QueueLen() != 1 {
		t.Errorf("QueueLen() = %d, want 1 (head kept)", r.QueueLen())
	}
}

func TestVideoRenderer_FrameWithinWindow(t *testing.T) {
	pool := NewBufferPool(16)
	r := NewVideoRenderer(NewStatistics())
	r.Push(testFrame(pool, 1000))

	got := r.GetNextFrame(1010)
	if got == nil || got.PTS != 1000 {
		t.Fatalf("GetNextFrame(1010) = %v, want frame PTS 1000", got)
	}
	// The frame stays current on subsequent calls.
	if again := r.GetNextFrame(1015); again != got {
		t.Error("GetNextFrame did not retain the current frame")
	}
}

func TestVideoRenderer_NeverReturnsFrameTooFarAhead(t *testing.T) {
	pool := NewBufferPool(16)
	r := NewVideoRenderer(NewStatistics())
	for _, pts := range []int64{100, 200, 300} {
		r.Push(testFrame(pool, pts))
	}
	for clock := int64(0); clock <= 320; clock += 10 {
		if f := r.GetNextFrame(clock); f != nil && f.PTS > clock+renderWindowMs {
			t.Fatalf("GetNextFrame(%d) returned frame PTS %d, more than %dms ahead", clock, f.PTS, renderWindowMs)
		}
	}
}

func TestVideoRenderer_DropsLateFramesAndCounts(t *testing.T) {
	pool := NewBufferPool(16)
	stats := NewStatistics()
	r := NewVideoRenderer(stats)
	late1 := testFrame(pool, 100)
	late2 := testFrame(pool, 200)
	due := testFrame(pool, 1000)
	r.Push(late1)
	r.Push(late2)
	r.Push(due)

	got := r.GetNextFrame(1005)
	if got == nil || got.PTS != 1000 {
		t.Fatalf("GetNextFrame(1005) = %v, want frame PTS 1000", got)
	}
	if dropped := stats.VideoFramesDropped(); dropped != 2 {
		t.Errorf("VideoFramesDropped() = %d, want 2", dropped)
	}
	if !late1.released.Load() || !late2.released.Load() {
		t.Error("dropped frames were not released to the pool")
	}
}

func TestVideoRenderer_FullQueueDropsOldest(t *testing.T) {
	pool := NewBufferPool(16)
	stats := NewStatistics()
	r := NewVideoRenderer(stats)

	frames := make([]*VideoFrame, rendererQueueMax+1)
	for i := range frames {
		frames[i] = testFrame(pool, int64(i*33))
		r.Push(frames[i])
	}
	if r.QueueLen() != rendererQueueMax {
		t.Errorf("QueueLen() = %d, want %d", r.QueueLen(), rendererQueueMax)
	}
	if stats.VideoFramesDropped() != 1 {
		t.Errorf("VideoFramesDropped() = %d, want 1", stats.VideoFramesDropped())
	}
	if !frames[0].released.Load() {
		t.Error("oldest frame was not released on overflow")
	}
	// The newest frame survived the overflow.
	if f := r.GetNextFrame(int64(rendererQueueMax * 33)); f == nil || f.PTS != int64(rendererQueueMax*33) {
		t.Errorf("newest frame missing after overflow, got %v", f)
	}
}

func TestVideoRenderer_FlushReleasesEverything(t *testing.T) {
	pool := NewBufferPool(16)
	r := NewVideoRenderer(NewStatistics())
	current := testFrame(pool, 0)
	queued := testFrame(pool, 100)
	r.Push(current)
	r.Push(queued)
	_ = r.GetNextFrame(10) // promote the first frame to current

	r.Flush()
	if r.QueueLen() != 0 {
		t.Errorf("QueueLen() = %d after Flush, want 0", r.QueueLen())
	}
	if r.Current() != nil {
		t.Error("Current() != nil after Flush")
	}
	if !current.released.Load() || !queued.released.Load() {
		t.Error("Flush did not release all frames")
	}
}
