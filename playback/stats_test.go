package playback

import (
	"testing"
	"time"
)

func TestStatistics_Counters(t *testing.T) {
	s := NewStatistics()
	for i := 0; i < 3; i++ {
		s.RecordVideoFrame()
	}
	s.RecordAudioFrame()
	s.RecordDroppedFrame()
	s.RecordDecodeError()
	s.SetQueueDepths(10, 20, 5, 3, 7)
	s.SetSessionID("session-1")

	snap := s.Snapshot()
	if snap.VideoFramesDecoded != 3 {
		t.Errorf("VideoFramesDecoded = %d, want 3", snap.VideoFramesDecoded)
	}
	if snap.AudioFramesDecoded != 1 {
		t.Errorf("AudioFramesDecoded = %d, want 1", snap.AudioFramesDecoded)
	}
	if snap.VideoFramesDropped != 1 || snap.DecodeErrors != 1 {
		t.Errorf("dropped/errors = %d/%d, want 1/1", snap.VideoFramesDropped, snap.DecodeErrors)
	}
	if snap.VideoQueueDepth != 10 || snap.AudioQueueDepth != 20 ||
		snap.SubtitleQueueDepth != 5 || snap.RendererDepth != 3 || snap.AudioOutputDepth != 7 {
		t.Errorf("queue depths = %+v", snap)
	}
	if snap.SessionID != "session-1" {
		t.Errorf("SessionID = %q, want session-1", snap.SessionID)
	}
}

func TestStatistics_SampleFPS(t *testing.T) {
	s := NewStatistics()
	base := time.Unix(100, 0)
	s.SampleFPS(base) // primes the window

	for i := 0; i < 30; i++ {
		s.RecordVideoFrame()
	}
	s.SampleFPS(base.Add(time.Second))

	snap := s.Snapshot()
	if snap.FPS < 29.5 || snap.FPS > 30.5 {
		t.Errorf("FPS = %v, want ~30", snap.FPS)
	}
}

func TestStatistics_SampleFPSIgnoresShortIntervals(t *testing.T) {
	s := NewStatistics()
	base := time.Unix(100, 0)
	s.SampleFPS(base)
	s.RecordVideoFrame()
	s.SampleFPS(base.Add(100 * time.Millisecond))
	if fps := s.Snapshot().FPS; fps != 0 {
		t.Errorf("FPS = %v after a sub-interval sample, want 0", fps)
	}
}

func TestStatistics_Reset(t *testing.T) {
	s := NewStatistics()
	s.RecordVideoFrame()
	s.RecordDroppedFrame()
	s.SetQueueDepths(1, 2, 3, 4, 5)
	s.SetSessionID("old")
	s.SampleFPS(time.Unix(100, 0))

	s.Reset()
	snap := s.Snapshot()
	if snap != (StatisticsSnapshot{}) {
		t.Errorf("Snapshot() after Reset = %+v, want zero value", snap)
	}
}

func TestStatistics_NilReceiverRecords(t *testing.T) {
	var s *Statistics
	// Must not panic.
	s.RecordVideoFrame()
	s.RecordAudioFrame()
	s.RecordDroppedFrame()
	s.RecordDecodeError()
}
