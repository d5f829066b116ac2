package playback

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/crucifix86/JellyTV/internal/ffmpeg"
)

// fakePkt is one scripted packet of a fakeSource.
type fakePkt struct {
	stream  int
	pts     int64
	dur     int64
	key     bool
	payload []byte
}

// fakeSource is a scripted DemuxSource. Packets are pre-generated in
// container order; Seek repositions to the nearest preceding keyframe.
type fakeSource struct {
	mu         sync.Mutex
	streams    []StreamInfo
	packets    []fakePkt
	pos        int
	durationMs int64
	seekFail   bool
	closed     bool
}

func (s *fakeSource) Streams() []StreamInfo { return s.streams }

func (s *fakeSource) ReadPacket() (*Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.packets) {
		return nil, nil
	}
	pk := s.packets[s.pos]
	s.pos++
	p := NewPacket(pk.stream, pk.pts, pk.key, pk.payload)
	p.DurationMs = pk.dur
	return p, nil
}

func (s *fakeSource) Seek(timeMs int64, keyframeOnly bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seekFail {
		return false
	}
	best := 0
	for i, pk := range s.packets {
		if pk.pts > timeMs {
			break
		}
		if pk.key || !keyframeOnly {
			best = i
		}
	}
	s.pos = best
	return true
}

func (s *fakeSource) DurationMs() int64 { return s.durationMs }

func (s *fakeSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// newClipSource builds a 10,000 ms clip: 30 fps video on stream 0, 100 ms
// audio packets on stream 1, and one subtitle on stream 3 when withSubs.
func newClipSource(withVideo, withSubs bool) *fakeSource {
	s := &fakeSource{durationMs: 10000}
	if withVideo {
		s.streams = append(s.streams, StreamInfo{
			Index: 0, Type: MediaTypeVideo, Codec: "h264",
			Width: 1920, Height: 1080, FrameRate: 30,
		})
	}
	s.streams = append(s.streams, StreamInfo{
		Index: 1, Type: MediaTypeAudio, Codec: "aac",
		Channels: 2, SampleRate: 48000,
	})
	if withSubs {
		s.streams = append(s.streams, StreamInfo{
			Index: 3, Type: MediaTypeSubtitle, Codec: "subrip",
			codecID: ffmpeg.CodecIDSRT,
		})
	}

	var pkts []fakePkt
	if withVideo {
		for i := 0; i < 300; i++ {
			pkts = append(pkts, fakePkt{stream: 0, pts: int64(i) * 1000 / 30, key: true})
		}
	}
	for i := 0; i < 100; i++ {
		pkts = append(pkts, fakePkt{stream: 1, pts: int64(i) * 100, dur: 100})
	}
	if withSubs {
		pkts = append(pkts, fakePkt{stream: 3, pts: 4000, dur: 4000, payload: []byte("midway")})
	}
	// Container order is by PTS.
	sortFakePkts(pkts)
	s.packets = pkts
	return s
}

func sortFakePkts(pkts []fakePkt) {
	for i := 1; i < len(pkts); i++ {
		for j := i; j > 0 && pkts[j].pts < pkts[j-1].pts; j-- {
			pkts[j], pkts[j-1] = pkts[j-1], pkts[j]
		}
	}
}

type fakeVideoDecoder struct {
	pool *BufferPool
}

func (d *fakeVideoDecoder) Decode(p *Packet) ([]*VideoFrame, error) {
	return []*VideoFrame{NewVideoFrame(d.pool, 2, 2, p.PTS)}, nil
}

func (d *fakeVideoDecoder) Flush() {}
func (d *fakeVideoDecoder) Close() {}

type fakeAudioDecoder struct {
	pool *BufferPool
}

func (d *fakeAudioDecoder) Decode(p *Packet) ([]*AudioFrame, error) {
	f := NewAudioFrame(d.pool, 2, 48000, p.PTS)
	f.N = 16
	return []*AudioFrame{f}, nil
}

func (d *fakeAudioDecoder) OutputFormat() (int, int) { return 48000, 2 }
func (d *fakeAudioDecoder) Flush()                   {}
func (d *fakeAudioDecoder) Close()                   {}

// fakeConfig wires a player entirely from fakes.
func fakeConfig(src *fakeSource, events *Events, device AudioDevice) PlayerConfig {
	return PlayerConfig{
		Logger:         zerolog.Nop(),
		Events:         events,
		DisableHWAccel: true,
		AudioDevice:    device,
		OpenSource: func(path string) (DemuxSource, error) {
			return src, nil
		},
		NewVideoDecoder: func(info StreamInfo, hw *HWAccel) (VideoDecoder, error) {
			return &fakeVideoDecoder{pool: NewBufferPool(16)}, nil
		},
		NewAudioDecoder: func(info StreamInfo, downmix bool) (AudioDecoder, error) {
			return &fakeAudioDecoder{pool: NewBufferPool(64)}, nil
		},
	}
}

// injectClock replaces the session clock's time source with a controllable
// one, preserving the running state.
func injectClock(p *Player) *fakeNow {
	fn := newFakeNow()
	c := p.clock
	c.mu.Lock()
	c.now = fn.now
	c.startedAt = fn.now()
	c.mu.Unlock()
	return fn
}

func TestPlayer_OpenFailsWithUnreadableSource(t *testing.T) {
	p := NewPlayer(PlayerConfig{
		Logger: zerolog.Nop(),
		OpenSource: func(path string) (DemuxSource, error) {
			return nil, errors.New("no such file")
		},
	})
	err := p.Open("/missing.mkv", PlayerOptions{})
	if err == nil {
		t.Fatal("Open succeeded with an unreadable source")
	}
	var ee *EngineError
	if !errors.As(err, &ee) || ee.Kind != KindOpenFailure {
		t.Errorf("Open error = %v, want KindOpenFailure", err)
	}
	if p.State() != StateClosed {
		t.Errorf("State() = %v after failed Open, want closed", p.State())
	}
}

func TestPlayer_OpenFailsWithoutDecodableStream(t *testing.T) {
	src := &fakeSource{streams: []StreamInfo{{Index: 0, Type: MediaTypeUnknown}}}
	p := NewPlayer(fakeConfig(src, nil, nil))
	err := p.Open("clip", PlayerOptions{})
	if err == nil {
		t.Fatal("Open succeeded with no decodable stream")
	}
	if !errors.Is(err, ErrNoStream) {
		t.Errorf("Open error = %v, want ErrNoStream", err)
	}
}

func TestPlayer_AudioCodecFailureDegradesToVideoOnly(t *testing.T) {
	src := newClipSource(true, false)
	var codecErrs atomic.Int64
	events := &Events{
		Error: func(err *EngineError) {
			if err.Kind == KindCodecOpenFailure {
				codecErrs.Add(1)
			}
		},
	}
	cfg := fakeConfig(src, events, nil)
	cfg.NewAudioDecoder = func(info StreamInfo, downmix bool) (AudioDecoder, error) {
		return nil, errors.New("unsupported profile")
	}
	p := NewPlayer(cfg)
	if err := p.Open("clip", PlayerOptions{}); err != nil {
		t.Fatalf("Open = %v, want video-only degradation", err)
	}
	defer p.Close()

	if p.State() != StatePlaying {
		t.Errorf("State() = %v, want playing", p.State())
	}
	if codecErrs.Load() != 1 {
		t.Errorf("codec-open error events = %d, want 1", codecErrs.Load())
	}
}

func TestPlayer_FrameAtFiveSeconds(t *testing.T) {
	src := newClipSource(true, true)
	p := NewPlayer(fakeConfig(src, nil, nil))
	if err := p.Open("clip", PlayerOptions{}); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	fn := injectClock(p)
	fn.advance(5 * time.Second)

	var frame *VideoFrame
	waitFor(t, func() bool {
		frame = p.GetCurrentVideoFrame()
		return frame != nil && frame.PTS >= 4980 && frame.PTS <= 5020
	}, "no frame within [4980, 5020] at clock 5000")

	if got := FormatTime(p.GetTime()); got != "00:05" {
		t.Errorf("FormatTime(GetTime()) = %q, want 00:05", got)
	}

	// The subtitle packet spanning 4-8 s surfaces as an overlay.
	waitFor(t, func() bool {
		return len(p.GetOverlayContainer().GetOverlays(5.0)) == 1
	}, "subtitle overlay missing at 5s")
	if got := p.GetOverlayContainer().GetOverlays(5.0)[0].Text; got != "midway" {
		t.Errorf("overlay text = %q, want midway", got)
	}
}

func TestPlayer_EndedFiresExactlyOnce(t *testing.T) {
	src := newClipSource(true, false)
	var endedCount, pausedCount atomic.Int64
	p := NewPlayer(fakeConfig(src, &Events{
		Ended:  func() { endedCount.Add(1) },
		Paused: func() { pausedCount.Add(1) },
	}, nil))
	if err := p.Open("clip", PlayerOptions{}); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	fn := injectClock(p)
	deadline := time.Now().Add(10 * time.Second)
	for endedCount.Load() == 0 && time.Now().Before(deadline) {
		fn.advance(200 * time.Millisecond)
		p.GetCurrentVideoFrame() // drains the renderer as a host would
		time.Sleep(5 * time.Millisecond)
	}
	if got := endedCount.Load(); got != 1 {
		t.Fatalf("ended fired %d times, want 1", got)
	}

	// No second fire after further clock advance.
	fn.advance(5 * time.Second)
	time.Sleep(150 * time.Millisecond)
	if got := endedCount.Load(); got != 1 {
		t.Errorf("ended fired %d times total, want exactly 1", got)
	}

	// The session is over; pause controls are inert until the next Open.
	p.Pause()
	if got := pausedCount.Load(); got != 0 {
		t.Errorf("paused fired %d times after end of stream, want 0", got)
	}
	if p.State() != StatePlaying {
		t.Errorf("State() = %v after post-ended Pause, want unchanged", p.State())
	}
}

func TestPlayer_SeekPercentage(t *testing.T) {
	src := newClipSource(true, false)
	var seekTo atomic.Int64
	p := NewPlayer(fakeConfig(src, &Events{
		Seek: func(timeMs, offsetMs int64) { seekTo.Store(timeMs) },
	}, nil))
	if err := p.Open("clip", PlayerOptions{}); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	injectClock(p)
	if err := p.SeekPercentage(50); err != nil {
		t.Fatal(err)
	}
	if got := seekTo.Load(); got != 5000 {
		t.Errorf("seek event time = %d, want 5000", got)
	}
	if got := p.GetTime(); got != 5000 {
		t.Errorf("GetTime() = %d right after seek, want 5000", got)
	}
	if pct := p.GetPercentage(); pct < 49.9 || pct > 50.1 {
		t.Errorf("GetPercentage() = %v, want 50 +/- 0.1", pct)
	}
}

func TestPlayer_SeekTimeClampsToDuration(t *testing.T) {
	src := newClipSource(true, false)
	p := NewPlayer(fakeConfig(src, nil, nil))
	if err := p.Open("clip", PlayerOptions{}); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	injectClock(p)
	if err := p.SeekTime(99999); err != nil {
		t.Fatal(err)
	}
	if got := p.GetTime(); got != 10000 {
		t.Errorf("GetTime() = %d after over-range seek, want 10000", got)
	}
}

func TestPlayer_SeekFailureLeavesPositionUnchanged(t *testing.T) {
	src := newClipSource(true, false)
	src.seekFail = true
	var errKind atomic.Int32
	p := NewPlayer(fakeConfig(src, &Events{
		Error: func(err *EngineError) { errKind.Store(int32(err.Kind)) },
	}, nil))
	if err := p.Open("clip", PlayerOptions{}); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	injectClock(p)
	if err := p.SeekTime(5000); err == nil {
		t.Fatal("SeekTime succeeded on a non-seekable source")
	}
	if ErrorKind(errKind.Load()) != KindSeekFailure {
		t.Errorf("error event kind = %v, want seek", ErrorKind(errKind.Load()))
	}
	if got := p.GetTime(); got > 1000 {
		t.Errorf("GetTime() = %d after failed seek, want position near 0", got)
	}
}

func TestPlayer_PauseFreezesTime(t *testing.T) {
	src := newClipSource(true, false)
	var paused, resumed atomic.Int64
	p := NewPlayer(fakeConfig(src, &Events{
		Paused:  func() { paused.Add(1) },
		Resumed: func() { resumed.Add(1) },
	}, nil))
	if err := p.Open("clip", PlayerOptions{}); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	fn := injectClock(p)
	fn.advance(time.Second)
	p.Pause()
	if p.State() != StatePaused {
		t.Errorf("State() = %v, want paused", p.State())
	}
	frozen := p.GetTime()
	fn.advance(3 * time.Second)
	if got := p.GetTime(); got != frozen {
		t.Errorf("GetTime() = %d while paused, want frozen at %d", got, frozen)
	}

	p.Resume()
	if p.State() != StatePlaying {
		t.Errorf("State() = %v, want playing", p.State())
	}
	if paused.Load() != 1 || resumed.Load() != 1 {
		t.Errorf("paused/resumed events = %d/%d, want 1/1", paused.Load(), resumed.Load())
	}

	// TogglePause flips both ways.
	p.TogglePause()
	if p.State() != StatePaused {
		t.Errorf("State() = %v after toggle, want paused", p.State())
	}
	p.TogglePause()
	if p.State() != StatePlaying {
		t.Errorf("State() = %v after second toggle, want playing", p.State())
	}
}

func TestPlayer_VolumeAndMuteRestore(t *testing.T) {
	src := newClipSource(false, false)
	dev := &fakeAudioDevice{}
	p := NewPlayer(fakeConfig(src, nil, dev))
	if err := p.Open("clip", PlayerOptions{}); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.SetVolume(0.5)
	p.SetMute(true)
	if _, _, _, gain, _ := dev.snapshot(); gain != 0 {
		t.Errorf("device gain = %v while muted, want 0", gain)
	}
	p.SetMute(false)
	if _, _, _, gain, _ := dev.snapshot(); gain != 0.5 {
		t.Errorf("device gain = %v after unmute, want 0.5 restored", gain)
	}
	if p.Volume() != 0.5 {
		t.Errorf("Volume() = %v, want 0.5", p.Volume())
	}
}

func TestPlayer_AudioNeverEnqueuedTooFarAhead(t *testing.T) {
	src := newClipSource(false, false)
	var p *Player
	var violation atomic.Int64

	cfg := fakeConfig(src, nil, nil)
	cfg.NewAudioDecoder = func(info StreamInfo, downmix bool) (AudioDecoder, error) {
		return &ptsCheckingAudioDecoder{
			pool: NewBufferPool(64),
			check: func(ptsMs int64) {
				// A frame is decoded one packet after the previous frame
				// cleared the throttle, so allow one packet of slack.
				if ptsMs > p.GetTime()+audioAheadMaxMs+150 {
					violation.Add(1)
				}
			},
		}, nil
	}
	p = NewPlayer(cfg)
	if err := p.Open("clip", PlayerOptions{}); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	fn := injectClock(p)
	for i := 0; i < 100; i++ {
		fn.advance(100 * time.Millisecond)
		time.Sleep(3 * time.Millisecond)
	}
	if got := violation.Load(); got != 0 {
		t.Errorf("%d audio frames observed more than %dms ahead of the clock", got, audioAheadMaxMs)
	}
}

// ptsCheckingAudioDecoder runs a callback on every decoded frame's PTS.
type ptsCheckingAudioDecoder struct {
	pool  *BufferPool
	check func(ptsMs int64)
}

func (d *ptsCheckingAudioDecoder) Decode(p *Packet) ([]*AudioFrame, error) {
	f := NewAudioFrame(d.pool, 2, 48000, p.PTS)
	f.N = 16
	if d.check != nil {
		d.check(p.PTS)
	}
	return []*AudioFrame{f}, nil
}

func (d *ptsCheckingAudioDecoder) OutputFormat() (int, int) { return 48000, 2 }
func (d *ptsCheckingAudioDecoder) Flush()                   {}
func (d *ptsCheckingAudioDecoder) Close()                   {}

func TestPlayer_SelectAudioStream(t *testing.T) {
	src := newClipSource(true, false)
	src.streams = append(src.streams, StreamInfo{
		Index: 2, Type: MediaTypeAudio, Codec: "ac3", Language: "fre",
		Channels: 6, SampleRate: 48000,
	})

	var switched atomic.Int64
	var lastOpened atomic.Int64
	cfg := fakeConfig(src, &Events{
		AVStreamsChanged: func() { switched.Add(1) },
	}, nil)
	cfg.NewAudioDecoder = func(info StreamInfo, downmix bool) (AudioDecoder, error) {
		lastOpened.Store(int64(info.Index))
		return &fakeAudioDecoder{pool: NewBufferPool(64)}, nil
	}
	p := NewPlayer(cfg)
	if err := p.Open("clip", PlayerOptions{}); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if got := lastOpened.Load(); got != 1 {
		t.Fatalf("initial audio decoder opened for stream %d, want 1", got)
	}
	if err := p.SelectAudioStream(2); err != nil {
		t.Fatal(err)
	}
	if got := lastOpened.Load(); got != 2 {
		t.Errorf("decoder after switch opened for stream %d, want 2", got)
	}
	if switched.Load() != 1 {
		t.Errorf("avStreamsChanged fired %d times, want 1", switched.Load())
	}

	if err := p.SelectAudioStream(0); err == nil {
		t.Error("SelectAudioStream accepted a video stream index")
	}
}

func TestPlayer_CloseFiresStoppedAndReleasesSource(t *testing.T) {
	src := newClipSource(true, false)
	var stopped atomic.Int64
	p := NewPlayer(fakeConfig(src, &Events{
		Stopped: func() { stopped.Add(1) },
	}, nil))
	if err := p.Open("clip", PlayerOptions{}); err != nil {
		t.Fatal(err)
	}
	p.Close()

	if p.State() != StateClosed {
		t.Errorf("State() = %v after Close, want closed", p.State())
	}
	if stopped.Load() != 1 {
		t.Errorf("stopped fired %d times, want 1", stopped.Load())
	}
	src.mu.Lock()
	closed := src.closed
	src.mu.Unlock()
	if !closed {
		t.Error("Close did not release the demux source")
	}

	// Close on a closed player is a no-op.
	p.Close()
	if stopped.Load() != 1 {
		t.Errorf("stopped fired %d times after double Close, want 1", stopped.Load())
	}
}

func TestPlayer_SeekTimeConcurrentWithClose(t *testing.T) {
	src := newClipSource(true, false)
	p := NewPlayer(fakeConfig(src, nil, nil))
	if err := p.Open("clip", PlayerOptions{}); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if err := p.SeekTime(3000); errors.Is(err, ErrClosed) {
				return
			}
		}
	}()
	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("SeekTime did not observe the closed session")
	}
}

func TestPlayer_StartTimeOption(t *testing.T) {
	src := newClipSource(true, false)
	p := NewPlayer(fakeConfig(src, nil, nil))
	if err := p.Open("clip", PlayerOptions{StartTimeMs: 4000}); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	injectClock(p)
	if got := p.GetTime(); got != 4000 {
		t.Errorf("GetTime() = %d with StartTimeMs 4000, want 4000", got)
	}
}

func TestPlayer_StatisticsSessionLifecycle(t *testing.T) {
	src := newClipSource(true, false)
	p := NewPlayer(fakeConfig(src, nil, nil))
	if err := p.Open("clip", PlayerOptions{}); err != nil {
		t.Fatal(err)
	}

	snap := p.GetStatistics()
	if snap.SessionID == "" {
		t.Error("session ID empty on an open session")
	}

	waitFor(t, func() bool {
		s := p.GetStatistics()
		return s.VideoFramesDecoded > 0 && s.AudioFramesDecoded > 0
	}, "no decoded frames counted")

	p.Close()
	if after := p.GetStatistics(); after.VideoFramesDecoded != 0 || after.SessionID != "" {
		t.Errorf("statistics not reset by Close: %+v", after)
	}
}
