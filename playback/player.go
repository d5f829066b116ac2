package playback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// State is the player's lifecycle position.
type State int32

const (
	StateClosed State = iota
	StateOpening
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// closeJoinTimeout bounds how long Close waits for pipeline goroutines.
const closeJoinTimeout = 2 * time.Second

// PlayerConfig wires a Player's collaborators. Zero-value fields get
// production defaults; tests substitute the factory fields.
type PlayerConfig struct {
	Logger zerolog.Logger
	Events *Events

	// HWAccel selects the hardware decode strategy. Nil means detect at
	// open unless DisableHWAccel is set.
	HWAccel        *HWAccel
	DisableHWAccel bool

	// AudioDevice is the native sink. Nil means a silent device.
	AudioDevice AudioDevice

	// OpenSource opens a container. Defaults to the FFmpeg demuxer.
	OpenSource func(path string) (DemuxSource, error)
	// NewVideoDecoder opens a video decoder for a stream.
	NewVideoDecoder func(info StreamInfo, hw *HWAccel) (VideoDecoder, error)
	// NewAudioDecoder opens an audio decoder for a stream.
	NewAudioDecoder func(info StreamInfo, downmix bool) (AudioDecoder, error)
}

// Player is the playback engine's control surface. All methods are safe for
// concurrent use from the host's threads; events fire from pipeline
// goroutines.
type Player struct {
	cfg    PlayerConfig
	log    zerolog.Logger
	events *Events

	state atomic.Int32

	mu       sync.Mutex // guards session setup/teardown and option fields
	source   DemuxSource
	streams  []StreamInfo
	videoDec VideoDecoder
	subDec   *SubtitleDecoder

	decMu    sync.Mutex // guards audioDec, swapped on stream switch
	audioDec AudioDecoder

	videoQ   *PacketQueue
	audioQ   *PacketQueue
	subQ     *PacketQueue
	renderer *VideoRenderer
	audioOut *AudioOutput
	clock    *AudioClock
	overlays *OverlayContainer
	stats    *Statistics
	routing  streamRouting
	gate     *pauseGate

	durationMs atomic.Int64
	downmix    bool
	volume     float64
	muted      bool

	runCtx     context.Context
	cancel     context.CancelFunc
	group      *errgroup.Group
	demuxDone  atomic.Bool
	endedFired atomic.Bool
}

// NewPlayer creates a closed player. Open starts a session.
func NewPlayer(cfg PlayerConfig) *Player {
	p := &Player{
		cfg:    cfg,
		log:    cfg.Logger.With().Str("component", "player").Logger(),
		events: cfg.Events,
		volume: 1.0,
	}
	if p.cfg.OpenSource == nil {
		p.cfg.OpenSource = func(path string) (DemuxSource, error) {
			return OpenDemuxer(path, cfg.Logger)
		}
	}
	if p.cfg.NewVideoDecoder == nil {
		p.cfg.NewVideoDecoder = func(info StreamInfo, hw *HWAccel) (VideoDecoder, error) {
			return NewVideoDecoder(info, hw, p.stats, cfg.Logger)
		}
	}
	if p.cfg.NewAudioDecoder == nil {
		p.cfg.NewAudioDecoder = func(info StreamInfo, downmix bool) (AudioDecoder, error) {
			return NewAudioDecoder(info, downmix, p.stats, cfg.Logger)
		}
	}
	return p
}

// State returns the current lifecycle state.
func (p *Player) State() State { return State(p.state.Load()) }

// Open closes any running session, opens the container at path, selects
// streams, opens decoders, and starts the pipeline. A failed audio codec
// degrades to video-only playback; failure of every selected stream leaves
// the player closed.
func (p *Player) Open(path string, opts PlayerOptions) error {
	if p.State() != StateClosed {
		p.Close()
	}
	p.state.Store(int32(StateOpening))

	if err := p.open(path, opts); err != nil {
		p.state.Store(int32(StateClosed))
		if ee, ok := err.(*EngineError); ok {
			p.events.fireError(ee)
		} else {
			p.events.fireError(engineErr(KindOpenFailure, err))
		}
		return err
	}

	p.state.Store(int32(StatePlaying))
	p.events.fireAVStarted()
	p.events.fireStarted()
	return nil
}

func (p *Player) open(path string, opts PlayerOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	source, err := p.cfg.OpenSource(path)
	if err != nil {
		return engineErr(KindOpenFailure, err)
	}

	streams := source.Streams()
	videoIdx, audioIdx, subIdx := -1, -1, -1
	for _, s := range streams {
		switch {
		case s.Type == MediaTypeVideo && videoIdx < 0:
			videoIdx = s.Index
		case s.Type == MediaTypeAudio && audioIdx < 0 && !opts.VideoOnly:
			audioIdx = s.Index
		case s.Type == MediaTypeSubtitle && subIdx < 0:
			subIdx = s.Index
		}
	}
	if videoIdx < 0 && audioIdx < 0 {
		source.Close()
		return engineErr(KindOpenFailure, ErrNoStream)
	}

	hw := p.cfg.HWAccel
	if hw == nil && !p.cfg.DisableHWAccel && videoIdx >= 0 {
		hw = DetectHWAccel(p.log)
	}

	stats := NewStatistics()
	stats.SetSessionID(uuid.NewString())
	// Set before decoder construction so the default factories count into
	// this session.
	p.stats = stats

	var videoDec VideoDecoder
	if videoIdx >= 0 {
		videoDec, err = p.cfg.NewVideoDecoder(streamByIndex(streams, videoIdx), hw)
		if err != nil {
			p.log.Warn().Err(err).Msg("video codec unavailable, excluding video")
			p.events.fireError(engineErr(KindCodecOpenFailure, err))
			videoIdx = -1
		}
	}
	var audioDec AudioDecoder
	if audioIdx >= 0 {
		audioDec, err = p.cfg.NewAudioDecoder(streamByIndex(streams, audioIdx), opts.StereoDownmix)
		if err != nil {
			p.log.Warn().Err(err).Msg("audio codec unavailable, playing video only")
			p.events.fireError(engineErr(KindCodecOpenFailure, err))
			audioIdx = -1
		}
	}
	if videoDec == nil && audioDec == nil {
		source.Close()
		return engineErr(KindOpenFailure, ErrNoStream)
	}
	var subDec *SubtitleDecoder
	if subIdx >= 0 {
		subDec = NewSubtitleDecoder(streamByIndex(streams, subIdx), p.log)
		if subDec == nil {
			subIdx = -1
		}
	}

	duration := source.DurationMs()
	start := opts.StartTimeMs
	if start == 0 && opts.StartPercent > 0 && duration > 0 {
		start = int64(float64(duration) * opts.StartPercent / 100)
	}
	if start > 0 {
		if start > duration && duration > 0 {
			start = duration
		}
		if !source.Seek(start, true) {
			start = 0
		}
	}

	p.source = source
	p.streams = streams
	p.videoDec = videoDec
	p.subDec = subDec
	p.decMu.Lock()
	p.audioDec = audioDec
	p.decMu.Unlock()

	p.videoQ = NewPacketQueue(DefaultVideoQueueSize)
	p.audioQ = NewPacketQueue(DefaultAudioQueueSize)
	p.subQ = NewPacketQueue(DefaultSubtitleQueueSize)
	p.renderer = NewVideoRenderer(stats)
	p.audioOut = NewAudioOutput(p.cfg.AudioDevice, p.log)
	p.clock = NewAudioClock()
	p.overlays = NewOverlayContainer()
	p.routing.set(videoIdx, audioIdx, subIdx)
	p.gate = newPauseGate()
	p.durationMs.Store(duration)
	p.demuxDone.Store(false)
	p.endedFired.Store(false)
	p.downmix = opts.StereoDownmix

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)
	p.runCtx = gctx
	p.cancel = cancel
	p.group = group

	if audioDec != nil {
		rate, ch := audioDec.OutputFormat()
		if err := p.audioOut.Open(gctx, rate, ch); err != nil {
			cancel()
			p.teardownLocked()
			return engineErr(KindOpenFailure, err)
		}
		p.audioOut.SetVolume(p.volume)
		p.audioOut.SetMute(p.muted)
	}

	group.Go(func() error { return p.demuxLoop(gctx) })
	if videoDec != nil {
		group.Go(func() error { return p.videoDecodeLoop(gctx) })
	}
	if audioDec != nil {
		group.Go(func() error { return p.audioDecodeLoop(gctx) })
	}
	if subDec != nil {
		group.Go(func() error { return p.subtitleLoop(gctx) })
	}
	group.Go(func() error { return p.clockLoop(gctx) })

	p.clock.Seek(start)
	p.clock.Start()

	p.log.Info().
		Str("path", path).
		Int("video_stream", videoIdx).
		Int("audio_stream", audioIdx).
		Int("subtitle_stream", subIdx).
		Int64("duration_ms", duration).
		Msg("session opened")
	return nil
}

func streamByIndex(streams []StreamInfo, index int) StreamInfo {
	for _, s := range streams {
		if s.Index == index {
			return s
		}
	}
	return StreamInfo{Index: index}
}

// OpenFileAsync runs Open on its own goroutine; the outcome arrives through
// the started or error events.
func (p *Player) OpenFileAsync(path string, opts PlayerOptions) {
	go func() { _ = p.Open(path, opts) }()
}

// CloseFileAsync runs Close on its own goroutine; completion arrives through
// the stopped event.
func (p *Player) CloseFileAsync() {
	go p.Close()
}

// Close stops all pipeline goroutines with a bounded join, releases the
// decoders, demuxer, and sinks, and returns the player to Closed.
func (p *Player) Close() {
	if p.State() == StateClosed {
		return
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	// Wake producers parked on a full queue and consumers on an empty one.
	if p.videoQ != nil {
		p.videoQ.Abort()
		p.audioQ.Abort()
		p.subQ.Abort()
	}
	group := p.group
	p.mu.Unlock()

	if group != nil {
		done := make(chan struct{})
		go func() {
			_ = group.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(closeJoinTimeout):
			p.log.Warn().Msg("pipeline join timed out")
		}
	}

	p.mu.Lock()
	p.teardownLocked()
	p.mu.Unlock()

	p.state.Store(int32(StateClosed))
	p.events.fireStopped()
}

// teardownLocked releases every session resource. Caller holds p.mu and has
// already stopped the pipeline.
func (p *Player) teardownLocked() {
	if p.audioOut != nil {
		p.audioOut.Close()
	}
	if p.renderer != nil {
		p.renderer.Flush()
	}
	p.decMu.Lock()
	if p.audioDec != nil {
		p.audioDec.Close()
		p.audioDec = nil
	}
	p.decMu.Unlock()
	if p.videoDec != nil {
		p.videoDec.Close()
		p.videoDec = nil
	}
	if p.source != nil {
		p.source.Close()
		p.source = nil
	}
	if p.clock != nil {
		p.clock.Stop()
	}
	if p.stats != nil {
		p.stats.Reset()
	}
	p.streams = nil
	p.subDec = nil
	p.group = nil
	p.cancel = nil
	p.durationMs.Store(0)
}

// Pause suspends the decode loops, the master clock, and the audio device.
// After end of stream the session is over and Pause is inert until the next
// Open.
func (p *Player) Pause() {
	if p.endedFired.Load() {
		return
	}
	if !p.state.CompareAndSwap(int32(StatePlaying), int32(StatePaused)) {
		return
	}
	p.gate.pause()
	p.clock.Pause()
	p.audioOut.Pause()
	p.events.firePaused()
}

// Resume continues playback after Pause. Inert once the stream has ended.
func (p *Player) Resume() {
	if p.endedFired.Load() {
		return
	}
	if !p.state.CompareAndSwap(int32(StatePaused), int32(StatePlaying)) {
		return
	}
	p.gate.resume()
	p.clock.Resume()
	p.audioOut.Resume()
	p.events.fireResumed()
}

// TogglePause flips between Playing and Paused.
func (p *Player) TogglePause() {
	switch p.State() {
	case StatePlaying:
		p.Pause()
	case StatePaused:
		p.Resume()
	}
}

// SeekTime repositions playback to timeMs, clamped to [0, duration]. The
// pipeline is paused while queues, decoders, renderer, and audio output are
// flushed, then resumed at the target.
func (p *Player) SeekTime(timeMs int64) error {
	// Holding mu keeps Close from tearing the session down mid-seek.
	p.mu.Lock()
	st := p.State()
	if st != StatePlaying && st != StatePaused || p.source == nil {
		p.mu.Unlock()
		return ErrClosed
	}
	if timeMs < 0 {
		timeMs = 0
	}
	if dur := p.durationMs.Load(); dur > 0 && timeMs > dur {
		timeMs = dur
	}
	prev := p.GetTime()

	wasPaused := p.gate.paused()
	if !wasPaused {
		p.gate.pause()
	}

	p.videoQ.Flush()
	p.audioQ.Flush()
	p.subQ.Flush()
	if p.videoDec != nil {
		p.videoDec.Flush()
	}
	p.decMu.Lock()
	if p.audioDec != nil {
		p.audioDec.Flush()
	}
	p.decMu.Unlock()
	p.renderer.Flush()
	p.audioOut.Flush()
	p.overlays.Flush()

	if !p.source.Seek(timeMs, true) {
		if !wasPaused {
			p.gate.resume()
		}
		p.mu.Unlock()
		err := engineErr(KindSeekFailure, fmt.Errorf("container seek to %dms failed", timeMs))
		p.events.fireError(err)
		return err
	}

	p.clock.Seek(timeMs)
	if !wasPaused {
		p.gate.resume()
	}
	p.mu.Unlock()
	p.events.fireSeek(timeMs, timeMs-prev)
	return nil
}

// SeekPercentage seeks to the given fraction of the duration, in [0, 100].
func (p *Player) SeekPercentage(pct float64) error {
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}
	dur := p.durationMs.Load()
	if dur <= 0 {
		return engineErr(KindSeekFailure, fmt.Errorf("duration unknown"))
	}
	return p.SeekTime(int64(float64(dur) * pct / 100))
}

// SetSpeed changes the playback rate on the master clock.
func (p *Player) SetSpeed(factor float64) {
	if p.clock != nil {
		p.clock.SetSpeed(factor)
	}
	p.events.fireSpeedChanged(factor)
}

// SetVolume sets the audio gain in [0, 1]. Retained across sessions and
// across mute.
func (p *Player) SetVolume(gain float64) {
	p.mu.Lock()
	if gain < 0 {
		gain = 0
	} else if gain > 1 {
		gain = 1
	}
	p.volume = gain
	out := p.audioOut
	p.mu.Unlock()
	if out != nil {
		out.SetVolume(gain)
	}
}

// Volume returns the configured gain.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetMute silences or restores audio without altering the configured gain.
func (p *Player) SetMute(muted bool) {
	p.mu.Lock()
	p.muted = muted
	out := p.audioOut
	p.mu.Unlock()
	if out != nil {
		out.SetMute(muted)
	}
}

// Muted reports the mute flag.
func (p *Player) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// GetTime returns the playback position in milliseconds, clamped to
// [0, duration].
func (p *Player) GetTime() int64 {
	if p.clock == nil {
		return 0
	}
	t := p.clock.GetTime()
	if t < 0 {
		return 0
	}
	if dur := p.durationMs.Load(); dur > 0 && t > dur {
		return dur
	}
	return t
}

// GetTotalTime returns the duration in milliseconds, 0 when unknown.
func (p *Player) GetTotalTime() int64 { return p.durationMs.Load() }

// GetPercentage returns the position as a fraction of the duration in
// [0, 100].
func (p *Player) GetPercentage() float64 {
	dur := p.durationMs.Load()
	if dur <= 0 {
		return 0
	}
	return float64(p.GetTime()) / float64(dur) * 100
}

// GetCurrentVideoFrame returns the frame to display at the current clock
// position, or nil before the first frame arrives. The renderer keeps
// ownership; do not release the returned frame.
func (p *Player) GetCurrentVideoFrame() *VideoFrame {
	if p.renderer == nil {
		return nil
	}
	return p.renderer.GetNextFrame(p.GetTime())
}

// Streams returns the open container's stream descriptions.
func (p *Player) Streams() []StreamInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StreamInfo, len(p.streams))
	copy(out, p.streams)
	return out
}

// StreamsOfType filters the stream descriptions by media type.
func (p *Player) StreamsOfType(t MediaType) []StreamInfo {
	var out []StreamInfo
	for _, s := range p.Streams() {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// SelectAudioStream switches playback to another audio stream mid-session.
// The audio queue and output are flushed, a new decoder opens for the
// stream, and the demux loop reroutes without restarting.
func (p *Player) SelectAudioStream(index int) error {
	// Holding mu keeps Close from tearing the session down mid-switch.
	p.mu.Lock()
	st := p.State()
	if st != StatePlaying && st != StatePaused || p.source == nil {
		p.mu.Unlock()
		return ErrClosed
	}
	info := streamByIndex(p.streams, index)
	if info.Type != MediaTypeAudio {
		p.mu.Unlock()
		return fmt.Errorf("stream %d is not audio", index)
	}

	dec, err := p.cfg.NewAudioDecoder(info, p.downmix)
	if err != nil {
		p.mu.Unlock()
		e := engineErr(KindCodecOpenFailure, err)
		p.events.fireError(e)
		return e
	}

	p.routing.setAudio(index)
	p.audioQ.Flush()

	p.decMu.Lock()
	old := p.audioDec
	p.audioDec = dec
	p.decMu.Unlock()
	if old != nil {
		old.Close()
	}

	p.audioOut.Flush()
	p.mu.Unlock()
	p.log.Info().Int("stream", index).Str("language", info.Language).Msg("audio stream switched")
	p.events.fireAVStreamsChanged()
	return nil
}

// currentAudioDecoder returns the active audio decoder, which a stream
// switch may replace at any time.
func (p *Player) currentAudioDecoder() AudioDecoder {
	p.decMu.Lock()
	defer p.decMu.Unlock()
	return p.audioDec
}

// GetOverlayContainer exposes the overlay bookkeeping for subtitle display.
func (p *Player) GetOverlayContainer() *OverlayContainer { return p.overlays }

// GetStatistics returns a point-in-time copy of the session counters.
func (p *Player) GetStatistics() StatisticsSnapshot {
	if p.stats == nil {
		return StatisticsSnapshot{}
	}
	return p.stats.Snapshot()
}
