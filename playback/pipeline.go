package playback

import (
	"context"
	"sync"
	"time"
)

const (
	// demuxBackpressureSleep is how long the demux loop waits when a
	// downstream queue is full.
	demuxBackpressureSleep = 10 * time.Millisecond
	// dequeueTimeout bounds every packet-queue wait in the decode loops.
	dequeueTimeout = 100 * time.Millisecond
	// audioAheadMaxMs is how far ahead of the master clock a decoded audio
	// frame may be enqueued.
	audioAheadMaxMs = 250
	// audioThrottleStep is the re-check interval while audio is throttled.
	audioThrottleStep = 10 * time.Millisecond
	// clockTick drives the statistics/end-detection loop at about 30 Hz.
	clockTick = 33 * time.Millisecond
)

// pauseGate parks the decode loops while paused. Running is represented by a
// closed channel so the wait fast-path costs one channel receive.
type pauseGate struct {
	mu sync.Mutex
	ch chan struct{}
}

func newPauseGate() *pauseGate {
	ch := make(chan struct{})
	close(ch)
	return &pauseGate{ch: ch}
}

func (g *pauseGate) pause() {
	g.mu.Lock()
	select {
	case <-g.ch:
		// was running; swap in an open channel to park waiters
		g.ch = make(chan struct{})
	default:
	}
	g.mu.Unlock()
}

func (g *pauseGate) resume() {
	g.mu.Lock()
	select {
	case <-g.ch:
	default:
		close(g.ch)
	}
	g.mu.Unlock()
}

func (g *pauseGate) paused() bool {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()
	select {
	case <-ch:
		return false
	default:
		return true
	}
}

// wait blocks while the gate is paused. Returns ctx.Err() on cancellation.
func (g *pauseGate) wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		ch := g.ch
		g.mu.Unlock()
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// streamRouting holds the demux loop's routing targets. Changed on stream
// switch without restarting the loop.
type streamRouting struct {
	mu       sync.Mutex
	video    int
	audio    int
	subtitle int
}

func (r *streamRouting) get() (video, audio, subtitle int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.video, r.audio, r.subtitle
}

func (r *streamRouting) set(video, audio, subtitle int) {
	r.mu.Lock()
	r.video, r.audio, r.subtitle = video, audio, subtitle
	r.mu.Unlock()
}

func (r *streamRouting) setAudio(index int) {
	r.mu.Lock()
	r.audio = index
	r.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// demuxLoop reads packets and routes them to the per-stream queues,
// sleeping while any selected queue is full. Exits at end of stream or
// cancellation.
func (p *Player) demuxLoop(ctx context.Context) error {
	for {
		video, audio, subtitle := p.routing.get()
		if (video >= 0 && p.videoQ.Full()) ||
			(audio >= 0 && p.audioQ.Full()) ||
			(subtitle >= 0 && p.subQ.Full()) {
			if err := sleepCtx(ctx, demuxBackpressureSleep); err != nil {
				return nil
			}
			continue
		}

		pkt, err := p.source.ReadPacket()
		if err != nil {
			p.log.Error().Err(err).Msg("demux read failed")
			p.events.fireError(engineErr(KindThreadFailure, err))
			p.demuxDone.Store(true)
			return nil
		}
		if pkt == nil {
			p.log.Debug().Msg("end of stream")
			p.demuxDone.Store(true)
			return nil
		}

		var q *PacketQueue
		switch pkt.StreamIndex {
		case video:
			q = p.videoQ
		case audio:
			q = p.audioQ
		case subtitle:
			q = p.subQ
		}
		if q == nil {
			pkt.Free()
			continue
		}
		if err := q.Enqueue(ctx, pkt); err != nil {
			pkt.Free()
			return nil
		}
	}
}

// videoDecodeLoop drains the video queue into the renderer, honoring pause
// and renderer backpressure.
func (p *Player) videoDecodeLoop(ctx context.Context) error {
	for {
		if err := p.gate.wait(ctx); err != nil {
			return nil
		}
		if p.renderer.QueueLen() >= rendererQueueMax {
			if err := sleepCtx(ctx, demuxBackpressureSleep); err != nil {
				return nil
			}
			continue
		}
		pkt, ok := p.videoQ.Dequeue(dequeueTimeout)
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			continue
		}
		frames, err := p.videoDec.Decode(pkt)
		pkt.Free()
		if err != nil {
			p.log.Debug().Err(err).Msg("video decode error, packet skipped")
		}
		for _, f := range frames {
			p.stats.RecordVideoFrame()
			p.renderer.Push(f)
		}
	}
}

// audioDecodeLoop drains the audio queue into the output, honoring pause,
// output backpressure, and the audio-ahead throttle against the master
// clock.
func (p *Player) audioDecodeLoop(ctx context.Context) error {
	for {
		if err := p.gate.wait(ctx); err != nil {
			return nil
		}
		if p.audioOut.QueueLen() >= audioSinkHighWater {
			if err := sleepCtx(ctx, demuxBackpressureSleep); err != nil {
				return nil
			}
			continue
		}
		pkt, ok := p.audioQ.Dequeue(dequeueTimeout)
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			continue
		}
		dec := p.currentAudioDecoder()
		if dec == nil {
			pkt.Free()
			continue
		}
		frames, err := dec.Decode(pkt)
		pkt.Free()
		if err != nil {
			p.log.Debug().Err(err).Msg("audio decode error, packet skipped")
		}
		for _, f := range frames {
			if err := p.throttleAudio(ctx, f.PTS); err != nil {
				f.Release()
				return nil
			}
			p.stats.RecordAudioFrame()
			p.audioOut.Enqueue(f)
		}
	}
}

// throttleAudio sleeps in small steps until the frame's PTS is no more than
// audioAheadMaxMs ahead of the clock.
func (p *Player) throttleAudio(ctx context.Context, ptsMs int64) error {
	for ptsMs > p.clock.GetTime()+audioAheadMaxMs {
		if err := sleepCtx(ctx, audioThrottleStep); err != nil {
			return err
		}
		if err := p.gate.wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// subtitleLoop drains the subtitle queue into the overlay container and
// expires stale overlays as the clock advances.
func (p *Player) subtitleLoop(ctx context.Context) error {
	for {
		if err := p.gate.wait(ctx); err != nil {
			return nil
		}
		pkt, ok := p.subQ.Dequeue(dequeueTimeout)
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			p.overlays.CleanUp(float64(p.clock.GetTime()) / 1000)
			continue
		}
		if p.subDec != nil {
			for _, o := range p.subDec.Decode(pkt) {
				o.Flushable = true
				p.overlays.ProcessAndAddOverlayIfValid(o)
			}
		}
		pkt.Free()
	}
}

// clockLoop refreshes statistics at about 30 Hz and detects the end of
// playback: source exhausted and every queue drained. Fires ended exactly
// once, then exits.
func (p *Player) clockLoop(ctx context.Context) error {
	ticker := time.NewTicker(clockTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			p.stats.SetQueueDepths(
				p.videoQ.Len(),
				p.audioQ.Len(),
				p.subQ.Len(),
				p.renderer.QueueLen(),
				p.audioOut.QueueLen(),
			)
			p.stats.SampleFPS(now)
			if p.gate.paused() {
				continue
			}
			if p.demuxDone.Load() &&
				p.videoQ.Len() == 0 && p.audioQ.Len() == 0 &&
				p.renderer.QueueLen() == 0 && p.audioOut.QueueLen() == 0 {
				if p.endedFired.CompareAndSwap(false, true) {
					p.clock.Stop()
					p.log.Info().Msg("playback ended")
					p.events.fireEnded()
				}
				return nil
			}
		}
	}
}
