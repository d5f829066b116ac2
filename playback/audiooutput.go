package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	// audioRingBuffers is the size of the native buffer ring.
	audioRingBuffers = 8
	// audioSinkHighWater is the decode-thread backpressure threshold on the
	// pending-frame queue.
	audioSinkHighWater = 15
	// audioFeedIdle is how long the feed loop sleeps when it has nothing to do.
	audioFeedIdle = 5 * time.Millisecond
)

// AudioOutput buffers decoded PCM frames into a native audio device through a
// small ring of playback buffers, tracking cumulative samples played for
// position queries.
type AudioOutput struct {
	device AudioDevice
	log    zerolog.Logger

	mu        sync.Mutex
	pending   []*AudioFrame
	inFlight  []int // submitted buffer sizes awaiting playback, oldest first
	submitted int64 // total bytes handed to the device since last (re)open
	reclaimed int64 // bytes confirmed played and popped from the ring

	sampleRate int
	channels   int
	opened     bool
	paused     bool

	volume float64
	muted  bool

	samplesPlayed atomic.Int64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewAudioOutput creates an output feeding the given device. A nil device is
// replaced by a silent sink.
func NewAudioOutput(device AudioDevice, log zerolog.Logger) *AudioOutput {
	if device == nil {
		device = &nullDevice{}
	}
	return &AudioOutput{
		device: device,
		log:    log.With().Str("component", "audio-output").Logger(),
		volume: 1.0,
	}
}

// Open initializes the native device for the given format and starts the
// feed loop.
func (a *AudioOutput) Open(ctx context.Context, sampleRate, channels int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.device.Open(sampleRate, channels); err != nil {
		return err
	}
	a.sampleRate = sampleRate
	a.channels = channels
	a.opened = true
	a.applyGainLocked()
	a.device.Play()

	loopCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.wg.Add(1)
	go a.feedLoop(loopCtx)
	return nil
}

// Enqueue hands a decoded frame to the feed loop. The output owns the frame
// from here and returns its buffer to the pool after copying.
func (a *AudioOutput) Enqueue(f *AudioFrame) {
	a.mu.Lock()
	a.pending = append(a.pending, f)
	a.mu.Unlock()
}

// QueueLen returns the number of frames awaiting submission.
func (a *AudioOutput) QueueLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// feedLoop reclaims played buffers and copies pending frames into the device
// whenever a ring slot is free, sleeping briefly otherwise.
func (a *AudioOutput) feedLoop(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !a.feedOnce() {
			time.Sleep(audioFeedIdle)
		}
	}
}

// feedOnce performs one reclaim+submit step. Returns false when there was
// nothing to do.
func (a *AudioOutput) feedOnce() bool {
	a.mu.Lock()
	if !a.opened {
		a.mu.Unlock()
		return false
	}
	a.reclaimLocked()

	if len(a.pending) == 0 || len(a.inFlight) >= audioRingBuffers {
		a.mu.Unlock()
		return false
	}
	f := a.pending[0]
	copy(a.pending, a.pending[1:])
	a.pending[len(a.pending)-1] = nil
	a.pending = a.pending[:len(a.pending)-1]

	n := f.N
	if err := a.device.QueueBuffer(f.Data[:n]); err != nil {
		a.mu.Unlock()
		a.log.Warn().Err(err).Msg("device rejected buffer")
		f.Release()
		return true
	}
	a.inFlight = append(a.inFlight, n)
	a.submitted += int64(n)
	bytesPerSample := a.channels * 2
	a.mu.Unlock()

	if bytesPerSample > 0 {
		a.samplesPlayed.Add(int64(n / bytesPerSample))
	}
	f.Release()
	return true
}

// reclaimLocked pops ring entries the device has finished playing. Oldest
// submissions complete first.
func (a *AudioOutput) reclaimLocked() {
	played := a.submitted - int64(a.device.QueuedBytes())
	for len(a.inFlight) > 0 && a.reclaimed+int64(a.inFlight[0]) <= played {
		a.reclaimed += int64(a.inFlight[0])
		a.inFlight = a.inFlight[1:]
	}
}

// Pause halts device playback.
func (a *AudioOutput) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opened && !a.paused {
		a.device.Pause()
		a.paused = true
	}
}

// Resume continues device playback.
func (a *AudioOutput) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opened && a.paused {
		a.device.Play()
		a.paused = false
	}
}

// Flush discards pending frames and reinitializes the device so no stale
// audio plays after a seek. The native API has no clear-queue primitive.
func (a *AudioOutput) Flush() {
	a.mu.Lock()
	pending := a.pending
	a.pending = nil
	a.inFlight = nil
	a.submitted = 0
	a.reclaimed = 0
	reopen := a.opened
	sampleRate, channels := a.sampleRate, a.channels
	paused := a.paused
	if reopen {
		_ = a.device.Close()
		if err := a.device.Open(sampleRate, channels); err != nil {
			a.log.Error().Err(err).Msg("device reopen failed")
			a.opened = false
		} else {
			a.applyGainLocked()
			if !paused {
				a.device.Play()
			}
		}
	}
	a.mu.Unlock()

	for _, f := range pending {
		f.Release()
	}
}

// SetVolume sets the output gain in [0, 1]. The value is retained across
// mute/unmute.
func (a *AudioOutput) SetVolume(gain float64) {
	if gain < 0 {
		gain = 0
	} else if gain > 1 {
		gain = 1
	}
	a.mu.Lock()
	a.volume = gain
	a.applyGainLocked()
	a.mu.Unlock()
}

// Volume returns the configured gain, independent of mute state.
func (a *AudioOutput) Volume() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.volume
}

// SetMute silences or restores output without touching the configured
// volume; unmuting restores the prior gain.
func (a *AudioOutput) SetMute(muted bool) {
	a.mu.Lock()
	a.muted = muted
	a.applyGainLocked()
	a.mu.Unlock()
}

// Muted reports the mute flag.
func (a *AudioOutput) Muted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.muted
}

func (a *AudioOutput) applyGainLocked() {
	if !a.opened {
		return
	}
	if a.muted {
		a.device.SetGain(0)
		return
	}
	a.device.SetGain(a.volume)
}

// PositionSamples returns the cumulative per-channel samples submitted for
// playback since Open.
func (a *AudioOutput) PositionSamples() int64 {
	return a.samplesPlayed.Load()
}

// Close stops the feed loop, drops pending frames, and closes the device.
func (a *AudioOutput) Close() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()

	a.mu.Lock()
	pending := a.pending
	a.pending = nil
	a.inFlight = nil
	a.submitted = 0
	a.reclaimed = 0
	opened := a.opened
	a.opened = false
	a.mu.Unlock()

	for _, f := range pending {
		f.Release()
	}
	if opened {
		_ = a.device.Close()
	}
	a.samplesPlayed.Store(0)
}
