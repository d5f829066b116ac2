package playback

import "sync"

// AudioDevice abstracts the native audio output API. Implementations accept
// interleaved S16 PCM, expose play/pause and a gain control, and report how
// many queued bytes the hardware has not yet played. The native API has no
// "clear pending buffers" operation, so AudioOutput.Flush closes and reopens
// the device instead.
type AudioDevice interface {
	// Open initializes the device for the given format. May be called again
	// after Close to reinitialize.
	Open(sampleRate, channels int) error

	// QueueBuffer submits PCM bytes for playback. Never blocks.
	QueueBuffer(data []byte) error

	// QueuedBytes returns the byte count submitted but not yet played.
	QueuedBytes() int

	// Play starts or resumes playback.
	Play()

	// Pause halts playback without dropping queued audio.
	Pause()

	// SetGain sets the output gain in [0, 1].
	SetGain(gain float64)

	// Close stops playback and releases the device.
	Close() error
}

// nullDevice is a silent sink that consumes audio instantly. Used when no
// native device is configured (headless hosts, tests).
type nullDevice struct {
	mu     sync.Mutex
	opened bool
}

func (d *nullDevice) Open(sampleRate, channels int) error {
	d.mu.Lock()
	d.opened = true
	d.mu.Unlock()
	return nil
}

func (d *nullDevice) QueueBuffer(data []byte) error { return nil }
func (d *nullDevice) QueuedBytes() int              { return 0 }
func (d *nullDevice) Play()                         {}
func (d *nullDevice) Pause()                        {}
func (d *nullDevice) SetGain(gain float64)          {}

func (d *nullDevice) Close() error {
	d.mu.Lock()
	d.opened = false
	d.mu.Unlock()
	return nil
}
