//go:build cgo

// Package sdlaudio implements the playback.AudioDevice contract on top of
// SDL2's queued-audio API.
package sdlaudio

import (
	"fmt"
	"sync"

	"github.com/veandco/go-sdl2/sdl"
)

// Device plays interleaved S16 PCM through an SDL audio device. SDL's queue
// API has no gain control, so gain is applied in software before queueing.
type Device struct {
	mu     sync.Mutex
	id     sdl.AudioDeviceID
	opened bool
	gain   float64
}

// New returns an unopened device. SDL's audio subsystem must be initialized
// before Open (sdl.InitSubSystem(sdl.INIT_AUDIO)).
func New() *Device {
	return &Device{gain: 1.0}
}

// Open initializes the default output for interleaved S16 at the given
// rate. May be called again after Close.
func (d *Device) Open(sampleRate, channels int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		return fmt.Errorf("sdlaudio: device already open")
	}
	want := sdl.AudioSpec{
		Freq:     int32(sampleRate),
		Format:   sdl.AUDIO_S16SYS,
		Channels: uint8(channels),
		Samples:  1024,
	}
	var have sdl.AudioSpec
	id, err := sdl.OpenAudioDevice("", false, &want, &have, 0)
	if err != nil {
		return fmt.Errorf("sdlaudio: open: %w", err)
	}
	d.id = id
	d.opened = true
	return nil
}

// QueueBuffer submits PCM bytes. SDL copies the data, so the caller may
// reuse the slice immediately.
func (d *Device) QueueBuffer(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return fmt.Errorf("sdlaudio: device not open")
	}
	if d.gain != 1.0 {
		data = scaleS16(data, d.gain)
	}
	return sdl.QueueAudio(d.id, data)
}

// QueuedBytes reports how much queued audio the device has not yet played.
func (d *Device) QueuedBytes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.opened {
		return 0
	}
	return int(sdl.GetQueuedAudioSize(d.id))
}

// Play unpauses the device.
func (d *Device) Play() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		sdl.PauseAudioDevice(d.id, false)
	}
}

// Pause halts playback without dropping queued audio.
func (d *Device) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		sdl.PauseAudioDevice(d.id, true)
	}
}

// SetGain sets the software gain applied to subsequently queued buffers.
func (d *Device) SetGain(gain float64) {
	d.mu.Lock()
	if gain < 0 {
		gain = 0
	} else if gain > 1 {
		gain = 1
	}
	d.gain = gain
	d.mu.Unlock()
}

// Close stops playback and releases the device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		sdl.CloseAudioDevice(d.id)
		d.opened = false
	}
	return nil
}

// scaleS16 returns a copy of the S16 samples scaled by gain.
func scaleS16(data []byte, gain float64) []byte {
	out := make([]byte, len(data))
	for i := 0; i+1 < len(data); i += 2 {
		s := int16(uint16(data[i]) | uint16(data[i+1])<<8)
		v := float64(s) * gain
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		s = int16(v)
		out[i] = byte(uint16(s))
		out[i+1] = byte(uint16(s) >> 8)
	}
	return out
}
