package playback

import "sync/atomic"

// VideoFrame is one decoded picture, normalized to packed RGBA. Its backing
// buffer comes from a BufferPool; Release returns it there at most once, and
// the data must not be read after Release.
type VideoFrame struct {
	// Data holds Width*Height*4 bytes of packed RGBA.
	Data   []byte
	Width  int
	Height int
	// PTS is the presentation timestamp in milliseconds.
	PTS int64

	pool     *BufferPool
	released atomic.Bool
}

// NewVideoFrame rents a buffer from pool and wraps it as a frame.
func NewVideoFrame(pool *BufferPool, width, height int, ptsMs int64) *VideoFrame {
	return &VideoFrame{
		Data:   pool.Rent(),
		Width:  width,
		Height: height,
		PTS:    ptsMs,
		pool:   pool,
	}
}

// Release returns the frame's buffer to its pool. Only the first call has
// any effect.
func (f *VideoFrame) Release() {
	if f == nil || !f.released.CompareAndSwap(false, true) {
		return
	}
	if f.pool != nil {
		f.pool.Return(f.Data)
	}
	f.Data = nil
}

// AudioFrame is one decoded chunk of audio, normalized to interleaved signed
// 16-bit PCM. N is the count of valid bytes; the buffer may be larger.
type AudioFrame struct {
	Data       []byte
	N          int
	Channels   int
	SampleRate int
	// PTS is the presentation timestamp in milliseconds.
	PTS int64

	pool     *BufferPool
	released atomic.Bool
}

// NewAudioFrame rents a buffer from pool and wraps it as an audio frame.
func NewAudioFrame(pool *BufferPool, channels, sampleRate int, ptsMs int64) *AudioFrame {
	return &AudioFrame{
		Data:       pool.Rent(),
		Channels:   channels,
		SampleRate: sampleRate,
		PTS:        ptsMs,
		pool:       pool,
	}
}

// Samples returns the number of valid samples per channel.
func (f *AudioFrame) Samples() int {
	if f.Channels == 0 {
		return 0
	}
	return f.N / (f.Channels * 2) // S16 = 2 bytes per sample
}

// Release returns the frame's buffer to its pool. Only the first call has
// any effect.
func (f *AudioFrame) Release() {
	if f == nil || !f.released.CompareAndSwap(false, true) {
		return
	}
	if f.pool != nil {
		f.pool.Return(f.Data)
	}
	f.Data = nil
}
