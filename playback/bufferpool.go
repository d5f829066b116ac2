package playback

import (
	"sync"
	"sync/atomic"
)

// poolMaxIdle caps how many returned buffers a pool keeps for reuse. Buffers
// returned beyond the cap are dropped and left to the garbage collector.
const poolMaxIdle = 30

// BufferPool hands out fixed-size byte buffers and accepts them back for
// reuse, amortizing allocation to near zero during steady-state decode.
// It is safe for concurrent use by decode and render/output goroutines.
type BufferPool struct {
	mu   sync.Mutex
	size int
	free [][]byte

	allocs atomic.Int64
}

// NewBufferPool creates a pool of buffers of exactly size bytes.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{size: size}
}

// BufferSize returns the fixed element size of the pool.
func (p *BufferPool) BufferSize() int { return p.size }

// Rent returns a previously returned buffer when one is available, otherwise
// allocates a new one and records the allocation.
func (p *BufferPool) Rent() []byte {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		buf := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return buf
	}
	p.mu.Unlock()
	p.allocs.Add(1)
	return make([]byte, p.size)
}

// Return accepts a buffer back into the pool. Buffers of the wrong size, or
// arriving while the pool already holds poolMaxIdle buffers, are discarded.
func (p *BufferPool) Return(buf []byte) {
	if len(buf) != p.size {
		return
	}
	p.mu.Lock()
	if len(p.free) < poolMaxIdle {
		p.free = append(p.free, buf)
	}
	p.mu.Unlock()
}

// Allocations returns how many buffers the pool has allocated so far.
func (p *BufferPool) Allocations() int64 { return p.allocs.Load() }

// IdleCount returns how many buffers are currently available for reuse.
func (p *BufferPool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
