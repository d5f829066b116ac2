package playback

import (
	"context"
	"sync"
	"time"
)

// Default queue capacities per stream type.
const (
	DefaultVideoQueueSize    = 100
	DefaultAudioQueueSize    = 100
	DefaultSubtitleQueueSize = 50
)

// PacketQueue is a bounded, thread-safe queue of compressed packets.
// Enqueue blocks while the queue is full (backpressure); Dequeue blocks until
// a packet arrives or its timeout elapses. Abort permanently unblocks every
// waiter. Safe for one producer and any number of consumers.
type PacketQueue struct {
	ch    chan *Packet
	abort chan struct{}
	once  sync.Once
}

// NewPacketQueue creates a queue holding at most capacity packets.
func NewPacketQueue(capacity int) *PacketQueue {
	return &PacketQueue{
		ch:    make(chan *Packet, capacity),
		abort: make(chan struct{}),
	}
}

// Enqueue adds a packet, blocking while the queue is full until space frees,
// the context is cancelled, or the queue is aborted. The queue takes
// ownership of the packet only on success.
func (q *PacketQueue) Enqueue(ctx context.Context, p *Packet) error {
	select {
	case <-q.abort:
		return ErrAborted
	default:
	}
	select {
	case q.ch <- p:
		// Abort may have raced the send and already flushed the queue.
		select {
		case <-q.abort:
			q.Flush()
			return ErrAborted
		default:
		}
		return nil
	case <-q.abort:
		return ErrAborted
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes the oldest packet, waiting up to timeout when the queue is
// empty. Returns (nil, false) on timeout or abort; it never blocks forever.
func (q *PacketQueue) Dequeue(timeout time.Duration) (*Packet, bool) {
	select {
	case <-q.abort:
		return nil, false
	default:
	}
	select {
	case p := <-q.ch:
		return p, true
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case p := <-q.ch:
		return p, true
	case <-q.abort:
		return nil, false
	case <-timer.C:
		return nil, false
	}
}

// Flush drains the queue and frees every queued packet.
func (q *PacketQueue) Flush() {
	for {
		select {
		case p := <-q.ch:
			p.Free()
		default:
			return
		}
	}
}

// Abort permanently unblocks all current and future waiters. Queued packets
// are freed.
func (q *PacketQueue) Abort() {
	q.once.Do(func() { close(q.abort) })
	q.Flush()
}

// Len returns the number of queued packets.
func (q *PacketQueue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *PacketQueue) Cap() int { return cap(q.ch) }

// Full reports whether the queue is at capacity.
func (q *PacketQueue) Full() bool { return len(q.ch) == cap(q.ch) }
