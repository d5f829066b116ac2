package playback

import "sync"

const (
	// rendererQueueMax bounds the decoded-frame queue; pushes beyond it drop
	// the oldest queued frame.
	rendererQueueMax = 10
	// renderWindowMs is the PTS window around the clock inside which a frame
	// is considered due for display.
	renderWindowMs = 20
)

// VideoRenderer holds decoded frames and selects the one due for display at
// a given clock time, dropping frames that fell too far behind.
type VideoRenderer struct {
	mu      sync.Mutex
	queue   []*VideoFrame
	current *VideoFrame
	stats   *Statistics
}

// NewVideoRenderer creates a renderer reporting drops into stats.
func NewVideoRenderer(stats *Statistics) *VideoRenderer {
	return &VideoRenderer{stats: stats}
}

// Push queues a decoded frame. When the queue is full the oldest frame is
// dropped: counted, its buffer released.
func (r *VideoRenderer) Push(f *VideoFrame) {
	r.mu.Lock()
	if len(r.queue) >= rendererQueueMax {
		oldest := r.queue[0]
		copy(r.queue, r.queue[1:])
		r.queue[len(r.queue)-1] = f
		r.mu.Unlock()
		r.stats.RecordDroppedFrame()
		oldest.Release()
		return
	}
	r.queue = append(r.queue, f)
	r.mu.Unlock()
}

// GetNextFrame returns the frame to display at currentTimeMs.
//
// The queue head is inspected: more than renderWindowMs ahead of the clock
// means it is not yet due, so the previously selected frame (or nil) is
// returned; within the window it becomes the new current frame; more than
// renderWindowMs behind it is dropped, counted, and the next head checked.
// The returned frame stays owned by the renderer until it is replaced.
func (r *VideoRenderer) GetNextFrame(currentTimeMs int64) *VideoFrame {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.queue) > 0 {
		head := r.queue[0]
		if head.PTS > currentTimeMs+renderWindowMs {
			return r.current // not due yet
		}
		r.queue = r.queue[1:]
		if head.PTS < currentTimeMs-renderWindowMs {
			r.stats.RecordDroppedFrame()
			head.Release()
			continue
		}
		if r.current != nil {
			r.current.Release()
		}
		r.current = head
		return r.current
	}
	return r.current
}

// Current returns the most recently selected frame without advancing.
func (r *VideoRenderer) Current() *VideoFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// QueueLen returns the number of queued (not yet selected) frames.
func (r *VideoRenderer) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Flush drains the queue and releases every frame, including the current one.
func (r *VideoRenderer) Flush() {
	r.mu.Lock()
	queue := r.queue
	current := r.current
	r.queue = nil
	r.current = nil
	r.mu.Unlock()

	for _, f := range queue {
		f.Release()
	}
	current.Release()
}
