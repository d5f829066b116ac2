package playback

import (
	"context"
	"testing"
	"time"
)

func TestPacketQueue_NeverExceedsCapacity(t *testing.T) {
	q := NewPacketQueue(3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(ctx, NewPacket(0, int64(i), false, nil)); err != nil {
			t.Fatalf("Enqueue(%d) = %v", i, err)
		}
	}
	if !q.Full() {
		t.Error("Full() = false after filling to capacity")
	}
	if q.Len() != 3 {
		t.Errorf("Len() = %d, want 3", q.Len())
	}
}

func TestPacketQueue_EnqueueBlocksWhenFull(t *testing.T) {
	q := NewPacketQueue(1)
	ctx := context.Background()
	if err := q.Enqueue(ctx, NewPacket(0, 0, false, nil)); err != nil {
		t.Fatal(err)
	}

	blocked := make(chan error, 1)
	go func() {
		blocked <- q.Enqueue(ctx, NewPacket(0, 1, false, nil))
	}()

	select {
	case err := <-blocked:
		t.Fatalf("Enqueue on full queue returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// Draining one slot unblocks the producer.
	if _, ok := q.Dequeue(time.Second); !ok {
		t.Fatal("Dequeue failed on non-empty queue")
	}
	select {
	case err := <-blocked:
		if err != nil {
			t.Errorf("Enqueue after drain = %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Enqueue still blocked after space freed")
	}
}

func TestPacketQueue_EnqueueObservesCancellation(t *testing.T) {
	q := NewPacketQueue(1)
	_ = q.Enqueue(context.Background(), NewPacket(0, 0, false, nil))

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- q.Enqueue(ctx, NewPacket(0, 1, false, nil))
	}()
	cancel()

	select {
	case err := <-result:
		if err != context.Canceled {
			t.Errorf("Enqueue = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Error("Enqueue ignored cancellation")
	}
}

func TestPacketQueue_DequeueTimesOut(t *testing.T) {
	q := NewPacketQueue(4)
	start := time.Now()
	p, ok := q.Dequeue(20 * time.Millisecond)
	if ok || p != nil {
		t.Errorf("Dequeue on empty queue = (%v, %v), want (nil, false)", p, ok)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Dequeue blocked %v, expected prompt timeout", elapsed)
	}
}

func TestPacketQueue_FIFOOrder(t *testing.T) {
	q := NewPacketQueue(10)
	ctx := context.Background()
	for i := int64(0); i < 5; i++ {
		_ = q.Enqueue(ctx, NewPacket(0, i, false, nil))
	}
	for i := int64(0); i < 5; i++ {
		p, ok := q.Dequeue(time.Second)
		if !ok {
			t.Fatalf("Dequeue %d failed", i)
		}
		if p.PTS != i {
			t.Errorf("Dequeue order: got PTS %d, want %d", p.PTS, i)
		}
	}
}

func TestPacketQueue_AbortUnblocksWaiters(t *testing.T) {
	q := NewPacketQueue(1)
	_ = q.Enqueue(context.Background(), NewPacket(0, 0, false, nil))

	producer := make(chan error, 1)
	consumerDone := make(chan bool, 1)
	go func() {
		producer <- q.Enqueue(context.Background(), NewPacket(0, 1, false, nil))
	}()
	go func() {
		// Dequeue from the empty queue after abort drains it.
		time.Sleep(50 * time.Millisecond)
		_, ok := q.Dequeue(5 * time.Second)
		consumerDone <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Abort()

	select {
	case err := <-producer:
		if err != ErrAborted {
			t.Errorf("Enqueue after Abort = %v, want ErrAborted", err)
		}
	case <-time.After(time.Second):
		t.Error("Abort did not wake the producer")
	}
	select {
	case ok := <-consumerDone:
		if ok {
			t.Error("Dequeue after Abort returned a packet")
		}
	case <-time.After(time.Second):
		t.Error("Abort did not wake the consumer")
	}

	// Abort is permanent: later waits return immediately.
	if err := q.Enqueue(context.Background(), NewPacket(0, 2, false, nil)); err != ErrAborted {
		t.Errorf("Enqueue on aborted queue = %v, want ErrAborted", err)
	}
}

func TestPacketQueue_FlushFreesPackets(t *testing.T) {
	q := NewPacketQueue(4)
	ctx := context.Background()
	pkts := []*Packet{
		NewPacket(0, 0, false, nil),
		NewPacket(0, 1, false, nil),
	}
	for _, p := range pkts {
		_ = q.Enqueue(ctx, p)
	}
	q.Flush()
	if q.Len() != 0 {
		t.Errorf("Len() = %d after Flush, want 0", q.Len())
	}
	for i, p := range pkts {
		if !p.freed.Load() {
			t.Errorf("packet %d not freed by Flush", i)
		}
	}
}
