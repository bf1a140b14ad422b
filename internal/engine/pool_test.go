package engine

import (
	"context"
	"testing"
	"time"
)

func TestPoolCancelFailsQueuedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := newEnrichPool(ctx, 1, 4)
	defer p.drain()

	resultC := make(chan enrichResult, 4)
	block := make(chan struct{})

	// Occupy the single worker, then queue a second task behind it.
	if !p.submit(enrichTask{key: "a", resultC: resultC, run: func(ctx context.Context) (string, error) {
		<-block
		return "done", nil
	}}) {
		t.Fatal("submit a")
	}
	if !p.submit(enrichTask{key: "b", resultC: resultC, run: func(ctx context.Context) (string, error) {
		return "done", nil
	}}) {
		t.Fatal("submit b")
	}

	cancel()
	close(block)

	// Both tasks must produce a result even though the pool context was
	// cancelled while b was still queued; b may complete or fail, but it
	// must not be dropped.
	for i := 0; i < 2; i++ {
		select {
		case <-resultC:
		case <-time.After(2 * time.Second):
			t.Fatalf("result %d never delivered after cancellation", i)
		}
	}
}

func TestPoolSubmitRejectsWhenFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := newEnrichPool(ctx, 1, 1)
	defer p.drain()

	resultC := make(chan enrichResult, 4)
	block := make(chan struct{})
	defer close(block)

	blocking := enrichTask{key: "x", resultC: resultC, run: func(ctx context.Context) (string, error) {
		<-block
		return "", nil
	}}
	// First occupies the worker, second fills the queue; eventually the
	// queue is full and submit must refuse without blocking.
	deadline := time.Now().Add(2 * time.Second)
	rejected := false
	for !rejected {
		if time.Now().After(deadline) {
			t.Fatal("submit never rejected on a full queue")
		}
		rejected = !p.submit(blocking)
	}
}
