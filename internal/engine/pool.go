package engine

import (
	"context"
	"sync"
)

// enrichTask is one independent enrichment lookup.
type enrichTask struct {
	key     string
	run     func(ctx context.Context) (string, error)
	resultC chan<- enrichResult
}

type enrichResult struct {
	key string
	val string
	err error
}

// enrichPool is a fixed-size goroutine pool with a bounded queue for
// enrichment tasks. Tasks from unrelated investigations share the pool;
// each task writes to its own result key, so there is no write contention.
type enrichPool struct {
	queue chan enrichTask
	wg    sync.WaitGroup
}

// newEnrichPool starts n workers with queue capacity cap.
func newEnrichPool(ctx context.Context, n, cap int) *enrichPool {
	p := &enrichPool{queue: make(chan enrichTask, cap)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.work(ctx)
		}()
	}
	return p
}

func (p *enrichPool) work(ctx context.Context) {
	for {
		select {
		case t, ok := <-p.queue:
			if !ok {
				return
			}
			val, err := t.run(ctx)
			t.resultC <- enrichResult{key: t.key, val: val, err: err}
		case <-ctx.Done():
			// Fail queued tasks instead of leaving their streams waiting
			// on results that will never arrive. The loop ends when drain
			// closes the queue.
			for t := range p.queue {
				t.resultC <- enrichResult{key: t.key, err: ctx.Err()}
			}
			return
		}
	}
}

// submit enqueues a task without blocking. Returns false if the queue is
// full; the caller degrades that task to a placeholder.
func (p *enrichPool) submit(t enrichTask) bool {
	select {
	case p.queue <- t:
		return true
	default:
		return false
	}
}

// drain closes the queue and waits for workers to finish.
func (p *enrichPool) drain() {
	close(p.queue)
	p.wg.Wait()
}

func (p *enrichPool) queueLen() int { return len(p.queue) }
func (p *enrichPool) queueCap() int { return cap(p.queue) }
