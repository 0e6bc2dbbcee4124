package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// BackgroundRunner executes fire-and-forget side effects (emails,
// automation triggers, webhook publishes) on a fixed pool of worker
// goroutines behind a bounded queue.  When the queue is full the task
// is dropped and logged; side effects must never block or fail a
// booking operation.
type BackgroundRunner struct {
	tasks   chan bgTask
	wg      sync.WaitGroup
	timeout time.Duration
}

type bgTask struct {
	name string
	fn   func(ctx context.Context) error
}

// NewBackgroundRunner starts workers goroutines draining a queue of
// the given buffer size.  Each task runs with its own timeout context
// detached from the originating request.
func NewBackgroundRunner(workers, buffer int) *BackgroundRunner {
	if workers < 1 {
		workers = 1
	}
	r := &BackgroundRunner{
		tasks:   make(chan bgTask, buffer),
		timeout: 30 * time.Second,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

func (r *BackgroundRunner) worker() {
	defer r.wg.Done()
	for t := range r.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := t.fn(ctx); err != nil {
			log.Printf("background: task %s failed: %v", t.name, err)
		}
		cancel()
	}
}

// Go enqueues a task.  It never blocks: when the queue is saturated
// the task is dropped with a log line, leaving retry to the external
// collaborator.
func (r *BackgroundRunner) Go(name string, fn func(ctx context.Context) error) {
	select {
	case r.tasks <- bgTask{name: name, fn: fn}:
	default:
		log.Printf("background: queue full, dropped task %s", name)
	}
}

// Close stops accepting tasks and waits for in-flight work to finish.
func (r *BackgroundRunner) Close() {
	close(r.tasks)
	r.wg.Wait()
}
