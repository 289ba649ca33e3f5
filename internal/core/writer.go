package core

import (
	"context"
	"sync"
	"time"
)

// writeJob is one immediate (not debounced) profile write.
type writeJob struct {
	kind   string
	userID string
	run    func(ctx context.Context) error
}

// writeQueue runs jobs one at a time, in the order they were enqueued.
type writeQueue struct {
	timeout time.Duration
	onDone  func(job writeJob, err error)

	mu      sync.Mutex
	jobs    []writeJob
	closing bool

	signal chan struct{}
	done   chan struct{}
}

func newWriteQueue(timeout time.Duration, onDone func(writeJob, error)) *writeQueue {
	return &writeQueue{
		timeout: timeout,
		onDone:  onDone,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (q *writeQueue) enqueue(job writeJob) bool {
	q.mu.Lock()
	if q.closing {
		q.mu.Unlock()
		return false
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	q.wake()
	return true
}

func (q *writeQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *writeQueue) run() {
	defer close(q.done)
	for range q.signal {
		for {
			q.mu.Lock()
			if len(q.jobs) == 0 {
				closing := q.closing
				q.mu.Unlock()
				if closing {
					return
				}
				break
			}
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.mu.Unlock()

			ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
			err := job.run(ctx)
			cancel()
			q.onDone(job, err)
		}
	}
}

// close stops accepting jobs and waits for the queued ones to finish.
func (q *writeQueue) close(ctx context.Context) error {
	q.mu.Lock()
	q.closing = true
	q.mu.Unlock()
	q.wake()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
