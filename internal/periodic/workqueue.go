package periodic

import (
	"context"
	"sync"
	"time"
)

type delayedWork struct {
	delay time.Duration
	fn    func()
}

// WorkQueueScheduler backs an activity with a single long-lived worker
// goroutine that sleeps out each submitted delay and runs the callback
// on its own goroutine. Submissions made while the worker is busy (in
// particular a re-arm from within the running callback) are queued.
type WorkQueueScheduler struct {
	mu        sync.Mutex
	started   bool
	cancelled bool

	pending chan delayedWork
	quit    chan struct{}
	done    chan struct{}
}

// NewWorkQueueScheduler creates the scheduler. The worker goroutine
// starts on the first Schedule call, so a scheduler that is never used
// holds no resources.
func NewWorkQueueScheduler() *WorkQueueScheduler {
	return &WorkQueueScheduler{
		// Capacity one: at most one callback is armed at a time.
		pending: make(chan delayedWork, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *WorkQueueScheduler) loop() {
	defer close(s.done)
	for {
		// Drain the quit signal before taking new work so a cancelled
		// scheduler never picks up a queued item.
		select {
		case <-s.quit:
			return
		default:
		}

		select {
		case <-s.quit:
			return
		case w := <-s.pending:
			t := time.NewTimer(w.delay)
			select {
			case <-s.quit:
				t.Stop()
				return
			case <-t.C:
			}
			select {
			case <-s.quit:
				return
			default:
			}
			w.fn()
		}
	}
}

// Schedule queues fn to run once after d.
func (s *WorkQueueScheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	if !s.started {
		s.started = true
		go s.loop()
	}
	select {
	case s.pending <- delayedWork{delay: d, fn: fn}:
	default:
		// An item is already queued; only one may be armed at a time.
	}
}

// CancelWait stops the worker and waits for it to exit. The worker only
// exits between callbacks, so an in-flight callback always completes
// first.
func (s *WorkQueueScheduler) CancelWait(ctx context.Context) error {
	s.mu.Lock()
	if !s.cancelled {
		s.cancelled = true
		close(s.quit)
		if !s.started {
			// No worker ever ran; nothing to wait for.
			close(s.done)
		}
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
