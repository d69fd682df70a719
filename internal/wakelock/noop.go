package wakelock

import "context"

// NewNoopAdapter returns an adapter whose handle holds no real
// inhibitor. It backs wake_lock_mode = "noop" and tests: acquire/release
// pairing is still observable, the system just is not kept awake.
func NewNoopAdapter() Adapter {
	return &noopAdapter{}
}

type noopAdapter struct{}

func (a *noopAdapter) Acquire(ctx context.Context) (Handle, error) {
	return &noopHandle{done: make(chan struct{})}, nil
}

type noopHandle struct {
	done chan struct{}
}

func (h *noopHandle) Done() <-chan struct{} { return h.done }

func (h *noopHandle) Err() error { return nil }

func (h *noopHandle) Release(ctx context.Context) error {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
	return nil
}
