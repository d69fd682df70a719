package periodic

import (
	"context"
	"sync"
	"time"
)

// TimerScheduler backs an activity with a fine-grained one-shot timer.
// This is the cheapest backing; it does not wake the host from deep
// sleep, so firings due while suspended are delivered late.
type TimerScheduler struct {
	mu        sync.Mutex
	timer     *time.Timer
	cancelled bool
	running   bool
	waiters   []chan struct{}
}

// NewTimerScheduler creates an idle timer scheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

// Schedule arms fn to run once after d.
func (s *TimerScheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.timer = time.AfterFunc(d, func() { s.run(fn) })
}

func (s *TimerScheduler) run(fn func()) {
	s.mu.Lock()
	if s.cancelled {
		// Cancelled between expiry and here; the firing is dropped.
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	fn()

	s.mu.Lock()
	s.running = false
	ws := s.waiters
	s.waiters = nil
	s.mu.Unlock()
	for _, w := range ws {
		close(w)
	}
}

// CancelWait stops the armed timer and waits for an in-flight callback.
func (s *TimerScheduler) CancelWait(ctx context.Context) error {
	s.mu.Lock()
	s.cancelled = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	w := make(chan struct{})
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	select {
	case <-w:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
