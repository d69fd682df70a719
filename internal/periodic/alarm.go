package periodic

import (
	"context"
	"sync"
	"time"
)

// DefaultAlarmTick is how often the alarm worker re-reads the wall clock
// while waiting out a deadline.
const DefaultAlarmTick = 500 * time.Millisecond

type alarmShot struct {
	target time.Time
	fn     func()
}

// AlarmScheduler backs an activity with a wall-clock deadline. Instead of
// sleeping out the whole delay in one monotonic wait, the worker wakes at
// a fixed tick and compares the wall clock against the deadline, so a
// clock jump (resume from sleep, manual adjustment) delivers an overdue
// firing at the next tick. This is the closest userspace analogue of an
// RTC wakeup alarm.
type AlarmScheduler struct {
	mu        sync.Mutex
	started   bool
	cancelled bool

	now  func() time.Time
	tick time.Duration

	pending chan alarmShot
	quit    chan struct{}
	done    chan struct{}
}

// AlarmOptions configures alarm scheduler behavior.
type AlarmOptions struct {
	// Now returns current wall-clock time; defaults to time.Now.
	Now func() time.Time
	// Tick is the wall-clock re-check granularity; defaults to
	// DefaultAlarmTick.
	Tick time.Duration
}

// NewAlarmScheduler creates the scheduler. The worker goroutine starts
// on the first Schedule call, so a scheduler that is never used holds no
// resources.
func NewAlarmScheduler(opts AlarmOptions) *AlarmScheduler {
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultAlarmTick
	}

	return &AlarmScheduler{
		now:     nowFn,
		tick:    tick,
		pending: make(chan alarmShot, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *AlarmScheduler) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		default:
		}

		select {
		case <-s.quit:
			return
		case shot := <-s.pending:
			if !s.waitUntil(shot.target) {
				return
			}
			shot.fn()
		}
	}
}

// waitUntil sleeps in tick-sized slices until the wall clock passes
// target. Returns false if the scheduler was cancelled while waiting.
func (s *AlarmScheduler) waitUntil(target time.Time) bool {
	for {
		remaining := target.Sub(s.now())
		if remaining <= 0 {
			// Deadline reached; make sure cancellation still wins.
			select {
			case <-s.quit:
				return false
			default:
			}
			return true
		}
		if remaining > s.tick {
			remaining = s.tick
		}
		t := time.NewTimer(remaining)
		select {
		case <-s.quit:
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

// Schedule arms fn to fire once the wall clock passes now + d.
func (s *AlarmScheduler) Schedule(d time.Duration, fn func()) {
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
	case s.pending <- alarmShot{target: s.now().Add(d), fn: fn}:
	default:
		// An alarm is already armed; only one may be outstanding.
	}
}

// CancelWait stops the worker and waits for it to exit.
func (s *AlarmScheduler) CancelWait(ctx context.Context) error {
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
