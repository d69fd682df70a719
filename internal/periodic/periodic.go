// Package periodic implements self-rescheduling units of work.
//
// An Activity fires once, performs its action, then re-arms itself for a
// fixed future offset, indefinitely, until stopped. Stopping is a
// synchronous-cancel barrier: Stop blocks until any in-flight firing has
// completed and no future firing remains armed, so the caller may tear
// down resources the action depends on immediately after Stop returns.
//
// The scheduling facility is pluggable. Three backings are provided with
// different trade-offs: a fine-grained one-shot timer, a single-worker
// deferred work queue, and a wall-clock alarm that re-evaluates the clock
// so it fires promptly after a clock jump.
package periodic

import (
	"context"
	"fmt"
	"sync"
	"time"

	hostErrors "github.com/powerwatch/host/internal/errors"
)

// Scheduler is the capability pair an Activity needs: arm a single-shot
// callback after a delay, and cancel synchronously.
//
// Schedule may be called from within a previously scheduled fn (that is
// how an activity re-arms itself). After CancelWait has been called,
// Schedule is a no-op and no fn runs again; a Schedule attempt during or
// after cancellation is not an error.
type Scheduler interface {
	// Schedule arms fn to run once after d. At most one callback is
	// outstanding per scheduler; callers enforce that by only re-arming
	// from within fn.
	Schedule(d time.Duration, fn func())

	// CancelWait cancels any armed callback and blocks until an
	// in-flight callback has completed. After it returns no callback
	// executes or is scheduled. The context bounds the wait.
	CancelWait(ctx context.Context) error
}

// EmitFunc is an activity's observable action: one emission per firing,
// carrying the activity name and the firing's wall-clock time.
type EmitFunc func(name string, at time.Time)

// Activity is one self-rescheduling unit of work.
type Activity struct {
	name   string
	period time.Duration
	sched  Scheduler
	emit   EmitFunc
	now    func() time.Time

	mu       sync.Mutex
	started  bool
	stopping bool
	stopped  bool
}

// NewActivity creates an inert activity. It does not arm anything until
// Start is called.
func NewActivity(name string, period time.Duration, sched Scheduler, emit EmitFunc) *Activity {
	return &Activity{
		name:   name,
		period: period,
		sched:  sched,
		emit:   emit,
		now:    time.Now,
	}
}

// Name returns the activity's identifying name.
func (a *Activity) Name() string { return a.name }

// Period returns the fixed firing period.
func (a *Activity) Period() time.Duration { return a.period }

// Armed reports whether a future firing is scheduled or a firing loop is
// live. True strictly between Start and a completed Stop.
func (a *Activity) Armed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started && !a.stopped
}

// Start arms the first firing at now + period.
// Starting an already started activity is an error.
func (a *Activity) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return hostErrors.New(hostErrors.CodePeriodicAlreadyStarted,
			fmt.Sprintf("activity %s already started", a.name))
	}
	a.started = true
	a.sched.Schedule(a.period, a.fire)
	return nil
}

// fire performs the action then re-arms, unless a stop is in progress.
// It runs on the scheduler's goroutine.
func (a *Activity) fire() {
	a.emit(a.name, a.now())

	a.mu.Lock()
	if !a.stopping {
		a.sched.Schedule(a.period, a.fire)
	}
	a.mu.Unlock()
}

// Stop cancels the next armed firing and blocks until any in-flight
// firing has completed. After Stop returns, no further firing executes
// or is scheduled. Stop on a never-started or already stopped activity
// is a no-op.
//
// The context bounds the cancel barrier; expiry is reported as a
// periodic.cancel_timeout error and must be treated as fatal by the
// caller since the activity can no longer be assumed quiesced.
func (a *Activity) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.started || a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopping = true
	a.mu.Unlock()

	if err := a.sched.CancelWait(ctx); err != nil {
		return hostErrors.Wrap(hostErrors.CodePeriodicCancelTimeout,
			fmt.Sprintf("cancel of activity %s did not complete", a.name), err)
	}

	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()
	return nil
}
