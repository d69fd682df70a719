// Package coordinator owns the powerwatch lifecycle: a held wake lock,
// suspend/resume and visibility observers, and three periodic activities,
// started together and torn down together.
//
// Startup front-loads resource and observation guarantees before anything
// that could itself trigger activity: the wake lock is acquired first,
// then the observers register, then the activities arm. Shutdown runs the
// exact reverse so an in-flight firing never observes a torn-down
// observer or a released lock mid-action. Shutdown is synchronous: when
// Stop returns, no periodic callback is running or armed.
package coordinator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	hostErrors "github.com/powerwatch/host/internal/errors"
	"github.com/powerwatch/host/internal/notify"
	"github.com/powerwatch/host/internal/periodic"
	"github.com/powerwatch/host/internal/storage"
	"github.com/powerwatch/host/internal/wakelock"
)

// State is the coordinator lifecycle state. Terminal once stopped; a
// fresh coordinator is built per module lifetime.
type State string

const (
	// StateNew means Start has not run yet.
	StateNew State = "NEW"
	// StateRunning means Start completed and teardown has not begun.
	StateRunning State = "RUNNING"
	// StateStopped means Stop ran. Terminal.
	StateStopped State = "STOPPED"
)

// Activity names as they appear in logs and the journal.
const (
	ActivityTimer        = "timer"
	ActivityDeferredWork = "deferred_work"
	ActivityAlarm        = "alarm"
)

// Journal sources for observer events.
const (
	sourcePM         = "pm"
	sourceVisibility = "early_suspend"
)

// Config assembles the coordinator's collaborators.
type Config struct {
	// Lock is the wake lock held for the whole running duration.
	Lock *wakelock.Lock
	// Power is the global power-state notification chain.
	Power *notify.PowerChain
	// Visibility is the user-visibility notification chain.
	Visibility *notify.VisibilityChain

	// TimerPeriod, WorkPeriod and AlarmPeriod are the firing periods of
	// the three activities.
	TimerPeriod time.Duration
	WorkPeriod  time.Duration
	AlarmPeriod time.Duration

	// StopTimeout bounds each synchronous cancel during Stop.
	StopTimeout time.Duration

	// Journal records firings and observed transitions. Optional.
	Journal *storage.Journal
	// OnEvent observes every recorded event, e.g. for live streaming.
	// Optional. Called on the emitting goroutine.
	OnEvent func(storage.Event)

	// Now returns current time; defaults to time.Now.
	Now func() time.Time
}

// Coordinator is the lifecycle owner. One instance per module lifetime.
type Coordinator struct {
	lock       *wakelock.Lock
	power      *notify.PowerChain
	visibility *notify.VisibilityChain

	timer *periodic.Activity
	work  *periodic.Activity
	alarm *periodic.Activity
	// start order; stop iterates in reverse
	activities []*periodic.Activity
	scheds     []periodic.Scheduler

	stopTimeout time.Duration
	journal     *storage.Journal
	onEvent     func(storage.Event)
	now         func() time.Time

	mu      sync.Mutex
	state   State
	powerID int
	visID   int
}

// New builds an inert coordinator from the given collaborators.
func New(cfg Config) *Coordinator {
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = 5 * time.Second
	}

	c := &Coordinator{
		lock:        cfg.Lock,
		power:       cfg.Power,
		visibility:  cfg.Visibility,
		stopTimeout: stopTimeout,
		journal:     cfg.Journal,
		onEvent:     cfg.OnEvent,
		now:         nowFn,
		state:       StateNew,
	}

	timerSched := periodic.NewTimerScheduler()
	workSched := periodic.NewWorkQueueScheduler()
	alarmSched := periodic.NewAlarmScheduler(periodic.AlarmOptions{Now: nowFn})
	c.scheds = []periodic.Scheduler{timerSched, workSched, alarmSched}

	c.timer = periodic.NewActivity(ActivityTimer, cfg.TimerPeriod, timerSched, c.emitFiring)
	c.work = periodic.NewActivity(ActivityDeferredWork, cfg.WorkPeriod, workSched, c.emitFiring)
	c.alarm = periodic.NewActivity(ActivityAlarm, cfg.AlarmPeriod, alarmSched, c.emitFiring)
	c.activities = []*periodic.Activity{c.timer, c.work, c.alarm}

	return c
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start acquires the wake lock, registers both observers, then arms the
// three activities, in that fixed order. Valid only once, from StateNew.
// On partial failure every already-completed step is unwound and the
// coordinator is left stopped.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateNew {
		return hostErrors.New(hostErrors.CodeLifecycleNotNew,
			"coordinator already started (state "+string(c.state)+")")
	}

	if err := c.lock.Acquire(ctx); err != nil {
		c.state = StateStopped
		c.cancelSchedulersLocked(ctx)
		return hostErrors.Wrap(hostErrors.CodeLifecycleStartFailed, "acquire wake lock", err)
	}

	c.powerID = c.power.Register(c.onPowerAction)
	c.visID = c.visibility.Register(notify.VisibilityObserver{
		Level:   notify.LevelDisableFramebuffer,
		Suspend: c.onVisibilitySuspend,
		Resume:  c.onVisibilityResume,
	})

	for i, a := range c.activities {
		if err := a.Start(); err != nil {
			c.unwindStartLocked(ctx, i)
			return hostErrors.Wrap(hostErrors.CodeLifecycleStartFailed,
				"start activity "+a.Name(), err)
		}
	}

	c.state = StateRunning
	log.Printf("coordinator: running (wake lock %s held)", c.lock.Name())
	return nil
}

// unwindStartLocked reverses a partially completed Start: activities
// started before index failed, both observer registrations, the wake
// lock. Partial-start states must not be left running.
func (c *Coordinator) unwindStartLocked(ctx context.Context, started int) {
	for i := started - 1; i >= 0; i-- {
		stopCtx, cancel := context.WithTimeout(ctx, c.stopTimeout)
		if err := c.activities[i].Stop(stopCtx); err != nil {
			log.Printf("coordinator: unwind: stop %s: %v", c.activities[i].Name(), err)
		}
		cancel()
	}
	c.cancelSchedulersLocked(ctx)
	c.visibility.Unregister(c.visID)
	c.power.Unregister(c.powerID)
	if err := c.lock.Release(ctx); err != nil {
		log.Printf("coordinator: unwind: release wake lock: %v", err)
	}
	c.state = StateStopped
}

// cancelSchedulersLocked shuts down scheduler workers that never ran an
// activity, so an aborted start leaves no goroutines behind.
func (c *Coordinator) cancelSchedulersLocked(ctx context.Context) {
	for _, s := range c.scheds {
		stopCtx, cancel := context.WithTimeout(ctx, c.stopTimeout)
		if err := s.CancelWait(stopCtx); err != nil {
			log.Printf("coordinator: cancel scheduler: %v", err)
		}
		cancel()
	}
}

// Stop tears down in the exact reverse of Start: alarm, deferred work,
// timer, visibility observer, power observer, wake lock. Valid only from
// StateRunning. Every remaining step runs even after a failure; the
// first failure is still reported. When Stop returns no periodic
// callback is running or armed.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return hostErrors.New(hostErrors.CodeLifecycleNotRunning,
			"coordinator is not running (state "+string(c.state)+")")
	}

	var errs []error

	for i := len(c.activities) - 1; i >= 0; i-- {
		a := c.activities[i]
		stopCtx, cancel := context.WithTimeout(ctx, c.stopTimeout)
		if err := a.Stop(stopCtx); err != nil {
			log.Printf("coordinator: stop %s: %v", a.Name(), err)
			errs = append(errs, err)
		}
		cancel()
	}

	c.visibility.Unregister(c.visID)
	c.power.Unregister(c.powerID)

	if err := c.lock.Release(ctx); err != nil {
		log.Printf("coordinator: release wake lock: %v", err)
		errs = append(errs, err)
	}

	c.state = StateStopped
	log.Printf("coordinator: stopped")

	if len(errs) > 0 {
		return hostErrors.Wrap(hostErrors.CodeLifecycleStopFailed,
			"teardown completed with failures", errors.Join(errs...))
	}
	return nil
}

// Snapshot describes the coordinator for the status surface.
type Snapshot struct {
	State      State              `json:"state"`
	WakeLock   WakeLockSnapshot   `json:"wake_lock"`
	Activities []ActivitySnapshot `json:"activities"`
}

// WakeLockSnapshot is the wake lock portion of a Snapshot.
type WakeLockSnapshot struct {
	Name string `json:"name"`
	Held bool   `json:"held"`
}

// ActivitySnapshot is one activity's portion of a Snapshot.
type ActivitySnapshot struct {
	Name     string `json:"name"`
	PeriodMs int64  `json:"period_ms"`
	Armed    bool   `json:"armed"`
}

// Snapshot returns the current lifecycle view.
func (c *Coordinator) Snapshot() Snapshot {
	st := c.lock.Snapshot()
	snap := Snapshot{
		State: c.State(),
		WakeLock: WakeLockSnapshot{
			Name: st.Name,
			Held: st.Held,
		},
	}
	for _, a := range c.activities {
		snap.Activities = append(snap.Activities, ActivitySnapshot{
			Name:     a.Name(),
			PeriodMs: a.Period().Milliseconds(),
			Armed:    a.Armed(),
		})
	}
	return snap
}
