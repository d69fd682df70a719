package wakelock

import (
	"context"
	"log"
	"sync"
	"time"

	hostErrors "github.com/powerwatch/host/internal/errors"
)

// Lock is a named, held-or-not sleep inhibitor. Acquire and Release are
// always paired 1:1 by the owning coordinator; the lock itself only
// enforces that each call finds the expected state.
type Lock struct {
	mu sync.Mutex

	name    string
	adapter Adapter
	now     func() time.Time

	handle     Handle
	held       bool
	acquiredAt time.Time
}

// Options configures lock behavior.
type Options struct {
	// Now returns current time; defaults to time.Now.
	Now func() time.Time
}

// NewLock creates an unheld lock backed by the given adapter.
func NewLock(name string, adapter Adapter, opts Options) *Lock {
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Lock{
		name:    name,
		adapter: adapter,
		now:     nowFn,
	}
}

// Name returns the informational lock identifier.
func (l *Lock) Name() string { return l.name }

// Held reports whether the inhibitor is currently held.
func (l *Lock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Snapshot returns a copy of the current lock state.
func (l *Lock) Snapshot() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Name:       l.name,
		Held:       l.held,
		AcquiredAt: l.acquiredAt,
	}
}

// Acquire obtains the inhibitor. From a successful return until Release,
// the host system must not enter a suspended state. Acquiring an
// already-held lock is an error.
func (l *Lock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.held {
		l.mu.Unlock()
		return hostErrors.New(hostErrors.CodeWakeLockHeld, "wake lock "+l.name+" already held")
	}
	l.mu.Unlock()

	h, err := l.adapter.Acquire(ctx)
	if err != nil {
		if hostErrors.GetCode(err) == hostErrors.CodeUnknown {
			err = hostErrors.Wrap(hostErrors.CodeWakeLockAcquireFailed, "acquire wake lock "+l.name, err)
		}
		return err
	}

	l.mu.Lock()
	l.handle = h
	l.held = true
	l.acquiredAt = l.now()
	l.mu.Unlock()

	log.Printf("wakelock: %s acquired", l.name)
	return nil
}

// Release drops the inhibitor, permitting suspension. Releasing a lock
// that is not held is an error. The lock is marked unheld even when the
// underlying release fails, so a failed release is reported without
// leaving the pairing invariant broken.
func (l *Lock) Release(ctx context.Context) error {
	l.mu.Lock()
	if !l.held {
		l.mu.Unlock()
		return hostErrors.New(hostErrors.CodeWakeLockNotHeld, "wake lock "+l.name+" is not held")
	}
	h := l.handle
	l.handle = nil
	l.held = false
	l.mu.Unlock()

	if h != nil {
		if err := h.Release(ctx); err != nil {
			return hostErrors.Wrap(hostErrors.CodeWakeLockReleaseFailed, "release wake lock "+l.name, err)
		}
	}

	log.Printf("wakelock: %s released", l.name)
	return nil
}
