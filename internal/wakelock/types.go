// Package wakelock holds a named sleep inhibitor for the powerwatch host.
//
// This package provides the lock lifecycle and an OS adapter boundary for
// process-scoped sleep inhibitors. While the lock is held the host system
// must not enter a suspended state; releasing it permits suspension again.
package wakelock

import (
	"context"
	"time"
)

// Handle represents an acquired process-scoped inhibitor.
type Handle interface {
	// Done is closed when the inhibitor exits.
	Done() <-chan struct{}
	// Err returns the terminal inhibitor exit error after Done closes.
	Err() error
	// Release requests inhibitor shutdown and blocks until it exits or
	// the context expires.
	Release(ctx context.Context) error
}

// Adapter acquires OS-specific process-scoped inhibitors.
type Adapter interface {
	Acquire(ctx context.Context) (Handle, error)
}

// Status is a snapshot of the lock state.
type Status struct {
	// Name is the informational lock identifier.
	Name string
	// Held reports whether the inhibitor is currently held.
	Held bool
	// AcquiredAt is the time of the last successful acquire.
	// Zero when the lock has never been held.
	AcquiredAt time.Time
}

// PowerSnapshot is a point-in-time reading of host power state.
// Nil pointer fields indicate unknown/unavailable readings.
type PowerSnapshot struct {
	OnBattery      *bool
	BatteryPercent *int
	ExternalPower  *bool
	Charging       *bool
}

// PowerProvider returns the current power state of the host.
type PowerProvider interface {
	Snapshot() PowerSnapshot
}
