//go:build !darwin && !linux

package wakelock

import (
	"context"

	hostErrors "github.com/powerwatch/host/internal/errors"
)

// NewDefaultAdapter returns an adapter that reports the platform as
// unsupported. Hosts without an inhibitor path run with wake_lock_mode
// set to "noop" instead.
func NewDefaultAdapter() Adapter {
	return &unsupportedAdapter{}
}

type unsupportedAdapter struct{}

func (a *unsupportedAdapter) Acquire(ctx context.Context) (Handle, error) {
	return nil, hostErrors.New(hostErrors.CodeWakeLockUnsupported, "no sleep inhibitor on this platform")
}
