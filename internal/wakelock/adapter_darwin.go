//go:build darwin

package wakelock

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"

	hostErrors "github.com/powerwatch/host/internal/errors"
)

// NewDefaultAdapter returns the default macOS sleep-inhibitor adapter.
func NewDefaultAdapter() Adapter {
	return &darwinAdapter{
		hostPID: os.Getpid(),
		execCmd: exec.Command,
	}
}

type darwinAdapter struct {
	hostPID int
	execCmd func(name string, args ...string) *exec.Cmd
}

func (a *darwinAdapter) Acquire(ctx context.Context) (Handle, error) {
	if a.execCmd == nil {
		return nil, hostErrors.New(hostErrors.CodeWakeLockAcquireFailed, "inhibitor command runner is unavailable")
	}

	// Prevent system sleep, not just idle sleep: the lock must ride out
	// sleep attempts while held. Bind lifecycle to the host PID so
	// crash/restart exits the inhibitor process automatically.
	cmd := a.execCmd("caffeinate", "-s", "-w", strconv.Itoa(a.hostPID))
	if err := cmd.Start(); err != nil {
		var ex *exec.Error
		if errors.As(err, &ex) || errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, hostErrors.Wrap(hostErrors.CodeWakeLockUnsupported, "caffeinate is unavailable", err)
		}
		return nil, hostErrors.Wrap(hostErrors.CodeWakeLockAcquireFailed, "failed to start caffeinate", err)
	}

	return newProcHandle(cmd), nil
}
