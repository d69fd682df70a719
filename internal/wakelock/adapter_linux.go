//go:build linux

package wakelock

import (
	"context"
	"errors"
	"os"
	"os/exec"

	hostErrors "github.com/powerwatch/host/internal/errors"
)

// NewDefaultAdapter returns the default Linux sleep-inhibitor adapter,
// which takes a logind block inhibitor via systemd-inhibit.
func NewDefaultAdapter() Adapter {
	return &linuxAdapter{
		who:     "powerwatch",
		execCmd: exec.Command,
	}
}

type linuxAdapter struct {
	who     string
	execCmd func(name string, args ...string) *exec.Cmd
}

func (a *linuxAdapter) Acquire(ctx context.Context) (Handle, error) {
	if a.execCmd == nil {
		return nil, hostErrors.New(hostErrors.CodeWakeLockAcquireFailed, "inhibitor command runner is unavailable")
	}

	// systemd-inhibit holds the logind lock for as long as the wrapped
	// command runs; SIGTERM on release ends both. The lock blocks sleep
	// rather than just delaying it.
	cmd := a.execCmd("systemd-inhibit",
		"--what=sleep",
		"--who="+a.who,
		"--why=periodic activities are running",
		"--mode=block",
		"sleep", "infinity")
	if err := cmd.Start(); err != nil {
		var ex *exec.Error
		if errors.As(err, &ex) || errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, hostErrors.Wrap(hostErrors.CodeWakeLockUnsupported, "systemd-inhibit is unavailable", err)
		}
		return nil, hostErrors.Wrap(hostErrors.CodeWakeLockAcquireFailed, "failed to start systemd-inhibit", err)
	}

	return newProcHandle(cmd), nil
}
