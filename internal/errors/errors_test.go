package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodedError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *CodedError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(CodeWakeLockNotHeld, "wake lock is not held"),
			expected: "wakelock.not_held: wake lock is not held",
		},
		{
			name:     "error with cause",
			err:      Wrap(CodeJournalOpenFailed, "open journal", errors.New("disk full")),
			expected: "journal.open_failed: open journal (disk full)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCodedError_Unwrap(t *testing.T) {
	cause := errors.New("original error")
	err := Wrap(CodeInternal, "wrapped", cause)

	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the original cause")
	}

	err2 := New(CodeWakeLockNotHeld, "not held")
	if err2.Unwrap() != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "coded error",
			err:      New(CodePeriodicCancelTimeout, "timed out"),
			expected: CodePeriodicCancelTimeout,
		},
		{
			name:     "wrapped coded error",
			err:      fmt.Errorf("stop: %w", New(CodeWakeLockReleaseFailed, "release")),
			expected: CodeWakeLockReleaseFailed,
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			expected: CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := Wrap(CodeLifecycleStopFailed, "stop", New(CodePeriodicCancelTimeout, "cancel"))
	if !Is(err, CodeLifecycleStopFailed) {
		t.Error("Is() should match the outermost code")
	}
	if Is(err, CodeLifecycleStartFailed) {
		t.Error("Is() should not match a different code")
	}
	if Is(nil, CodeUnknown) {
		t.Error("Is(nil) should be false")
	}
}
