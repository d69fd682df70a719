package config

// DefaultAddr is the default listen address for the control server.
const DefaultAddr = "127.0.0.1:7171"

// DefaultTimerPeriodMs is the default timer activity period.
const DefaultTimerPeriodMs = 1000

// DefaultWorkPeriodMs is the default deferred-work activity period.
const DefaultWorkPeriodMs = 1000

// DefaultAlarmPeriodMs is the default wall-clock alarm period.
// The alarm fires an order of magnitude less often than the timer and
// deferred work; its backing facility is meant to survive deep sleep.
const DefaultAlarmPeriodMs = 10000

// DefaultStopTimeoutMs bounds each synchronous cancel during teardown.
const DefaultStopTimeoutMs = 5000

// DefaultWakeLockName is the informational wake lock identifier.
const DefaultWakeLockName = "powerwatch"

// Wake lock modes accepted in config.
const (
	WakeLockModeSystem = "system"
	WakeLockModeNoop   = "noop"
)
