// This file implements the `powerwatch doctor` diagnostic command.
//
// The doctor command runs a sequence of preflight checks against the local
// host environment and reports actionable remediation guidance for any
// issues. It supports both human-readable (default) and machine-readable
// (--json) output.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/powerwatch/host/internal/config"
	"github.com/powerwatch/host/internal/storage"
)

// DoctorResult is the top-level JSON output for `powerwatch doctor --json`.
type DoctorResult struct {
	// Version is the doctor output schema version. Always "1".
	Version string `json:"version"`

	// Checks is the ordered list of diagnostic checks that were evaluated.
	Checks []DoctorCheck `json:"checks"`

	// Summary contains aggregate pass/warn/fail counts derived from Checks.
	Summary DoctorSummary `json:"summary"`
}

// DoctorCheck is one diagnostic check in the doctor output.
type DoctorCheck struct {
	// ID is a stable, machine-readable identifier for the check.
	ID string `json:"id"`

	// Status is the check result: "pass", "warn", or "fail".
	Status string `json:"status"`

	// Message is a human-readable summary of what was found.
	Message string `json:"message"`

	// NextAction is a concrete remediation step the operator should take.
	NextAction string `json:"next_action"`
}

// DoctorSummary holds aggregate counts of check outcomes.
type DoctorSummary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Stable check IDs used by the doctor command.
// These are part of the public CLI contract and must not change.
const (
	checkIDConfig    = "config.file"
	checkIDInhibitor = "wakelock.inhibitor"
	checkIDJournal   = "journal.writable"
	checkIDDaemon    = "daemon.readiness"
)

// Stable status values for doctor checks.
const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "fail"
)

// Function-variable seams for testability. Tests override these to inject
// deterministic behavior without touching the filesystem or network.
var (
	// doctorQueryStatus probes the configured address for daemon status.
	doctorQueryStatus = defaultQueryStatus

	// doctorLookPath resolves the platform sleep-inhibitor binary.
	doctorLookPath = exec.LookPath

	// doctorProbeJournal verifies the journal database can be opened
	// and written at the given path.
	doctorProbeJournal = defaultProbeJournal

	// doctorGOOS is the platform the inhibitor check evaluates against.
	doctorGOOS = runtime.GOOS
)

// defaultProbeJournal opens the journal and performs a throwaway write to
// confirm the path is usable.
func defaultProbeJournal(path string) error {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return err
		}
	}
	j, err := storage.Open(path)
	if err != nil {
		return err
	}
	return j.Close()
}

// runDoctor implements the `powerwatch doctor` CLI command.
// It evaluates preflight checks and reports results to stdout (human or
// JSON). Returns 0 when no checks fail, 1 when any check fails or an
// internal error occurs.
func runDoctor(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		jsonMode   = fs.Bool("json", false, "Emit machine-readable JSON to stdout")
		configPath = fs.String("config", "", "Path to config file (default: ~/.powerwatch/config.toml)")
		addr       = fs.String("addr", "", "Daemon address override for the readiness check")
	)

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: powerwatch doctor [options]\n\nDiagnose host readiness.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	// Evaluate checks in deterministic order.
	cfg, cfgCheck := evalConfigFile(*configPath)
	target := *addr
	if target == "" && cfg != nil {
		target = cfg.Addr
	}
	journalPath := ""
	mode := config.WakeLockModeSystem
	if cfg != nil {
		journalPath = cfg.Journal
		mode = cfg.WakeLockMode
	}

	checks := make([]DoctorCheck, 0, 4)
	checks = append(checks, cfgCheck)
	checks = append(checks, evalInhibitor(mode))
	checks = append(checks, evalJournal(journalPath))
	checks = append(checks, evalDaemonReadiness(target))

	summary := DoctorSummary{}
	for _, c := range checks {
		switch c.Status {
		case statusPass:
			summary.Pass++
		case statusWarn:
			summary.Warn++
		case statusFail:
			summary.Fail++
		}
	}

	result := DoctorResult{
		Version: "1",
		Checks:  checks,
		Summary: summary,
	}

	if *jsonMode {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(stderr, "Error: failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		renderDoctorHuman(stdout, result)
	}

	if summary.Fail > 0 {
		return 1
	}
	return 0
}

// evalConfigFile evaluates the config.file check and returns the loaded
// config for use by later checks. A missing file is a pass (defaults
// apply); a file that exists but does not parse is a fail.
func evalConfigFile(path string) (*config.Config, DoctorCheck) {
	check := DoctorCheck{ID: checkIDConfig}

	resolved := path
	if resolved == "" {
		defaultPath, err := config.DefaultConfigPath()
		if err != nil {
			check.Status = statusFail
			check.Message = fmt.Sprintf("Cannot determine config path: %v", err)
			check.NextAction = "Set HOME or pass --config explicitly."
			return nil, check
		}
		resolved = defaultPath
	}

	if _, err := os.Stat(resolved); os.IsNotExist(err) {
		cfg, err := config.Load(path)
		if err != nil {
			check.Status = statusFail
			check.Message = fmt.Sprintf("Config defaults failed to apply: %v", err)
			check.NextAction = "Run 'powerwatch start' once to create a default config."
			return nil, check
		}
		check.Status = statusPass
		check.Message = fmt.Sprintf("No config file at %s; defaults apply.", resolved)
		check.NextAction = "None. Create the file to customize periods or the listen address."
		return cfg, check
	}

	cfg, err := config.Load(path)
	if err != nil {
		check.Status = statusFail
		check.Message = fmt.Sprintf("Config file %s does not parse: %v", resolved, err)
		check.NextAction = "Fix the TOML syntax or delete the file to fall back to defaults."
		return nil, check
	}

	check.Status = statusPass
	check.Message = fmt.Sprintf("Config file %s parsed.", resolved)
	check.NextAction = "None."
	return cfg, check
}

// evalInhibitor evaluates the wakelock.inhibitor check.
// Decision table:
//   - wake lock mode "noop" -> pass (no system inhibitor needed)
//   - darwin: caffeinate on PATH -> pass, otherwise fail
//   - linux: systemd-inhibit on PATH -> pass, otherwise fail
//   - other platforms -> warn (only noop mode will work)
func evalInhibitor(mode string) DoctorCheck {
	check := DoctorCheck{ID: checkIDInhibitor}

	if mode == config.WakeLockModeNoop {
		check.Status = statusPass
		check.Message = "Wake lock mode is noop; no system inhibitor required."
		check.NextAction = "Switch wake_lock_mode to \"system\" to hold a real sleep inhibitor."
		return check
	}

	var binary string
	switch doctorGOOS {
	case "darwin":
		binary = "caffeinate"
	case "linux":
		binary = "systemd-inhibit"
	default:
		check.Status = statusWarn
		check.Message = fmt.Sprintf("No sleep inhibitor available on %s.", doctorGOOS)
		check.NextAction = "Set wake_lock_mode = \"noop\" in the config."
		return check
	}

	path, err := doctorLookPath(binary)
	if err != nil {
		check.Status = statusFail
		check.Message = fmt.Sprintf("Sleep inhibitor %q not found on PATH.", binary)
		check.NextAction = fmt.Sprintf("Install %s or set wake_lock_mode = \"noop\".", binary)
		return check
	}

	check.Status = statusPass
	check.Message = fmt.Sprintf("Sleep inhibitor available: %s", path)
	check.NextAction = "None."
	return check
}

// evalJournal evaluates the journal.writable check by opening the journal
// database at the configured path.
func evalJournal(path string) DoctorCheck {
	check := DoctorCheck{ID: checkIDJournal}

	if path == "" {
		defaultPath, err := config.DefaultJournalPath()
		if err != nil {
			check.Status = statusFail
			check.Message = fmt.Sprintf("Cannot determine journal path: %v", err)
			check.NextAction = "Set HOME or configure an explicit journal path."
			return check
		}
		path = defaultPath
	}

	if err := doctorProbeJournal(path); err != nil {
		check.Status = statusFail
		check.Message = fmt.Sprintf("Journal at %s is not writable: %v", path, err)
		check.NextAction = "Check directory permissions or configure a different journal path."
		return check
	}

	check.Status = statusPass
	check.Message = fmt.Sprintf("Journal writable at %s.", path)
	check.NextAction = "None."
	return check
}

// evalDaemonReadiness evaluates the daemon.readiness check.
// An unreachable daemon is a warn, not a fail: doctor is most useful
// before the first start.
func evalDaemonReadiness(addr string) DoctorCheck {
	check := DoctorCheck{ID: checkIDDaemon}

	if addr == "" {
		addr = config.DefaultAddr
	}

	status, err := doctorQueryStatus(addr)
	if err != nil {
		check.Status = statusWarn
		check.Message = fmt.Sprintf("No daemon responding at %s.", addr)
		check.NextAction = "Run 'powerwatch start' to bring the coordinator up."
		return check
	}

	check.Status = statusPass
	check.Message = fmt.Sprintf("Daemon at %s is %s with wake lock %q.",
		addr, status.Coordinator.State, status.Coordinator.WakeLock.Name)
	check.NextAction = "None."
	return check
}

// renderDoctorHuman writes the human-readable doctor report.
func renderDoctorHuman(stdout io.Writer, result DoctorResult) {
	fmt.Fprintln(stdout, "powerwatch doctor")
	fmt.Fprintln(stdout, "")

	for _, c := range result.Checks {
		var marker string
		switch c.Status {
		case statusPass:
			marker = "[ok]  "
		case statusWarn:
			marker = "[warn]"
		case statusFail:
			marker = "[FAIL]"
		}
		fmt.Fprintf(stdout, "%s %s: %s\n", marker, c.ID, c.Message)
		if c.Status != statusPass && c.NextAction != "" {
			fmt.Fprintf(stdout, "       -> %s\n", c.NextAction)
		}
	}

	fmt.Fprintln(stdout, "")
	fmt.Fprintf(stdout, "%d passed, %d warnings, %d failures\n",
		result.Summary.Pass, result.Summary.Warn, result.Summary.Fail)
}
