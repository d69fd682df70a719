package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/powerwatch/host/internal/coordinator"
	"github.com/powerwatch/host/internal/server"
)

// stubDoctorSeams installs deterministic doctor dependencies and restores
// the originals on cleanup. Individual tests override single seams after
// calling this.
func stubDoctorSeams(t *testing.T) {
	t.Helper()

	origQuery := doctorQueryStatus
	origLookPath := doctorLookPath
	origProbe := doctorProbeJournal
	origGOOS := doctorGOOS
	t.Cleanup(func() {
		doctorQueryStatus = origQuery
		doctorLookPath = origLookPath
		doctorProbeJournal = origProbe
		doctorGOOS = origGOOS
	})

	doctorQueryStatus = func(addr string) (*server.StatusResponse, error) {
		resp := &server.StatusResponse{}
		resp.Coordinator.State = coordinator.StateRunning
		resp.Coordinator.WakeLock.Name = "powerwatch"
		resp.Coordinator.WakeLock.Held = true
		return resp, nil
	}
	doctorLookPath = func(file string) (string, error) {
		return "/usr/bin/" + file, nil
	}
	doctorProbeJournal = func(path string) error {
		return nil
	}
	doctorGOOS = "linux"

	t.Setenv("HOME", t.TempDir())
}

func TestRunDoctorHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runDoctor([]string{"--help"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !strings.Contains(stderr.String(), "Usage: powerwatch doctor") {
		t.Fatalf("expected doctor usage, got %q", stderr.String())
	}
}

func TestRunDoctorJSON_AllPass(t *testing.T) {
	stubDoctorSeams(t)

	var stdout, stderr bytes.Buffer
	code := runDoctor([]string{"--json"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr.String())
	}

	var result DoctorResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("stdout is not valid JSON: %v\n%s", err, stdout.String())
	}
	if result.Version != "1" {
		t.Errorf("schema version = %q, want 1", result.Version)
	}
	if result.Summary.Fail != 0 {
		t.Errorf("fail count = %d, want 0", result.Summary.Fail)
	}
	if result.Summary.Pass != 4 {
		t.Errorf("pass count = %d, want 4: %+v", result.Summary.Pass, result.Checks)
	}
}

func TestRunDoctorJSON_CheckIDsAndOrder(t *testing.T) {
	stubDoctorSeams(t)

	var stdout, stderr bytes.Buffer
	if code := runDoctor([]string{"--json"}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}

	var result DoctorResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatal(err)
	}

	wantIDs := []string{"config.file", "wakelock.inhibitor", "journal.writable", "daemon.readiness"}
	if len(result.Checks) != len(wantIDs) {
		t.Fatalf("got %d checks, want %d", len(result.Checks), len(wantIDs))
	}
	for i, want := range wantIDs {
		if result.Checks[i].ID != want {
			t.Errorf("check[%d].ID = %q, want %q", i, result.Checks[i].ID, want)
		}
	}
}

func TestDoctorInhibitorCheck(t *testing.T) {
	tests := []struct {
		name       string
		goos       string
		mode       string
		lookPathOK bool
		wantStatus string
	}{
		{"noop mode passes without binary", "linux", "noop", false, statusPass},
		{"linux with systemd-inhibit", "linux", "system", true, statusPass},
		{"linux without systemd-inhibit", "linux", "system", false, statusFail},
		{"darwin with caffeinate", "darwin", "system", true, statusPass},
		{"darwin without caffeinate", "darwin", "system", false, statusFail},
		{"unsupported platform warns", "plan9", "system", true, statusWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubDoctorSeams(t)
			doctorGOOS = tt.goos
			if !tt.lookPathOK {
				doctorLookPath = func(file string) (string, error) {
					return "", errors.New("executable file not found in $PATH")
				}
			}

			check := evalInhibitor(tt.mode)
			if check.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q (%s)", check.Status, tt.wantStatus, check.Message)
			}
			if check.ID != checkIDInhibitor {
				t.Errorf("ID = %q, want %q", check.ID, checkIDInhibitor)
			}
		})
	}
}

func TestDoctorJournalCheckFailure(t *testing.T) {
	stubDoctorSeams(t)
	doctorProbeJournal = func(path string) error {
		return errors.New("permission denied")
	}

	check := evalJournal("/nope/journal.db")
	if check.Status != statusFail {
		t.Errorf("status = %q, want fail", check.Status)
	}
	if !strings.Contains(check.Message, "permission denied") {
		t.Errorf("message = %q", check.Message)
	}
}

func TestDoctorDaemonUnreachableIsWarn(t *testing.T) {
	stubDoctorSeams(t)
	doctorQueryStatus = func(addr string) (*server.StatusResponse, error) {
		return nil, errors.New("connection refused")
	}

	check := evalDaemonReadiness("127.0.0.1:7171")
	if check.Status != statusWarn {
		t.Errorf("status = %q, want warn", check.Status)
	}
	if !strings.Contains(check.NextAction, "powerwatch start") {
		t.Errorf("next action = %q", check.NextAction)
	}
}

func TestDoctorConfigParseFailure(t *testing.T) {
	stubDoctorSeams(t)

	dir := t.TempDir()
	path := dir + "/config.toml"
	if err := os.WriteFile(path, []byte("addr = [not valid toml"), 0o600); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := runDoctor([]string{"--json", "--config", path}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}

	var result DoctorResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Checks[0].Status != statusFail {
		t.Errorf("config check status = %q, want fail", result.Checks[0].Status)
	}
}

func TestDoctorExitCodeWarnsOnly(t *testing.T) {
	stubDoctorSeams(t)
	doctorQueryStatus = func(addr string) (*server.StatusResponse, error) {
		return nil, errors.New("connection refused")
	}

	var stdout, stderr bytes.Buffer
	code := runDoctor(nil, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("warn-only run should exit 0, got %d\n%s", code, stdout.String())
	}
	if !strings.Contains(stdout.String(), "1 warnings") {
		t.Errorf("expected warning count in output, got %q", stdout.String())
	}
}

func TestDoctorHumanOutputMarkers(t *testing.T) {
	stubDoctorSeams(t)
	doctorLookPath = func(file string) (string, error) {
		return "", errors.New("not found")
	}

	var stdout, stderr bytes.Buffer
	code := runDoctor(nil, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected exit code 1 with a failing check, got %d", code)
	}
	out := stdout.String()
	if !strings.Contains(out, "[FAIL] wakelock.inhibitor") {
		t.Errorf("expected failure marker, got %q", out)
	}
	if !strings.Contains(out, "->") {
		t.Errorf("expected remediation arrow, got %q", out)
	}
}
