//go:build integration
// +build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var (
	binaryPath string
	moduleDir  string
)

func TestMain(m *testing.M) {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get working dir: %v\n", err)
		os.Exit(1)
	}
	moduleDir = wd

	tmpDir, err := os.MkdirTemp("", "powerwatch-integration-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(tmpDir, "powerwatch")
	build := exec.Command("go", "build", "-o", binaryPath, "./cmd")
	build.Dir = moduleDir
	out, err := build.CombinedOutput()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build powerwatch: %v\n%s", err, out)
		_ = os.RemoveAll(tmpDir)
		os.Exit(1)
	}

	code := m.Run()
	_ = os.RemoveAll(tmpDir)
	os.Exit(code)
}

type daemonProcess struct {
	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer
	addr   string
	waited bool
}

// startDaemon launches the binary with a temp journal, a noop wake lock
// and fast firing periods so tests observe multiple firings quickly.
func startDaemon(t *testing.T, addr string) *daemonProcess {
	t.Helper()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	journalPath := filepath.Join(dir, "journal.db")
	configBody := fmt.Sprintf(`addr = %q
journal = %q
timer_period_ms = 50
work_period_ms = 50
alarm_period_ms = 500
wake_lock_mode = "noop"
`, addr, journalPath)
	if err := os.WriteFile(configPath, []byte(configBody), 0o600); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	cmd := exec.Command(binaryPath, "start", "--config", configPath)
	cmd.Dir = moduleDir

	dp := &daemonProcess{
		cmd:  cmd,
		addr: addr,
	}
	cmd.Stdout = &dp.stdout
	cmd.Stderr = &dp.stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start daemon failed: %v", err)
	}

	waitForHealth(t, addr, 5*time.Second)

	t.Cleanup(func() {
		dp.stop(t)
	})

	return dp
}

func (d *daemonProcess) stop(t *testing.T) {
	t.Helper()
	if d.waited {
		return
	}
	_ = d.cmd.Process.Signal(syscall.SIGTERM)
	_ = d.wait(t, 10*time.Second)
}

func (d *daemonProcess) wait(t *testing.T, timeout time.Duration) error {
	t.Helper()
	if d.waited {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- d.cmd.Wait()
	}()

	select {
	case err := <-done:
		d.waited = true
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for daemon exit")
	}
}

func getFreeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()
	return ln.Addr().String()
}

func waitForHealth(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("daemon at %s never became healthy", addr)
}

type statusPayload struct {
	Coordinator struct {
		State    string `json:"state"`
		WakeLock struct {
			Name string `json:"name"`
			Held bool   `json:"held"`
		} `json:"wake_lock"`
		Activities []struct {
			Name     string `json:"name"`
			PeriodMs int64  `json:"period_ms"`
			Armed    bool   `json:"armed"`
		} `json:"activities"`
	} `json:"coordinator"`
	Firings map[string]int `json:"firings"`
}

func fetchStatus(t *testing.T, addr string) statusPayload {
	t.Helper()
	resp, err := http.Get("http://" + addr + "/status")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status returned %d", resp.StatusCode)
	}
	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status failed: %v", err)
	}
	return payload
}

// TestDaemonLifecycle starts the daemon, confirms the coordinator is
// running with the wake lock held and all three activities armed, and
// confirms a clean SIGTERM shutdown.
func TestDaemonLifecycle(t *testing.T) {
	addr := getFreeAddr(t)
	dp := startDaemon(t, addr)

	status := fetchStatus(t, addr)
	if status.Coordinator.State != "RUNNING" {
		t.Errorf("state = %s, want RUNNING", status.Coordinator.State)
	}
	if !status.Coordinator.WakeLock.Held {
		t.Error("wake lock not held")
	}
	if len(status.Coordinator.Activities) != 3 {
		t.Fatalf("activities = %d, want 3", len(status.Coordinator.Activities))
	}
	for _, a := range status.Coordinator.Activities {
		if !a.Armed {
			t.Errorf("activity %s not armed", a.Name)
		}
	}

	if err := dp.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal failed: %v", err)
	}
	if err := dp.wait(t, 10*time.Second); err != nil {
		t.Fatalf("daemon did not exit cleanly: %v\nstderr: %s", err, dp.stderr.String())
	}
	if !strings.Contains(dp.stdout.String(), "Stopped.") {
		t.Errorf("expected clean stop banner, got:\n%s", dp.stdout.String())
	}
}

// TestPeriodicFiringsAccumulate waits past several firing periods and
// checks the firing counters on /status grow for all three activities.
func TestPeriodicFiringsAccumulate(t *testing.T) {
	addr := getFreeAddr(t)
	startDaemon(t, addr)

	time.Sleep(700 * time.Millisecond)

	status := fetchStatus(t, addr)
	for _, name := range []string{"timer", "deferred_work", "alarm"} {
		if status.Firings[name] == 0 {
			t.Errorf("activity %s recorded no firings: %v", name, status.Firings)
		}
	}
}

// TestPowerEventRoundTrip injects a suspend/resume pair over HTTP and
// checks both are acknowledged by the coordinator's observer.
func TestPowerEventRoundTrip(t *testing.T) {
	addr := getFreeAddr(t)
	startDaemon(t, addr)

	for _, action := range []string{"suspend_prepare", "post_suspend"} {
		body := strings.NewReader(fmt.Sprintf(`{"action":%q}`, action))
		resp, err := http.Post("http://"+addr+"/power-event", "application/json", body)
		if err != nil {
			t.Fatalf("inject %s failed: %v", action, err)
		}
		var result struct {
			Action  string `json:"action"`
			Handled int    `json:"handled"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("decode response failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("inject %s returned %d", action, resp.StatusCode)
		}
		if result.Handled != 1 {
			t.Errorf("inject %s handled = %d, want 1", action, result.Handled)
		}
	}

	// Unknown actions are rejected.
	resp, err := http.Post("http://"+addr+"/power-event", "application/json",
		strings.NewReader(`{"action":"defrost"}`))
	if err != nil {
		t.Fatalf("inject unknown failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown action returned %d, want 400", resp.StatusCode)
	}
}

// TestWebSocketEventStream subscribes to /ws and expects at least one
// firing event to arrive from the fast-period activities.
func TestWebSocketEventStream(t *testing.T) {
	addr := getFreeAddr(t)
	startDaemon(t, addr)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev struct {
		Kind   string `json:"kind"`
		Source string `json:"source"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("websocket read failed: %v", err)
	}
	if ev.Kind == "" || ev.Source == "" {
		t.Errorf("received empty event: %+v", ev)
	}
}
