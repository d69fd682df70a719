package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/powerwatch/host/internal/config"
	"github.com/powerwatch/host/internal/server"
)

// queryStatus fetches /status from a running daemon. Variable so tests
// can substitute a fake without a live server.
var queryStatus = defaultQueryStatus

func defaultQueryStatus(addr string) (*server.StatusResponse, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %s", resp.Status)
	}
	var status server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &status, nil
}

// runStatus implements the "powerwatch status" command.
func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath = fs.String("config", "", "Path to config file (default: ~/.powerwatch/config.toml)")
		addr       = fs.String("addr", "", "Address of the running daemon (default: from config)")
		jsonMode   = fs.Bool("json", false, "Emit raw JSON to stdout")
	)

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: powerwatch status [options]\n\nShow coordinator status.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	target := *addr
	if target == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		target = cfg.Addr
	}

	status, err := queryStatus(target)
	if err != nil {
		fmt.Fprintf(stderr, "Error: cannot reach powerwatch at %s: %v\n", target, err)
		fmt.Fprintln(stderr, "Is the daemon running? Start it with 'powerwatch start'.")
		return 1
	}

	if *jsonMode {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(stderr, "Error: failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	writeStatusOutput(stdout, status)
	return 0
}

func writeStatusOutput(stdout io.Writer, status *server.StatusResponse) {
	fmt.Fprintf(stdout, "State:     %s\n", status.Coordinator.State)

	held := "released"
	if status.Coordinator.WakeLock.Held {
		held = "held"
	}
	fmt.Fprintf(stdout, "Wake lock: %s (%s)\n", status.Coordinator.WakeLock.Name, held)

	if status.Power.OnBattery != nil {
		power := "AC"
		if *status.Power.OnBattery {
			power = "battery"
		}
		if status.Power.BatteryPercent != nil {
			power = fmt.Sprintf("%s (%d%%)", power, *status.Power.BatteryPercent)
		}
		if status.Power.Charging != nil && *status.Power.Charging {
			power += ", charging"
		}
		fmt.Fprintf(stdout, "Power:     %s\n", power)
	}

	fmt.Fprintln(stdout, "Activities:")
	for _, a := range status.Coordinator.Activities {
		armed := "idle"
		if a.Armed {
			armed = "armed"
		}
		firings := 0
		if status.Firings != nil {
			firings = status.Firings[a.Name]
		}
		fmt.Fprintf(stdout, "  %-14s period %dms  %s  firings %d\n", a.Name, a.PeriodMs, armed, firings)
	}

	if len(status.Recent) > 0 {
		fmt.Fprintln(stdout, "Recent events:")
		for _, ev := range status.Recent {
			if ev.Detail != "" {
				fmt.Fprintf(stdout, "  %s  %s/%s  %s\n", ev.CreatedAt, ev.Kind, ev.Source, ev.Detail)
			} else {
				fmt.Fprintf(stdout, "  %s  %s/%s\n", ev.CreatedAt, ev.Kind, ev.Source)
			}
		}
	}
}
