//go:build darwin

package wakelock

import (
	"os/exec"
	"strconv"
	"strings"
)

// darwinPowerProvider reads the battery/AC snapshot from `pmset -g batt`.
// Output looks like:
//
//	Now drawing from 'AC Power'
//	 -InternalBattery-0 (id=12345)	95%; charging; 1:02 remaining present: true
type darwinPowerProvider struct {
	runPmset func() (string, error)
}

// NewDefaultPowerProvider returns the macOS power provider.
func NewDefaultPowerProvider() PowerProvider {
	return &darwinPowerProvider{
		runPmset: func() (string, error) {
			out, err := exec.Command("pmset", "-g", "batt").Output()
			return string(out), err
		},
	}
}

func (p *darwinPowerProvider) Snapshot() PowerSnapshot {
	out, err := p.runPmset()
	if err != nil {
		// Unknown rather than wrong: leave every field nil.
		return PowerSnapshot{}
	}
	return parsePmset(out)
}

func parsePmset(output string) PowerSnapshot {
	snap := PowerSnapshot{}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Now drawing from"):
			onBattery := strings.Contains(line, "'Battery Power'")
			external := strings.Contains(line, "'AC Power'")
			if onBattery || external {
				snap.OnBattery = &onBattery
				snap.ExternalPower = &external
			}
		case strings.Contains(line, "InternalBattery"):
			parseBatteryLine(line, &snap)
		}
	}

	return snap
}

// parseBatteryLine fills the percent and charging state from the
// semicolon-separated battery detail, e.g. "95%; charging; 1:02 remaining".
func parseBatteryLine(line string, snap *PowerSnapshot) {
	for _, field := range strings.Split(line, ";") {
		field = strings.TrimSpace(field)

		if idx := strings.Index(field, "%"); idx > 0 {
			start := idx
			for start > 0 && field[start-1] >= '0' && field[start-1] <= '9' {
				start--
			}
			if pct, err := strconv.Atoi(field[start:idx]); err == nil && pct >= 0 && pct <= 100 {
				p := pct
				snap.BatteryPercent = &p
			}
			continue
		}

		switch {
		case field == "charging" || strings.HasPrefix(field, "finishing charge"):
			charging := true
			snap.Charging = &charging
		case field == "discharging" || field == "charged":
			charging := false
			snap.Charging = &charging
		}
	}
}
