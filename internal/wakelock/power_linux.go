//go:build linux

package wakelock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type linuxPowerProvider struct {
	root string
}

// NewDefaultPowerProvider returns a linux-specific power provider that
// reads /sys/class/power_supply.
func NewDefaultPowerProvider() PowerProvider {
	return &linuxPowerProvider{root: "/sys/class/power_supply"}
}

func (p *linuxPowerProvider) Snapshot() PowerSnapshot {
	snap := PowerSnapshot{}

	entries, err := os.ReadDir(p.root)
	if err != nil {
		return snap
	}

	for _, e := range entries {
		dir := filepath.Join(p.root, e.Name())
		kind := readSysString(filepath.Join(dir, "type"))
		switch kind {
		case "Mains":
			if online := readSysString(filepath.Join(dir, "online")); online != "" {
				ext := online == "1"
				onBatt := !ext
				snap.ExternalPower = &ext
				snap.OnBattery = &onBatt
			}
		case "Battery":
			if cap := readSysString(filepath.Join(dir, "capacity")); cap != "" {
				if pct, err := strconv.Atoi(cap); err == nil && pct >= 0 && pct <= 100 {
					snap.BatteryPercent = &pct
				}
			}
			switch readSysString(filepath.Join(dir, "status")) {
			case "Charging":
				charging := true
				snap.Charging = &charging
			case "Discharging", "Full", "Not charging":
				charging := false
				snap.Charging = &charging
			}
		}
	}

	return snap
}

func readSysString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
