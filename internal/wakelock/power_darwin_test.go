//go:build darwin

package wakelock

import (
	"errors"
	"testing"
)

func TestParsePmset(t *testing.T) {
	tests := []struct {
		name         string
		output       string
		wantBattery  *bool
		wantExternal *bool
		wantPercent  *int
		wantCharging *bool
	}{
		{
			name: "on AC and charging",
			output: "Now drawing from 'AC Power'\n" +
				" -InternalBattery-0 (id=12345)\t95%; charging; 1:02 remaining present: true\n",
			wantBattery:  boolPtr(false),
			wantExternal: boolPtr(true),
			wantPercent:  intPtr(95),
			wantCharging: boolPtr(true),
		},
		{
			name: "on battery discharging",
			output: "Now drawing from 'Battery Power'\n" +
				" -InternalBattery-0 (id=12345)\t47%; discharging; 3:10 remaining present: true\n",
			wantBattery:  boolPtr(true),
			wantExternal: boolPtr(false),
			wantPercent:  intPtr(47),
			wantCharging: boolPtr(false),
		},
		{
			name: "fully charged on AC",
			output: "Now drawing from 'AC Power'\n" +
				" -InternalBattery-0 (id=12345)\t100%; charged; 0:00 remaining present: true\n",
			wantBattery:  boolPtr(false),
			wantExternal: boolPtr(true),
			wantPercent:  intPtr(100),
			wantCharging: boolPtr(false),
		},
		{
			name: "finishing charge",
			output: "Now drawing from 'AC Power'\n" +
				" -InternalBattery-0 (id=12345)\t99%; finishing charge; 0:05 remaining present: true\n",
			wantPercent:  intPtr(99),
			wantBattery:  boolPtr(false),
			wantExternal: boolPtr(true),
			wantCharging: boolPtr(true),
		},
		{
			name:         "desktop without battery",
			output:       "Now drawing from 'AC Power'\n",
			wantBattery:  boolPtr(false),
			wantExternal: boolPtr(true),
		},
		{
			name:   "unrecognized output leaves everything unknown",
			output: "some future pmset format\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := parsePmset(tt.output)
			checkBoolField(t, "OnBattery", snap.OnBattery, tt.wantBattery)
			checkBoolField(t, "ExternalPower", snap.ExternalPower, tt.wantExternal)
			checkBoolField(t, "Charging", snap.Charging, tt.wantCharging)
			checkIntField(t, "BatteryPercent", snap.BatteryPercent, tt.wantPercent)
		})
	}
}

func TestDarwinProviderPmsetFailure(t *testing.T) {
	p := &darwinPowerProvider{
		runPmset: func() (string, error) {
			return "", errors.New("exec: pmset: not found")
		},
	}

	snap := p.Snapshot()
	if snap.OnBattery != nil || snap.ExternalPower != nil ||
		snap.BatteryPercent != nil || snap.Charging != nil {
		t.Errorf("failed pmset must yield an all-unknown snapshot, got %+v", snap)
	}
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func checkBoolField(t *testing.T, name string, got, want *bool) {
	t.Helper()
	switch {
	case want == nil && got != nil:
		t.Errorf("%s = %v, want unknown", name, *got)
	case want != nil && got == nil:
		t.Errorf("%s unknown, want %v", name, *want)
	case want != nil && got != nil && *got != *want:
		t.Errorf("%s = %v, want %v", name, *got, *want)
	}
}

func checkIntField(t *testing.T, name string, got, want *int) {
	t.Helper()
	switch {
	case want == nil && got != nil:
		t.Errorf("%s = %d, want unknown", name, *got)
	case want != nil && got == nil:
		t.Errorf("%s unknown, want %d", name, *want)
	case want != nil && got != nil && *got != *want:
		t.Errorf("%s = %d, want %d", name, *got, *want)
	}
}
