//go:build !darwin && !linux

package wakelock

type unknownPowerProvider struct{}

// NewDefaultPowerProvider returns a provider with no readings on
// platforms without a supported power-state source.
func NewDefaultPowerProvider() PowerProvider {
	return &unknownPowerProvider{}
}

func (unknownPowerProvider) Snapshot() PowerSnapshot {
	return PowerSnapshot{}
}
