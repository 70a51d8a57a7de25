package fieldsync

import (
	"context"
	"time"
)

// NetworkQuality is the discrete tier a raw connectivity sample classifies
// into. Tiers, not raw samples, drive adaptation decisions.
type NetworkQuality string

const (
	NetworkExcellent NetworkQuality = "excellent"
	NetworkGood      NetworkQuality = "good"
	NetworkPoor      NetworkQuality = "poor"
	NetworkCritical  NetworkQuality = "critical"
)

// Rank orders tiers from best (0) to worst (3).
func (q NetworkQuality) Rank() int {
	switch q {
	case NetworkExcellent:
		return 0
	case NetworkGood:
		return 1
	case NetworkPoor:
		return 2
	default:
		return 3
	}
}

// NetworkSample is one raw connectivity reading.
type NetworkSample struct {
	// Online is the platform's explicit online/offline signal.
	Online bool

	// DownlinkMbps is the effective bandwidth estimate.
	DownlinkMbps float64

	// RTTMillis is the round-trip estimate.
	RTTMillis float64

	// SaveData reports the user's reduced-data preference.
	SaveData bool
}

// NetworkCondition is a classified sample. It is held only in a short rolling
// history for trend and percentile queries, never persisted.
type NetworkCondition struct {
	Quality    NetworkQuality `json:"quality"`
	Sample     NetworkSample  `json:"sample"`
	ObservedAt time.Time      `json:"observedAt"`
}

// BatterySample is one raw power reading.
type BatterySample struct {
	// Level is the charge fraction in [0, 1].
	Level float64

	// Charging reports whether external power is attached.
	Charging bool
}

// NetworkInfoSource abstracts the platform connectivity API.
// One production implementation and one test double exist; core logic
// depends only on this interface.
type NetworkInfoSource interface {
	// Sample returns the current connectivity reading.
	Sample(ctx context.Context) (NetworkSample, error)

	// Changes returns a channel that receives a signal whenever the platform
	// reports a connectivity change. The monitor re-samples on each signal.
	Changes() <-chan struct{}
}

// BatterySource abstracts the platform battery API.
type BatterySource interface {
	Sample(ctx context.Context) (BatterySample, error)
}

// ConditionChange is published when the classified tier or the battery
// override transitions. Repeated samples inside the same tier are debounced
// and produce no event.
type ConditionChange struct {
	Previous        NetworkQuality `json:"previous"`
	Current         NetworkQuality `json:"current"`
	Online          bool           `json:"online"`
	BatteryOverride bool           `json:"batteryOverride"`
	At              time.Time      `json:"at"`
}
