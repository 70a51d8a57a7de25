// Package monitor samples connectivity and power signals, classifies them
// into discrete quality tiers, and publishes an event only when the tier
// actually changes. Raw samples are kept in a short rolling history for
// trend and percentile queries, never persisted.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/fieldsync"
	"github.com/dukerupert/fieldsync/internal/metrics"
)

// Config holds monitor tuning. Zero fields take the documented defaults.
type Config struct {
	// PollInterval is the fixed sampling cadence.
	PollInterval time.Duration

	// BatteryOverrideLevel is the charge fraction below which the battery
	// override engages regardless of network tier.
	BatteryOverrideLevel float64

	// HistorySize bounds the rolling condition history.
	HistorySize int

	Logger *slog.Logger
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:         15 * time.Second,
		BatteryOverrideLevel: 0.15,
		HistorySize:          40,
		Logger:               slog.Default(),
	}
}

// Monitor observes a NetworkInfoSource and a BatterySource. It samples on
// push notifications from the source and on the fixed poll interval, and is
// the single producer of ConditionChange events.
type Monitor struct {
	network fieldsync.NetworkInfoSource
	battery fieldsync.BatterySource
	cfg     Config

	mu          sync.RWMutex
	current     fieldsync.NetworkCondition
	override    bool
	lastBattery fieldsync.BatterySample
	history     []fieldsync.NetworkCondition

	subsMu sync.Mutex
	subs   []chan fieldsync.ConditionChange

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a monitor. Call Start to begin sampling.
func New(network fieldsync.NetworkInfoSource, battery fieldsync.BatterySource, cfg Config) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.BatteryOverrideLevel <= 0 {
		cfg.BatteryOverrideLevel = 0.15
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 40
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Monitor{
		network: network,
		battery: battery,
		cfg:     cfg,
		current: fieldsync.NetworkCondition{Quality: fieldsync.NetworkCritical},
		// Assume external power until the first battery read says otherwise
		lastBattery: fieldsync.BatterySample{Level: 1, Charging: true},
	}
}

// Classify maps one raw sample to a quality tier.
//
// Threshold rules:
//
//	offline or downlink < 0.5          -> critical
//	downlink > 10 and rtt < 50         -> excellent
//	downlink >= 2 and rtt < 200        -> good
//	otherwise                          -> poor
//
// The save-data preference caps the tier at good.
func Classify(s fieldsync.NetworkSample) fieldsync.NetworkQuality {
	switch {
	case !s.Online || s.DownlinkMbps < 0.5:
		return fieldsync.NetworkCritical
	case s.DownlinkMbps > 10 && s.RTTMillis < 50:
		if s.SaveData {
			return fieldsync.NetworkGood
		}
		return fieldsync.NetworkExcellent
	case s.DownlinkMbps >= 2 && s.RTTMillis < 200:
		return fieldsync.NetworkGood
	default:
		return fieldsync.NetworkPoor
	}
}

// Start begins the sampling loop. It takes an immediate sample so consumers
// have a condition before the first tick.
func (m *Monitor) Start(ctx context.Context) error {
	if m.cancel != nil {
		return fmt.Errorf("monitor already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.sample(runCtx)

	m.wg.Add(1)
	go m.run(runCtx)

	m.cfg.Logger.Info("monitor started",
		slog.Duration("poll_interval", m.cfg.PollInterval),
		slog.Float64("battery_override_level", m.cfg.BatteryOverrideLevel),
	)
	return nil
}

// Stop halts sampling and closes all subscriber channels.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.cancel = nil
	m.wg.Wait()

	m.subsMu.Lock()
	for _, ch := range m.subs {
		close(ch)
	}
	m.subs = nil
	m.subsMu.Unlock()
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	changes := m.network.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			m.sample(ctx)
		}
	}
}

// sample reads both sources, reclassifies, and emits an event only on a tier
// or override transition.
func (m *Monitor) sample(ctx context.Context) {
	netSample, err := m.network.Sample(ctx)
	if err != nil {
		// A failed read counts as offline; the platform signal is gone.
		m.cfg.Logger.Warn("network sample failed", slog.String("error", err.Error()))
		netSample = fieldsync.NetworkSample{Online: false}
	}

	override := false
	var batSample *fieldsync.BatterySample
	if m.battery != nil {
		reading, err := m.battery.Sample(ctx)
		if err != nil {
			m.cfg.Logger.Warn("battery sample failed", slog.String("error", err.Error()))
		} else {
			override = !reading.Charging && reading.Level < m.cfg.BatteryOverrideLevel
			batSample = &reading
		}
	}

	condition := fieldsync.NetworkCondition{
		Quality:    Classify(netSample),
		Sample:     netSample,
		ObservedAt: time.Now(),
	}

	m.mu.Lock()
	previous := m.current.Quality
	previousOverride := m.override
	m.current = condition
	m.override = override
	if batSample != nil {
		m.lastBattery = *batSample
	}
	m.history = append(m.history, condition)
	if len(m.history) > m.cfg.HistorySize {
		m.history = m.history[len(m.history)-m.cfg.HistorySize:]
	}
	m.mu.Unlock()

	metrics.NetworkTier.Set(float64(condition.Quality.Rank()))

	if condition.Quality == previous && override == previousOverride {
		return // Debounced: no transition, no event
	}

	change := fieldsync.ConditionChange{
		Previous:        previous,
		Current:         condition.Quality,
		Online:          netSample.Online,
		BatteryOverride: override,
		At:              condition.ObservedAt,
	}

	m.cfg.Logger.Info("condition transition",
		slog.String("previous", string(previous)),
		slog.String("current", string(condition.Quality)),
		slog.Bool("online", netSample.Online),
		slog.Bool("battery_override", override),
	)
	m.publish(change)
}

func (m *Monitor) publish(change fieldsync.ConditionChange) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- change:
		default:
			// Subscriber is behind; drop rather than block sampling.
		}
	}
}

// Subscribe returns a channel receiving future condition transitions. The
// channel is closed by Stop.
func (m *Monitor) Subscribe() <-chan fieldsync.ConditionChange {
	ch := make(chan fieldsync.ConditionChange, 8)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

// Current returns the latest classified condition.
func (m *Monitor) Current() fieldsync.NetworkCondition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Online reports the platform's explicit online/offline signal.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Sample.Online
}

// Battery returns the latest battery reading.
func (m *Monitor) Battery() fieldsync.BatterySample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBattery
}

// BatteryOverride reports whether the low-battery override is engaged.
func (m *Monitor) BatteryOverride() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.override
}

// DownlinkPercentile returns the p-th percentile (0..100) of downlink
// readings in the rolling history, or zero when the history is empty.
func (m *Monitor) DownlinkPercentile(p float64) float64 {
	m.mu.RLock()
	values := make([]float64, 0, len(m.history))
	for _, c := range m.history {
		values = append(values, c.Sample.DownlinkMbps)
	}
	m.mu.RUnlock()

	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	if p <= 0 {
		return values[0]
	}
	if p >= 100 {
		return values[len(values)-1]
	}
	// Nearest-rank
	idx := int(math.Ceil(p/100*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	return values[idx]
}

// Trend reports whether the classified tier is improving, degrading, or
// stable over the rolling history.
func (m *Monitor) Trend() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.history) < 2 {
		return "stable"
	}
	first := m.history[0].Quality.Rank()
	last := m.history[len(m.history)-1].Quality.Rank()
	switch {
	case last < first:
		return "improving"
	case last > first:
		return "degrading"
	default:
		return "stable"
	}
}
