// Package adaptive maps classified network conditions to an optimization
// level and holds the strategy in effect. Other components read the active
// strategy; only the controller changes it.
package adaptive

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukerupert/fieldsync"
	"github.com/dukerupert/fieldsync/internal/metrics"
	"github.com/dukerupert/fieldsync/internal/monitor"
)

// Compile-time interface check
var _ fieldsync.CompressionSelector = (*Controller)(nil)

// Config holds controller tuning. Zero fields take the documented defaults.
type Config struct {
	// NormalMaxDimension and NormalQuality apply outside emergency mode.
	NormalMaxDimension int
	NormalQuality      float64

	// EmergencyMaxDimension and EmergencyQuality apply in emergency mode.
	EmergencyMaxDimension int
	EmergencyQuality      float64

	Logger *slog.Logger
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		NormalMaxDimension:    1200,
		NormalQuality:         0.8,
		EmergencyMaxDimension: 800,
		EmergencyQuality:      0.6,
		Logger:                slog.Default(),
	}
}

// Controller applies the deterministic condition-to-level mapping. A strategy
// switch deactivates the previous technique set and activates the new one as
// one atomic swap; readers never observe a partial set.
type Controller struct {
	monitor *monitor.Monitor
	cfg     Config

	mu       sync.RWMutex
	strategy fieldsync.AdaptationStrategy

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a controller. The initial strategy is derived from the
// monitor's current condition.
func New(m *monitor.Monitor, cfg Config) *Controller {
	if cfg.NormalMaxDimension <= 0 {
		cfg.NormalMaxDimension = 1200
	}
	if cfg.NormalQuality <= 0 {
		cfg.NormalQuality = 0.8
	}
	if cfg.EmergencyMaxDimension <= 0 {
		cfg.EmergencyMaxDimension = 800
	}
	if cfg.EmergencyQuality <= 0 {
		cfg.EmergencyQuality = 0.6
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	level := fieldsync.LevelForCondition(m.Current().Quality, m.BatteryOverride())
	return &Controller{
		monitor:  m,
		cfg:      cfg,
		strategy: fieldsync.StrategyForLevel(level),
	}
}

// Start subscribes to condition transitions and re-evaluates the level on
// each one. Subscribe must happen before Start returns so no transition is
// missed.
func (c *Controller) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	changes := c.monitor.Subscribe()

	// The monitor may have sampled between New and Start; those transitions
	// predate the subscription and will never be redelivered, so re-derive
	// the level from the live condition before consuming events.
	c.apply(fieldsync.LevelForCondition(c.monitor.Current().Quality, c.monitor.BatteryOverride()))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case change, ok := <-changes:
				if !ok {
					return
				}
				c.apply(fieldsync.LevelForCondition(change.Current, change.BatteryOverride))
			}
		}
	}()
}

// Stop halts level re-evaluation. The last strategy stays in effect.
func (c *Controller) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	c.wg.Wait()
}

// apply swaps in the strategy for level. Re-applying the current level is a
// no-op so repeated transitions inside one tier do not churn.
func (c *Controller) apply(level fieldsync.OptimizationLevel) {
	c.mu.Lock()
	previous := c.strategy.Level
	if previous == level {
		c.mu.Unlock()
		return
	}
	c.strategy = fieldsync.StrategyForLevel(level)
	active := len(c.strategy.Techniques)
	c.mu.Unlock()

	metrics.OptimizationLevelChanges.Inc()

	c.cfg.Logger.Info("optimization level changed",
		slog.String("previous", string(previous)),
		slog.String("current", string(level)),
		slog.Int("active_techniques", active),
	)
}

// Strategy returns the strategy currently in effect.
func (c *Controller) Strategy() fieldsync.AdaptationStrategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.strategy
}

// Level returns the active optimization level.
func (c *Controller) Level() fieldsync.OptimizationLevel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.strategy.Level
}

// Active reports whether a technique is in the active set.
func (c *Controller) Active(t fieldsync.OptimizationTechnique) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.strategy.Active(t)
}

// CompressionParams returns the capture parameters for the active level.
// Emergency mode trades quality for size; every other level captures at the
// normal settings.
func (c *Controller) CompressionParams() fieldsync.CompressionParams {
	if c.Level() == fieldsync.LevelEmergency {
		return fieldsync.CompressionParams{
			MaxDimension: c.cfg.EmergencyMaxDimension,
			Quality:      c.cfg.EmergencyQuality,
		}
	}
	return fieldsync.CompressionParams{
		MaxDimension: c.cfg.NormalMaxDimension,
		Quality:      c.cfg.NormalQuality,
	}
}

// SyncBatchSize returns how many entries the worker should drain per cycle
// under the active level.
func (c *Controller) SyncBatchSize() int {
	switch c.Level() {
	case fieldsync.LevelMinimal:
		return 20
	case fieldsync.LevelModerate:
		return 10
	case fieldsync.LevelAggressive:
		return 5
	default:
		return 1
	}
}

// PauseBackgroundWork reports whether background drains should stop entirely.
func (c *Controller) PauseBackgroundWork() bool {
	return c.Active(fieldsync.TechniquePauseBackgroundWork)
}
