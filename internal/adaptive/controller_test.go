package adaptive

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/fieldsync"
	"github.com/dukerupert/fieldsync/internal/monitor"
	"github.com/dukerupert/fieldsync/mock"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startedMonitor(t *testing.T, source *mock.NetworkInfoSource, battery *mock.BatterySource) *monitor.Monitor {
	t.Helper()
	m := monitor.New(source, battery, monitor.Config{
		PollInterval: time.Hour,
		Logger:       quietLogger(),
	})
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)
	return m
}

func TestController_InitialLevel(t *testing.T) {
	source := mock.NewNetworkInfoSource(fieldsync.NetworkSample{Online: true, DownlinkMbps: 25, RTTMillis: 20})
	m := startedMonitor(t, source, mock.NewBatterySource(fieldsync.BatterySample{Level: 1}))

	c := New(m, Config{Logger: quietLogger()})
	assert.Equal(t, fieldsync.LevelMinimal, c.Level())
	assert.True(t, c.Active(fieldsync.TechniqueAggressiveCaching))
	assert.False(t, c.Active(fieldsync.TechniquePauseBackgroundWork))
}

func TestController_ConstructedBeforeMonitorStarts(t *testing.T) {
	source := mock.NewNetworkInfoSource(fieldsync.NetworkSample{Online: true, DownlinkMbps: 25, RTTMillis: 20})
	m := monitor.New(source, mock.NewBatterySource(fieldsync.BatterySample{Level: 1}), monitor.Config{
		PollInterval: time.Hour,
		Logger:       quietLogger(),
	})

	// Daemon wiring builds the controller before the monitor takes its
	// first sample, so the initial level reflects the pre-sample default.
	c := New(m, Config{Logger: quietLogger()})
	assert.Equal(t, fieldsync.LevelEmergency, c.Level())

	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Stop)

	// The first sample's transition fired before any subscription existed;
	// Start must still converge on the live condition.
	c.Start(context.Background())
	defer c.Stop()

	assert.Equal(t, fieldsync.LevelMinimal, c.Level())
	assert.Equal(t, 20, c.SyncBatchSize())
	params := c.CompressionParams()
	assert.Equal(t, 1200, params.MaxDimension)
}

func TestController_FollowsTransitions(t *testing.T) {
	source := mock.NewNetworkInfoSource(fieldsync.NetworkSample{Online: true, DownlinkMbps: 25, RTTMillis: 20})
	m := startedMonitor(t, source, mock.NewBatterySource(fieldsync.BatterySample{Level: 1}))

	c := New(m, Config{Logger: quietLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop()

	source.SetSample(fieldsync.NetworkSample{Online: true, DownlinkMbps: 1, RTTMillis: 400})

	require.Eventually(t, func() bool {
		return c.Level() == fieldsync.LevelAggressive
	}, 2*time.Second, 10*time.Millisecond)

	// The full aggressive set is active at once
	s := c.Strategy()
	assert.Len(t, s.Techniques, 8)
	assert.True(t, s.Active(fieldsync.TechniqueImageCompression))

	source.SetSample(fieldsync.NetworkSample{Online: false})
	require.Eventually(t, func() bool {
		return c.Level() == fieldsync.LevelEmergency
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, c.PauseBackgroundWork())
}

func TestController_CompressionParams(t *testing.T) {
	source := mock.NewNetworkInfoSource(fieldsync.NetworkSample{Online: true, DownlinkMbps: 25, RTTMillis: 20})
	m := startedMonitor(t, source, mock.NewBatterySource(fieldsync.BatterySample{Level: 1}))

	c := New(m, Config{Logger: quietLogger()})
	params := c.CompressionParams()
	assert.Equal(t, 1200, params.MaxDimension)
	assert.InDelta(t, 0.8, params.Quality, 0.001)

	// Emergency trades quality for size
	offline := mock.NewNetworkInfoSource(fieldsync.NetworkSample{Online: false})
	m2 := startedMonitor(t, offline, mock.NewBatterySource(fieldsync.BatterySample{Level: 1}))
	c2 := New(m2, Config{Logger: quietLogger()})
	params = c2.CompressionParams()
	assert.Equal(t, 800, params.MaxDimension)
	assert.InDelta(t, 0.6, params.Quality, 0.001)
}

func TestController_SyncBatchSize(t *testing.T) {
	tests := []struct {
		sample fieldsync.NetworkSample
		want   int
	}{
		{fieldsync.NetworkSample{Online: true, DownlinkMbps: 25, RTTMillis: 20}, 20},
		{fieldsync.NetworkSample{Online: true, DownlinkMbps: 4, RTTMillis: 100}, 10},
		{fieldsync.NetworkSample{Online: true, DownlinkMbps: 1, RTTMillis: 400}, 5},
		{fieldsync.NetworkSample{Online: false}, 1},
	}
	for _, tt := range tests {
		source := mock.NewNetworkInfoSource(tt.sample)
		m := startedMonitor(t, source, mock.NewBatterySource(fieldsync.BatterySample{Level: 1}))
		c := New(m, Config{Logger: quietLogger()})
		assert.Equal(t, tt.want, c.SyncBatchSize())
	}
}
