package monitor

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/fieldsync"
	"github.com/dukerupert/fieldsync/mock"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		sample fieldsync.NetworkSample
		want   fieldsync.NetworkQuality
	}{
		{"offline", fieldsync.NetworkSample{Online: false, DownlinkMbps: 50}, fieldsync.NetworkCritical},
		{"near zero bandwidth", fieldsync.NetworkSample{Online: true, DownlinkMbps: 0.3, RTTMillis: 40}, fieldsync.NetworkCritical},
		{"fast and low latency", fieldsync.NetworkSample{Online: true, DownlinkMbps: 25, RTTMillis: 20}, fieldsync.NetworkExcellent},
		{"fast but high latency", fieldsync.NetworkSample{Online: true, DownlinkMbps: 25, RTTMillis: 120}, fieldsync.NetworkGood},
		{"moderate", fieldsync.NetworkSample{Online: true, DownlinkMbps: 4, RTTMillis: 100}, fieldsync.NetworkGood},
		{"slow", fieldsync.NetworkSample{Online: true, DownlinkMbps: 1, RTTMillis: 300}, fieldsync.NetworkPoor},
		{"save data caps at good", fieldsync.NetworkSample{Online: true, DownlinkMbps: 25, RTTMillis: 20, SaveData: true}, fieldsync.NetworkGood},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.sample))
		})
	}
}

func TestMonitor_TransitionEvents(t *testing.T) {
	source := mock.NewNetworkInfoSource(fieldsync.NetworkSample{Online: true, DownlinkMbps: 25, RTTMillis: 20})
	battery := mock.NewBatterySource(fieldsync.BatterySample{Level: 0.9})

	m := New(source, battery, Config{
		PollInterval: time.Hour, // push-driven in this test
		Logger:       quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	assert.Equal(t, fieldsync.NetworkExcellent, m.Current().Quality)
	assert.True(t, m.Online())

	events := m.Subscribe()

	// Repeated samples inside the same tier are debounced
	source.SetSample(fieldsync.NetworkSample{Online: true, DownlinkMbps: 30, RTTMillis: 15})
	select {
	case change := <-events:
		t.Fatalf("unexpected event for same-tier sample: %+v", change)
	case <-time.After(200 * time.Millisecond):
	}

	// A tier change produces exactly one event
	source.SetSample(fieldsync.NetworkSample{Online: true, DownlinkMbps: 1, RTTMillis: 400})
	select {
	case change := <-events:
		assert.Equal(t, fieldsync.NetworkExcellent, change.Previous)
		assert.Equal(t, fieldsync.NetworkPoor, change.Current)
		assert.True(t, change.Online)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a transition event")
	}
}

func TestMonitor_OfflineIsCritical(t *testing.T) {
	source := mock.NewNetworkInfoSource(fieldsync.NetworkSample{Online: true, DownlinkMbps: 25, RTTMillis: 20})
	m := New(source, mock.NewBatterySource(fieldsync.BatterySample{Level: 1}), Config{
		PollInterval: time.Hour,
		Logger:       quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	events := m.Subscribe()
	source.SetSample(fieldsync.NetworkSample{Online: false})

	select {
	case change := <-events:
		assert.Equal(t, fieldsync.NetworkCritical, change.Current)
		assert.False(t, change.Online)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a transition event")
	}
	assert.False(t, m.Online())
}

func TestMonitor_BatteryOverride(t *testing.T) {
	source := mock.NewNetworkInfoSource(fieldsync.NetworkSample{Online: true, DownlinkMbps: 25, RTTMillis: 20})
	battery := mock.NewBatterySource(fieldsync.BatterySample{Level: 0.9})

	m := New(source, battery, Config{
		PollInterval:         time.Hour,
		BatteryOverrideLevel: 0.15,
		Logger:               quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	assert.False(t, m.BatteryOverride())

	events := m.Subscribe()

	// Battery drop below the threshold flips the override even though the
	// tier is unchanged
	battery.SetSample(fieldsync.BatterySample{Level: 0.10})
	source.SetSample(fieldsync.NetworkSample{Online: true, DownlinkMbps: 26, RTTMillis: 20})

	select {
	case change := <-events:
		assert.True(t, change.BatteryOverride)
		assert.Equal(t, fieldsync.NetworkExcellent, change.Current)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an override transition event")
	}
	assert.True(t, m.BatteryOverride())
}

func TestMonitor_BatterySnapshot(t *testing.T) {
	source := mock.NewNetworkInfoSource(fieldsync.NetworkSample{Online: true, DownlinkMbps: 25, RTTMillis: 20})
	battery := mock.NewBatterySource(fieldsync.BatterySample{Level: 0.37, Charging: true})

	m := New(source, battery, Config{PollInterval: time.Hour, Logger: quietLogger()})

	// External power is assumed until the first read lands
	assert.InDelta(t, 1.0, m.Battery().Level, 0.001)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	reading := m.Battery()
	assert.InDelta(t, 0.37, reading.Level, 0.001)
	assert.True(t, reading.Charging)
}

func TestMonitor_ChargingSuppressesOverride(t *testing.T) {
	source := mock.NewNetworkInfoSource(fieldsync.NetworkSample{Online: true, DownlinkMbps: 25, RTTMillis: 20})
	battery := mock.NewBatterySource(fieldsync.BatterySample{Level: 0.05, Charging: true})

	m := New(source, battery, Config{PollInterval: time.Hour, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	assert.False(t, m.BatteryOverride())
}

func TestMonitor_Trend(t *testing.T) {
	source := mock.NewNetworkInfoSource(fieldsync.NetworkSample{Online: true, DownlinkMbps: 1, RTTMillis: 400})
	m := New(source, mock.NewBatterySource(fieldsync.BatterySample{Level: 1}), Config{
		PollInterval: time.Hour,
		Logger:       quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	events := m.Subscribe()
	source.SetSample(fieldsync.NetworkSample{Online: true, DownlinkMbps: 25, RTTMillis: 20})
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a transition event")
	}

	assert.Equal(t, "improving", m.Trend())
	assert.Greater(t, m.DownlinkPercentile(90), 1.0)
}
