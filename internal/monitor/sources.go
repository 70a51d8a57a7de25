package monitor

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/fieldsync"
)

// Compile-time interface check
var _ fieldsync.NetworkInfoSource = (*ProbeSource)(nil)

// ProbeSource measures connectivity by probing a known endpoint: a small GET
// yields both a round-trip estimate and a downlink estimate from the transfer
// rate. It serves platforms without a native connectivity API.
type ProbeSource struct {
	url      string
	saveData bool
	client   *http.Client
	changes  chan struct{}
}

// NewProbeSource creates a probe against url. saveData reflects the user's
// reduced-data preference, which no probe can discover.
func NewProbeSource(url string, saveData bool, timeout time.Duration) *ProbeSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ProbeSource{
		url:      url,
		saveData: saveData,
		client:   &http.Client{Timeout: timeout},
		changes:  make(chan struct{}, 1),
	}
}

// Sample probes the endpoint. Any transport failure reads as offline.
func (s *ProbeSource) Sample(ctx context.Context) (fieldsync.NetworkSample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fieldsync.NetworkSample{}, err
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return fieldsync.NetworkSample{Online: false, SaveData: s.saveData}, nil
	}
	defer resp.Body.Close()
	rtt := time.Since(start)

	transferred, _ := io.Copy(io.Discard, resp.Body)
	elapsed := time.Since(start)

	sample := fieldsync.NetworkSample{
		Online:    true,
		RTTMillis: float64(rtt.Milliseconds()),
		SaveData:  s.saveData,
	}
	if elapsed > 0 && transferred > 0 {
		sample.DownlinkMbps = float64(transferred*8) / elapsed.Seconds() / 1e6
	}
	return sample, nil
}

// Changes returns the push channel. The probe has no platform signal to
// forward; Notify feeds it when an external integration reports a change.
func (s *ProbeSource) Changes() <-chan struct{} {
	return s.changes
}

// Notify signals a connectivity change so the monitor re-samples immediately.
func (s *ProbeSource) Notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Compile-time interface check
var _ fieldsync.BatterySource = (*SysfsBatterySource)(nil)

// SysfsBatterySource reads battery state from the Linux power-supply sysfs
// tree.
type SysfsBatterySource struct {
	path string
}

// NewSysfsBatterySource creates a source for the given supply directory,
// e.g. /sys/class/power_supply/BAT0.
func NewSysfsBatterySource(path string) *SysfsBatterySource {
	return &SysfsBatterySource{path: path}
}

// Sample reads capacity and charging status.
func (s *SysfsBatterySource) Sample(ctx context.Context) (fieldsync.BatterySample, error) {
	capacityRaw, err := os.ReadFile(filepath.Join(s.path, "capacity"))
	if err != nil {
		return fieldsync.BatterySample{}, err
	}
	capacity, err := strconv.Atoi(strings.TrimSpace(string(capacityRaw)))
	if err != nil {
		return fieldsync.BatterySample{}, err
	}

	sample := fieldsync.BatterySample{Level: float64(capacity) / 100}
	if statusRaw, err := os.ReadFile(filepath.Join(s.path, "status")); err == nil {
		status := strings.TrimSpace(string(statusRaw))
		sample.Charging = status == "Charging" || status == "Full"
	}
	return sample, nil
}

// Compile-time interface check
var _ fieldsync.BatterySource = (*StaticBatterySource)(nil)

// StaticBatterySource reports a fixed reading, for platforms without battery
// telemetry (mains-powered kiosks) and for tests.
type StaticBatterySource struct {
	Level    float64
	Charging bool
}

func (s *StaticBatterySource) Sample(ctx context.Context) (fieldsync.BatterySample, error) {
	return fieldsync.BatterySample{Level: s.Level, Charging: s.Charging}, nil
}
