package mock

import (
	"context"
	"sync"

	"github.com/dukerupert/fieldsync"
)

// Compile-time interface check
var _ fieldsync.NetworkInfoSource = (*NetworkInfoSource)(nil)

// NetworkInfoSource is a mock implementation of fieldsync.NetworkInfoSource.
// SetSample swaps the reading returned by Sample and pushes a change signal,
// which is how tests drive tier transitions.
type NetworkInfoSource struct {
	SampleFn func(ctx context.Context) (fieldsync.NetworkSample, error)

	mu      sync.Mutex
	sample  fieldsync.NetworkSample
	changes chan struct{}
}

// NewNetworkInfoSource creates a source reporting the given initial sample.
func NewNetworkInfoSource(initial fieldsync.NetworkSample) *NetworkInfoSource {
	return &NetworkInfoSource{
		sample:  initial,
		changes: make(chan struct{}, 16),
	}
}

func (s *NetworkInfoSource) Sample(ctx context.Context) (fieldsync.NetworkSample, error) {
	if s.SampleFn != nil {
		return s.SampleFn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample, nil
}

func (s *NetworkInfoSource) Changes() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.changes == nil {
		s.changes = make(chan struct{}, 16)
	}
	return s.changes
}

// SetSample replaces the current reading and signals a connectivity change.
func (s *NetworkInfoSource) SetSample(sample fieldsync.NetworkSample) {
	s.mu.Lock()
	s.sample = sample
	ch := s.changes
	s.mu.Unlock()
	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Compile-time interface check
var _ fieldsync.BatterySource = (*BatterySource)(nil)

// BatterySource is a mock implementation of fieldsync.BatterySource.
type BatterySource struct {
	SampleFn func(ctx context.Context) (fieldsync.BatterySample, error)

	mu     sync.Mutex
	sample fieldsync.BatterySample
}

// NewBatterySource creates a source reporting the given initial sample.
func NewBatterySource(initial fieldsync.BatterySample) *BatterySource {
	return &BatterySource{sample: initial}
}

func (s *BatterySource) Sample(ctx context.Context) (fieldsync.BatterySample, error) {
	if s.SampleFn != nil {
		return s.SampleFn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample, nil
}

// SetSample replaces the current reading.
func (s *BatterySource) SetSample(sample fieldsync.BatterySample) {
	s.mu.Lock()
	s.sample = sample
	s.mu.Unlock()
}
