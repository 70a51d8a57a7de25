// Package syncer drains the persisted outbox against the remote delivery
// contract. The worker pool is the only component that transitions queue
// entries, and it only runs drains while the device is online.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dukerupert/fieldsync"
	"github.com/dukerupert/fieldsync/internal/adaptive"
	"github.com/dukerupert/fieldsync/internal/metrics"
	"github.com/dukerupert/fieldsync/internal/monitor"
)

// Config holds worker pool tuning. Zero fields take the documented defaults.
type Config struct {
	// WorkerCount is the number of drain goroutines.
	WorkerCount int

	// PollInterval is the idle cadence between drain attempts.
	PollInterval time.Duration

	// DeliveryTimeout bounds a single remote submit.
	DeliveryTimeout time.Duration

	// RateLimit caps deliveries per second across all workers.
	RateLimit rate.Limit

	// ShutdownTimeout bounds graceful stop.
	ShutdownTimeout time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:     2,
		PollInterval:    5 * time.Second,
		DeliveryTimeout: 30 * time.Second,
		RateLimit:       rate.Limit(10),
		ShutdownTimeout: 10 * time.Second,
		Logger:          slog.Default(),
	}
}

// Syncer owns background delivery. Workers claim entries one at a time, so a
// claimed entry is visible to exactly one worker; per-inspection ordering is
// enforced by the queue's claim semantics, not here.
type Syncer struct {
	queue      fieldsync.SyncQueue
	remote     fieldsync.Remote
	store      fieldsync.InspectionStore
	media      fieldsync.MediaStore
	blobs      fieldsync.BlobStorage
	monitor    *monitor.Monitor
	controller *adaptive.Controller
	limiter    *rate.Limiter
	cfg        Config

	kick   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// New creates a syncer. Media uploads are skipped when blobs is nil.
func New(queue fieldsync.SyncQueue, remote fieldsync.Remote, store fieldsync.InspectionStore,
	media fieldsync.MediaStore, blobs fieldsync.BlobStorage,
	m *monitor.Monitor, controller *adaptive.Controller, cfg Config) *Syncer {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = rate.Limit(10)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Syncer{
		queue:      queue,
		remote:     remote,
		store:      store,
		media:      media,
		blobs:      blobs,
		monitor:    m,
		controller: controller,
		limiter:    rate.NewLimiter(cfg.RateLimit, 1),
		cfg:        cfg,
		kick:       make(chan struct{}, 1),
	}
}

// Start launches the worker goroutines.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return fmt.Errorf("syncer already started")
	}
	workerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	for i := 0; i < s.cfg.WorkerCount; i++ {
		s.wg.Add(1)
		workerID := fmt.Sprintf("worker-%d", i+1)
		go s.worker(workerCtx, workerID)
	}

	s.cfg.Logger.Info("syncer started",
		slog.Int("worker_count", s.cfg.WorkerCount),
		slog.Duration("poll_interval", s.cfg.PollInterval),
	)
	return nil
}

// Stop gracefully stops the workers.
func (s *Syncer) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return fmt.Errorf("syncer not started")
	}
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	s.cfg.Logger.Info("stopping syncer")
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cfg.Logger.Info("syncer stopped gracefully")
		return nil
	case <-time.After(s.cfg.ShutdownTimeout):
		s.cfg.Logger.Warn("syncer shutdown timeout",
			slog.Duration("timeout", s.cfg.ShutdownTimeout),
		)
		return fmt.Errorf("shutdown timeout after %v", s.cfg.ShutdownTimeout)
	}
}

// Kick requests an out-of-band drain, used when connectivity returns or a
// high-priority entry lands. Non-blocking; a pending kick coalesces.
func (s *Syncer) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// worker is the main drain loop. Each wakeup drains up to the adaptive batch
// size, then sleeps until the next tick or kick.
func (s *Syncer) worker(ctx context.Context, workerID string) {
	defer s.wg.Done()

	s.cfg.Logger.Debug("worker started", slog.String("worker_id", workerID))

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.cfg.Logger.Debug("worker stopping", slog.String("worker_id", workerID))
			return
		case <-ticker.C:
			s.drain(ctx, workerID)
		case <-s.kick:
			s.drain(ctx, workerID)
		}
	}
}

// drain claims and delivers entries until the batch budget is spent, the
// queue has nothing deliverable, or the device goes offline.
func (s *Syncer) drain(ctx context.Context, workerID string) {
	batch := 1
	if s.controller != nil {
		if s.controller.PauseBackgroundWork() {
			// Emergency mode still delivers, one entry per wakeup, so
			// completed inspections eventually reach the remote side.
			batch = 1
		} else {
			batch = s.controller.SyncBatchSize()
		}
	}

	for i := 0; i < batch; i++ {
		if s.monitor != nil && !s.monitor.Online() {
			return // Offline: leave the outbox alone
		}
		delivered, err := s.deliverNext(ctx, workerID)
		if err != nil {
			s.cfg.Logger.Error("drain failed",
				slog.String("worker_id", workerID),
				slog.String("error", err.Error()),
			)
			return
		}
		if !delivered {
			return
		}
	}
}

// deliverNext claims one entry and runs it to Committed or Failed. Returns
// false when nothing was deliverable.
func (s *Syncer) deliverNext(ctx context.Context, workerID string) (bool, error) {
	entry, err := s.queue.Claim(ctx, workerID)
	if err != nil {
		return false, fmt.Errorf("failed to claim entry: %w", err)
	}
	if entry == nil {
		return false, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		// Shutting down mid-claim: put the entry back in the retry cycle.
		if failErr := s.queue.Fail(ctx, entry.ID, "delivery interrupted"); failErr != nil {
			s.cfg.Logger.Error("failed to release entry",
				slog.String("entry_id", entry.ID.String()),
				slog.String("error", failErr.Error()),
			)
		}
		return false, nil
	}

	return true, s.deliver(ctx, entry)
}

// deliver submits one claimed entry to the remote side.
func (s *Syncer) deliver(ctx context.Context, entry *fieldsync.QueueEntry) error {
	op := operationFromEntry(entry)

	deliveryCtx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	startTime := time.Now()
	err := s.remote.Submit(deliveryCtx, op)
	cancel()
	duration := time.Since(startTime)

	if err != nil {
		if fieldsync.ErrorCode(err) == fieldsync.ECONFLICT {
			return s.resolveConflict(ctx, entry, err)
		}

		s.cfg.Logger.Error("delivery failed",
			slog.String("entry_id", entry.ID.String()),
			slog.String("kind", string(entry.Kind)),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		if failErr := s.queue.Fail(ctx, entry.ID, err.Error()); failErr != nil {
			return fmt.Errorf("failed to record delivery failure: %w", failErr)
		}
		s.recordFailureMetrics(ctx, entry)
		s.bumpRetryCount(ctx, entry)
		return nil
	}

	if err := s.queue.Complete(ctx, entry.ID); err != nil {
		return fmt.Errorf("failed to commit entry: %w", err)
	}
	metrics.OperationsDelivered.WithLabelValues(string(entry.Kind)).Inc()

	s.cfg.Logger.Info("entry delivered",
		slog.String("entry_id", entry.ID.String()),
		slog.String("kind", string(entry.Kind)),
		slog.String("inspection_id", entry.InspectionID.String()),
		slog.Duration("duration", duration),
	)

	s.uploadMedia(ctx, entry)
	s.refreshSyncStatus(ctx, entry, false)
	s.publishQueueDepth(ctx)
	return nil
}

// resolveConflict commits a conflicted entry and flags the record. Retrying
// cannot converge local and remote here; the divergence is surfaced instead.
func (s *Syncer) resolveConflict(ctx context.Context, entry *fieldsync.QueueEntry, cause error) error {
	s.cfg.Logger.Warn("delivery conflict",
		slog.String("entry_id", entry.ID.String()),
		slog.String("inspection_id", entry.InspectionID.String()),
		slog.String("error", cause.Error()),
	)
	if err := s.queue.Complete(ctx, entry.ID); err != nil {
		return fmt.Errorf("failed to commit conflicted entry: %w", err)
	}
	s.refreshSyncStatus(ctx, entry, true)
	return nil
}

// uploadMedia pushes any still-unsynced payloads for the entry's inspection
// to blob storage. Upload failures are logged and left for the next cycle.
func (s *Syncer) uploadMedia(ctx context.Context, entry *fieldsync.QueueEntry) {
	if s.blobs == nil || s.media == nil {
		return
	}
	records, err := s.media.FindUnsynced(ctx, entry.InspectionID)
	if err != nil {
		s.cfg.Logger.Error("failed to list unsynced media",
			slog.String("inspection_id", entry.InspectionID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, record := range records {
		url, err := s.blobs.Upload(ctx, record.ID, record.MimeType, record.Payload)
		if err != nil {
			s.cfg.Logger.Warn("media upload failed",
				slog.String("media_id", record.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.media.MarkSynced(ctx, record.ID); err != nil {
			s.cfg.Logger.Error("failed to mark media synced",
				slog.String("media_id", record.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		metrics.MediaUploaded.Inc()
		s.cfg.Logger.Debug("media uploaded",
			slog.String("media_id", record.ID),
			slog.String("url", url),
		)
	}
}

// refreshSyncStatus updates the record's sync status after a delivery
// outcome. Failures here never affect queue state.
func (s *Syncer) refreshSyncStatus(ctx context.Context, entry *fieldsync.QueueEntry, conflict bool) {
	record, err := s.store.FindByID(ctx, entry.InspectionID)
	if err != nil {
		if fieldsync.ErrorCode(err) != fieldsync.ENOTFOUND {
			s.cfg.Logger.Error("failed to load record for sync status",
				slog.String("inspection_id", entry.InspectionID.String()),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	pending, err := s.queue.PendingCount(ctx, entry.InspectionID)
	if err != nil {
		s.cfg.Logger.Error("failed to count pending entries",
			slog.String("inspection_id", entry.InspectionID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	now := time.Now()
	record.SyncStatus.LastSyncTime = &now
	record.SyncStatus.PendingChanges = pending > 0
	record.SyncStatus.RetryCount = 0
	if conflict {
		record.SyncStatus.ConflictsDetected = true
	}

	if err := s.store.Put(ctx, record); err != nil {
		s.cfg.Logger.Error("failed to persist sync status",
			slog.String("inspection_id", entry.InspectionID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// bumpRetryCount mirrors the entry's retry count onto the record so the
// presentation layer can show delivery trouble.
func (s *Syncer) bumpRetryCount(ctx context.Context, entry *fieldsync.QueueEntry) {
	record, err := s.store.FindByID(ctx, entry.InspectionID)
	if err != nil {
		return
	}
	record.SyncStatus.RetryCount = entry.RetryCount + 1
	if err := s.store.Put(ctx, record); err != nil {
		s.cfg.Logger.Error("failed to persist retry count",
			slog.String("inspection_id", entry.InspectionID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// recordFailureMetrics distinguishes retries from dead-letters by re-reading
// the entry after Fail transitioned it.
func (s *Syncer) recordFailureMetrics(ctx context.Context, entry *fieldsync.QueueEntry) {
	updated, err := s.queue.FindByID(ctx, entry.ID)
	if err != nil {
		metrics.OperationRetries.Inc()
		return
	}
	if updated.State == fieldsync.EntryStateDeadLettered {
		metrics.OperationsDeadLettered.Inc()
		return
	}
	metrics.OperationRetries.Inc()
}

// publishQueueDepth refreshes the depth gauges.
func (s *Syncer) publishQueueDepth(ctx context.Context) {
	stats, err := s.queue.Stats(ctx)
	if err != nil {
		return
	}
	metrics.QueueDepth.WithLabelValues(string(fieldsync.EntryStatePending)).Set(float64(stats.Pending))
	metrics.QueueDepth.WithLabelValues(string(fieldsync.EntryStateInFlight)).Set(float64(stats.InFlight))
	metrics.QueueDepth.WithLabelValues(string(fieldsync.EntryStateCommitted)).Set(float64(stats.Committed))
	metrics.QueueDepth.WithLabelValues(string(fieldsync.EntryStateFailed)).Set(float64(stats.Failed))
	metrics.QueueDepth.WithLabelValues(string(fieldsync.EntryStateDeadLettered)).Set(float64(stats.DeadLettered))
}

// operationFromEntry converts a queue entry payload to the wire form.
func operationFromEntry(entry *fieldsync.QueueEntry) fieldsync.Operation {
	op := fieldsync.Operation{
		Kind:         entry.Kind,
		InspectionID: entry.InspectionID,
		Fields:       entry.Payload,
		Timestamp:    entry.EnqueueTime,
	}
	if itemID, ok := entry.Payload["itemId"].(string); ok {
		op.ItemID = itemID
	}
	return op
}
