// Package workflow coordinates inspection lifecycle operations: record
// creation from templates, item updates with evidence, completion, and the
// queueing of every mutation for background delivery.
//
// Local durability is unconditional. Every operation persists to the device
// store first; enqueueing for remote delivery is best-effort and its failure
// never rolls the local write back.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/fieldsync"
)

// Kicker requests an immediate outbox drain. The sync worker implements it;
// tests stub it.
type Kicker interface {
	Kick()
}

// OnlineChecker reports the current connectivity signal.
type OnlineChecker interface {
	Online() bool
}

// ConditionReporter exposes the live network and battery snapshot stamped
// into new record metadata. The monitor implements it; online checkers that
// do not are simply not asked.
type ConditionReporter interface {
	Current() fieldsync.NetworkCondition
	Battery() fieldsync.BatterySample
}

// Config holds coordinator tuning. Zero fields take the documented defaults.
type Config struct {
	// AutoSaveInterval is the cadence of the periodic persist of the active
	// record.
	AutoSaveInterval time.Duration

	// DeviceID identifies this device in record metadata.
	DeviceID string

	Logger *slog.Logger
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		AutoSaveInterval: 30 * time.Second,
		Logger:           slog.Default(),
	}
}

// Coordinator drives one inspection at a time. It is the sole in-memory owner
// of the active record; all mutations funnel through its mutex, so concurrent
// callers serialize and the progress invariant holds after every operation.
type Coordinator struct {
	store     fieldsync.InspectionStore
	media     fieldsync.MediaStore
	queue     fieldsync.SyncQueue
	templates fieldsync.TemplateProvider
	identity  fieldsync.IdentityResolver
	callbacks fieldsync.Callbacks
	kicker    Kicker
	online    OnlineChecker
	cfg       Config

	mu     sync.Mutex
	active *fieldsync.InspectionRecord

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a coordinator. kicker and online may be nil; callbacks fields
// may be nil.
func New(store fieldsync.InspectionStore, media fieldsync.MediaStore, queue fieldsync.SyncQueue,
	templates fieldsync.TemplateProvider, identity fieldsync.IdentityResolver,
	callbacks fieldsync.Callbacks, kicker Kicker, online OnlineChecker, cfg Config) *Coordinator {
	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		store:     store,
		media:     media,
		queue:     queue,
		templates: templates,
		identity:  identity,
		callbacks: callbacks,
		kicker:    kicker,
		online:    online,
		cfg:       cfg,
	}
}

// Start launches the auto-save loop.
func (c *Coordinator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.autoSaveLoop(runCtx)
}

// Stop halts the auto-save loop after a final persist of the active record.
func (c *Coordinator) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		if err := c.persist(context.Background(), c.active); err != nil {
			c.cfg.Logger.Error("final auto-save failed",
				slog.String("inspection_id", c.active.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// CreateInspection builds a new draft record from the property's template,
// persists it, and queues it for delivery.
// Returns EINVALID when propertyID is empty or the template has no items.
func (c *Coordinator) CreateInspection(ctx context.Context, propertyID string) (*fieldsync.InspectionRecord, error) {
	if propertyID == "" {
		return nil, c.fail(fieldsync.Invalid("property id is required"))
	}

	items, err := c.templates.Template(ctx, propertyID)
	if err != nil {
		return nil, c.fail(err)
	}
	if len(items) == 0 {
		return nil, c.fail(fieldsync.Invalid("template for property %s has no items", propertyID))
	}

	now := time.Now()
	record := &fieldsync.InspectionRecord{
		ID:         uuid.New(),
		PropertyID: propertyID,
		Status:     fieldsync.InspectionStatusDraft,
		Items:      items,
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata: fieldsync.RecordMetadata{
			DeviceID: c.cfg.DeviceID,
		},
	}
	if c.identity != nil {
		if inspectorID, err := c.identity.InspectorID(ctx); err == nil {
			record.Metadata.InspectorID = inspectorID
		}
	}
	if reporter, ok := c.online.(ConditionReporter); ok {
		record.Metadata.NetworkQuality = reporter.Current().Quality
		record.Metadata.BatteryLevel = reporter.Battery().Level
	}
	record.RecalculateProgress()
	record.SyncStatus.PendingChanges = true

	if err := c.store.Put(ctx, record); err != nil {
		return nil, c.fail(err)
	}

	c.mu.Lock()
	c.active = record
	c.mu.Unlock()

	c.enqueue(ctx, fieldsync.OpCreateInspection, record, nil, nil)

	c.cfg.Logger.Info("inspection created",
		slog.String("inspection_id", record.ID.String()),
		slog.String("property_id", propertyID),
		slog.Int("items", len(items)),
	)
	return record, nil
}

// LoadInspection makes a stored record the active one. The read is local
// only; no remote fetch happens here.
// Returns ENOTFOUND if the record does not exist on the device.
func (c *Coordinator) LoadInspection(ctx context.Context, id uuid.UUID) (*fieldsync.InspectionRecord, error) {
	record, err := c.store.FindByID(ctx, id)
	if err != nil {
		return nil, c.fail(err)
	}

	c.mu.Lock()
	c.active = record
	c.mu.Unlock()

	c.cfg.Logger.Info("inspection loaded",
		slog.String("inspection_id", id.String()),
		slog.String("status", string(record.Status)),
	)
	return record, nil
}

// UpdateItem merges an update into one checklist item, recomputes progress,
// persists, and queues the mutation. Re-applying the same update is
// idempotent at the record level; each call still queues its own entry.
// Returns ENOTFOUND for an unknown item, EINVALID when the inspection is no
// longer editable.
func (c *Coordinator) UpdateItem(ctx context.Context, inspectionID uuid.UUID, itemID string, update fieldsync.ItemUpdate) (*fieldsync.InspectionRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, err := c.lockedRecord(ctx, inspectionID)
	if err != nil {
		return nil, c.fail(err)
	}
	if !record.Status.IsEditable() {
		return nil, c.fail(fieldsync.Invalid("inspection %s is no longer editable", inspectionID))
	}

	item := record.Item(itemID)
	if item == nil {
		return nil, c.fail(fieldsync.NotFound("item %s not found in inspection %s", itemID, inspectionID))
	}

	updateFields, err := toMap(update)
	if err != nil {
		return nil, c.fail(fieldsync.Internal("encoding item update", err))
	}

	applyUpdate(item, update)
	if record.Status == fieldsync.InspectionStatusDraft {
		record.Status = fieldsync.InspectionStatusInProgress
	}
	record.RecalculateProgress()
	record.UpdatedAt = time.Now()
	record.SyncStatus.PendingChanges = true

	if err := c.persist(ctx, record); err != nil {
		return nil, c.fail(err)
	}

	c.enqueue(ctx, fieldsync.OpUpdateItem, record, map[string]any{
		"itemId": itemID,
		"update": updateFields,
	}, nil)

	if c.callbacks.OnProgress != nil {
		c.callbacks.OnProgress(record.Progress.Percentage)
	}

	c.cfg.Logger.Debug("item updated",
		slog.String("inspection_id", inspectionID.String()),
		slog.String("item_id", itemID),
		slog.Int("progress", record.Progress.Percentage),
	)
	return record, nil
}

// AttachEvidence captures raw media for an item: the payload is compressed
// into the media store and the resulting id appended to the item's evidence
// through the normal update path.
// Returns ECAPTURE when compression fails; the item is left untouched.
func (c *Coordinator) AttachEvidence(ctx context.Context, inspectionID uuid.UUID, itemID string, raw []byte, evidenceType fieldsync.EvidenceType) (*fieldsync.InspectionRecord, error) {
	mediaID, err := c.media.Store(ctx, raw, inspectionID, itemID)
	if err != nil {
		return nil, c.fail(err)
	}

	update := fieldsync.ItemUpdate{}
	switch evidenceType {
	case fieldsync.EvidenceTypeVideo:
		update.AddVideoIDs = []string{mediaID}
	default:
		update.AddPhotoIDs = []string{mediaID}
	}
	return c.UpdateItem(ctx, inspectionID, itemID, update)
}

// CaptureEvidence reads raw media from a capture device and attaches it
// through the normal evidence path.
// Returns ECAPTURE when the device read fails; nothing is stored or queued.
func (c *Coordinator) CaptureEvidence(ctx context.Context, inspectionID uuid.UUID, itemID string, device fieldsync.CaptureDevice, evidenceType fieldsync.EvidenceType) (*fieldsync.InspectionRecord, error) {
	raw, err := device.Capture(ctx)
	if err != nil {
		return nil, c.fail(fieldsync.Capture("reading from capture device", err))
	}
	return c.AttachEvidence(ctx, inspectionID, itemID, raw, evidenceType)
}

// CompleteInspection transitions the record to completed and queues the
// completion at elevated priority. If the device is online the outbox is
// kicked so the completion ships immediately.
// Returns EINVALID when the transition is not allowed (completion is exactly
// once).
func (c *Coordinator) CompleteInspection(ctx context.Context, inspectionID uuid.UUID) (*fieldsync.InspectionRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, err := c.lockedRecord(ctx, inspectionID)
	if err != nil {
		return nil, c.fail(err)
	}
	if !record.Status.CanTransitionTo(fieldsync.InspectionStatusCompleted) {
		return nil, c.fail(fieldsync.Invalid("inspection %s cannot transition from %s to completed", inspectionID, record.Status))
	}

	record.Status = fieldsync.InspectionStatusCompleted
	record.RecalculateProgress()
	record.UpdatedAt = time.Now()
	record.SyncStatus.PendingChanges = true

	if err := c.persist(ctx, record); err != nil {
		return nil, c.fail(err)
	}

	c.enqueue(ctx, fieldsync.OpCompleteInspection, record, nil,
		&fieldsync.EnqueueOptions{Priority: fieldsync.PriorityComplete})

	if c.kicker != nil && (c.online == nil || c.online.Online()) {
		c.kicker.Kick()
	}

	if c.callbacks.OnComplete != nil {
		c.callbacks.OnComplete(record)
	}

	c.cfg.Logger.Info("inspection completed",
		slog.String("inspection_id", inspectionID.String()),
		slog.Int("progress", record.Progress.Percentage),
	)
	return record, nil
}

// SyncStatus reports the record's delivery state together with live queue
// depth for the inspection.
func (c *Coordinator) SyncStatus(ctx context.Context, inspectionID uuid.UUID) (*fieldsync.SyncStatus, int, error) {
	record, err := c.store.FindByID(ctx, inspectionID)
	if err != nil {
		return nil, 0, err
	}
	pending, err := c.queue.PendingCount(ctx, inspectionID)
	if err != nil {
		return nil, 0, err
	}
	status := record.SyncStatus
	status.PendingChanges = pending > 0
	return &status, pending, nil
}

// RetryDeadLettered puts an inspection's parked entries back into the retry
// cycle and kicks the outbox.
func (c *Coordinator) RetryDeadLettered(ctx context.Context, inspectionID uuid.UUID) (int, error) {
	n, err := c.queue.RequeueDeadLettered(ctx, inspectionID)
	if err != nil {
		return 0, c.fail(err)
	}
	if n > 0 && c.kicker != nil {
		c.kicker.Kick()
	}
	return n, nil
}

// DeleteInspection removes a record, its media, and leaves its queue history
// intact for audit.
func (c *Coordinator) DeleteInspection(ctx context.Context, inspectionID uuid.UUID) error {
	if err := c.store.Delete(ctx, inspectionID); err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	if c.active != nil && c.active.ID == inspectionID {
		c.active = nil
	}
	c.mu.Unlock()

	c.cfg.Logger.Info("inspection deleted", slog.String("inspection_id", inspectionID.String()))
	return nil
}

// Active returns the record currently being worked on, or nil.
func (c *Coordinator) Active() *fieldsync.InspectionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// persist writes a record through the store, first folding in the delivery
// outcome the sync worker may have persisted since this copy was loaded.
// LastSyncTime, RetryCount, and ConflictsDetected belong to the worker; a
// stale in-memory copy must not erase them.
func (c *Coordinator) persist(ctx context.Context, record *fieldsync.InspectionRecord) error {
	stored, err := c.store.FindByID(ctx, record.ID)
	switch {
	case err == nil:
		pending := record.SyncStatus.PendingChanges
		record.SyncStatus = stored.SyncStatus
		record.SyncStatus.PendingChanges = pending
	case fieldsync.ErrorCode(err) != fieldsync.ENOTFOUND:
		return err
	}
	return c.store.Put(ctx, record)
}

// lockedRecord returns the active record when it matches, falling back to
// the store. Callers must hold c.mu.
func (c *Coordinator) lockedRecord(ctx context.Context, inspectionID uuid.UUID) (*fieldsync.InspectionRecord, error) {
	if c.active != nil && c.active.ID == inspectionID {
		return c.active, nil
	}
	record, err := c.store.FindByID(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	c.active = record
	return record, nil
}

// enqueue appends an outbox entry carrying the mutation fields plus the full
// record snapshot. Enqueue failures are reported, never propagated: the local
// write already committed.
func (c *Coordinator) enqueue(ctx context.Context, kind fieldsync.OperationKind, record *fieldsync.InspectionRecord, fields map[string]any, opts *fieldsync.EnqueueOptions) {
	recordMap, err := toMap(record)
	if err != nil {
		c.cfg.Logger.Error("failed to encode record for queueing",
			slog.String("kind", string(kind)),
			slog.String("inspection_id", record.ID.String()),
			slog.String("error", err.Error()),
		)
		if c.callbacks.OnError != nil {
			c.callbacks.OnError(fieldsync.Internal("encoding record for queueing", err))
		}
		return
	}

	payload := map[string]any{
		"record":    recordMap,
		"updatedAt": record.UpdatedAt.UnixMilli(),
	}
	for k, v := range fields {
		payload[k] = v
	}

	if _, err := c.queue.Enqueue(ctx, kind, record.ID, payload, opts); err != nil {
		c.cfg.Logger.Error("failed to queue operation",
			slog.String("kind", string(kind)),
			slog.String("inspection_id", record.ID.String()),
			slog.String("error", err.Error()),
		)
		if c.callbacks.OnError != nil {
			c.callbacks.OnError(fmt.Errorf("queueing %s: %w", kind, err))
		}
	}
}

// autoSaveLoop persists the active record on a fixed cadence so an abrupt
// shutdown loses at most one interval of work.
func (c *Coordinator) autoSaveLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.AutoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			record := c.active
			if record != nil {
				if err := c.persist(ctx, record); err != nil {
					c.cfg.Logger.Error("auto-save failed",
						slog.String("inspection_id", record.ID.String()),
						slog.String("error", err.Error()),
					)
				}
			}
			c.mu.Unlock()
		}
	}
}

// fail routes an error through the error callback before returning it.
func (c *Coordinator) fail(err error) error {
	if c.callbacks.OnError != nil {
		c.callbacks.OnError(err)
	}
	return err
}

// applyUpdate merges an update into an item, last write wins per field.
func applyUpdate(item *fieldsync.InspectionItem, update fieldsync.ItemUpdate) {
	if update.Status != nil {
		item.Status = *update.Status
	}
	if update.Priority != nil {
		item.Priority = *update.Priority
	}
	if update.Notes != nil {
		item.Evidence.Notes = *update.Notes
	}
	item.Evidence.PhotoIDs = appendMissing(item.Evidence.PhotoIDs, update.AddPhotoIDs)
	item.Evidence.VideoIDs = appendMissing(item.Evidence.VideoIDs, update.AddVideoIDs)
	// The capture timestamp is set once; later edits move record.UpdatedAt,
	// so re-applying an identical update leaves the document unchanged.
	if item.Evidence.Timestamp == nil &&
		(len(update.AddPhotoIDs) > 0 || len(update.AddVideoIDs) > 0 || update.Notes != nil) {
		now := time.Now()
		item.Evidence.Timestamp = &now
	}
}

// appendMissing appends ids not already present, keeping attachment order.
func appendMissing(have, add []string) []string {
	for _, id := range add {
		exists := false
		for _, existing := range have {
			if existing == id {
				exists = true
				break
			}
		}
		if !exists {
			have = append(have, id)
		}
	}
	return have
}

// toMap round-trips a value through JSON into the generic payload form.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
