package fieldsync

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

// InspectionRecord represents a structured property inspection held on the
// device. The workflow coordinator is the sole in-memory owner of a record;
// the durable store owns the persisted copy.
type InspectionRecord struct {
	ID         uuid.UUID        `json:"id"`
	PropertyID string           `json:"propertyId"`
	Status     InspectionStatus `json:"status"`
	Items      []InspectionItem `json:"items"`
	Progress   Progress         `json:"progress"`
	SyncStatus SyncStatus       `json:"syncStatus"`
	Metadata   RecordMetadata   `json:"metadata"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// InspectionStatus represents the status of an inspection.
type InspectionStatus string

const (
	InspectionStatusDraft      InspectionStatus = "draft"
	InspectionStatusInProgress InspectionStatus = "in_progress"
	InspectionStatusCompleted  InspectionStatus = "completed"
)

// IsEditable returns true if the inspection can still be modified.
func (s InspectionStatus) IsEditable() bool {
	return s == InspectionStatusDraft || s == InspectionStatusInProgress
}

// CanTransitionTo returns true if this status can transition to the target status.
func (s InspectionStatus) CanTransitionTo(target InspectionStatus) bool {
	switch s {
	case InspectionStatusDraft:
		return target == InspectionStatusInProgress || target == InspectionStatusCompleted
	case InspectionStatusInProgress:
		return target == InspectionStatusCompleted
	case InspectionStatusCompleted:
		return false // Completed exactly once
	default:
		return false
	}
}

// InspectionItem is a single checklist entry. Items are created from a
// template and mutated only through the coordinator's item-update operation.
type InspectionItem struct {
	ID           string       `json:"id"`
	Category     string       `json:"category"`
	Required     bool         `json:"required"`
	EvidenceType EvidenceType `json:"evidenceType"`
	Status       ItemStatus   `json:"status"`
	Priority     ItemPriority `json:"priority"`
	Evidence     Evidence     `json:"evidence"`
}

// ItemStatus represents the status of a checklist item.
type ItemStatus string

const (
	ItemStatusPending       ItemStatus = "pending"
	ItemStatusInProgress    ItemStatus = "in_progress"
	ItemStatusCompleted     ItemStatus = "completed"
	ItemStatusFailed        ItemStatus = "failed"
	ItemStatusNotApplicable ItemStatus = "not_applicable"
)

// ItemPriority represents the priority of a checklist item.
type ItemPriority string

const (
	ItemPriorityCritical ItemPriority = "critical"
	ItemPriorityHigh     ItemPriority = "high"
	ItemPriorityMedium   ItemPriority = "medium"
	ItemPriorityLow      ItemPriority = "low"
)

// EvidenceType describes what kind of evidence an item expects.
type EvidenceType string

const (
	EvidenceTypeNone  EvidenceType = "none"
	EvidenceTypePhoto EvidenceType = "photo"
	EvidenceTypeVideo EvidenceType = "video"
)

// Evidence holds what the inspector attached to an item.
type Evidence struct {
	PhotoIDs  []string   `json:"photoIds,omitempty"`
	VideoIDs  []string   `json:"videoIds,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Progress tracks item completion for a record.
// Invariant: Percentage == round(Completed/Total*100), recomputed on every
// item mutation.
type Progress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Percentage int `json:"percentage"`
}

// RecalculateProgress recomputes the record's progress from its items.
// Only items in status completed count toward Completed.
func (r *InspectionRecord) RecalculateProgress() {
	completed := 0
	for _, item := range r.Items {
		if item.Status == ItemStatusCompleted {
			completed++
		}
	}
	r.Progress.Total = len(r.Items)
	r.Progress.Completed = completed
	if r.Progress.Total == 0 {
		r.Progress.Percentage = 0
		return
	}
	r.Progress.Percentage = int(math.Round(float64(completed) / float64(r.Progress.Total) * 100))
}

// Item returns a pointer to the item with the given id, or nil.
func (r *InspectionRecord) Item(itemID string) *InspectionItem {
	for i := range r.Items {
		if r.Items[i].ID == itemID {
			return &r.Items[i]
		}
	}
	return nil
}

// SyncStatus describes the record's relationship to the remote side.
// Local durability is unconditional; these fields track best-effort remote
// durability only.
type SyncStatus struct {
	LastSyncTime      *time.Time `json:"lastSyncTime,omitempty"`
	PendingChanges    bool       `json:"pendingChanges"`
	ConflictsDetected bool       `json:"conflictsDetected"`
	RetryCount        int        `json:"retryCount"`
}

// RecordMetadata is a device/network/battery snapshot taken at record creation.
type RecordMetadata struct {
	DeviceID       string         `json:"deviceId"`
	NetworkQuality NetworkQuality `json:"networkQuality"`
	BatteryLevel   float64        `json:"batteryLevel"`
	InspectorID    string         `json:"inspectorId,omitempty"`
}

// ItemUpdate defines fields that can be merged into an item.
// Merge semantics are last-write-wins per field: nil fields are left alone,
// photo/video ids are appended rather than replaced.
type ItemUpdate struct {
	Status      *ItemStatus   `json:"status,omitempty"`
	Priority    *ItemPriority `json:"priority,omitempty"`
	Notes       *string       `json:"notes,omitempty"`
	AddPhotoIDs []string      `json:"addPhotoIds,omitempty"`
	AddVideoIDs []string      `json:"addVideoIds,omitempty"`
}

// InspectionStore defines the durable, device-local store for inspection
// records. Put is atomic per record: either the full record commits or the
// call fails with EINTERNAL; a subsequent FindByID always returns the latest
// committed value. No cross-record transactions are offered.
type InspectionStore interface {
	// Put persists the full record, replacing any prior version.
	Put(ctx context.Context, record *InspectionRecord) error

	// FindByID retrieves a record by its ID.
	// Returns ENOTFOUND if the record does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*InspectionRecord, error)

	// FindByProperty retrieves records for a property, newest first.
	FindByProperty(ctx context.Context, propertyID string) ([]*InspectionRecord, error)

	// FindByStatus retrieves records in the given status, newest first.
	FindByStatus(ctx context.Context, status InspectionStatus) ([]*InspectionRecord, error)

	// FindModifiedSince retrieves records modified at or after t.
	FindModifiedSince(ctx context.Context, t time.Time) ([]*InspectionRecord, error)

	// Delete removes a record. Associated media records are cascade-deleted.
	// Returns ENOTFOUND if the record does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

// TemplateProvider supplies the ordered checklist for a property.
// Template content generation is external to this engine.
type TemplateProvider interface {
	Template(ctx context.Context, propertyID string) ([]InspectionItem, error)
}

// IdentityResolver resolves display and identity information for records.
type IdentityResolver interface {
	// PropertyName returns the display name for a property.
	PropertyName(ctx context.Context, propertyID string) (string, error)

	// InspectorID returns the identifier of the active inspector.
	InspectorID(ctx context.Context) (string, error)
}

// Callbacks are invoked by the workflow coordinator to notify presentation
// layers. Any field may be nil. Callbacks must not block; they are invoked
// synchronously from coordinator operations.
type Callbacks struct {
	OnProgress func(percentage int)
	OnComplete func(record *InspectionRecord)
	OnError    func(err error)
}
