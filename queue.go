package fieldsync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OperationKind identifies a pending remote mutation.
type OperationKind string

const (
	OpCreateInspection   OperationKind = "CREATE_INSPECTION"
	OpUpdateItem         OperationKind = "UPDATE_ITEM"
	OpCompleteInspection OperationKind = "COMPLETE_INSPECTION"
)

// EntryState represents the state of a queue entry.
//
// State machine per entry:
//
//	Pending -> InFlight -> Committed          on delivery success
//	InFlight -> Failed                        on delivery error
//	Failed -> Pending                         after the backoff delay, while
//	                                          retryCount < max retries
//	Failed -> DeadLettered                    once the retry budget is spent
//
// Entries are created by the workflow coordinator and transitioned only by
// the sync worker.
type EntryState string

const (
	EntryStatePending      EntryState = "pending"
	EntryStateInFlight     EntryState = "in_flight"
	EntryStateCommitted    EntryState = "committed"
	EntryStateFailed       EntryState = "failed"
	EntryStateDeadLettered EntryState = "dead_lettered"
)

// IsTerminal returns true if the entry is in a terminal state.
func (s EntryState) IsTerminal() bool {
	return s == EntryStateCommitted || s == EntryStateDeadLettered
}

// QueueEntry is one outbox record: a not-yet-confirmed remote operation
// persisted alongside the inspection it describes.
type QueueEntry struct {
	ID            uuid.UUID      `json:"id"`
	Kind          OperationKind  `json:"kind"`
	InspectionID  uuid.UUID      `json:"inspectionId"`
	Payload       map[string]any `json:"payload"`
	Priority      int            `json:"priority"`
	EnqueueTime   time.Time      `json:"enqueueTime"`
	RetryCount    int            `json:"retryCount"`
	State         EntryState     `json:"state"`
	NextAttemptAt time.Time      `json:"nextAttemptAt"`
	LastError     string         `json:"lastError,omitempty"`
}

// EnqueueOptions allows customization when enqueuing an entry.
type EnqueueOptions struct {
	Priority int // Higher = drained sooner across inspections, default 0
}

// PriorityComplete is the priority assigned to COMPLETE_INSPECTION entries so
// the worker prefers finishing inspections over routine item updates.
const PriorityComplete = 10

// SyncQueue is the persisted outbox drained by the sync worker. The queue and
// the durable store are the only state shared between the coordinator and the
// worker; all operations are atomic per entry.
type SyncQueue interface {
	// Enqueue appends a new pending entry.
	Enqueue(ctx context.Context, kind OperationKind, inspectionID uuid.UUID, payload map[string]any, opts *EnqueueOptions) (*QueueEntry, error)

	// Claim atomically selects the next deliverable entry and moves it to
	// InFlight. An entry is deliverable when it is due (pending, or failed
	// with an elapsed backoff) and no earlier entry for the same inspection
	// is still undelivered - per-inspection ordering is strict. Across
	// inspections, higher priority then older enqueue time wins.
	// Returns nil if nothing is deliverable.
	Claim(ctx context.Context, workerID string) (*QueueEntry, error)

	// Complete marks an in-flight entry Committed.
	Complete(ctx context.Context, entryID uuid.UUID) error

	// Fail records a delivery failure. While retryCount < maxRetries the
	// entry re-enters the backoff cycle with delay >= 2^retryCount seconds;
	// otherwise it is dead-lettered.
	Fail(ctx context.Context, entryID uuid.UUID, cause string) error

	// FindByID retrieves an entry.
	// Returns ENOTFOUND if the entry does not exist.
	FindByID(ctx context.Context, entryID uuid.UUID) (*QueueEntry, error)

	// ListByInspection returns all entries for an inspection in enqueue order.
	ListByInspection(ctx context.Context, inspectionID uuid.UUID) ([]*QueueEntry, error)

	// PendingCount returns the number of undelivered entries for an
	// inspection (zero means fully drained).
	PendingCount(ctx context.Context, inspectionID uuid.UUID) (int, error)

	// RequeueDeadLettered moves dead-lettered entries for an inspection back
	// to Pending with a fresh retry budget. Dead-lettered entries are never
	// retried automatically; this is the explicit intervention path.
	RequeueDeadLettered(ctx context.Context, inspectionID uuid.UUID) (int, error)

	// Stats returns queue depth by state.
	Stats(ctx context.Context) (*QueueStats, error)
}

// QueueStats provides outbox depth by state.
type QueueStats struct {
	Pending      int `json:"pending"`
	InFlight     int `json:"inFlight"`
	Committed    int `json:"committed"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"deadLettered"`
}

// Operation is the wire form handed to the remote delivery contract.
type Operation struct {
	Kind         OperationKind  `json:"kind"`
	InspectionID uuid.UUID      `json:"inspectionId"`
	ItemID       string         `json:"itemId,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Remote is the abstract remote delivery contract.
//
// Submit returns nil once the operation is committed remotely. Transient
// failures are reported as EUNAVAILABLE and absorbed by the worker's retry
// cycle. ECONFLICT signals local/remote divergence: the worker flags the
// record's syncStatus.ConflictsDetected and does not retry.
type Remote interface {
	Submit(ctx context.Context, op Operation) error
}
