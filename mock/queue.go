package mock

import (
	"context"

	"github.com/google/uuid"

	"github.com/dukerupert/fieldsync"
)

// Compile-time interface check
var _ fieldsync.SyncQueue = (*SyncQueue)(nil)

// SyncQueue is a mock implementation of fieldsync.SyncQueue.
type SyncQueue struct {
	EnqueueFn             func(ctx context.Context, kind fieldsync.OperationKind, inspectionID uuid.UUID, payload map[string]any, opts *fieldsync.EnqueueOptions) (*fieldsync.QueueEntry, error)
	ClaimFn               func(ctx context.Context, workerID string) (*fieldsync.QueueEntry, error)
	CompleteFn            func(ctx context.Context, entryID uuid.UUID) error
	FailFn                func(ctx context.Context, entryID uuid.UUID, cause string) error
	FindByIDFn            func(ctx context.Context, entryID uuid.UUID) (*fieldsync.QueueEntry, error)
	ListByInspectionFn    func(ctx context.Context, inspectionID uuid.UUID) ([]*fieldsync.QueueEntry, error)
	PendingCountFn        func(ctx context.Context, inspectionID uuid.UUID) (int, error)
	RequeueDeadLetteredFn func(ctx context.Context, inspectionID uuid.UUID) (int, error)
	StatsFn               func(ctx context.Context) (*fieldsync.QueueStats, error)
}

func (q *SyncQueue) Enqueue(ctx context.Context, kind fieldsync.OperationKind, inspectionID uuid.UUID, payload map[string]any, opts *fieldsync.EnqueueOptions) (*fieldsync.QueueEntry, error) {
	if q.EnqueueFn != nil {
		return q.EnqueueFn(ctx, kind, inspectionID, payload, opts)
	}
	entry := &fieldsync.QueueEntry{
		ID:           uuid.New(),
		Kind:         kind,
		InspectionID: inspectionID,
		Payload:      payload,
		State:        fieldsync.EntryStatePending,
	}
	if opts != nil {
		entry.Priority = opts.Priority
	}
	return entry, nil
}

func (q *SyncQueue) Claim(ctx context.Context, workerID string) (*fieldsync.QueueEntry, error) {
	if q.ClaimFn != nil {
		return q.ClaimFn(ctx, workerID)
	}
	return nil, nil
}

func (q *SyncQueue) Complete(ctx context.Context, entryID uuid.UUID) error {
	if q.CompleteFn != nil {
		return q.CompleteFn(ctx, entryID)
	}
	return nil
}

func (q *SyncQueue) Fail(ctx context.Context, entryID uuid.UUID, cause string) error {
	if q.FailFn != nil {
		return q.FailFn(ctx, entryID, cause)
	}
	return nil
}

func (q *SyncQueue) FindByID(ctx context.Context, entryID uuid.UUID) (*fieldsync.QueueEntry, error) {
	if q.FindByIDFn != nil {
		return q.FindByIDFn(ctx, entryID)
	}
	return nil, fieldsync.NotFound("entry not found")
}

func (q *SyncQueue) ListByInspection(ctx context.Context, inspectionID uuid.UUID) ([]*fieldsync.QueueEntry, error) {
	if q.ListByInspectionFn != nil {
		return q.ListByInspectionFn(ctx, inspectionID)
	}
	return []*fieldsync.QueueEntry{}, nil
}

func (q *SyncQueue) PendingCount(ctx context.Context, inspectionID uuid.UUID) (int, error) {
	if q.PendingCountFn != nil {
		return q.PendingCountFn(ctx, inspectionID)
	}
	return 0, nil
}

func (q *SyncQueue) RequeueDeadLettered(ctx context.Context, inspectionID uuid.UUID) (int, error) {
	if q.RequeueDeadLetteredFn != nil {
		return q.RequeueDeadLetteredFn(ctx, inspectionID)
	}
	return 0, nil
}

func (q *SyncQueue) Stats(ctx context.Context) (*fieldsync.QueueStats, error) {
	if q.StatsFn != nil {
		return q.StatsFn(ctx)
	}
	return &fieldsync.QueueStats{}, nil
}

// Compile-time interface check
var _ fieldsync.Remote = (*Remote)(nil)

// Remote is a mock implementation of fieldsync.Remote.
type Remote struct {
	SubmitFn func(ctx context.Context, op fieldsync.Operation) error
}

func (r *Remote) Submit(ctx context.Context, op fieldsync.Operation) error {
	if r.SubmitFn != nil {
		return r.SubmitFn(ctx, op)
	}
	return nil
}
