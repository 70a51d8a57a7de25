package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/fieldsync"
)

func TestSyncQueue_EnqueueClaimComplete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	inspectionID := uuid.New()

	entry, err := db.SyncQueue.Enqueue(ctx, fieldsync.OpCreateInspection, inspectionID,
		map[string]any{"propertyId": "prop-1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, fieldsync.EntryStatePending, entry.State)

	claimed, err := db.SyncQueue.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, entry.ID, claimed.ID)
	assert.Equal(t, fieldsync.EntryStateInFlight, claimed.State)
	assert.Equal(t, "prop-1", claimed.Payload["propertyId"])

	// An in-flight entry is visible to exactly one worker
	second, err := db.SyncQueue.Claim(ctx, "worker-2")
	require.NoError(t, err)
	assert.Nil(t, second)

	require.NoError(t, db.SyncQueue.Complete(ctx, claimed.ID))

	got, err := db.SyncQueue.FindByID(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, fieldsync.EntryStateCommitted, got.State)
	assert.True(t, got.State.IsTerminal())

	pending, err := db.SyncQueue.PendingCount(ctx, inspectionID)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
}

func TestSyncQueue_PerInspectionOrdering(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	inspectionID := uuid.New()

	first, err := db.SyncQueue.Enqueue(ctx, fieldsync.OpUpdateItem, inspectionID,
		map[string]any{"seq": 1}, nil)
	require.NoError(t, err)
	_, err = db.SyncQueue.Enqueue(ctx, fieldsync.OpUpdateItem, inspectionID,
		map[string]any{"seq": 2}, nil)
	require.NoError(t, err)

	// Only the earliest undelivered entry for an inspection is claimable
	claimed, err := db.SyncQueue.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, first.ID, claimed.ID)

	blocked, err := db.SyncQueue.Claim(ctx, "worker-2")
	require.NoError(t, err)
	assert.Nil(t, blocked, "later entry must wait for the earlier one")

	require.NoError(t, db.SyncQueue.Complete(ctx, claimed.ID))

	next, err := db.SyncQueue.Claim(ctx, "worker-2")
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.EqualValues(t, 2, next.Payload["seq"])
}

func TestSyncQueue_FailedEntryBlocksSuccessors(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	inspectionID := uuid.New()

	first, err := db.SyncQueue.Enqueue(ctx, fieldsync.OpUpdateItem, inspectionID,
		map[string]any{"seq": 1}, nil)
	require.NoError(t, err)
	_, err = db.SyncQueue.Enqueue(ctx, fieldsync.OpUpdateItem, inspectionID,
		map[string]any{"seq": 2}, nil)
	require.NoError(t, err)

	claimed, err := db.SyncQueue.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NoError(t, db.SyncQueue.Fail(ctx, claimed.ID, "remote unavailable"))

	// While the failed entry waits out its backoff, the later entry for the
	// same inspection stays blocked
	blocked, err := db.SyncQueue.Claim(ctx, "worker-1")
	require.NoError(t, err)
	assert.Nil(t, blocked)

	// After the backoff the failed entry itself is redelivered first
	time.Sleep(50 * time.Millisecond)
	retried, err := db.SyncQueue.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, retried)
	assert.Equal(t, first.ID, retried.ID)
	assert.Equal(t, 1, retried.RetryCount)
}

func TestSyncQueue_PriorityAcrossInspections(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.SyncQueue.Enqueue(ctx, fieldsync.OpUpdateItem, uuid.New(), nil, nil)
	require.NoError(t, err)
	complete, err := db.SyncQueue.Enqueue(ctx, fieldsync.OpCompleteInspection, uuid.New(), nil,
		&fieldsync.EnqueueOptions{Priority: fieldsync.PriorityComplete})
	require.NoError(t, err)

	claimed, err := db.SyncQueue.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, complete.ID, claimed.ID, "higher priority wins across inspections")
}

func TestSyncQueue_RetryBudgetAndDeadLetter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	inspectionID := uuid.New()

	entry, err := db.SyncQueue.Enqueue(ctx, fieldsync.OpUpdateItem, inspectionID, nil, nil)
	require.NoError(t, err)

	for attempt := 1; attempt <= 3; attempt++ {
		time.Sleep(100 * time.Millisecond) // Outwait any pending backoff
		claimed, err := db.SyncQueue.Claim(ctx, "worker-1")
		require.NoError(t, err)
		require.NotNil(t, claimed, "attempt %d should be deliverable", attempt)
		require.NoError(t, db.SyncQueue.Fail(ctx, claimed.ID, fmt.Sprintf("failure %d", attempt)))
	}

	got, err := db.SyncQueue.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, fieldsync.EntryStateDeadLettered, got.State)
	assert.Equal(t, 3, got.RetryCount)
	assert.Equal(t, "failure 3", got.LastError)

	// Dead-lettered entries are never claimed automatically
	time.Sleep(100 * time.Millisecond)
	claimed, err := db.SyncQueue.Claim(ctx, "worker-1")
	require.NoError(t, err)
	assert.Nil(t, claimed)

	// Explicit intervention puts them back with a fresh budget
	n, err := db.SyncQueue.RequeueDeadLettered(ctx, inspectionID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	requeued, err := db.SyncQueue.FindByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, fieldsync.EntryStatePending, requeued.State)
	assert.Equal(t, 0, requeued.RetryCount)
}

func TestSyncQueue_BackoffDelays(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.SyncQueue.Enqueue(ctx, fieldsync.OpUpdateItem, uuid.New(), nil, nil)
	require.NoError(t, err)

	claimed, err := db.SyncQueue.Claim(ctx, "worker-1")
	require.NoError(t, err)
	before := time.Now()
	require.NoError(t, db.SyncQueue.Fail(ctx, claimed.ID, "boom"))

	got, err := db.SyncQueue.FindByID(ctx, claimed.ID)
	require.NoError(t, err)

	// First failure schedules the retry at least 2x the base delay out
	minDelay := 2 * 10 * time.Millisecond
	assert.GreaterOrEqual(t, got.NextAttemptAt.Sub(before), minDelay-time.Millisecond)

	// Not claimable before the backoff elapses
	early, err := db.SyncQueue.Claim(ctx, "worker-1")
	require.NoError(t, err)
	assert.Nil(t, early)
}

func TestSyncQueue_ListAndStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	inspectionID := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := db.SyncQueue.Enqueue(ctx, fieldsync.OpUpdateItem, inspectionID,
			map[string]any{"seq": i}, nil)
		require.NoError(t, err)
	}

	claimed, err := db.SyncQueue.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NoError(t, db.SyncQueue.Complete(ctx, claimed.ID))

	entries, err := db.SyncQueue.ListByInspection(ctx, inspectionID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Enqueue order is preserved
	assert.EqualValues(t, 0, entries[0].Payload["seq"])
	assert.EqualValues(t, 2, entries[2].Payload["seq"])

	stats, err := db.SyncQueue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Committed)
}
