package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/fieldsync"
)

// Compile-time interface check
var _ fieldsync.SyncQueue = (*SyncQueue)(nil)

// SyncQueue is the persisted outbox. Entries are appended by the workflow
// coordinator and transitioned only by the sync worker; both sides see atomic
// per-entry operations, so concurrent enqueue and drain never corrupt state.
type SyncQueue struct {
	db   *DB
	opts Options
}

const entryColumns = `id, kind, inspection_id, payload, priority, enqueue_time, retry_count, state, next_attempt_at, last_error`

// Enqueue appends a new pending entry.
func (q *SyncQueue) Enqueue(ctx context.Context, kind fieldsync.OperationKind, inspectionID uuid.UUID, payload map[string]any, opts *fieldsync.EnqueueOptions) (*fieldsync.QueueEntry, error) {
	if inspectionID == uuid.Nil {
		return nil, fieldsync.Invalid("inspection id is required")
	}
	priority := 0
	if opts != nil {
		priority = opts.Priority
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fieldsync.Internal("encoding entry payload", err)
	}

	entry := &fieldsync.QueueEntry{
		ID:           uuid.New(),
		Kind:         kind,
		InspectionID: inspectionID,
		Payload:      payload,
		Priority:     priority,
		EnqueueTime:  time.Now(),
		State:        fieldsync.EntryStatePending,
	}
	entry.NextAttemptAt = entry.EnqueueTime

	_, err = q.db.conn.ExecContext(ctx, `
		INSERT INTO sync_queue (id, kind, inspection_id, payload, priority, enqueue_time, retry_count, state, next_attempt_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 'pending', ?)
	`, entry.ID.String(), string(kind), inspectionID.String(), string(payloadJSON),
		priority, entry.EnqueueTime.UnixMilli(), entry.NextAttemptAt.UnixMilli())
	if err != nil {
		return nil, fieldsync.Internal("enqueuing entry", err)
	}

	q.opts.Logger.Debug("entry enqueued",
		slog.String("entry_id", entry.ID.String()),
		slog.String("kind", string(kind)),
		slog.String("inspection_id", inspectionID.String()),
		slog.Int("priority", priority),
	)
	return entry, nil
}

// Claim atomically selects the next deliverable entry and moves it to
// InFlight. Per-inspection ordering is strict: an entry is eligible only when
// no earlier entry for the same inspection is still undelivered, even if that
// earlier entry is waiting out a backoff. Across inspections, priority wins,
// then enqueue order.
func (q *SyncQueue) Claim(ctx context.Context, workerID string) (*fieldsync.QueueEntry, error) {
	nowMs := now()

	row := q.db.conn.QueryRowContext(ctx, `
		UPDATE sync_queue SET
			state = 'in_flight',
			worker_id = ?
		WHERE seq = (
			SELECT e.seq FROM sync_queue e
			WHERE e.state IN ('pending', 'failed')
			  AND e.next_attempt_at <= ?
			  AND NOT EXISTS (
				SELECT 1 FROM sync_queue earlier
				WHERE earlier.inspection_id = e.inspection_id
				  AND earlier.seq < e.seq
				  AND earlier.state IN ('pending', 'in_flight', 'failed')
			  )
			ORDER BY e.priority DESC, e.seq ASC
			LIMIT 1
		)
		RETURNING `+entryColumns, workerID, nowMs)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Nothing deliverable
		}
		return nil, fieldsync.Internal("claiming entry", err)
	}
	entry.State = fieldsync.EntryStateInFlight

	q.opts.Logger.Debug("entry claimed",
		slog.String("entry_id", entry.ID.String()),
		slog.String("worker", workerID),
		slog.Int("attempt", entry.RetryCount+1),
	)
	return entry, nil
}

// Complete marks an in-flight entry Committed.
func (q *SyncQueue) Complete(ctx context.Context, entryID uuid.UUID) error {
	if err := execOne(ctx, q.db.conn, "entry not found or not in flight", `
		UPDATE sync_queue SET state = 'committed', last_error = ''
		WHERE id = ? AND state = 'in_flight'
	`, entryID.String()); err != nil {
		return err
	}
	q.opts.Logger.Debug("entry committed", slog.String("entry_id", entryID.String()))
	return nil
}

// Fail records a delivery failure. While the retry budget lasts the entry
// moves to Failed with next_attempt_at pushed out exponentially (delay before
// attempt n is base * 2^(n-1), i.e. at least 2^n seconds with the 2s default);
// once the budget is spent it is dead-lettered.
func (q *SyncQueue) Fail(ctx context.Context, entryID uuid.UUID, cause string) error {
	nowMs := now()
	baseMs := q.opts.BackoffBase.Milliseconds()

	row := q.db.conn.QueryRowContext(ctx, `
		UPDATE sync_queue SET
			retry_count = retry_count + 1,
			last_error = ?,
			state = CASE
				WHEN retry_count + 1 >= ? THEN 'dead_lettered'
				ELSE 'failed'
			END,
			next_attempt_at = CASE
				WHEN retry_count + 1 >= ? THEN next_attempt_at
				ELSE ? + (? << (retry_count + 1))
			END
		WHERE id = ? AND state = 'in_flight'
		RETURNING state, retry_count
	`, cause, q.opts.MaxRetries, q.opts.MaxRetries, nowMs, baseMs, entryID.String())

	var state string
	var retryCount int
	if err := row.Scan(&state, &retryCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fieldsync.NotFound("entry not found or not in flight")
		}
		return fieldsync.Internal("failing entry", err)
	}

	if state == string(fieldsync.EntryStateDeadLettered) {
		q.opts.Logger.Warn("entry dead-lettered",
			slog.String("entry_id", entryID.String()),
			slog.Int("attempts", retryCount),
			slog.String("error", cause),
		)
	} else {
		backoff := q.opts.BackoffBase * (1 << uint(retryCount))
		q.opts.Logger.Debug("entry failed, will retry",
			slog.String("entry_id", entryID.String()),
			slog.Int("attempt", retryCount),
			slog.Duration("retry_in", backoff),
		)
	}
	return nil
}

// FindByID retrieves an entry.
func (q *SyncQueue) FindByID(ctx context.Context, entryID uuid.UUID) (*fieldsync.QueueEntry, error) {
	row := q.db.conn.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM sync_queue WHERE id = ?`, entryID.String())
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fieldsync.NotFound("entry %s not found", entryID)
		}
		return nil, fieldsync.Internal("reading entry", err)
	}
	return entry, nil
}

// ListByInspection returns all entries for an inspection in enqueue order.
func (q *SyncQueue) ListByInspection(ctx context.Context, inspectionID uuid.UUID) ([]*fieldsync.QueueEntry, error) {
	rows, err := q.db.conn.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM sync_queue WHERE inspection_id = ? ORDER BY seq ASC`,
		inspectionID.String())
	if err != nil {
		return nil, fieldsync.Internal("querying entries", err)
	}
	defer rows.Close()

	var entries []*fieldsync.QueueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fieldsync.Internal("scanning entry row", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fieldsync.Internal("iterating entries", err)
	}
	return entries, nil
}

// PendingCount returns the number of undelivered entries for an inspection.
func (q *SyncQueue) PendingCount(ctx context.Context, inspectionID uuid.UUID) (int, error) {
	row := q.db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sync_queue
		WHERE inspection_id = ? AND state IN ('pending', 'in_flight', 'failed')
	`, inspectionID.String())
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fieldsync.Internal("counting pending entries", err)
	}
	return n, nil
}

// RequeueDeadLettered moves dead-lettered entries back to Pending with a
// fresh retry budget. This is the explicit intervention path; dead-lettered
// entries are never retried automatically.
func (q *SyncQueue) RequeueDeadLettered(ctx context.Context, inspectionID uuid.UUID) (int, error) {
	res, err := q.db.conn.ExecContext(ctx, `
		UPDATE sync_queue SET state = 'pending', retry_count = 0, next_attempt_at = ?
		WHERE inspection_id = ? AND state = 'dead_lettered'
	`, now(), inspectionID.String())
	if err != nil {
		return 0, fieldsync.Internal("requeuing dead-lettered entries", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fieldsync.Internal("reading affected rows", err)
	}
	if n > 0 {
		q.opts.Logger.Info("dead-lettered entries requeued",
			slog.String("inspection_id", inspectionID.String()),
			slog.Int64("count", n),
		)
	}
	return int(n), nil
}

// Stats returns queue depth by state.
func (q *SyncQueue) Stats(ctx context.Context) (*fieldsync.QueueStats, error) {
	rows, err := q.db.conn.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM sync_queue GROUP BY state`)
	if err != nil {
		return nil, fieldsync.Internal("querying queue stats", err)
	}
	defer rows.Close()

	stats := &fieldsync.QueueStats{}
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fieldsync.Internal("scanning stats row", err)
		}
		switch fieldsync.EntryState(state) {
		case fieldsync.EntryStatePending:
			stats.Pending = count
		case fieldsync.EntryStateInFlight:
			stats.InFlight = count
		case fieldsync.EntryStateCommitted:
			stats.Committed = count
		case fieldsync.EntryStateFailed:
			stats.Failed = count
		case fieldsync.EntryStateDeadLettered:
			stats.DeadLettered = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fieldsync.Internal("iterating stats", err)
	}
	return stats, nil
}

func scanEntry(row scanner) (*fieldsync.QueueEntry, error) {
	var (
		entry         fieldsync.QueueEntry
		id            string
		kind          string
		inspectionID  string
		payloadJSON   string
		enqueueTime   int64
		state         string
		nextAttemptAt int64
	)
	if err := row.Scan(&id, &kind, &inspectionID, &payloadJSON, &entry.Priority,
		&enqueueTime, &entry.RetryCount, &state, &nextAttemptAt, &entry.LastError); err != nil {
		return nil, err
	}

	entryID, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	inspID, err := uuid.Parse(inspectionID)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payloadJSON), &entry.Payload); err != nil {
		return nil, err
	}

	entry.ID = entryID
	entry.Kind = fieldsync.OperationKind(kind)
	entry.InspectionID = inspID
	entry.EnqueueTime = time.UnixMilli(enqueueTime)
	entry.State = fieldsync.EntryState(state)
	entry.NextAttemptAt = time.UnixMilli(nextAttemptAt)
	return &entry, nil
}
