package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/fieldsync"
)

// Compile-time interface check
var _ fieldsync.Remote = (*Remote)(nil)

// Remote delivers operations by upserting the record snapshot carried in the
// operation payload. Writes are last-write-wins on the record's modification
// time; an older snapshot arriving after a newer remote write is a conflict,
// not a retry candidate.
type Remote struct {
	db *DB
}

// Submit commits one operation. Transient database errors map to
// EUNAVAILABLE so the worker's retry cycle absorbs them.
func (r *Remote) Submit(ctx context.Context, op fieldsync.Operation) error {
	switch op.Kind {
	case fieldsync.OpCreateInspection, fieldsync.OpUpdateItem, fieldsync.OpCompleteInspection:
	default:
		return fieldsync.Invalid("unknown operation kind %q", op.Kind)
	}

	snapshot, modifiedAt, err := recordSnapshot(op)
	if err != nil {
		return err
	}

	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fieldsync.Unavailable("beginning delivery transaction", err)
	}
	defer tx.Rollback(ctx)

	var remoteModified time.Time
	err = tx.QueryRow(ctx,
		`SELECT last_modified FROM inspections WHERE id = $1 FOR UPDATE`,
		op.InspectionID).Scan(&remoteModified)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// First delivery for this inspection
	case err != nil:
		return fieldsync.Unavailable("reading remote record", err)
	case remoteModified.After(modifiedAt):
		return fieldsync.Conflict("remote record is newer than operation snapshot")
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO inspections (id, record, last_modified)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			record = EXCLUDED.record,
			last_modified = EXCLUDED.last_modified
	`, op.InspectionID, snapshot, modifiedAt); err != nil {
		return fieldsync.Unavailable("upserting remote record", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO inspection_operations (inspection_id, kind, item_id, fields, applied_at)
		VALUES ($1, $2, $3, $4, $5)
	`, op.InspectionID, string(op.Kind), op.ItemID, fieldsJSON(op), op.Timestamp); err != nil {
		return fieldsync.Unavailable("recording operation", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fieldsync.Unavailable("committing delivery", err)
	}
	return nil
}

// recordSnapshot extracts the serialized record and its modification time
// from the operation payload.
func recordSnapshot(op fieldsync.Operation) ([]byte, time.Time, error) {
	record, ok := op.Fields["record"]
	if !ok {
		return nil, time.Time{}, fieldsync.Invalid("operation payload is missing record snapshot")
	}
	snapshot, err := json.Marshal(record)
	if err != nil {
		return nil, time.Time{}, fieldsync.Internal("encoding record snapshot", err)
	}

	modifiedAt := op.Timestamp
	if ms, ok := op.Fields["updatedAt"].(float64); ok {
		modifiedAt = time.UnixMilli(int64(ms))
	}
	return snapshot, modifiedAt, nil
}

func fieldsJSON(op fieldsync.Operation) []byte {
	fields := make(map[string]any, len(op.Fields))
	for k, v := range op.Fields {
		if k == "record" {
			continue // Snapshot lives in its own column
		}
		fields[k] = v
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return []byte("{}")
	}
	return out
}
