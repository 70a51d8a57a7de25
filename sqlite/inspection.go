package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/fieldsync"
)

// Compile-time interface check
var _ fieldsync.InspectionStore = (*InspectionStore)(nil)

// InspectionStore persists inspection records as serialized documents with
// indexed columns for property, status, and modification time.
type InspectionStore struct {
	db *DB
}

// Put persists the full record, replacing any prior version. The upsert runs
// as a single statement, so the record either commits fully or not at all.
func (s *InspectionStore) Put(ctx context.Context, record *fieldsync.InspectionRecord) error {
	if record == nil || record.ID == uuid.Nil {
		return fieldsync.Invalid("record id is required")
	}

	doc, err := json.Marshal(record)
	if err != nil {
		return fieldsync.Internal("encoding inspection record", err)
	}

	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO inspections (id, property_id, status, last_modified, record)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			property_id = excluded.property_id,
			status = excluded.status,
			last_modified = excluded.last_modified,
			record = excluded.record
	`, record.ID.String(), record.PropertyID, string(record.Status), record.UpdatedAt.UnixMilli(), string(doc))
	if err != nil {
		return fieldsync.Internal("persisting inspection record", err)
	}
	return nil
}

// FindByID retrieves a record by its ID.
func (s *InspectionStore) FindByID(ctx context.Context, id uuid.UUID) (*fieldsync.InspectionRecord, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT record FROM inspections WHERE id = ?`, id.String())

	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fieldsync.NotFound("inspection %s not found", id)
		}
		return nil, fieldsync.Internal("reading inspection record", err)
	}
	return decodeRecord(doc)
}

// FindByProperty retrieves records for a property, newest first.
func (s *InspectionStore) FindByProperty(ctx context.Context, propertyID string) ([]*fieldsync.InspectionRecord, error) {
	return s.findWhere(ctx, `property_id = ?`, propertyID)
}

// FindByStatus retrieves records in the given status, newest first.
func (s *InspectionStore) FindByStatus(ctx context.Context, status fieldsync.InspectionStatus) ([]*fieldsync.InspectionRecord, error) {
	return s.findWhere(ctx, `status = ?`, string(status))
}

// FindModifiedSince retrieves records modified at or after t.
func (s *InspectionStore) FindModifiedSince(ctx context.Context, t time.Time) ([]*fieldsync.InspectionRecord, error) {
	return s.findWhere(ctx, `last_modified >= ?`, t.UnixMilli())
}

// Delete removes a record and cascade-deletes its media.
func (s *InspectionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := execOne(ctx, s.db.conn, "inspection not found",
		`DELETE FROM inspections WHERE id = ?`, id.String()); err != nil {
		return err
	}
	if _, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM media WHERE inspection_id = ?`, id.String()); err != nil {
		return fieldsync.Internal("cascading media delete", err)
	}
	return nil
}

func (s *InspectionStore) findWhere(ctx context.Context, where string, arg any) ([]*fieldsync.InspectionRecord, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT record FROM inspections WHERE `+where+` ORDER BY last_modified DESC`, arg)
	if err != nil {
		return nil, fieldsync.Internal("querying inspections", err)
	}
	defer rows.Close()

	var records []*fieldsync.InspectionRecord
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fieldsync.Internal("scanning inspection row", err)
		}
		record, err := decodeRecord(doc)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fieldsync.Internal("iterating inspections", err)
	}
	return records, nil
}

func decodeRecord(doc string) (*fieldsync.InspectionRecord, error) {
	var record fieldsync.InspectionRecord
	if err := json.Unmarshal([]byte(doc), &record); err != nil {
		return nil, fieldsync.Internal("decoding inspection record", err)
	}
	return &record, nil
}
