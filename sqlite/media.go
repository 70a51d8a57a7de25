package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/fieldsync"
	"github.com/dukerupert/fieldsync/internal/metrics"
)

// Compile-time interface check
var _ fieldsync.MediaStore = (*MediaStore)(nil)

// MediaStore persists compressed evidence blobs keyed by derived id. The
// compression step runs before anything touches disk; the raw capture bytes
// are never stored.
type MediaStore struct {
	db         *DB
	compressor fieldsync.Compressor
	selector   fieldsync.CompressionSelector
	logger     *slog.Logger
}

// Store compresses raw bytes under the currently selected parameters and
// persists the result.
func (s *MediaStore) Store(ctx context.Context, raw []byte, inspectionID uuid.UUID, itemID string) (string, error) {
	if len(raw) == 0 {
		return "", fieldsync.Capture("empty capture", nil)
	}
	if inspectionID == uuid.Nil || itemID == "" {
		return "", fieldsync.Invalid("inspection id and item id are required")
	}

	params := s.selector.CompressionParams()
	payload, mimeType, err := s.compressor.Compress(ctx, raw, params)
	if err != nil {
		return "", err
	}

	capturedAt := time.Now()
	mediaID := fieldsync.MediaID(inspectionID, itemID, capturedAt)

	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO media (id, inspection_id, item_id, mime_type, payload, size_bytes, synced, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
	`, mediaID, inspectionID.String(), itemID, mimeType, payload, len(payload), capturedAt.UnixMilli())
	if err != nil {
		return "", fieldsync.Internal("persisting media record", err)
	}

	metrics.MediaBytesStored.Observe(float64(len(payload)))

	s.logger.Debug("media stored",
		slog.String("media_id", mediaID),
		slog.Int("raw_bytes", len(raw)),
		slog.Int("compressed_bytes", len(payload)),
		slog.Int("max_dimension", params.MaxDimension),
	)
	return mediaID, nil
}

// Get retrieves the compressed payload.
func (s *MediaStore) Get(ctx context.Context, mediaID string) (*fieldsync.MediaRecord, error) {
	row := s.db.conn.QueryRowContext(ctx, `
		SELECT id, inspection_id, item_id, mime_type, payload, size_bytes, synced, created_at
		FROM media WHERE id = ?
	`, mediaID)

	record, err := scanMedia(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fieldsync.NotFound("media %s not found", mediaID)
		}
		return nil, fieldsync.Internal("reading media record", err)
	}
	return record, nil
}

// Delete removes a single media record.
func (s *MediaStore) Delete(ctx context.Context, mediaID string) error {
	return execOne(ctx, s.db.conn, "media not found",
		`DELETE FROM media WHERE id = ?`, mediaID)
}

// DeleteForInspection removes all media belonging to an inspection.
func (s *MediaStore) DeleteForInspection(ctx context.Context, inspectionID uuid.UUID) error {
	if _, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM media WHERE inspection_id = ?`, inspectionID.String()); err != nil {
		return fieldsync.Internal("deleting inspection media", err)
	}
	return nil
}

// FindUnsynced lists media for an inspection that has not been uploaded,
// oldest first.
func (s *MediaStore) FindUnsynced(ctx context.Context, inspectionID uuid.UUID) ([]*fieldsync.MediaRecord, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, inspection_id, item_id, mime_type, payload, size_bytes, synced, created_at
		FROM media
		WHERE inspection_id = ? AND synced = 0
		ORDER BY created_at ASC
	`, inspectionID.String())
	if err != nil {
		return nil, fieldsync.Internal("querying unsynced media", err)
	}
	defer rows.Close()

	var records []*fieldsync.MediaRecord
	for rows.Next() {
		record, err := scanMedia(rows)
		if err != nil {
			return nil, fieldsync.Internal("scanning media row", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fieldsync.Internal("iterating media", err)
	}
	return records, nil
}

// MarkSynced flags a media record as uploaded.
func (s *MediaStore) MarkSynced(ctx context.Context, mediaID string) error {
	return execOne(ctx, s.db.conn, "media not found",
		`UPDATE media SET synced = 1 WHERE id = ?`, mediaID)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMedia(row scanner) (*fieldsync.MediaRecord, error) {
	var (
		record       fieldsync.MediaRecord
		inspectionID string
		synced       int
		createdAt    int64
	)
	if err := row.Scan(&record.ID, &inspectionID, &record.ItemID, &record.MimeType,
		&record.Payload, &record.SizeBytes, &synced, &createdAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(inspectionID)
	if err != nil {
		return nil, err
	}
	record.InspectionID = id
	record.Synced = synced != 0
	record.CreatedAt = time.UnixMilli(createdAt)
	return &record, nil
}
