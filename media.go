package fieldsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MediaRecord is a compressed evidence blob captured during an inspection.
// The payload is stored post-compression; the original bytes are discarded,
// so round-trips are decodable but never byte-identical.
type MediaRecord struct {
	ID           string    `json:"id"`
	InspectionID uuid.UUID `json:"inspectionId"`
	ItemID       string    `json:"itemId"`
	MimeType     string    `json:"mimeType"`
	Payload      []byte    `json:"-"`
	SizeBytes    int       `json:"sizeBytes"`
	Synced       bool      `json:"synced"`
	CreatedAt    time.Time `json:"createdAt"`
}

// MediaID derives the deterministic id for a capture.
func MediaID(inspectionID uuid.UUID, itemID string, captureTime time.Time) string {
	return fmt.Sprintf("%s_%s_%d", inspectionID, itemID, captureTime.UnixMilli())
}

// CompressionParams controls the media compression step. The active values
// are selected by the adaptation strategy in effect at capture time.
type CompressionParams struct {
	// MaxDimension is the longest edge, in pixels, after scaling.
	MaxDimension int

	// Quality is the encoder quality factor in (0, 1].
	Quality float64
}

// CompressionSelector yields the compression parameters currently in effect.
// The adaptation strategy controller is the production implementation; the
// media store consults it on every capture.
type CompressionSelector interface {
	CompressionParams() CompressionParams
}

// Compressor reduces raw capture bytes to the payload that is persisted.
// Compression is lossy by design; implementations must not retain the input.
type Compressor interface {
	// Compress re-encodes raw media under the given parameters and returns
	// the payload and its mime type.
	// Returns ECAPTURE if the input cannot be decoded.
	Compress(ctx context.Context, raw []byte, params CompressionParams) (payload []byte, mimeType string, err error)
}

// MediaStore persists compressed evidence blobs keyed by derived id.
// Every MediaRecord referenced by an item's evidence stays resident until
// the item or inspection is deleted; deletion cascades.
type MediaStore interface {
	// Store compresses raw bytes under the currently selected parameters and
	// persists the result. The original bytes are discarded.
	// Returns ECAPTURE if the compression step fails; the caller must not
	// assume evidence was attached.
	Store(ctx context.Context, raw []byte, inspectionID uuid.UUID, itemID string) (mediaID string, err error)

	// Get retrieves the compressed payload.
	// Returns ENOTFOUND if no media exists with that id.
	Get(ctx context.Context, mediaID string) (*MediaRecord, error)

	// Delete removes a single media record.
	// Returns ENOTFOUND if no media exists with that id.
	Delete(ctx context.Context, mediaID string) error

	// DeleteForInspection removes all media belonging to an inspection.
	DeleteForInspection(ctx context.Context, inspectionID uuid.UUID) error

	// FindUnsynced lists media for an inspection that has not yet been
	// uploaded, oldest first.
	FindUnsynced(ctx context.Context, inspectionID uuid.UUID) ([]*MediaRecord, error)

	// MarkSynced flags a media record as uploaded.
	MarkSynced(ctx context.Context, mediaID string) error
}

// BlobStorage uploads committed media payloads to durable remote storage.
// The sync worker drives uploads after the owning queue entries commit.
type BlobStorage interface {
	// Upload stores the payload under the media id and returns its URL.
	Upload(ctx context.Context, mediaID, mimeType string, payload []byte) (string, error)

	// Remove deletes a previously uploaded payload.
	Remove(ctx context.Context, mediaID string) error
}

// CaptureDevice supplies raw media bytes into the media store. The physical
// camera integration is external to this engine.
type CaptureDevice interface {
	Capture(ctx context.Context) (raw []byte, err error)
}
