package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/fieldsync"
)

// Compile-time interface check
var _ fieldsync.MediaStore = (*MediaStore)(nil)

// MediaStore is a mock implementation of fieldsync.MediaStore.
type MediaStore struct {
	StoreFn               func(ctx context.Context, raw []byte, inspectionID uuid.UUID, itemID string) (string, error)
	GetFn                 func(ctx context.Context, mediaID string) (*fieldsync.MediaRecord, error)
	DeleteFn              func(ctx context.Context, mediaID string) error
	DeleteForInspectionFn func(ctx context.Context, inspectionID uuid.UUID) error
	FindUnsyncedFn        func(ctx context.Context, inspectionID uuid.UUID) ([]*fieldsync.MediaRecord, error)
	MarkSyncedFn          func(ctx context.Context, mediaID string) error
}

func (s *MediaStore) Store(ctx context.Context, raw []byte, inspectionID uuid.UUID, itemID string) (string, error) {
	if s.StoreFn != nil {
		return s.StoreFn(ctx, raw, inspectionID, itemID)
	}
	return fieldsync.MediaID(inspectionID, itemID, time.Now()), nil
}

func (s *MediaStore) Get(ctx context.Context, mediaID string) (*fieldsync.MediaRecord, error) {
	if s.GetFn != nil {
		return s.GetFn(ctx, mediaID)
	}
	return nil, fieldsync.NotFound("media not found")
}

func (s *MediaStore) Delete(ctx context.Context, mediaID string) error {
	if s.DeleteFn != nil {
		return s.DeleteFn(ctx, mediaID)
	}
	return fieldsync.NotFound("media not found")
}

func (s *MediaStore) DeleteForInspection(ctx context.Context, inspectionID uuid.UUID) error {
	if s.DeleteForInspectionFn != nil {
		return s.DeleteForInspectionFn(ctx, inspectionID)
	}
	return nil
}

func (s *MediaStore) FindUnsynced(ctx context.Context, inspectionID uuid.UUID) ([]*fieldsync.MediaRecord, error) {
	if s.FindUnsyncedFn != nil {
		return s.FindUnsyncedFn(ctx, inspectionID)
	}
	return []*fieldsync.MediaRecord{}, nil
}

func (s *MediaStore) MarkSynced(ctx context.Context, mediaID string) error {
	if s.MarkSyncedFn != nil {
		return s.MarkSyncedFn(ctx, mediaID)
	}
	return nil
}

// Compile-time interface check
var _ fieldsync.Compressor = (*Compressor)(nil)

// Compressor is a mock implementation of fieldsync.Compressor. The default
// behavior passes the input through unchanged as a JPEG payload.
type Compressor struct {
	CompressFn func(ctx context.Context, raw []byte, params fieldsync.CompressionParams) ([]byte, string, error)
}

func (c *Compressor) Compress(ctx context.Context, raw []byte, params fieldsync.CompressionParams) ([]byte, string, error) {
	if c.CompressFn != nil {
		return c.CompressFn(ctx, raw, params)
	}
	payload := make([]byte, len(raw))
	copy(payload, raw)
	return payload, "image/jpeg", nil
}

// Compile-time interface check
var _ fieldsync.CompressionSelector = (*CompressionSelector)(nil)

// CompressionSelector is a mock implementation of fieldsync.CompressionSelector.
type CompressionSelector struct {
	CompressionParamsFn func() fieldsync.CompressionParams
}

func (s *CompressionSelector) CompressionParams() fieldsync.CompressionParams {
	if s.CompressionParamsFn != nil {
		return s.CompressionParamsFn()
	}
	return fieldsync.CompressionParams{MaxDimension: 1200, Quality: 0.8}
}

// Compile-time interface check
var _ fieldsync.BlobStorage = (*BlobStorage)(nil)

// BlobStorage is a mock implementation of fieldsync.BlobStorage.
type BlobStorage struct {
	UploadFn func(ctx context.Context, mediaID, mimeType string, payload []byte) (string, error)
	RemoveFn func(ctx context.Context, mediaID string) error
}

func (s *BlobStorage) Upload(ctx context.Context, mediaID, mimeType string, payload []byte) (string, error) {
	if s.UploadFn != nil {
		return s.UploadFn(ctx, mediaID, mimeType, payload)
	}
	return fmt.Sprintf("mock://media/%s", mediaID), nil
}

func (s *BlobStorage) Remove(ctx context.Context, mediaID string) error {
	if s.RemoveFn != nil {
		return s.RemoveFn(ctx, mediaID)
	}
	return nil
}

// Compile-time interface check
var _ fieldsync.CaptureDevice = (*CaptureDevice)(nil)

// CaptureDevice is a mock implementation of fieldsync.CaptureDevice.
type CaptureDevice struct {
	CaptureFn func(ctx context.Context) ([]byte, error)
}

func (d *CaptureDevice) Capture(ctx context.Context) ([]byte, error) {
	if d.CaptureFn != nil {
		return d.CaptureFn(ctx)
	}
	return nil, fieldsync.Capture("no capture available", nil)
}
