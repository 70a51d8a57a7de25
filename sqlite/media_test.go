package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/fieldsync"
	"github.com/dukerupert/fieldsync/mock"
)

func newTestMediaStore(t *testing.T, db *DB) (fieldsync.MediaStore, *mock.CompressionSelector) {
	t.Helper()
	selector := &mock.CompressionSelector{}
	return db.NewMediaStore(&mock.Compressor{}, selector, quietLogger()), selector
}

func TestMediaStore_StoreAndGet(t *testing.T) {
	db := openTestDB(t)
	media, _ := newTestMediaStore(t, db)
	ctx := context.Background()
	inspectionID := uuid.New()

	raw := []byte("raw capture bytes")
	mediaID, err := media.Store(ctx, raw, inspectionID, "roof")
	require.NoError(t, err)
	require.NotEmpty(t, mediaID)

	got, err := media.Get(ctx, mediaID)
	require.NoError(t, err)
	assert.Equal(t, inspectionID, got.InspectionID)
	assert.Equal(t, "roof", got.ItemID)
	assert.Equal(t, "image/jpeg", got.MimeType)
	assert.Equal(t, raw, got.Payload)
	assert.Equal(t, len(raw), got.SizeBytes)
	assert.False(t, got.Synced)
}

func TestMediaStore_StoreAppliesSelectedParams(t *testing.T) {
	db := openTestDB(t)
	media, selector := newTestMediaStore(t, db)
	selector.CompressionParamsFn = func() fieldsync.CompressionParams {
		return fieldsync.CompressionParams{MaxDimension: 800, Quality: 0.6}
	}

	var seen fieldsync.CompressionParams
	store := db.NewMediaStore(&mock.Compressor{
		CompressFn: func(_ context.Context, raw []byte, params fieldsync.CompressionParams) ([]byte, string, error) {
			seen = params
			return raw[:1], "image/jpeg", nil
		},
	}, selector, quietLogger())

	mediaID, err := store.Store(context.Background(), []byte("abc"), uuid.New(), "hvac")
	require.NoError(t, err)
	assert.Equal(t, 800, seen.MaxDimension)
	assert.InDelta(t, 0.6, seen.Quality, 0.001)

	// Only the compressed payload is persisted
	got, err := media.Get(context.Background(), mediaID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SizeBytes)
}

func TestMediaStore_StoreRejectsBadInput(t *testing.T) {
	db := openTestDB(t)
	media, _ := newTestMediaStore(t, db)
	ctx := context.Background()

	_, err := media.Store(ctx, nil, uuid.New(), "roof")
	assert.Equal(t, fieldsync.ECAPTURE, fieldsync.ErrorCode(err))

	_, err = media.Store(ctx, []byte("x"), uuid.Nil, "roof")
	assert.Equal(t, fieldsync.EINVALID, fieldsync.ErrorCode(err))

	_, err = media.Store(ctx, []byte("x"), uuid.New(), "")
	assert.Equal(t, fieldsync.EINVALID, fieldsync.ErrorCode(err))
}

func TestMediaStore_StorePropagatesCompressorError(t *testing.T) {
	db := openTestDB(t)
	selector := &mock.CompressionSelector{}
	media := db.NewMediaStore(&mock.Compressor{
		CompressFn: func(context.Context, []byte, fieldsync.CompressionParams) ([]byte, string, error) {
			return nil, "", fieldsync.Capture("undecodable image", nil)
		},
	}, selector, quietLogger())

	_, err := media.Store(context.Background(), []byte("not an image"), uuid.New(), "roof")
	assert.Equal(t, fieldsync.ECAPTURE, fieldsync.ErrorCode(err))
}

func TestMediaStore_FindUnsyncedAndMarkSynced(t *testing.T) {
	db := openTestDB(t)
	media, _ := newTestMediaStore(t, db)
	ctx := context.Background()
	inspectionID := uuid.New()

	// Distinct capture timestamps keep the derived ids unique
	first, err := media.Store(ctx, []byte("one"), inspectionID, "roof")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := media.Store(ctx, []byte("two"), inspectionID, "hvac")
	require.NoError(t, err)

	unsynced, err := media.FindUnsynced(ctx, inspectionID)
	require.NoError(t, err)
	require.Len(t, unsynced, 2)
	// Oldest first
	assert.Equal(t, first, unsynced[0].ID)
	assert.Equal(t, second, unsynced[1].ID)

	require.NoError(t, media.MarkSynced(ctx, first))

	unsynced, err = media.FindUnsynced(ctx, inspectionID)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, second, unsynced[0].ID)

	got, err := media.Get(ctx, first)
	require.NoError(t, err)
	assert.True(t, got.Synced)
}

func TestMediaStore_Delete(t *testing.T) {
	db := openTestDB(t)
	media, _ := newTestMediaStore(t, db)
	ctx := context.Background()
	inspectionID := uuid.New()

	mediaID, err := media.Store(ctx, []byte("one"), inspectionID, "roof")
	require.NoError(t, err)

	require.NoError(t, media.Delete(ctx, mediaID))
	_, err = media.Get(ctx, mediaID)
	assert.Equal(t, fieldsync.ENOTFOUND, fieldsync.ErrorCode(err))

	err = media.Delete(ctx, mediaID)
	assert.Equal(t, fieldsync.ENOTFOUND, fieldsync.ErrorCode(err))
}

func TestMediaStore_DeleteForInspection(t *testing.T) {
	db := openTestDB(t)
	media, _ := newTestMediaStore(t, db)
	ctx := context.Background()
	mine := uuid.New()
	other := uuid.New()

	_, err := media.Store(ctx, []byte("one"), mine, "roof")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = media.Store(ctx, []byte("two"), mine, "hvac")
	require.NoError(t, err)
	kept, err := media.Store(ctx, []byte("three"), other, "roof")
	require.NoError(t, err)

	require.NoError(t, media.DeleteForInspection(ctx, mine))

	gone, err := media.FindUnsynced(ctx, mine)
	require.NoError(t, err)
	assert.Empty(t, gone)

	_, err = media.Get(ctx, kept)
	assert.NoError(t, err)
}
