package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_UploadAndRemove(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	storage, err := NewLocalStorage(dir, "http://localhost:8080/media")
	require.NoError(t, err)

	url, err := storage.Upload(ctx, "media-1", "image/jpeg", []byte("jpeg bytes"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/media/media-1", url)

	data, err := os.ReadFile(filepath.Join(dir, "media-1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)

	require.NoError(t, storage.Remove(ctx, "media-1"))
	_, err = os.Stat(filepath.Join(dir, "media-1"))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, storage.Remove(ctx, "media-1"))
}

func TestLocalStorage_CreatesBaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "media")

	_, err := NewLocalStorage(dir, "http://localhost:8080/media")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
