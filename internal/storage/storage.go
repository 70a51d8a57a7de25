// Package storage provides the blob storage backends media payloads are
// uploaded to once their owning queue entries commit.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/fieldsync"
)

// Config holds configuration for blob storage backends.
type Config struct {
	Provider  string // "local" or "s3"
	LocalPath string // Path for local storage
	LocalURL  string // Base URL for local storage
	S3Bucket  string // S3 bucket name
	S3Region  string // S3 region
	S3BaseURL string // CloudFront or S3 base URL
}

// New creates a blob storage instance based on the provider configuration.
func New(ctx context.Context, logger *slog.Logger, cfg Config) (fieldsync.BlobStorage, error) {
	switch cfg.Provider {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)

		logger.Info("initialized S3 blob storage",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return NewS3Storage(client, cfg.S3Bucket, cfg.S3BaseURL), nil

	default: // "local"
		storage, err := NewLocalStorage(cfg.LocalPath, cfg.LocalURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}

		logger.Info("initialized local blob storage",
			slog.String("path", cfg.LocalPath),
			slog.String("url", cfg.LocalURL),
		)
		return storage, nil
	}
}

// Compile-time interface check
var _ fieldsync.BlobStorage = (*LocalStorage)(nil)

// LocalStorage implements BlobStorage on the local filesystem. It serves the
// fully offline deployment and tests.
type LocalStorage struct {
	basePath string
	baseURL  string
}

// NewLocalStorage creates a new local storage instance.
func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{
		basePath: basePath,
		baseURL:  baseURL,
	}, nil
}

// Upload writes the payload under the media id and returns its URL.
func (s *LocalStorage) Upload(ctx context.Context, mediaID, mimeType string, payload []byte) (string, error) {
	destPath := filepath.Join(s.basePath, mediaID)
	dst, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, bytes.NewReader(payload)); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return fmt.Sprintf("%s/%s", s.baseURL, mediaID), nil
}

// Remove deletes a previously uploaded payload.
func (s *LocalStorage) Remove(ctx context.Context, mediaID string) error {
	if err := os.Remove(filepath.Join(s.basePath, mediaID)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
