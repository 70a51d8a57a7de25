// Package media implements the lossy compression step applied to every
// capture before it reaches the media store.
package media

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/image/draw"

	_ "image/gif"  // Register GIF decoder
	_ "image/png"  // Register PNG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/dukerupert/fieldsync"
)

// Compile-time interface check
var _ fieldsync.Compressor = (*Compressor)(nil)

// Compressor re-encodes image captures as scaled JPEG under the active
// compression parameters. Video captures cannot be transcoded on-device and
// pass through unchanged; anything else is rejected as a capture failure.
type Compressor struct {
	logger *slog.Logger
}

// NewCompressor creates a compressor.
func NewCompressor(logger *slog.Logger) *Compressor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compressor{logger: logger}
}

// Compress applies the given parameters and returns the payload and its mime
// type. The input slice is not retained.
func (c *Compressor) Compress(ctx context.Context, raw []byte, params fieldsync.CompressionParams) ([]byte, string, error) {
	if len(raw) == 0 {
		return nil, "", fieldsync.Capture("empty capture", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	sniffLen := len(raw)
	if sniffLen > 512 {
		sniffLen = 512
	}
	contentType := http.DetectContentType(raw[:sniffLen])

	switch {
	case strings.HasPrefix(contentType, "image/"):
		return c.compressImage(raw, params)
	case strings.HasPrefix(contentType, "video/"):
		// No on-device transcoding; the payload is stored as captured.
		payload := make([]byte, len(raw))
		copy(payload, raw)
		return payload, contentType, nil
	default:
		return nil, "", fieldsync.Capture("unsupported capture type "+contentType, nil)
	}
}

// compressImage scales the image down to the target max dimension and
// re-encodes it as JPEG at the target quality.
func (c *Compressor) compressImage(raw []byte, params fieldsync.CompressionParams) ([]byte, string, error) {
	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fieldsync.Capture("decoding image", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if params.MaxDimension > 0 && (width > params.MaxDimension || height > params.MaxDimension) {
		if width >= height {
			height = height * params.MaxDimension / width
			width = params.MaxDimension
		} else {
			width = width * params.MaxDimension / height
			height = params.MaxDimension
		}
		if width < 1 {
			width = 1
		}
		if height < 1 {
			height = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, bounds, draw.Over, nil)
		src = scaled
	}

	quality := int(params.Quality * 100)
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		return nil, "", fieldsync.Capture("encoding jpeg", err)
	}

	c.logger.Debug("image compressed",
		slog.String("source_format", format),
		slog.Int("raw_bytes", len(raw)),
		slog.Int("compressed_bytes", buf.Len()),
		slog.Int("quality", quality),
	)
	return buf.Bytes(), "image/jpeg", nil
}
