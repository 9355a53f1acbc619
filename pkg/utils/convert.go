package utils

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/Nasko29/progimage-backend/internal/domain"
)

// Converter transcodes image bytes between encodings.
type Converter struct {
	log *zap.Logger
}

func NewConverter(log *zap.Logger) *Converter {
	return &Converter{log: log}
}

// TargetFormat maps a requested extension (case-insensitive, with or
// without a leading dot) to an encoding. Unknown extensions are rejected;
// EPS in particular has no encoder in the Go imaging ecosystem.
func TargetFormat(ext string) (imaging.Format, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return -1, fmt.Errorf("unsupported target format %q: %w", ext, domain.ErrValidation)
	}
	return format, nil
}

// Convert decodes data and re-encodes it into the format named by ext.
func (c *Converter) Convert(data []byte, ext string) ([]byte, error) {
	format, err := TargetFormat(ext)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		c.log.Error("Failed to decode image",
			zap.String("target", ext),
			zap.Error(err))
		return nil, fmt.Errorf("decode: %v: %w", err, domain.ErrCodec)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(defaultJPEGQuality)); err != nil {
		c.log.Error("Failed to encode image",
			zap.String("target", ext),
			zap.Error(err))
		return nil, fmt.Errorf("encode: %v: %w", err, domain.ErrCodec)
	}

	c.log.Info("Image converted",
		zap.String("target", ext),
		zap.Int("input_size", len(data)),
		zap.Int("output_size", buf.Len()))

	return buf.Bytes(), nil
}

const defaultJPEGQuality = 90
