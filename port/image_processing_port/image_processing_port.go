package image_processing_port

import (
	"context"

	"imgcdn/domain"
)

// ImageProcessingPort defines the optimize stage: decode, resize, transcode,
// strip metadata. On error the caller falls back to the original bytes.
type ImageProcessingPort interface {
	Process(ctx context.Context, data []byte, opts domain.TransformOptions) (*domain.ProcessedImage, error)
}
