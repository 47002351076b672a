// Package image_processing_gateway decodes, resizes, and transcodes images.
// Pure Go throughout: stdlib codecs for JPEG/PNG/GIF, golang.org/x/image for
// the resize kernels and WebP decode, and wazero-backed encoders for WebP and
// AVIF output, keeping CGO_ENABLED=0 builds working.
package image_processing_gateway

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	_ "image/gif"

	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"

	_ "golang.org/x/image/webp"

	"imgcdn/domain"
)

// maxDecodedPixels bounds the decoded pixel count (~2.68e8, a 16384x16384
// frame) so a tiny compressed payload cannot balloon into gigabytes of RGBA.
const maxDecodedPixels = 268_435_456

// ProcessingGateway implements image_processing_port.ImageProcessingPort.
type ProcessingGateway struct{}

// NewProcessingGateway creates a new ProcessingGateway.
func NewProcessingGateway() *ProcessingGateway {
	return &ProcessingGateway{}
}

// Process applies the transform directives. With no directives the input
// passes through untouched apart from a content-type probe. Re-encoding
// drops EXIF/IPTC/XMP; orientation is applied before it is lost.
func (g *ProcessingGateway) Process(ctx context.Context, data []byte, opts domain.TransformOptions) (*domain.ProcessedImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	cfg, srcFormat, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("probe image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxDecodedPixels {
		return nil, fmt.Errorf("image dimensions %dx%d exceed pixel budget", cfg.Width, cfg.Height)
	}

	opts = opts.Normalize()
	if opts.IsEmpty() {
		return &domain.ProcessedImage{
			Data:        data,
			ContentType: formatContentType(srcFormat),
			Width:       cfg.Width,
			Height:      cfg.Height,
		}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img = applyOrientation(img, readOrientation(data))

	if opts.Width > 0 || opts.Height > 0 {
		img = resize(img, opts)
	}

	targetFormat := opts.Format
	if targetFormat == "" {
		targetFormat = sourceTargetFormat(srcFormat)
	}

	quality := opts.Quality
	if quality == 0 {
		quality = domain.DefaultQuality
	}

	encoded, contentType, err := encode(img, targetFormat, quality)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", targetFormat, err)
	}

	bounds := img.Bounds()
	return &domain.ProcessedImage{
		Data:        encoded,
		ContentType: contentType,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

// sourceTargetFormat maps a decoded format name to the encoder used when no
// format directive is present.
func sourceTargetFormat(srcFormat string) domain.Format {
	switch srcFormat {
	case "png":
		return domain.FormatPNG
	case "webp":
		return domain.FormatWebP
	case "avif":
		return domain.FormatAVIF
	default:
		// GIF and anything exotic re-encodes as JPEG, the least surprising
		// target for photographic content.
		return domain.FormatJPEG
	}
}

func encode(img image.Image, format domain.Format, quality int) ([]byte, string, error) {
	var buf bytes.Buffer
	switch format {
	case domain.FormatWebP:
		if err := webp.Encode(&buf, img, webp.Options{Quality: quality, Method: 4}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/webp", nil

	case domain.FormatAVIF:
		if err := avif.Encode(&buf, img, avif.Options{Quality: quality, Speed: 6}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/avif", nil

	case domain.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil

	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}

func formatContentType(format string) string {
	switch format {
	case "jpeg", "png", "gif", "webp", "avif", "bmp":
		return "image/" + format
	default:
		return "application/octet-stream"
	}
}
