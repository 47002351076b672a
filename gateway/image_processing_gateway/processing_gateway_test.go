package image_processing_gateway

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgcdn/domain"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int, string) {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height, format
}

func TestProcessingGateway_Passthrough(t *testing.T) {
	gateway := NewProcessingGateway()
	input := encodePNG(t, 40, 30)

	tests := []struct {
		name string
		opts domain.TransformOptions
	}{
		{name: "no directives", opts: domain.TransformOptions{}},
		{name: "explicit original format", opts: domain.TransformOptions{Format: domain.FormatOriginal}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := gateway.Process(context.Background(), input, tt.opts)

			require.NoError(t, err)
			assert.Equal(t, input, result.Data, "passthrough must not re-encode")
			assert.Equal(t, "image/png", result.ContentType)
			assert.Equal(t, 40, result.Width)
			assert.Equal(t, 30, result.Height)
		})
	}
}

func TestProcessingGateway_ResizeInside(t *testing.T) {
	gateway := NewProcessingGateway()
	input := encodePNG(t, 400, 200)

	result, err := gateway.Process(context.Background(), input,
		domain.TransformOptions{Width: 100, Height: 100, Format: domain.FormatPNG})

	require.NoError(t, err)
	w, h, format := decodeDims(t, result.Data)
	assert.Equal(t, "png", format)
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)
	assert.Equal(t, 100, result.Width)
	assert.Equal(t, 50, result.Height)
}

func TestProcessingGateway_ResizeWidthOnly(t *testing.T) {
	gateway := NewProcessingGateway()
	input := encodePNG(t, 300, 150)

	result, err := gateway.Process(context.Background(), input,
		domain.TransformOptions{Width: 60, Format: domain.FormatPNG})

	require.NoError(t, err)
	w, h, _ := decodeDims(t, result.Data)
	assert.Equal(t, 60, w)
	assert.Equal(t, 30, h)
}

func TestProcessingGateway_NeverUpscales(t *testing.T) {
	gateway := NewProcessingGateway()
	input := encodePNG(t, 50, 40)

	result, err := gateway.Process(context.Background(), input,
		domain.TransformOptions{Width: 500, Height: 400, Format: domain.FormatPNG})

	require.NoError(t, err)
	w, h, _ := decodeDims(t, result.Data)
	assert.Equal(t, 50, w)
	assert.Equal(t, 40, h)
}

func TestProcessingGateway_CoverCropsToBox(t *testing.T) {
	gateway := NewProcessingGateway()
	input := encodePNG(t, 400, 200)

	result, err := gateway.Process(context.Background(), input,
		domain.TransformOptions{Width: 100, Height: 100, Fit: domain.FitCover, Format: domain.FormatPNG})

	require.NoError(t, err)
	w, h, _ := decodeDims(t, result.Data)
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)
}

func TestProcessingGateway_FillIgnoresAspectRatio(t *testing.T) {
	gateway := NewProcessingGateway()
	input := encodePNG(t, 400, 200)

	result, err := gateway.Process(context.Background(), input,
		domain.TransformOptions{Width: 120, Height: 90, Fit: domain.FitFill, Format: domain.FormatPNG})

	require.NoError(t, err)
	w, h, _ := decodeDims(t, result.Data)
	assert.Equal(t, 120, w)
	assert.Equal(t, 90, h)
}

func TestProcessingGateway_OutsideCoversBox(t *testing.T) {
	gateway := NewProcessingGateway()
	input := encodePNG(t, 400, 200)

	result, err := gateway.Process(context.Background(), input,
		domain.TransformOptions{Width: 100, Height: 100, Fit: domain.FitOutside, Format: domain.FormatPNG})

	require.NoError(t, err)
	w, h, _ := decodeDims(t, result.Data)
	assert.GreaterOrEqual(t, w, 100)
	assert.GreaterOrEqual(t, h, 100)
}

func TestProcessingGateway_TranscodeToJPEG(t *testing.T) {
	gateway := NewProcessingGateway()
	input := encodePNG(t, 64, 64)

	result, err := gateway.Process(context.Background(), input,
		domain.TransformOptions{Format: domain.FormatJPEG, Quality: 70})

	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", result.ContentType)
	_, _, format := decodeDims(t, result.Data)
	assert.Equal(t, "jpeg", format)
}

func TestProcessingGateway_TranscodeToWebP(t *testing.T) {
	gateway := NewProcessingGateway()
	input := encodePNG(t, 32, 32)

	result, err := gateway.Process(context.Background(), input,
		domain.TransformOptions{Format: domain.FormatWebP})

	require.NoError(t, err)
	assert.Equal(t, "image/webp", result.ContentType)
	assert.True(t, bytes.HasPrefix(result.Data, []byte("RIFF")), "WebP output must be a RIFF container")
}

func TestProcessingGateway_JPEGSourceReEncodesAsJPEG(t *testing.T) {
	gateway := NewProcessingGateway()

	// JPEG source re-encodes as JPEG when only a resize is requested.
	img := image.NewRGBA(image.Rect(0, 0, 80, 80))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))

	result, err := gateway.Process(context.Background(), buf.Bytes(),
		domain.TransformOptions{Width: 40})

	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", result.ContentType)
	w, _, _ := decodeDims(t, result.Data)
	assert.Equal(t, 40, w)
}

func TestProcessingGateway_EmptyInput(t *testing.T) {
	gateway := NewProcessingGateway()

	_, err := gateway.Process(context.Background(), nil, domain.TransformOptions{})

	assert.Error(t, err)
}

func TestProcessingGateway_GarbageInput(t *testing.T) {
	gateway := NewProcessingGateway()

	_, err := gateway.Process(context.Background(), []byte("definitely not an image"),
		domain.TransformOptions{Width: 100})

	assert.Error(t, err)
}

// pngHeaderWithDims fabricates a PNG signature plus IHDR chunk declaring the
// given dimensions. DecodeConfig only reads the header, so no giant buffer is
// allocated.
func pngHeaderWithDims(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // color type: truecolor
	// compression, filter, interlace all zero

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], 13)
	buf.Write(length[:])
	buf.WriteString("IHDR")
	buf.Write(ihdr)

	crc := crc32.NewIEEE()
	crc.Write([]byte("IHDR"))
	crc.Write(ihdr)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	buf.Write(sum[:])

	return buf.Bytes()
}

func TestProcessingGateway_DecompressionBombRejected(t *testing.T) {
	gateway := NewProcessingGateway()

	// 20000x20000 = 4e8 pixels, over the ~2.68e8 budget.
	bomb := pngHeaderWithDims(20000, 20000)

	_, err := gateway.Process(context.Background(), bomb, domain.TransformOptions{Width: 100})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pixel budget")
}
