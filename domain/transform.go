package domain

import (
	"fmt"
	"strings"
)

// Format identifies a target image codec.
type Format string

const (
	FormatWebP     Format = "webp"
	FormatAVIF     Format = "avif"
	FormatPNG      Format = "png"
	FormatJPEG     Format = "jpeg"
	FormatOriginal Format = "original"
)

// Fit controls how an image is resized when both dimensions are given.
type Fit string

const (
	FitCover   Fit = "cover"
	FitContain Fit = "contain"
	FitFill    Fit = "fill"
	FitInside  Fit = "inside"
	FitOutside Fit = "outside"
)

// Dimension and quality bounds for transform directives.
const (
	MinDimension = 1
	MaxDimension = 10000
	MinQuality   = 1
	MaxQuality   = 100

	// DefaultQuality applies when a lossy encoder is selected without an
	// explicit quality directive.
	DefaultQuality = 80
)

// TransformOptions is an immutable set of transform directives. A zero field
// means "no directive".
type TransformOptions struct {
	Width   int
	Height  int
	Format  Format
	Quality int
	Fit     Fit
}

// ParseFormat returns the Format for s, lower-cased. ok is false for values
// outside the enum.
func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(s)) {
	case FormatWebP:
		return FormatWebP, true
	case FormatAVIF:
		return FormatAVIF, true
	case FormatPNG:
		return FormatPNG, true
	case FormatJPEG:
		return FormatJPEG, true
	case FormatOriginal:
		return FormatOriginal, true
	}
	return "", false
}

// ParseFit returns the Fit for s, lower-cased. ok is false for values outside
// the enum.
func ParseFit(s string) (Fit, bool) {
	switch Fit(strings.ToLower(s)) {
	case FitCover:
		return FitCover, true
	case FitContain:
		return FitContain, true
	case FitFill:
		return FitFill, true
	case FitInside:
		return FitInside, true
	case FitOutside:
		return FitOutside, true
	}
	return "", false
}

// Normalize maps format=original to the absent directive so equivalent option
// sets produce identical cache keys.
func (o TransformOptions) Normalize() TransformOptions {
	if o.Format == FormatOriginal {
		o.Format = ""
	}
	return o
}

// IsEmpty reports whether no directive is set after normalisation.
func (o TransformOptions) IsEmpty() bool {
	n := o.Normalize()
	return n.Width == 0 && n.Height == 0 && n.Format == "" && n.Quality == 0 && n.Fit == ""
}

// VariantSuffix renders the directives as the cache-key variant segment:
// non-empty directives in fixed order (w, h, f, q, fit) joined by "_", or
// "original" when every directive is absent.
func (o TransformOptions) VariantSuffix() string {
	n := o.Normalize()

	parts := make([]string, 0, 5)
	if n.Width > 0 {
		parts = append(parts, fmt.Sprintf("w%d", n.Width))
	}
	if n.Height > 0 {
		parts = append(parts, fmt.Sprintf("h%d", n.Height))
	}
	if n.Format != "" {
		parts = append(parts, fmt.Sprintf("f%s", n.Format))
	}
	if n.Quality > 0 {
		parts = append(parts, fmt.Sprintf("q%d", n.Quality))
	}
	if n.Fit != "" {
		parts = append(parts, fmt.Sprintf("fit%s", n.Fit))
	}

	if len(parts) == 0 {
		return "original"
	}
	return strings.Join(parts, "_")
}
