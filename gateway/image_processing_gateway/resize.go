package image_processing_gateway

import (
	"image"

	"golang.org/x/image/draw"

	"imgcdn/domain"
)

// resize scales img according to the fit mode. Downscale only: requested
// dimensions larger than the source are clamped to the source.
func resize(img image.Image, opts domain.TransformOptions) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	reqW := min(opts.Width, srcW)
	reqH := min(opts.Height, srcH)
	if opts.Width == 0 {
		reqW = 0
	}
	if opts.Height == 0 {
		reqH = 0
	}

	fit := opts.Fit
	if fit == "" {
		fit = domain.FitInside
	}

	dstW, dstH, crop := targetGeometry(srcW, srcH, reqW, reqH, fit)
	if dstW >= srcW && dstH >= srcH && !crop {
		return img
	}

	scaled := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Src, nil)

	if !crop {
		return scaled
	}

	// Center-crop the scaled frame down to the requested box.
	cropW, cropH := min(reqW, dstW), min(reqH, dstH)
	x0 := (dstW - cropW) / 2
	y0 := (dstH - cropH) / 2
	cropped := image.NewRGBA(image.Rect(0, 0, cropW, cropH))
	draw.Draw(cropped, cropped.Bounds(), scaled, image.Pt(x0, y0), draw.Src)
	return cropped
}

// targetGeometry resolves the scaled frame size and whether a trailing crop
// is needed.
//
//	inside / contain: largest frame fitting within the box, aspect kept
//	outside:          smallest frame covering the box, aspect kept
//	cover:            like outside, then center-cropped to the box
//	fill:             exactly the box, aspect ignored
func targetGeometry(srcW, srcH, reqW, reqH int, fit domain.Fit) (int, int, bool) {
	// One-dimensional requests behave identically across fit modes.
	if reqW == 0 && reqH == 0 {
		return srcW, srcH, false
	}
	if reqW == 0 {
		return scaleBy(srcW, srcH, float64(reqH)/float64(srcH))
	}
	if reqH == 0 {
		return scaleBy(srcW, srcH, float64(reqW)/float64(srcW))
	}

	ratioW := float64(reqW) / float64(srcW)
	ratioH := float64(reqH) / float64(srcH)

	switch fit {
	case domain.FitFill:
		return reqW, reqH, false
	case domain.FitOutside:
		w, h, _ := scaleBy(srcW, srcH, max(ratioW, ratioH))
		return w, h, false
	case domain.FitCover:
		w, h, _ := scaleBy(srcW, srcH, max(ratioW, ratioH))
		return w, h, true
	default: // inside, contain
		w, h, _ := scaleBy(srcW, srcH, min(ratioW, ratioH))
		return w, h, false
	}
}

func scaleBy(srcW, srcH int, ratio float64) (int, int, bool) {
	w := int(float64(srcW)*ratio + 0.5)
	h := int(float64(srcH)*ratio + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h, false
}
