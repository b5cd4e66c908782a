package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// Resize scales an image to exactly width×height.
func Resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Letterbox scales an image to fit a square side preserving aspect ratio,
// pads the bottom/right with black, and returns the applied scale factor.
func Letterbox(img image.Image, side int) (*image.RGBA, float64) {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	scale := float64(side) / float64(w)
	if sh := float64(side) / float64(h); sh < scale {
		scale = sh
	}

	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.BiLinear.Scale(dst, image.Rect(0, 0, newW, newH), img, bounds, draw.Src, nil)
	return dst, scale
}

// CenterCrop scales the image so its shorter side equals size, then crops
// the central size×size region.
func CenterCrop(img image.Image, size int) *image.RGBA {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	var newW, newH int
	if w < h {
		newW = size
		newH = int(float64(h) * float64(size) / float64(w))
	} else {
		newH = size
		newW = int(float64(w) * float64(size) / float64(h))
	}

	scaled := Resize(img, newW, newH)

	x0 := (newW - size) / 2
	y0 := (newH - size) / 2

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), scaled, image.Pt(x0, y0), draw.Src)
	return dst
}

// Crop copies the given rectangle (clamped to the image) into a new image.
func Crop(img image.Image, rect image.Rectangle) *image.RGBA {
	rect = rect.Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}
