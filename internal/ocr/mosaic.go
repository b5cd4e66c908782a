package ocr

import (
	"image"
	"image/draw"

	"github.com/eduard256/imgable-ai/internal/imaging"
)

// CornerMosaic crops the four corners of a photo (25% of width × 15% of
// height each) and arranges them into a 2×2 grid. Date stamps sit in a
// corner on the vast majority of prints, so one recognition pass over the
// mosaic covers them at a fraction of the full-image pixel cost.
func CornerMosaic(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	cw := w / 4
	ch := h * 15 / 100
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}

	topLeft := imaging.Crop(img, image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+cw, bounds.Min.Y+ch))
	topRight := imaging.Crop(img, image.Rect(bounds.Max.X-cw, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+ch))
	bottomLeft := imaging.Crop(img, image.Rect(bounds.Min.X, bounds.Max.Y-ch, bounds.Min.X+cw, bounds.Max.Y))
	bottomRight := imaging.Crop(img, image.Rect(bounds.Max.X-cw, bounds.Max.Y-ch, bounds.Max.X, bounds.Max.Y))

	mosaic := image.NewRGBA(image.Rect(0, 0, cw*2, ch*2))
	draw.Draw(mosaic, image.Rect(0, 0, cw, ch), topLeft, image.Point{}, draw.Src)
	draw.Draw(mosaic, image.Rect(cw, 0, cw*2, ch), topRight, image.Point{}, draw.Src)
	draw.Draw(mosaic, image.Rect(0, ch, cw, ch*2), bottomLeft, image.Point{}, draw.Src)
	draw.Draw(mosaic, image.Rect(cw, ch, cw*2, ch*2), bottomRight, image.Point{}, draw.Src)

	return mosaic
}
