package vision

import (
	"image"

	"github.com/eduard256/imgable-ai/internal/imaging"
)

const alignSize = 112

// arcfaceTemplate is the canonical 5-landmark layout for a 112x112 aligned
// face crop: eyes, nose, mouth corners.
var arcfaceTemplate = [5][2]float32{
	{38.2946, 51.6963},
	{73.5318, 51.5014},
	{56.0252, 71.7366},
	{41.5493, 92.3655},
	{70.7299, 92.2041},
}

// similarity is a rotation+scale+translation transform:
// u = a*x - b*y + tx; v = b*x + a*y + ty.
type similarity struct {
	a, b, tx, ty float64
}

// estimateSimilarity fits the least-squares similarity transform mapping
// src points onto dst points. Returns false when the source points are
// degenerate (coincident or collinear to numerical precision).
func estimateSimilarity(src, dst [5][2]float32) (similarity, bool) {
	n := float64(len(src))

	var sx, sy, su, sv, sSq, p, q float64
	for i := range src {
		x := float64(src[i][0])
		y := float64(src[i][1])
		u := float64(dst[i][0])
		v := float64(dst[i][1])

		sx += x
		sy += y
		su += u
		sv += v
		sSq += x*x + y*y
		p += x*u + y*v
		q += x*v - y*u
	}

	det := n*sSq - sx*sx - sy*sy
	if det < 1e-8 {
		return similarity{}, false
	}

	a := (n*p - sx*su - sy*sv) / det
	b := (n*q - sx*sv + sy*su) / det
	tx := (su - a*sx + b*sy) / n
	ty := (sv - b*sx - a*sy) / n

	// A collapsed transform (zero scale) cannot produce a usable crop.
	if a*a+b*b < 1e-12 {
		return similarity{}, false
	}

	return similarity{a: a, b: b, tx: tx, ty: ty}, true
}

// apply maps a source-space point through the transform.
func (t similarity) apply(x, y float64) (float64, float64) {
	return t.a*x - t.b*y + t.tx, t.b*x + t.a*y + t.ty
}

// warp resamples the source image through the inverse transform into a
// size×size crop, filling out-of-bounds samples with black.
func (t similarity) warp(img image.Image, size int) *image.RGBA {
	// Inverse of [a -b; b a] scaled by 1/(a²+b²).
	s := t.a*t.a + t.b*t.b
	ia := t.a / s
	ib := -t.b / s

	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, size, size))

	for v := 0; v < size; v++ {
		for u := 0; u < size; u++ {
			du := float64(u) - t.tx
			dv := float64(v) - t.ty
			x := ia*du - ib*dv
			y := ib*du + ia*dv

			sx := bounds.Min.X + int(x+0.5)
			sy := bounds.Min.Y + int(y+0.5)
			if sx < bounds.Min.X || sx >= bounds.Max.X || sy < bounds.Min.Y || sy >= bounds.Max.Y {
				continue // stays black
			}

			r, g, b, a := img.At(sx, sy).RGBA()
			off := dst.PixOffset(u, v)
			dst.Pix[off] = uint8(r >> 8)
			dst.Pix[off+1] = uint8(g >> 8)
			dst.Pix[off+2] = uint8(b >> 8)
			dst.Pix[off+3] = uint8(a >> 8)
		}
	}

	return dst
}

// alignFace produces the 112x112 crop used by the recognition model. When
// the similarity estimate degenerates, it falls back to the landmark
// bounding box padded by 20px, cropped and resized.
func alignFace(img image.Image, landmarks [5][2]float32) *image.RGBA {
	tform, ok := estimateSimilarity(landmarks, arcfaceTemplate)
	if ok {
		return tform.warp(img, alignSize)
	}

	minX, minY := landmarks[0][0], landmarks[0][1]
	maxX, maxY := minX, minY
	for _, p := range landmarks[1:] {
		minX = min(minX, p[0])
		minY = min(minY, p[1])
		maxX = max(maxX, p[0])
		maxY = max(maxY, p[1])
	}

	rect := image.Rect(int(minX)-20, int(minY)-20, int(maxX)+20, int(maxY)+20)
	crop := imaging.Crop(img, rect)
	if crop.Bounds().Dx() == 0 || crop.Bounds().Dy() == 0 {
		return image.NewRGBA(image.Rect(0, 0, alignSize, alignSize))
	}
	return imaging.Resize(crop, alignSize, alignSize)
}
