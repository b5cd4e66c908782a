package imaging

import (
	"image"
	"image/color"
)

// ToFloat32CHW converts an image to a channels-first float32 tensor of shape
// [3, height, width] sampled with nearest neighbour, normalising each channel
// as (pixel - mean) / std. Direct pixel access avoids the image.Image
// interface overhead on the hot path.
func ToFloat32CHW(img image.Image, width, height int, mean, std [3]float32) []float32 {
	data := make([]float32, 3*height*width)
	planeSize := height * width

	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()
	minX := bounds.Min.X
	minY := bounds.Min.Y

	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < height; y++ {
			srcY := minY + y*srcH/height
			for x := 0; x < width; x++ {
				srcX := minX + x*srcW/width
				off := src.PixOffset(srcX, srcY)
				pix := src.Pix[off : off+3 : off+3]
				idx := y*width + x
				data[idx] = (float32(pix[0]) - mean[0]) / std[0]
				data[planeSize+idx] = (float32(pix[1]) - mean[1]) / std[1]
				data[2*planeSize+idx] = (float32(pix[2]) - mean[2]) / std[2]
			}
		}
	case *image.YCbCr:
		for y := 0; y < height; y++ {
			srcY := minY + y*srcH/height
			for x := 0; x < width; x++ {
				srcX := minX + x*srcW/width
				yi := src.YOffset(srcX, srcY)
				ci := src.COffset(srcX, srcY)
				r8, g8, b8 := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				idx := y*width + x
				data[idx] = (float32(r8) - mean[0]) / std[0]
				data[planeSize+idx] = (float32(g8) - mean[1]) / std[1]
				data[2*planeSize+idx] = (float32(b8) - mean[2]) / std[2]
			}
		}
	default:
		// Generic path (NRGBA, Gray, etc.)
		for y := 0; y < height; y++ {
			srcY := minY + y*srcH/height
			for x := 0; x < width; x++ {
				srcX := minX + x*srcW/width
				r, g, b, _ := img.At(srcX, srcY).RGBA()
				idx := y*width + x
				data[idx] = (float32(r>>8) - mean[0]) / std[0]
				data[planeSize+idx] = (float32(g>>8) - mean[1]) / std[1]
				data[2*planeSize+idx] = (float32(b>>8) - mean[2]) / std[2]
			}
		}
	}

	return data
}
