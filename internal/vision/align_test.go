package vision

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestEstimateSimilarity_Identity(t *testing.T) {
	tform, ok := estimateSimilarity(arcfaceTemplate, arcfaceTemplate)
	if !ok {
		t.Fatal("expected valid transform")
	}

	if math.Abs(tform.a-1) > 1e-9 || math.Abs(tform.b) > 1e-9 {
		t.Errorf("expected identity rotation, got a=%f b=%f", tform.a, tform.b)
	}
	if math.Abs(tform.tx) > 1e-9 || math.Abs(tform.ty) > 1e-9 {
		t.Errorf("expected zero translation, got tx=%f ty=%f", tform.tx, tform.ty)
	}
}

func TestEstimateSimilarity_Translation(t *testing.T) {
	var src [5][2]float32
	for i, p := range arcfaceTemplate {
		src[i] = [2]float32{p[0] - 10, p[1] + 25}
	}

	tform, ok := estimateSimilarity(src, arcfaceTemplate)
	if !ok {
		t.Fatal("expected valid transform")
	}

	for i, p := range src {
		u, v := tform.apply(float64(p[0]), float64(p[1]))
		if math.Abs(u-float64(arcfaceTemplate[i][0])) > 1e-6 ||
			math.Abs(v-float64(arcfaceTemplate[i][1])) > 1e-6 {
			t.Errorf("point %d mapped to (%f, %f), want %v", i, u, v, arcfaceTemplate[i])
		}
	}
}

func TestEstimateSimilarity_RotationScale(t *testing.T) {
	// Rotate the template 90° and double it; the fit must recover the
	// inverse exactly since a similarity relates the two point sets.
	var src [5][2]float32
	for i, p := range arcfaceTemplate {
		src[i] = [2]float32{-2 * p[1], 2 * p[0]}
	}

	tform, ok := estimateSimilarity(src, arcfaceTemplate)
	if !ok {
		t.Fatal("expected valid transform")
	}

	for i, p := range src {
		u, v := tform.apply(float64(p[0]), float64(p[1]))
		if math.Abs(u-float64(arcfaceTemplate[i][0])) > 1e-6 ||
			math.Abs(v-float64(arcfaceTemplate[i][1])) > 1e-6 {
			t.Errorf("point %d mapped to (%f, %f), want %v", i, u, v, arcfaceTemplate[i])
		}
	}
}

func TestEstimateSimilarity_DegenerateCoincident(t *testing.T) {
	var src [5][2]float32
	for i := range src {
		src[i] = [2]float32{50, 50}
	}

	if _, ok := estimateSimilarity(src, arcfaceTemplate); ok {
		t.Error("expected coincident points to fail")
	}
}

func TestAlignFace_OutputSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}

	// Landmarks roughly matching a centered upright face.
	var landmarks [5][2]float32
	for i, p := range arcfaceTemplate {
		landmarks[i] = [2]float32{p[0] + 40, p[1] + 40}
	}

	crop := alignFace(img, landmarks)

	if crop.Bounds().Dx() != alignSize || crop.Bounds().Dy() != alignSize {
		t.Errorf("expected %dx%d crop, got %v", alignSize, alignSize, crop.Bounds())
	}
}

func TestAlignFace_FallbackOnDegenerateLandmarks(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))

	var landmarks [5][2]float32
	for i := range landmarks {
		landmarks[i] = [2]float32{100, 100}
	}

	crop := alignFace(img, landmarks)

	if crop.Bounds().Dx() != alignSize || crop.Bounds().Dy() != alignSize {
		t.Errorf("expected fallback crop %dx%d, got %v", alignSize, alignSize, crop.Bounds())
	}
}

func TestWarp_IdentityPreservesPixels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, alignSize, alignSize))
	img.Set(10, 20, color.RGBA{200, 100, 50, 255})

	tform := similarity{a: 1, b: 0, tx: 0, ty: 0}
	out := tform.warp(img, alignSize)

	r, g, b, _ := out.At(10, 20).RGBA()
	if uint8(r>>8) != 200 || uint8(g>>8) != 100 || uint8(b>>8) != 50 {
		t.Errorf("identity warp changed pixel: %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestL2Normalize(t *testing.T) {
	v := []float32{3, 4}
	l2Normalize(v)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-6 {
		t.Errorf("expected unit norm, got %f", math.Sqrt(norm))
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 {
		t.Errorf("unexpected component %f", v[0])
	}
}

func TestL2Normalize_ZeroVectorUnchanged(t *testing.T) {
	v := []float32{0, 0, 0}
	l2Normalize(v)
	for _, x := range v {
		if x != 0 {
			t.Errorf("zero vector modified: %v", v)
		}
	}
}
