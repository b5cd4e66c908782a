package imaging

import (
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestPreviewPath(t *testing.T) {
	got := PreviewPath("/media", "abcd1234")
	want := "/media/ab/cd/abcd1234_s.webp"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestPreviewPath_ShortID(t *testing.T) {
	got := PreviewPath("/media", "ab")
	want := "/media/ab_s.webp"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestLetterbox_Landscape(t *testing.T) {
	img := solidImage(800, 400, color.RGBA{255, 0, 0, 255})

	out, scale := Letterbox(img, 640)

	if out.Bounds().Dx() != 640 || out.Bounds().Dy() != 640 {
		t.Fatalf("expected 640x640, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
	if scale != 0.8 {
		t.Errorf("expected scale 0.8, got %f", scale)
	}

	// Content fills the top; the bottom is zero padding.
	_, _, _, a := out.At(10, 10).RGBA()
	if a == 0 {
		t.Error("expected content in the scaled region")
	}
	r, g, b, _ := out.At(10, 500).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("expected black padding below content, got (%d,%d,%d)", r, g, b)
	}
}

func TestLetterbox_Portrait(t *testing.T) {
	img := solidImage(300, 600, color.RGBA{0, 255, 0, 255})

	out, scale := Letterbox(img, 640)

	if out.Bounds().Dx() != 640 || out.Bounds().Dy() != 640 {
		t.Fatalf("expected 640x640, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
	if want := 640.0 / 600.0; scale < want-1e-9 || scale > want+1e-9 {
		t.Errorf("expected scale %f, got %f", want, scale)
	}

	// Right side is padding.
	r, g, b, _ := out.At(630, 10).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("expected black padding right of content, got (%d,%d,%d)", r, g, b)
	}
}

func TestCenterCrop(t *testing.T) {
	img := solidImage(448, 336, color.RGBA{10, 20, 30, 255})

	out := CenterCrop(img, 224)

	if out.Bounds().Dx() != 224 || out.Bounds().Dy() != 224 {
		t.Fatalf("expected 224x224, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestCenterCrop_SmallerThanTarget(t *testing.T) {
	// Images smaller than the target are upscaled first.
	img := solidImage(100, 150, color.RGBA{10, 20, 30, 255})

	out := CenterCrop(img, 224)

	if out.Bounds().Dx() != 224 || out.Bounds().Dy() != 224 {
		t.Fatalf("expected 224x224, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestCrop_Clamped(t *testing.T) {
	img := solidImage(100, 100, color.RGBA{1, 2, 3, 255})

	out := Crop(img, image.Rect(80, 80, 200, 200))

	if out.Bounds().Dx() != 20 || out.Bounds().Dy() != 20 {
		t.Errorf("expected 20x20 clamped crop, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestToFloat32CHW_Shape(t *testing.T) {
	img := solidImage(10, 10, color.RGBA{127, 127, 127, 255})

	data := ToFloat32CHW(img, 8, 8, [3]float32{127.5, 127.5, 127.5}, [3]float32{128, 128, 128})

	if len(data) != 3*8*8 {
		t.Fatalf("expected %d values, got %d", 3*8*8, len(data))
	}
	// (127 - 127.5) / 128 for every channel of a uniform gray image.
	want := float32(127-127.5) / 128
	for i, v := range data {
		if v != want {
			t.Fatalf("value %d: expected %f, got %f", i, want, v)
		}
	}
}

func TestToFloat32CHW_ChannelOrder(t *testing.T) {
	img := solidImage(4, 4, color.RGBA{200, 100, 50, 255})

	data := ToFloat32CHW(img, 4, 4, [3]float32{0, 0, 0}, [3]float32{1, 1, 1})

	plane := 4 * 4
	if data[0] != 200 {
		t.Errorf("expected R plane first, got %f", data[0])
	}
	if data[plane] != 100 {
		t.Errorf("expected G plane second, got %f", data[plane])
	}
	if data[2*plane] != 50 {
		t.Errorf("expected B plane third, got %f", data[2*plane])
	}
}
