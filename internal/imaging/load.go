// Package imaging loads preview images and converts them into the pixel
// layouts the inference models expect.
package imaging

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/webp"
)

// PreviewPath builds the content-addressed path of a photo's small preview:
// <mediaPath>/<id[0:2]>/<id[2:4]>/<id>_s.webp.
func PreviewPath(mediaPath, photoID string) string {
	if len(photoID) < 4 {
		return filepath.Join(mediaPath, photoID+"_s.webp")
	}
	return filepath.Join(mediaPath, photoID[0:2], photoID[2:4], photoID+"_s.webp")
}

// LoadPreview reads and decodes the small preview for a photo.
func LoadPreview(mediaPath, photoID string) (image.Image, error) {
	path := PreviewPath(mediaPath, photoID)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening preview %s: %w", path, err)
	}
	defer f.Close()

	img, err := webp.Decode(f)
	if err == nil {
		return img, nil
	}

	// Previews are webp by convention but older imports may differ.
	if _, seekErr := f.Seek(0, 0); seekErr != nil {
		return nil, fmt.Errorf("decoding preview %s: %w", path, err)
	}
	img, _, err = image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding preview %s: %w", path, err)
	}
	return img, nil
}
