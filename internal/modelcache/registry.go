// Package modelcache manages the lifecycle of ONNX inference models:
// download-on-demand, lazy loading, TTL-based eviction, and idle unload.
package modelcache

import "fmt"

// ModelDef describes one downloadable inference artifact.
type ModelDef struct {
	// Name is the logical model name used throughout the pipeline.
	Name string
	// Repo is the HuggingFace repository the artifact lives in.
	Repo string
	// Filename is the path of the artifact inside the repository.
	Filename string
	// LocalName is the canonical filename under the models directory.
	LocalName string
	// Description for the control API.
	Description string
}

// Registry of every model the pipeline knows about.
var Registry = []ModelDef{
	{
		Name:        "face_detection",
		Repo:        "public-data/insightface",
		Filename:    "models/buffalo_l/det_10g.onnx",
		LocalName:   "det_10g.onnx",
		Description: "SCRFD 10G face detection model",
	},
	{
		Name:        "face_embedding",
		Repo:        "public-data/insightface",
		Filename:    "models/buffalo_l/w600k_r50.onnx",
		LocalName:   "w600k_r50.onnx",
		Description: "ArcFace W600K ResNet50 face recognition model",
	},
	{
		Name:        "clip_visual",
		Repo:        "Qdrant/clip-ViT-B-32-vision",
		Filename:    "model.onnx",
		LocalName:   "clip_visual.onnx",
		Description: "CLIP ViT-B/32 visual encoder",
	},
	{
		Name:        "clip_textual",
		Repo:        "Qdrant/clip-ViT-B-32-text",
		Filename:    "model.onnx",
		LocalName:   "clip_textual.onnx",
		Description: "CLIP ViT-B/32 text encoder",
	},
	{
		Name:        "text_recognition",
		Repo:        "imgable/ocr-models",
		Filename:    "ocr_rec.onnx",
		LocalName:   "ocr_rec.onnx",
		Description: "CTC text recognition model for date stamps",
	},
}

// Lookup returns the definition for a logical model name.
func Lookup(name string) (ModelDef, error) {
	for _, def := range Registry {
		if def.Name == name {
			return def, nil
		}
	}
	return ModelDef{}, fmt.Errorf("unknown model: %s", name)
}

// DownloadURL builds the HTTPS URL for a model artifact. A non-empty
// repoOverride replaces the registry repository.
func DownloadURL(def ModelDef, repoOverride string) string {
	repo := def.Repo
	if repoOverride != "" {
		repo = repoOverride
	}
	return fmt.Sprintf("https://huggingface.co/%s/resolve/main/%s", repo, def.Filename)
}
