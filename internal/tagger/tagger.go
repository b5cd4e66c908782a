package tagger

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/eduard256/imgable-ai/internal/config"
	"github.com/eduard256/imgable-ai/internal/imaging"
	"github.com/eduard256/imgable-ai/internal/logger"
	"github.com/eduard256/imgable-ai/internal/modelcache"
)

const clipInputSize = 224

// clipMean and clipStd are the CLIP preprocessing statistics scaled to the
// 0..255 pixel range.
var (
	clipMean = [3]float32{0.48145466 * 255, 0.4578275 * 255, 0.40821073 * 255}
	clipStd  = [3]float32{0.26862954 * 255, 0.26130258 * 255, 0.27577711 * 255}
)

// Tag is a zero-shot classification result.
type Tag struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"` // object | scene
	Confidence float64 `json:"confidence"`
}

// Tagger classifies photos against the fixed object and scene vocabularies
// by comparing CLIP image embeddings with cached label embeddings.
type Tagger struct {
	models *modelcache.Manager
	cfg    config.TagsConfig
	log    *logger.Logger

	mu       sync.Mutex
	labelEmb map[string][]float32 // label -> normalized text embedding
}

func New(models *modelcache.Manager, cfg config.TagsConfig, log *logger.Logger) *Tagger {
	return &Tagger{
		models:   models,
		cfg:      cfg,
		log:      log,
		labelEmb: make(map[string][]float32),
	}
}

// TagImage returns the labels whose similarity with the image embedding
// meets the configured confidence, best first, capped at max per photo.
func (t *Tagger) TagImage(ctx context.Context, img image.Image) ([]Tag, error) {
	if !t.cfg.Enabled {
		return nil, nil
	}

	labels, err := Labels()
	if err != nil {
		return nil, fmt.Errorf("loading label set: %w", err)
	}

	if err := t.ensureLabelEmbeddings(ctx, labels); err != nil {
		return nil, err
	}

	imgEmb, err := t.imageEmbedding(ctx, img)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var tags []Tag
	for _, label := range labels.Objects {
		if s := dot(imgEmb, t.labelEmb[label]); s >= t.cfg.MinConfidence {
			tags = append(tags, Tag{Name: label, Type: "object", Confidence: s})
		}
	}
	for _, label := range labels.Scenes {
		if s := dot(imgEmb, t.labelEmb[label]); s >= t.cfg.MinConfidence {
			tags = append(tags, Tag{Name: label, Type: "scene", Confidence: s})
		}
	}

	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Confidence > tags[j].Confidence
	})
	if len(tags) > t.cfg.MaxPerPhoto {
		tags = tags[:t.cfg.MaxPerPhoto]
	}

	return tags, nil
}

// DropCache forgets the label embeddings. Called when models are unloaded
// so a later run rebuilds them with a freshly loaded encoder.
func (t *Tagger) DropCache() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.labelEmb = make(map[string][]float32)
}

// ensureLabelEmbeddings computes and caches the text embedding of every
// label. The cache is write-once between drops.
func (t *Tagger) ensureLabelEmbeddings(ctx context.Context, labels LabelSet) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := len(labels.Objects) + len(labels.Scenes)
	if len(t.labelEmb) >= total {
		return nil
	}

	session, err := t.models.Load(ctx, "clip_textual")
	if err != nil {
		return fmt.Errorf("loading text encoder: %w", err)
	}

	t.log.WithField("labels", total).Info("building label embeddings")

	for _, label := range append(append([]string{}, labels.Objects...), labels.Scenes...) {
		if _, ok := t.labelEmb[label]; ok {
			continue
		}
		emb, err := textEmbedding(session, label)
		if err != nil {
			return fmt.Errorf("embedding label %q: %w", label, err)
		}
		t.labelEmb[label] = emb
	}

	return nil
}

// textEmbedding runs one prompt through the text encoder and normalizes
// the result.
func textEmbedding(session *modelcache.Session, label string) ([]float32, error) {
	tokens := tokenize("a photo of " + label)

	input, err := ort.NewTensor(ort.NewShape(1, contextLength), tokens)
	if err != nil {
		return nil, fmt.Errorf("creating token tensor: %w", err)
	}
	defer input.Destroy()

	outputs, err := session.Run([]ort.Value{input})
	if err != nil {
		return nil, fmt.Errorf("running text encoder: %w", err)
	}
	defer destroyAll(outputs)

	return firstEmbedding(outputs)
}

// imageEmbedding preprocesses the photo and runs the vision encoder.
func (t *Tagger) imageEmbedding(ctx context.Context, img image.Image) ([]float32, error) {
	cropped := imaging.CenterCrop(img, clipInputSize)
	data := imaging.ToFloat32CHW(cropped, clipInputSize, clipInputSize, clipMean, clipStd)

	session, err := t.models.Load(ctx, "clip_visual")
	if err != nil {
		return nil, fmt.Errorf("loading vision encoder: %w", err)
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, clipInputSize, clipInputSize), data)
	if err != nil {
		return nil, fmt.Errorf("creating image tensor: %w", err)
	}
	defer input.Destroy()

	outputs, err := session.Run([]ort.Value{input})
	if err != nil {
		return nil, fmt.Errorf("running vision encoder: %w", err)
	}
	defer destroyAll(outputs)

	return firstEmbedding(outputs)
}

// firstEmbedding copies and L2-normalizes the first output tensor.
func firstEmbedding(outputs []ort.Value) ([]float32, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("encoder produced no outputs")
	}
	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected encoder output type")
	}

	data := tensor.GetData()
	if len(data) == 0 {
		return nil, fmt.Errorf("empty encoder output")
	}

	emb := make([]float32, len(data))
	copy(emb, data)

	var norm float64
	for _, x := range emb {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		inv := float32(1.0 / norm)
		for i := range emb {
			emb[i] *= inv
		}
	}
	return emb, nil
}

func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func destroyAll(outputs []ort.Value) {
	for _, out := range outputs {
		if out != nil {
			out.Destroy()
		}
	}
}
