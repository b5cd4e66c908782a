package vision

import (
	"context"
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/eduard256/imgable-ai/internal/imaging"
	"github.com/eduard256/imgable-ai/internal/logger"
	"github.com/eduard256/imgable-ai/internal/modelcache"
)

// EmbeddingDim is the output dimension of the face recognition model.
const EmbeddingDim = 512

// Embedder extracts unit-length face embeddings from aligned crops.
type Embedder struct {
	models *modelcache.Manager
	log    *logger.Logger
}

func NewEmbedder(models *modelcache.Manager, log *logger.Logger) *Embedder {
	return &Embedder{models: models, log: log}
}

// Embed aligns one detected face and returns its L2-normalized embedding.
func (e *Embedder) Embed(ctx context.Context, img image.Image, face Face) ([]float32, error) {
	aligned := alignFace(img, face.Landmarks)

	data := imaging.ToFloat32CHW(aligned, alignSize, alignSize,
		[3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})

	session, err := e.models.Load(ctx, "face_embedding")
	if err != nil {
		return nil, fmt.Errorf("loading embedding model: %w", err)
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, alignSize, alignSize), data)
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}
	defer input.Destroy()

	outputs, err := session.Run([]ort.Value{input})
	if err != nil {
		return nil, fmt.Errorf("running embedding: %w", err)
	}
	defer destroyAll(outputs)

	t, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected embedding output type")
	}

	out := t.GetData()
	if len(out) < EmbeddingDim {
		return nil, fmt.Errorf("embedding output too short: %d", len(out))
	}

	embedding := make([]float32, EmbeddingDim)
	copy(embedding, out[:EmbeddingDim])
	l2Normalize(embedding)

	return embedding, nil
}

// EmbedAll fills the Embedding field of every face. A failure on one face
// leaves its embedding nil and does not abort the batch.
func (e *Embedder) EmbedAll(ctx context.Context, img image.Image, faces []Face) []Face {
	for i := range faces {
		embedding, err := e.Embed(ctx, img, faces[i])
		if err != nil {
			e.log.WithError(err).Warn("failed to embed face")
			faces[i].Embedding = nil
			continue
		}
		faces[i].Embedding = embedding
	}
	return faces
}

// l2Normalize scales v in-place to unit length. Zero vectors are left
// unchanged; callers treat them as invalid.
func l2Normalize(v []float32) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	inv := float32(1.0 / norm)
	for i := range v {
		v[i] *= inv
	}
}
