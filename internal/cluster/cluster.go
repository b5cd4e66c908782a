package cluster

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"

	"github.com/eduard256/imgable-ai/internal/database"
	"github.com/eduard256/imgable-ai/internal/logger"
)

const (
	// hnswMaxNeighbors is the M parameter of the graph.
	hnswMaxNeighbors = 16

	// linearScanCutoff is the gallery size below which a plain linear scan
	// is used instead of the graph. The graph search is approximate; for
	// small galleries exact scanning is both cheaper and exact.
	linearScanCutoff = 512

	// searchK is how many graph candidates get re-verified with an exact
	// distance computation.
	searchK = 8
)

// Store persists newly minted persons and faces.
// *database.PersonRepository satisfies it.
type Store interface {
	InsertPerson(ctx context.Context, personID, name string) error
	InsertFace(ctx context.Context, faceID, personID string, embedding []float32) error
	CountPersons(ctx context.Context) (int, error)
}

// Assignment is the result of matching one face embedding against the
// gallery.
type Assignment struct {
	PersonID string
	FaceID   string
	IsNew    bool
}

type galleryEntry struct {
	personID  string
	embedding []float32
}

// Clusterer groups face embeddings into persons online: each incoming
// embedding either joins its nearest gallery face within the distance
// threshold or mints a new person. Assign calls are serialized so two
// concurrent faces of the same new person cannot race into two identities.
type Clusterer struct {
	mu        sync.Mutex
	store     Store
	threshold float64
	graph     *hnsw.Graph[string]
	faces     map[string]galleryEntry
	order     []string // face IDs in insertion order, for deterministic scans
	log       *logger.Logger
}

func New(store Store, threshold float64, log *logger.Logger) *Clusterer {
	return &Clusterer{
		store:     store,
		threshold: threshold,
		faces:     make(map[string]galleryEntry),
		log:       log,
	}
}

// Seed loads the existing gallery into memory. Call once at startup before
// any Assign.
func (c *Clusterer) Seed(gallery []database.GalleryFace) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.faces = make(map[string]galleryEntry, len(gallery))
	c.order = make([]string, 0, len(gallery))
	c.graph = newGraph()
	for _, face := range gallery {
		if len(face.Embedding) == 0 {
			continue
		}
		c.faces[face.FaceID] = galleryEntry{personID: face.PersonID, embedding: face.Embedding}
		c.order = append(c.order, face.FaceID)
		c.graph.Add(hnsw.MakeNode(face.FaceID, face.Embedding))
	}

	c.log.WithField("faces", len(c.faces)).Info("face gallery seeded")
}

// Size returns the number of gallery faces.
func (c *Clusterer) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.faces)
}

// Assign matches the embedding against the gallery. When the nearest face
// is strictly closer than the threshold, its person is reused; otherwise a
// new person and face are persisted and become immediately matchable.
func (c *Clusterer) Assign(ctx context.Context, embedding []float32) (Assignment, error) {
	if len(embedding) == 0 {
		return Assignment{}, fmt.Errorf("empty embedding")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bestFace, bestDist := c.nearest(embedding)
	if bestFace != "" && bestDist < c.threshold {
		return Assignment{
			PersonID: c.faces[bestFace].personID,
			FaceID:   bestFace,
		}, nil
	}

	count, err := c.store.CountPersons(ctx)
	if err != nil {
		return Assignment{}, fmt.Errorf("counting persons: %w", err)
	}

	personID := "person_" + randomSuffix()
	name := fmt.Sprintf("Unknown %d", count+1)
	if err := c.store.InsertPerson(ctx, personID, name); err != nil {
		return Assignment{}, err
	}

	faceID := "face_" + randomSuffix()
	if err := c.store.InsertFace(ctx, faceID, personID, embedding); err != nil {
		return Assignment{}, err
	}

	c.faces[faceID] = galleryEntry{personID: personID, embedding: embedding}
	c.order = append(c.order, faceID)
	if c.graph == nil {
		c.graph = newGraph()
	}
	c.graph.Add(hnsw.MakeNode(faceID, embedding))

	c.log.WithFields(map[string]interface{}{
		"person_id": personID,
		"name":      name,
	}).Debug("new person created")

	return Assignment{PersonID: personID, FaceID: faceID, IsNew: true}, nil
}

// nearest returns the closest gallery face and its exact cosine distance.
// Small galleries are scanned linearly; larger ones go through the graph,
// with candidate distances re-verified exactly so the threshold comparison
// stays precise.
func (c *Clusterer) nearest(embedding []float32) (string, float64) {
	bestFace := ""
	bestDist := 2.0

	if len(c.faces) <= linearScanCutoff || c.graph == nil {
		// Walk in insertion order so equal-distance ties always resolve to
		// the earliest face.
		for _, faceID := range c.order {
			d := database.CosineDistance(embedding, c.faces[faceID].embedding)
			if d < bestDist {
				bestDist = d
				bestFace = faceID
			}
		}
		return bestFace, bestDist
	}

	for _, node := range c.graph.Search(embedding, searchK) {
		entry, ok := c.faces[node.Key]
		if !ok {
			continue
		}
		d := database.CosineDistance(embedding, entry.embedding)
		if d < bestDist {
			bestDist = d
			bestFace = node.Key
		}
	}
	return bestFace, bestDist
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

func randomSuffix() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])[:12]
}
