package database

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// PersonRepository persists persons and their face embeddings.
type PersonRepository struct {
	pool *Pool
}

func NewPersonRepository(pool *Pool) *PersonRepository {
	return &PersonRepository{pool: pool}
}

// InsertPerson creates a new person row.
func (r *PersonRepository) InsertPerson(ctx context.Context, personID, name string) error {
	query := `
		INSERT INTO persons (id, name, name_source, photo_count, created_at, updated_at)
		VALUES ($1, $2, 'auto', 0, NOW(), NOW())
	`
	if _, err := r.pool.Exec(ctx, query, personID, name); err != nil {
		return fmt.Errorf("inserting person %s: %w", personID, err)
	}
	return nil
}

// InsertFace creates a gallery face owned by a person.
func (r *PersonRepository) InsertFace(ctx context.Context, faceID, personID string, embedding []float32) error {
	query := `
		INSERT INTO faces (id, person_id, embedding, photo_count, created_at, updated_at)
		VALUES ($1, $2, $3, 0, NOW(), NOW())
	`
	if _, err := r.pool.Exec(ctx, query, faceID, personID, pgvector.NewVector(embedding)); err != nil {
		return fmt.Errorf("inserting face %s: %w", faceID, err)
	}
	return nil
}

// CountPersons returns the number of persons, used to derive auto names.
func (r *PersonRepository) CountPersons(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM persons").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting persons: %w", err)
	}
	return count, nil
}

// LoadGallery returns every face with a non-null embedding, for seeding the
// in-memory clusterer at startup.
func (r *PersonRepository) LoadGallery(ctx context.Context) ([]GalleryFace, error) {
	query := `
		SELECT id, person_id, embedding
		FROM faces
		WHERE embedding IS NOT NULL
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("loading face gallery: %w", err)
	}
	defer rows.Close()

	var gallery []GalleryFace
	for rows.Next() {
		var face GalleryFace
		var vec pgvector.Vector
		if err := rows.Scan(&face.FaceID, &face.PersonID, &vec); err != nil {
			return nil, fmt.Errorf("scanning gallery face: %w", err)
		}
		face.Embedding = vec.Slice()
		gallery = append(gallery, face)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating face gallery: %w", err)
	}

	return gallery, nil
}

// InsertPhotoFace attaches a detected face to a photo. Duplicate
// (photo_id, face_id) pairs are skipped.
func (r *PersonRepository) InsertPhotoFace(ctx context.Context, id string, face *PhotoFace) error {
	query := `
		INSERT INTO photo_faces (id, photo_id, face_id, box_x, box_y, box_w, box_h, embedding, confidence, hidden, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, NOW())
		ON CONFLICT (photo_id, face_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, id, face.PhotoID, face.FaceID,
		face.BoxX, face.BoxY, face.BoxW, face.BoxH,
		pgvector.NewVector(face.Embedding), face.Confidence)
	if err != nil {
		return fmt.Errorf("inserting photo face %s/%s: %w", face.PhotoID, face.FaceID, err)
	}
	return nil
}
