package database

import (
	"context"
	"fmt"
)

// TagRepository persists object/scene tags and their photo edges.
type TagRepository struct {
	pool *Pool
}

func NewTagRepository(pool *Pool) *TagRepository {
	return &TagRepository{pool: pool}
}

// UpsertTag ensures a tag row exists for the given deterministic id.
func (r *TagRepository) UpsertTag(ctx context.Context, tagID, tagType, name string) error {
	query := `
		INSERT INTO ai_tags (id, type, name, photo_count, created_at, updated_at)
		VALUES ($1, $2, $3, 0, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, tagID, tagType, name); err != nil {
		return fmt.Errorf("upserting tag %s: %w", tagID, err)
	}
	return nil
}

// InsertPhotoTag attaches a scored tag to a photo. The (photo_id, tag_id)
// pair is the natural key; repeats are skipped.
func (r *TagRepository) InsertPhotoTag(ctx context.Context, id, photoID, tagID string, confidence float64) error {
	query := `
		INSERT INTO photo_tags (id, photo_id, tag_id, confidence, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (photo_id, tag_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, id, photoID, tagID, confidence); err != nil {
		return fmt.Errorf("inserting photo tag %s/%s: %w", photoID, tagID, err)
	}
	return nil
}
