package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PhotoRepository reads ready photos and writes pipeline results back.
type PhotoRepository struct {
	pool *Pool
}

func NewPhotoRepository(pool *Pool) *PhotoRepository {
	return &PhotoRepository{pool: pool}
}

// GetReady fetches a photo only if it is in the 'ready' state.
// Returns ErrNotFound for missing or not-ready photos; the caller is
// expected to silently complete the corresponding queue entry.
func (r *PhotoRepository) GetReady(ctx context.Context, photoID string) (*Photo, error) {
	query := `
		SELECT id, COALESCE(small_width, 0), COALESCE(small_height, 0), taken_at
		FROM photos
		WHERE id = $1 AND status = 'ready'
	`

	var photo Photo
	var takenAt sql.NullTime
	err := r.pool.QueryRow(ctx, query, photoID).Scan(&photo.ID, &photo.SmallWidth, &photo.SmallHeight, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching photo %s: %w", photoID, err)
	}
	if takenAt.Valid {
		photo.TakenAt = &takenAt.Time
	}

	return &photo, nil
}

// UpdateAIResults writes the per-photo outcome: processed timestamp, person
// id set, OCR text/date, and optionally taken_at backfilled from the OCR
// date when it was null.
func (r *PhotoRepository) UpdateAIResults(ctx context.Context, photoID string, results *AIResults) error {
	updates := "ai_processed_at = NOW(), ai_person_ids = $1"
	args := []any{personIDsParam(results.PersonIDs)}
	idx := 2

	if results.OCRText != nil {
		updates += fmt.Sprintf(", ai_ocr_text = $%d", idx)
		args = append(args, *results.OCRText)
		idx++
	}

	if results.OCRDate != nil {
		updates += fmt.Sprintf(", ai_ocr_date = $%d", idx)
		args = append(args, *results.OCRDate)
		idx++

		if results.UpdateTakenAt {
			updates += fmt.Sprintf(", taken_at = COALESCE(taken_at, $%d)", idx)
			args = append(args, *results.OCRDate)
			idx++
		}
	}

	args = append(args, photoID)
	query := fmt.Sprintf("UPDATE photos SET %s WHERE id = $%d", updates, idx)

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("updating photo %s results: %w", photoID, err)
	}
	return nil
}

func personIDsParam(ids []string) any {
	if len(ids) == 0 {
		return nil
	}
	return pq.Array(ids)
}
