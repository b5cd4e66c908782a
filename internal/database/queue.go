package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// QueueRepository implements the claim protocol on the ai_queue table.
type QueueRepository struct {
	pool *Pool
}

func NewQueueRepository(pool *Pool) *QueueRepository {
	return &QueueRepository{pool: pool}
}

// ClaimNext atomically claims the highest-priority, oldest pending entry.
// Rows locked by a concurrent claimer are skipped, so each pending entry is
// handed to at most one caller. Returns ErrNotFound when the queue is empty.
func (r *QueueRepository) ClaimNext(ctx context.Context) (*WorkItem, error) {
	query := `
		UPDATE ai_queue
		SET status = 'processing', started_at = NOW(), attempts = attempts + 1
		WHERE photo_id = (
			SELECT photo_id FROM ai_queue
			WHERE status = 'pending'
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING photo_id, attempts
	`

	var item WorkItem
	err := r.pool.QueryRow(ctx, query).Scan(&item.PhotoID, &item.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claiming queue entry: %w", err)
	}

	return &item, nil
}

// Complete marks an entry done.
func (r *QueueRepository) Complete(ctx context.Context, photoID string) error {
	query := `
		UPDATE ai_queue
		SET status = 'done', completed_at = NOW()
		WHERE photo_id = $1
	`
	if _, err := r.pool.Exec(ctx, query, photoID); err != nil {
		return fmt.Errorf("completing queue entry %s: %w", photoID, err)
	}
	return nil
}

// Fail records an error on an entry. Entries that have exhausted their
// attempts are parked in 'error'; everything else bounces back to 'pending'.
func (r *QueueRepository) Fail(ctx context.Context, photoID, errText string, maxRetries int) error {
	query := `
		UPDATE ai_queue
		SET
			status = CASE WHEN attempts >= $3 THEN 'error' ELSE 'pending' END,
			last_error = $2,
			started_at = NULL
		WHERE photo_id = $1
	`
	if _, err := r.pool.Exec(ctx, query, photoID, errText, maxRetries); err != nil {
		return fmt.Errorf("failing queue entry %s: %w", photoID, err)
	}
	return nil
}

// ResetStuck returns entries stuck in 'processing' (typically after a worker
// crash) back to 'pending'. Returns the number of rows reset.
func (r *QueueRepository) ResetStuck(ctx context.Context, timeout time.Duration) (int, error) {
	query := `
		UPDATE ai_queue
		SET status = 'pending', started_at = NULL
		WHERE status = 'processing'
		  AND started_at < NOW() - $1::interval
	`
	result, err := r.pool.Exec(ctx, query, fmt.Sprintf("%d seconds", int(timeout.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("resetting stuck entries: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting reset entries: %w", err)
	}
	return int(count), nil
}

// Stats returns per-status counts for the whole queue.
func (r *QueueRepository) Stats(ctx context.Context) (*QueueStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'processing') AS processing,
			COUNT(*) FILTER (WHERE status = 'done') AS done,
			COUNT(*) FILTER (WHERE status = 'error') AS error
		FROM ai_queue
	`

	var stats QueueStats
	err := r.pool.QueryRow(ctx, query).Scan(&stats.Pending, &stats.Processing, &stats.Done, &stats.Error)
	if err != nil {
		return nil, fmt.Errorf("querying queue stats: %w", err)
	}
	return &stats, nil
}

// PendingCount is the fast path for the scan timer.
func (r *QueueRepository) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ai_queue WHERE status = 'pending'").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting pending entries: %w", err)
	}
	return count, nil
}

// Enqueue inserts a pending entry, used by tests and the CLI.
func (r *QueueRepository) Enqueue(ctx context.Context, photoID string, priority int) error {
	query := `
		INSERT INTO ai_queue (photo_id, status, priority, created_at)
		VALUES ($1, 'pending', $2, NOW())
		ON CONFLICT (photo_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, photoID, priority); err != nil {
		return fmt.Errorf("enqueueing %s: %w", photoID, err)
	}
	return nil
}
