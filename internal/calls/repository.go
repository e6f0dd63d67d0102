package calls

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callvox/backend/internal/models"
)

// Repository handles scheduled call persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a calls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a scheduled call. scheduledAt must already be UTC-normalized.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, name, phone string, scheduledAt time.Time) (*models.ScheduledCall, error) {
	const q = `INSERT INTO calls (user_id, name, phone, scheduled_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, name, phone, scheduled_at, completed, completed_at, created_at`
	var call models.ScheduledCall
	err := r.pool.QueryRow(ctx, q, userID, name, phone, scheduledAt).
		Scan(&call.ID, &call.UserID, &call.Name, &call.Phone, &call.ScheduledAt, &call.Completed, &call.CompletedAt, &call.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// ListByUser returns a user's scheduled calls, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ScheduledCall, error) {
	const q = `SELECT id, user_id, name, phone, scheduled_at, completed, completed_at, created_at
		FROM calls WHERE user_id = $1 ORDER BY scheduled_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ScheduledCall
	for rows.Next() {
		var call models.ScheduledCall
		if err := rows.Scan(&call.ID, &call.UserID, &call.Name, &call.Phone, &call.ScheduledAt, &call.Completed, &call.CompletedAt, &call.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, call)
	}
	return list, rows.Err()
}

// FindDue returns incomplete calls whose scheduled time is at or before now.
func (r *Repository) FindDue(ctx context.Context, now time.Time) ([]models.ScheduledCall, error) {
	const q = `SELECT id, user_id, name, phone, scheduled_at, completed, completed_at, created_at
		FROM calls WHERE NOT completed AND scheduled_at <= $1 ORDER BY scheduled_at ASC`
	rows, err := r.pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ScheduledCall
	for rows.Next() {
		var call models.ScheduledCall
		if err := rows.Scan(&call.ID, &call.UserID, &call.Name, &call.Phone, &call.ScheduledAt, &call.Completed, &call.CompletedAt, &call.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, call)
	}
	return list, rows.Err()
}

// MarkDialed flips the call from incomplete to complete. The WHERE clause makes
// the update conditional: when two scheduler invocations race on the same row,
// exactly one sees rows-affected = 1 and only that one may dial.
func (r *Repository) MarkDialed(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE calls SET completed = TRUE, completed_at = NOW() WHERE id = $1 AND NOT completed`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Reopen clears the completion flag after a failed dispatch so the next
// scheduler pass retries the call.
func (r *Repository) Reopen(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE calls SET completed = FALSE, completed_at = NULL WHERE id = $1`, id)
	return err
}
