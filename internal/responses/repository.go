package responses

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callvox/backend/internal/models"
)

// Repository handles collected questionnaire answers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a responses repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertAnswer merges one answer into the session's record. The jsonb || merge
// is per-index last-write-wins: a duplicate delivery for the same index
// overwrites only that index and leaves the others intact.
func (r *Repository) UpsertAnswer(ctx context.Context, callSid string, index int, answer string) error {
	patch, err := json.Marshal(map[string]string{strconv.Itoa(index): answer})
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO responses (call_sid, answers) VALUES ($1, $2)
		 ON CONFLICT (call_sid) DO UPDATE SET answers = responses.answers || EXCLUDED.answers`,
		callSid, patch)
	return err
}

// GetBySid returns the answers collected for one call session.
func (r *Repository) GetBySid(ctx context.Context, callSid string) (*models.CallResponse, error) {
	const q = `SELECT call_sid, answers, created_at FROM responses WHERE call_sid = $1`
	var resp models.CallResponse
	var raw []byte
	err := r.pool.QueryRow(ctx, q, callSid).Scan(&resp.CallSid, &raw, &resp.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &resp.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return &resp, nil
}

// List returns all collected responses, newest first.
func (r *Repository) List(ctx context.Context) ([]models.CallResponse, error) {
	rows, err := r.pool.Query(ctx, `SELECT call_sid, answers, created_at FROM responses ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.CallResponse
	for rows.Next() {
		var resp models.CallResponse
		var raw []byte
		if err := rows.Scan(&resp.CallSid, &raw, &resp.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &resp.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
		list = append(list, resp)
	}
	return list, rows.Err()
}
