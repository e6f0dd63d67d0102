package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// questionsKey is the app_data row holding the questionnaire. The value is a
// jsonb array of prompt strings; array order defines the question index used
// by the voice webhook.
const questionsKey = "questions"

// Repository handles questionnaire persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a questions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the current question set in order. A missing row reads as empty.
func (r *Repository) Get(ctx context.Context) ([]string, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT value FROM app_data WHERE key = $1`, questionsKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return list, nil
}

// Set replaces the question set wholesale.
func (r *Repository) Set(ctx context.Context, list []string) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO app_data (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		questionsKey, raw)
	return err
}
