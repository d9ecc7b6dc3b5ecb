package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReplayRepository implements replay.Guard over the consumed_tokens table.
type ReplayRepository struct {
	pool *pgxpool.Pool
}

func NewReplayRepository(pool *pgxpool.Pool) *ReplayRepository {
	return &ReplayRepository{pool: pool}
}

func (r *ReplayRepository) Consume(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO consumed_tokens (token_id, consumed_at)
		VALUES ($1, NOW())
		ON CONFLICT (token_id) DO NOTHING
	`, tokenID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
