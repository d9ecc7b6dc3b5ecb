package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ReplayGuard implements replay.Guard over the consumed_tokens table.
type ReplayGuard struct {
	db *sql.DB
}

func (g *ReplayGuard) Consume(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	res, err := g.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO consumed_tokens (token_id, consumed_at) VALUES (?, ?)`,
		tokenID.String(), time.Now().UTC().UnixMilli())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
