// Package replay defines the optional single-use token guard.
package replay

import (
	"context"

	"github.com/google/uuid"
)

// Guard remembers consumed token ids.
type Guard interface {
	// Consume marks tokenID as used. It returns false when the id was
	// already consumed.
	Consume(ctx context.Context, tokenID uuid.UUID) (bool, error)
}
