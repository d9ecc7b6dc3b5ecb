package journal

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores settlement records.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByCycleID(ctx context.Context, cycleID uuid.UUID) (*Record, error)
	List(ctx context.Context, filter Filter, cursor *Cursor, limit int) ([]*Record, *Cursor, error)
}
