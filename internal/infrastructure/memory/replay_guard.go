package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ReplayGuard implements replay.Guard in process memory.
type ReplayGuard struct {
	mu   sync.Mutex
	seen map[uuid.UUID]struct{}
}

func NewReplayGuard() *ReplayGuard {
	return &ReplayGuard{seen: make(map[uuid.UUID]struct{})}
}

func (g *ReplayGuard) Consume(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	_ = ctx
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[tokenID]; ok {
		return false, nil
	}
	g.seen[tokenID] = struct{}{}
	return true, nil
}
