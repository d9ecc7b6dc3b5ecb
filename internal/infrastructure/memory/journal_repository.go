// Package memory holds process-local implementations used by single-node
// deployments and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/instawin/merchprize/internal/domain/journal"
)

// JournalRepository implements journal.Repository.
type JournalRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records []*journal.Record
	byCycle map[uuid.UUID]*journal.Record
}

func NewJournalRepository() *JournalRepository {
	return &JournalRepository{byCycle: make(map[uuid.UUID]*journal.Record)}
}

func (r *JournalRepository) Create(ctx context.Context, rec *journal.Record) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byCycle[rec.CycleID]; dup {
		return journal.ErrDuplicate
	}
	r.nextID++
	rec.ID = r.nextID
	stored := *rec
	r.records = append(r.records, &stored)
	r.byCycle[rec.CycleID] = &stored
	return nil
}

func (r *JournalRepository) GetByCycleID(ctx context.Context, cycleID uuid.UUID) (*journal.Record, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byCycle[cycleID]
	if !ok {
		return nil, journal.ErrNotFound
	}
	out := *rec
	return &out, nil
}

func (r *JournalRepository) List(ctx context.Context, filter journal.Filter, cursor *journal.Cursor, limit int) ([]*journal.Record, *journal.Cursor, error) {
	_ = ctx
	r.mu.RLock()
	matched := make([]*journal.Record, 0, len(r.records))
	for _, rec := range r.records {
		if matches(rec, filter) && before(rec, cursor) {
			out := *rec
			matched = append(matched, &out)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ClosedAt.Equal(matched[j].ClosedAt) {
			return matched[i].ClosedAt.After(matched[j].ClosedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	var next *journal.Cursor
	if limit > 0 && len(matched) == limit {
		last := matched[len(matched)-1]
		next = &journal.Cursor{ClosedAt: last.ClosedAt, ID: last.ID}
	}
	return matched, next, nil
}

func matches(rec *journal.Record, f journal.Filter) bool {
	if f.GameID != nil && rec.GameID != *f.GameID {
		return false
	}
	if f.Mode != nil && rec.Mode != *f.Mode {
		return false
	}
	if f.Since != nil && rec.ClosedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && rec.ClosedAt.After(*f.Until) {
		return false
	}
	return true
}

func before(rec *journal.Record, c *journal.Cursor) bool {
	if c == nil {
		return true
	}
	if rec.ClosedAt.Equal(c.ClosedAt) {
		return rec.ID < c.ID
	}
	return rec.ClosedAt.Before(c.ClosedAt)
}
