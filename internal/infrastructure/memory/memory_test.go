package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instawin/merchprize/internal/domain/journal"
	"github.com/instawin/merchprize/internal/domain/session"
)

func TestReplayGuardConsumesOnce(t *testing.T) {
	g := NewReplayGuard()
	id := uuid.New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := g.Consume(context.Background(), id)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fresh)

	ok, err := g.Consume(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)
}

func record(game string, mode session.ActionMode, at time.Time) *journal.Record {
	return journal.NewRecord(journal.Settlement{CycleID: uuid.New(), GameID: game, Mode: mode, Wager: 1, Settled: 1}, at)
}

func TestJournalCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewJournalRepository()
	rec := record("g", session.ModeBuy, time.Now())

	require.NoError(t, repo.Create(ctx, rec))
	assert.Equal(t, int64(1), rec.ID)
	assert.ErrorIs(t, repo.Create(ctx, rec), journal.ErrDuplicate)

	got, err := repo.GetByCycleID(ctx, rec.CycleID)
	require.NoError(t, err)
	assert.Equal(t, rec.RecordID, got.RecordID)

	_, err = repo.GetByCycleID(ctx, uuid.New())
	assert.ErrorIs(t, err, journal.ErrNotFound)
}

func TestJournalListPaginates(t *testing.T) {
	ctx := context.Background()
	repo := NewJournalRepository()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, record("g", session.ModeBuy, base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.Create(ctx, record("other", session.ModeTry, base)))

	game := "g"
	page, cursor, err := repo.List(ctx, journal.Filter{GameID: &game}, nil, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.NotNil(t, cursor)
	assert.True(t, page[0].ClosedAt.After(page[1].ClosedAt))

	rest, cursor, err := repo.List(ctx, journal.Filter{GameID: &game}, cursor, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
	assert.Nil(t, cursor)

	try := session.ModeTry
	tries, _, err := repo.List(ctx, journal.Filter{Mode: &try}, nil, 10)
	require.NoError(t, err)
	require.Len(t, tries, 1)
	assert.Equal(t, "other", tries[0].GameID)

	since := base.Add(3 * time.Minute)
	recent, _, err := repo.List(ctx, journal.Filter{Since: &since}, nil, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
