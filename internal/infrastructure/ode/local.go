package ode

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/instawin/merchprize/internal/domain/gameparams"
	"github.com/instawin/merchprize/internal/domain/outcome"
)

// GameSource looks up game parameters by id.
type GameSource interface {
	Get(gameID string) (*gameparams.GameParams, bool)
}

// LocalEngine draws a division from the game's weighted draw table. The
// prize value is multiplier × wager.
type LocalEngine struct {
	games GameSource

	mu  sync.Mutex
	rng *rand.Rand
}

// LocalOption configures a LocalEngine.
type LocalOption func(*LocalEngine)

// WithSeed makes the draw deterministic.
func WithSeed(seed uint64) LocalOption {
	return func(e *LocalEngine) { e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// NewLocalEngine creates a local engine seeded from crypto/rand.
func NewLocalEngine(games GameSource, opts ...LocalOption) (*LocalEngine, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("seed local engine: %w", err)
	}
	e := &LocalEngine{
		games: games,
		rng:   rand.New(rand.NewChaCha8(seed)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type localDetail struct {
	PrizeValue    int64  `json:"prizeValue"`
	PrizeDivision int    `json:"prizeDivision"`
	Engine        string `json:"engine"`
}

// Determine implements outcome.Engine.
func (e *LocalEngine) Determine(ctx context.Context, req *outcome.Request) (*outcome.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, ok := e.games.Get(req.GameID)
	if !ok {
		return nil, fmt.Errorf("unknown game %q", req.GameID)
	}
	if len(g.Draw) == 0 {
		return nil, fmt.Errorf("game %s has no draw table", g.GameID)
	}

	total := 0
	for _, d := range g.Draw {
		total += d.Weight
	}
	e.mu.Lock()
	pick := e.rng.IntN(total)
	e.mu.Unlock()

	entry := g.Draw[len(g.Draw)-1]
	for _, d := range g.Draw {
		if pick < d.Weight {
			entry = d
			break
		}
		pick -= d.Weight
	}

	res := &outcome.Result{
		PrizeValue:    entry.Multiplier * req.Wager,
		PrizeDivision: entry.Division,
	}
	detail, err := json.Marshal(localDetail{
		PrizeValue:    res.PrizeValue,
		PrizeDivision: res.PrizeDivision,
		Engine:        "local",
	})
	if err != nil {
		return nil, fmt.Errorf("encode outcome detail: %w", err)
	}
	res.Detail = detail
	return res, nil
}
