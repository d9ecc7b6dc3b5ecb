// Package gameparams holds the read-only game configuration: price points,
// the prize-division tier table, reveal rules and the local draw table.
package gameparams

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"gopkg.in/yaml.v3"

	"github.com/instawin/merchprize/internal/domain/session"
)

// DefaultRevealRule reveals on the paid path only.
const DefaultRevealRule = "mode == 'BUY'"

// TierKind classifies a prize division.
type TierKind string

const (
	TierCash        TierKind = "CASH"
	TierMerchandise TierKind = "MERCHANDISE"
)

// Prize is a configured non-cash prize of a merchandise tier.
type Prize struct {
	TierID      string `yaml:"tierId" json:"tierId"`
	Description string `yaml:"description" json:"description"`
	Quantity    int    `yaml:"quantity" json:"quantity"`
	Value       int64  `yaml:"value" json:"value"`
}

// MerchandisePrize converts the configured prize into its session form.
func (p Prize) MerchandisePrize() session.MerchandisePrize {
	return session.MerchandisePrize{
		TierID:      p.TierID,
		Description: p.Description,
		Quantity:    p.Quantity,
		Value:       p.Value,
	}
}

// Tier maps a prize division onto its prize class.
type Tier struct {
	Division int      `yaml:"division" json:"division"`
	Kind     TierKind `yaml:"kind" json:"kind"`
	Reveal   string   `yaml:"reveal" json:"reveal"`
	Prizes   []Prize  `yaml:"prizes,omitempty" json:"prizes,omitempty"`

	revealExpr *govaluate.EvaluableExpression
}

// IsMerchandise reports whether the tier awards a non-cash prize.
func (t Tier) IsMerchandise() bool {
	return t.Kind == TierMerchandise
}

// FindPrize returns the configured prize matching an acceptance.
func (t Tier) FindPrize(accepted session.MerchandisePrize) (Prize, bool) {
	for _, p := range t.Prizes {
		if p.MerchandisePrize().Matches(accepted) {
			return p, true
		}
	}
	return Prize{}, false
}

// RuleVars are the variables visible to a reveal rule.
type RuleVars struct {
	Mode       session.ActionMode
	Division   int
	PrizeValue int64
	Wager      int64
}

// RequiresReveal evaluates the tier's reveal rule.
func (t Tier) RequiresReveal(vars RuleVars) (bool, error) {
	return EvaluateRule(t.revealExpr, map[string]interface{}{
		"mode":       string(vars.Mode),
		"division":   float64(vars.Division),
		"prizeValue": float64(vars.PrizeValue),
		"wager":      float64(vars.Wager),
	})
}

// DrawEntry is one weighted row of the local outcome draw.
type DrawEntry struct {
	Division   int   `yaml:"division" json:"division"`
	Weight     int   `yaml:"weight" json:"weight"`
	Multiplier int64 `yaml:"multiplier" json:"multiplier"`
}

// GameParams is the configuration of one game.
type GameParams struct {
	GameID      string      `yaml:"gameId" json:"gameId"`
	Name        string      `yaml:"name" json:"name"`
	PricePoints []int64     `yaml:"pricePoints" json:"pricePoints"`
	DefaultTier Tier        `yaml:"defaultTier" json:"defaultTier"`
	Tiers       []Tier      `yaml:"tiers" json:"tiers"`
	Draw        []DrawEntry `yaml:"draw,omitempty" json:"-"`

	byDivision map[int]int
}

// ValidWager reports whether w is one of the configured price points.
func (g *GameParams) ValidWager(w int64) bool {
	for _, p := range g.PricePoints {
		if p == w {
			return true
		}
	}
	return false
}

// TierFor looks up a division, falling back to the default tier.
func (g *GameParams) TierFor(division int) Tier {
	if idx, ok := g.byDivision[division]; ok {
		return g.Tiers[idx]
	}
	t := g.DefaultTier
	t.Division = division
	return t
}

// Parse decodes and validates a YAML game definition.
func Parse(data []byte) (*GameParams, error) {
	var g GameParams
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode game params: %w", err)
	}
	if err := g.prepare(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Load reads a game definition file.
func Load(path string) (*GameParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read game params %s: %w", path, err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func (g *GameParams) prepare() error {
	g.GameID = strings.TrimSpace(g.GameID)
	if g.GameID == "" {
		return errors.New("gameId is required")
	}
	if len(g.PricePoints) == 0 {
		return errors.New("at least one price point is required")
	}
	for _, p := range g.PricePoints {
		if p <= 0 {
			return fmt.Errorf("price point %d must be positive", p)
		}
	}
	if g.DefaultTier.Kind == "" {
		g.DefaultTier.Kind = TierCash
	}
	if g.DefaultTier.IsMerchandise() {
		return errors.New("default tier must be a cash tier")
	}
	if err := g.DefaultTier.compile(); err != nil {
		return fmt.Errorf("default tier: %w", err)
	}

	g.byDivision = make(map[int]int, len(g.Tiers))
	for i := range g.Tiers {
		t := &g.Tiers[i]
		if t.Division <= 0 {
			return fmt.Errorf("tier %d: division must be positive", i)
		}
		if _, dup := g.byDivision[t.Division]; dup {
			return fmt.Errorf("division %d configured twice", t.Division)
		}
		switch t.Kind {
		case TierCash:
		case TierMerchandise:
			if len(t.Prizes) == 0 {
				return fmt.Errorf("division %d: merchandise tier needs at least one prize", t.Division)
			}
		case "":
			t.Kind = TierCash
		default:
			return fmt.Errorf("division %d: unknown tier kind %q", t.Division, t.Kind)
		}
		if err := t.compile(); err != nil {
			return fmt.Errorf("division %d: %w", t.Division, err)
		}
		g.byDivision[t.Division] = i
	}

	for _, d := range g.Draw {
		if d.Division <= 0 || d.Weight <= 0 || d.Multiplier < 0 {
			return fmt.Errorf("invalid draw entry %+v", d)
		}
	}
	return nil
}

func (t *Tier) compile() error {
	if strings.TrimSpace(t.Reveal) == "" {
		t.Reveal = DefaultRevealRule
	}
	expr, err := CompileRule(t.Reveal)
	if err != nil {
		return fmt.Errorf("reveal rule %q: %w", t.Reveal, err)
	}
	t.revealExpr = expr
	return nil
}

// Registry holds the loaded games by id.
type Registry struct {
	games map[string]*GameParams
}

// NewRegistry builds a registry from already parsed games.
func NewRegistry(games ...*GameParams) (*Registry, error) {
	r := &Registry{games: make(map[string]*GameParams, len(games))}
	for _, g := range games {
		if _, dup := r.games[g.GameID]; dup {
			return nil, fmt.Errorf("game %s defined twice", g.GameID)
		}
		r.games[g.GameID] = g
	}
	return r, nil
}

// LoadDir loads every *.yaml / *.yml file in dir.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read game params dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	games := make([]*GameParams, 0, len(files))
	for _, path := range files {
		g, err := Load(path)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return NewRegistry(games...)
}

// Get returns a game by id.
func (r *Registry) Get(gameID string) (*GameParams, bool) {
	g, ok := r.games[gameID]
	return g, ok
}

// IDs lists the configured game ids in order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.games))
	for id := range r.games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
