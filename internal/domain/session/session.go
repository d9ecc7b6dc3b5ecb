package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/instawin/merchprize/internal/domain/ledger"
)

// StateVersion is the payload version written into every token.
const StateVersion = 1

// ActionPlay advances the Scenario and Reveal stages.
const ActionPlay = "play"

// Stage is the protocol stage a session is waiting in.
type Stage string

const (
	StageWager            Stage = "Wager"
	StageScenario         Stage = "Scenario"
	StageMerchandisePrize Stage = "MerchandisePrize"
	StageReveal           Stage = "Reveal"
)

var ErrInvalidTransition = errors.New("invalid stage transition")

// Valid reports whether s is one of the four protocol stages.
func (s Stage) Valid() bool {
	switch s {
	case StageWager, StageScenario, StageMerchandisePrize, StageReveal:
		return true
	}
	return false
}

// CanTransitionTo validates a stage transition.
func (s Stage) CanTransitionTo(target Stage) bool {
	transitions := map[Stage][]Stage{
		StageWager:            {StageScenario, StageMerchandisePrize, StageReveal, StageWager},
		StageScenario:         {StageMerchandisePrize, StageReveal, StageWager},
		StageMerchandisePrize: {StageReveal, StageWager},
		StageReveal:           {StageReveal, StageWager},
	}
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ActionMode is chosen at Wager and fixed for the cycle.
type ActionMode string

const (
	ModeBuy ActionMode = "BUY"
	ModeTry ActionMode = "TRY"
)

// ParseActionMode maps a wager action onto a mode.
func ParseActionMode(action string) (ActionMode, bool) {
	switch ActionMode(strings.ToUpper(strings.TrimSpace(action))) {
	case ModeBuy:
		return ModeBuy, true
	case ModeTry:
		return ModeTry, true
	}
	return "", false
}

// IsPlay reports whether action is the advance action.
func IsPlay(action string) bool {
	return strings.EqualFold(strings.TrimSpace(action), ActionPlay)
}

// MerchandisePrize is a non-cash prize as confirmed by the fulfillment path.
type MerchandisePrize struct {
	TierID      string `json:"tierId"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Value       int64  `json:"value"`
}

// Matches compares two prizes, ignoring surrounding whitespace in the text fields.
func (p MerchandisePrize) Matches(other MerchandisePrize) bool {
	return strings.TrimSpace(p.TierID) == strings.TrimSpace(other.TierID) &&
		strings.TrimSpace(p.Description) == strings.TrimSpace(other.Description) &&
		p.Quantity == other.Quantity &&
		p.Value == other.Value
}

// RevealState carries the reveal sub-protocol across calls.
// Data is only ever replaced by a non-null payload.
type RevealState struct {
	Data     json.RawMessage `json:"data,omitempty"`
	Rounds   int             `json:"rounds"`
	Complete bool            `json:"complete"`
}

// State is the session payload carried inside the signed token.
type State struct {
	Version       int               `json:"version"`
	GameID        string            `json:"gameId"`
	CycleID       uuid.UUID         `json:"cycleId"`
	Stage         Stage             `json:"stage"`
	Mode          ActionMode        `json:"mode,omitempty"`
	Wager         int64             `json:"wager"`
	Ledger        ledger.Ledger     `json:"ledger"`
	PrizeDivision int               `json:"prizeDivision,omitempty"`
	PrizeValue    int64             `json:"prizeValue,omitempty"`
	OutcomeDetail json.RawMessage   `json:"outcomeDetail,omitempty"`
	Merchandise   *MerchandisePrize `json:"merchandise,omitempty"`
	Reveal        RevealState       `json:"reveal"`
}

// New returns the initial state of a game that has never been played.
func New(gameID string) *State {
	return &State{
		Version: StateVersion,
		GameID:  gameID,
		Stage:   StageWager,
	}
}

// InCycle reports whether a cycle is open.
func (s *State) InCycle() bool {
	return s.Stage != StageWager
}

// StartCycle resets the state for a new wager.
func (s *State) StartCycle(mode ActionMode, wager int64) {
	s.CycleID = uuid.New()
	s.Mode = mode
	s.Wager = wager
	s.clearOutcome()
}

// Close returns the state to Wager with the settled ledger and drops cycle-only fields.
func (s *State) Close(l ledger.Ledger) {
	s.Stage = StageWager
	s.Ledger = l
	s.clearOutcome()
}

func (s *State) clearOutcome() {
	s.PrizeDivision = 0
	s.PrizeValue = 0
	s.OutcomeDetail = nil
	s.Merchandise = nil
	s.Reveal = RevealState{}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.OutcomeDetail = cloneRaw(s.OutcomeDetail)
	c.Reveal.Data = cloneRaw(s.Reveal.Data)
	if s.Merchandise != nil {
		m := *s.Merchandise
		c.Merchandise = &m
	}
	return &c
}

// Validate checks a decoded state before stage logic runs.
func (s *State) Validate() error {
	if s.Version != StateVersion {
		return fmt.Errorf("unsupported state version %d", s.Version)
	}
	if !s.Stage.Valid() {
		return fmt.Errorf("unknown stage %q", s.Stage)
	}
	if strings.TrimSpace(s.GameID) == "" {
		return errors.New("game id is required")
	}
	if !s.InCycle() {
		return ledger.Check(s.Ledger, s.Wager, false)
	}
	if s.Mode != ModeBuy && s.Mode != ModeTry {
		return fmt.Errorf("unknown action mode %q", s.Mode)
	}
	return ledger.Check(s.Ledger, s.Wager, true)
}

// PlayerInput is one protocol call's input.
type PlayerInput struct {
	Action       string
	Wager        *int64
	Payload      json.RawMessage
	NonCashPrize *MerchandisePrize
}

// HasPayloadKey reports whether the JSON object payload carries key.
func (in PlayerInput) HasPayloadKey(key string) bool {
	if len(bytes.TrimSpace(in.Payload)) == 0 {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(in.Payload, &obj); err != nil {
		return false
	}
	_, ok := obj[key]
	return ok
}

// EventType names a session event.
type EventType string

const (
	EventStageChanged EventType = "stage.changed"
	EventCycleSettled EventType = "cycle.settled"
)

// Event is published after a token has been issued.
type Event struct {
	Type    EventType     `json:"type"`
	GameID  string        `json:"gameId"`
	CycleID uuid.UUID     `json:"cycleId"`
	From    Stage         `json:"from"`
	Stage   Stage         `json:"stage"`
	Mode    ActionMode    `json:"mode"`
	Ledger  ledger.Ledger `json:"ledger"`
	At      time.Time     `json:"at"`
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
