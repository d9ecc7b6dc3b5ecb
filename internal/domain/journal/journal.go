package journal

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/instawin/merchprize/internal/domain/session"
)

var (
	ErrNotFound  = errors.New("settlement not found")
	ErrDuplicate = errors.New("settlement already recorded")
)

// Record is the append-only entry written when a cycle closes.
type Record struct {
	ID                int64              `json:"id"`
	RecordID          uuid.UUID          `json:"recordId"`
	CycleID           uuid.UUID          `json:"cycleId"`
	GameID            string             `json:"gameId"`
	Mode              session.ActionMode `json:"mode"`
	Wager             int64              `json:"wager"`
	Settled           int64              `json:"settled"`
	Payout            int64              `json:"payout"`
	PrizeDivision     int                `json:"prizeDivision"`
	PrizeValue        int64              `json:"prizeValue"`
	MerchandiseTierID string             `json:"merchandiseTierId,omitempty"`
	RevealRounds      int                `json:"revealRounds"`
	ClosedAt          time.Time          `json:"closedAt"`
	Signature         []byte             `json:"signature,omitempty"`
}

// Settlement is what the state machine knows about a cycle when it closes.
type Settlement struct {
	CycleID           uuid.UUID
	GameID            string
	Mode              session.ActionMode
	Wager             int64
	Settled           int64
	Payout            int64
	PrizeDivision     int
	PrizeValue        int64
	MerchandiseTierID string
	RevealRounds      int
}

// NewRecord creates a record for a closed cycle.
func NewRecord(s Settlement, closedAt time.Time) *Record {
	return &Record{
		RecordID:          uuid.New(),
		CycleID:           s.CycleID,
		GameID:            s.GameID,
		Mode:              s.Mode,
		Wager:             s.Wager,
		Settled:           s.Settled,
		Payout:            s.Payout,
		PrizeDivision:     s.PrizeDivision,
		PrizeValue:        s.PrizeValue,
		MerchandiseTierID: s.MerchandiseTierID,
		RevealRounds:      s.RevealRounds,
		ClosedAt:          closedAt.UTC().Truncate(time.Microsecond),
	}
}

// Filter narrows a settlement listing.
type Filter struct {
	GameID *string
	Mode   *session.ActionMode
	Since  *time.Time
	Until  *time.Time
}

// Cursor represents a pagination cursor over (closed_at, id).
type Cursor struct {
	ClosedAt time.Time `json:"closedAt"`
	ID       int64     `json:"id"`
}
