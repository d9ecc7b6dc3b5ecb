package ledger

import (
	"fmt"

	"github.com/instawin/merchprize/internal/apperrors"
)

// Ledger tracks the money of one cycle in credits.
type Ledger struct {
	Settled int64 `json:"settled"`
	Pending int64 `json:"pending"`
	Payout  int64 `json:"payout"`
}

// Kind identifies a ledger transition.
type Kind string

const (
	KindOpen   Kind = "OPEN"
	KindHold   Kind = "HOLD"
	KindSettle Kind = "SETTLE"
)

// Transition describes how the ledger moves on a stage change.
type Transition struct {
	Kind   Kind
	Wager  int64
	Payout int64
}

// Open puts the whole wager at risk.
func Open(wager int64) Transition {
	return Transition{Kind: KindOpen, Wager: wager}
}

// Hold keeps the ledger unchanged for a cycle that is still open.
func Hold(wager int64) Transition {
	return Transition{Kind: KindHold, Wager: wager}
}

// Settle finalizes the wager and awards payout credits.
func Settle(wager, payout int64) Transition {
	return Transition{Kind: KindSettle, Wager: wager, Payout: payout}
}

// Apply returns the ledger after t. The receiver is not modified.
func (l Ledger) Apply(t Transition) (Ledger, error) {
	if t.Wager <= 0 {
		return l, violation("wager must be positive, got %d", t.Wager)
	}
	var next Ledger
	switch t.Kind {
	case KindOpen:
		next = Ledger{Pending: t.Wager}
		return next, Check(next, t.Wager, true)
	case KindHold:
		if err := requireOpen(l, t.Wager); err != nil {
			return l, err
		}
		return l, nil
	case KindSettle:
		if t.Payout < 0 {
			return l, violation("payout must not be negative, got %d", t.Payout)
		}
		if err := requireOpen(l, t.Wager); err != nil {
			return l, err
		}
		next = Ledger{Settled: t.Wager, Payout: t.Payout}
		return next, Check(next, t.Wager, false)
	default:
		return l, violation("unknown ledger transition %q", t.Kind)
	}
}

// Check enforces settled+pending == wager for an open cycle and pending == 0 once closed.
func Check(l Ledger, wager int64, open bool) error {
	if l.Settled < 0 || l.Pending < 0 || l.Payout < 0 {
		return violation("negative ledger field %+v", l)
	}
	if open {
		if l.Settled+l.Pending != wager {
			return violation("settled %d + pending %d != wager %d", l.Settled, l.Pending, wager)
		}
		return nil
	}
	if l.Pending != 0 {
		return violation("pending %d on closed cycle", l.Pending)
	}
	return nil
}

// requireOpen accepts only a cycle with the whole wager still pending.
func requireOpen(l Ledger, wager int64) error {
	if err := Check(l, wager, true); err != nil {
		return err
	}
	if l.Settled != 0 || l.Pending != wager {
		return violation("cycle is not open: settled %d, pending %d", l.Settled, l.Pending)
	}
	return nil
}

func violation(format string, args ...any) error {
	return apperrors.New(apperrors.CodeInvariantViolation, fmt.Sprintf("ledger: "+format, args...))
}
