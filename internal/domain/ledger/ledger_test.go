package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instawin/merchprize/internal/apperrors"
)

func TestOpenHoldSettle(t *testing.T) {
	var l Ledger

	opened, err := l.Apply(Open(2))
	require.NoError(t, err)
	assert.Equal(t, Ledger{Settled: 0, Pending: 2, Payout: 0}, opened)

	held, err := opened.Apply(Hold(2))
	require.NoError(t, err)
	assert.Equal(t, opened, held)

	settled, err := held.Apply(Settle(2, 100))
	require.NoError(t, err)
	assert.Equal(t, Ledger{Settled: 2, Pending: 0, Payout: 100}, settled)
}

func TestOpenDiscardsPreviousCycle(t *testing.T) {
	closed := Ledger{Settled: 5, Payout: 40}

	opened, err := closed.Apply(Open(1))
	require.NoError(t, err)
	assert.Equal(t, Ledger{Pending: 1}, opened)
}

func TestApplyRejectsInconsistentLedger(t *testing.T) {
	t.Run("hold with wrong wager", func(t *testing.T) {
		l := Ledger{Pending: 2}
		_, err := l.Apply(Hold(3))
		assert.ErrorIs(t, err, apperrors.ErrInvariantViolation)
	})

	t.Run("settle a closed cycle", func(t *testing.T) {
		l := Ledger{Settled: 2}
		_, err := l.Apply(Settle(2, 0))
		assert.ErrorIs(t, err, apperrors.ErrInvariantViolation)
	})

	t.Run("hold a closed cycle", func(t *testing.T) {
		l := Ledger{Settled: 2, Payout: 10}
		_, err := l.Apply(Hold(2))
		assert.ErrorIs(t, err, apperrors.ErrInvariantViolation)
	})

	t.Run("settle twice", func(t *testing.T) {
		settled, err := Ledger{Pending: 3}.Apply(Settle(3, 9))
		require.NoError(t, err)
		_, err = settled.Apply(Settle(3, 9))
		assert.ErrorIs(t, err, apperrors.ErrInvariantViolation)
	})

	t.Run("negative payout", func(t *testing.T) {
		l := Ledger{Pending: 2}
		_, err := l.Apply(Settle(2, -1))
		assert.ErrorIs(t, err, apperrors.ErrInvariantViolation)
	})

	t.Run("non positive wager", func(t *testing.T) {
		_, err := Ledger{}.Apply(Open(0))
		assert.ErrorIs(t, err, apperrors.ErrInvariantViolation)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := Ledger{Pending: 1}.Apply(Transition{Kind: "REFUND", Wager: 1})
		assert.ErrorIs(t, err, apperrors.ErrInvariantViolation)
	})
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(Ledger{Pending: 3}, 3, true))
	assert.NoError(t, Check(Ledger{Settled: 3, Payout: 7}, 3, false))
	assert.Error(t, Check(Ledger{Settled: 1, Pending: 1}, 3, true))
	assert.Error(t, Check(Ledger{Settled: 2, Pending: 1}, 3, false))
	assert.Error(t, Check(Ledger{Settled: -1, Pending: 4}, 3, true))
}
