package journal

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instawin/merchprize/internal/domain/session"
)

func TestSignAndVerify(t *testing.T) {
	key := []byte("journal-key-0123456789")
	rec := NewRecord(Settlement{
		CycleID:           uuid.New(),
		GameID:            "merch-poc",
		Mode:              session.ModeBuy,
		Wager:             2500,
		Settled:           2500,
		PrizeDivision:     1,
		PrizeValue:        100,
		MerchandiseTierID: "01-01-01",
		RevealRounds:      3,
	}, time.Now())

	ok, err := VerifySignature(rec, key)
	require.NoError(t, err)
	assert.False(t, ok, "unsigned record must not verify")

	rec.Signature, err = Sign(rec, key)
	require.NoError(t, err)

	ok, err = VerifySignature(rec, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifySignature(rec, []byte("other-key"))
	require.NoError(t, err)
	assert.False(t, ok)

	rec.Payout = 1
	ok, err = VerifySignature(rec, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRecordTruncatesClosedAt(t *testing.T) {
	at := time.Date(2026, 5, 1, 10, 0, 0, 123456789, time.FixedZone("x", 3600))
	rec := NewRecord(Settlement{GameID: "g"}, at)

	assert.Equal(t, time.UTC, rec.ClosedAt.Location())
	assert.Equal(t, 123456000, rec.ClosedAt.Nanosecond())
	assert.NotEqual(t, uuid.Nil, rec.RecordID)
}
