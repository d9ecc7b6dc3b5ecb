package token

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instawin/merchprize/internal/apperrors"
	"github.com/instawin/merchprize/internal/domain/ledger"
	"github.com/instawin/merchprize/internal/domain/session"
	"github.com/instawin/merchprize/internal/infrastructure/keystore"
	"github.com/instawin/merchprize/internal/infrastructure/signer"
)

func newSigner(t *testing.T) *signer.HMACSigner {
	t.Helper()
	ks, err := keystore.FromSpec("k1:"+strings.Repeat("5a", 32), "")
	require.NoError(t, err)
	return signer.NewHMACSigner(ks)
}

func revealState() *session.State {
	s := session.New("merch-poc")
	s.StartCycle(session.ModeBuy, 2)
	s.Stage = session.StageReveal
	s.Ledger = ledger.Ledger{Pending: 2}
	s.PrizeDivision = 2
	s.PrizeValue = 50
	s.OutcomeDetail = json.RawMessage(`{"prizeValue":50,"prizeDivision":2,"moreStuff":"toTest"}`)
	s.Merchandise = &session.MerchandisePrize{TierID: "01-01-02", Description: "Second Tier Merchandise Prize", Quantity: 2, Value: 50}
	s.Reveal = session.RevealState{Data: json.RawMessage(`"msg1"`), Rounds: 1}
	return s
}

func TestRoundTripIsExact(t *testing.T) {
	ctx := context.Background()
	codec := NewCodec(newSigner(t))
	state := revealState()

	tok, id, err := codec.EncodeWithID(ctx, state)
	require.NoError(t, err)

	claims, err := codec.Decode(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, id, claims.TokenID)
	assert.Equal(t, state, claims.State)
	assert.False(t, claims.IssuedAt.IsZero())
}

func TestEveryTokenGetsNewID(t *testing.T) {
	ctx := context.Background()
	codec := NewCodec(newSigner(t))

	_, a, err := codec.EncodeWithID(ctx, session.New("g"))
	require.NoError(t, err)
	_, b, err := codec.EncodeWithID(ctx, session.New("g"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAlteredTokenFailsVerification(t *testing.T) {
	ctx := context.Background()
	codec := NewCodec(newSigner(t))
	tok, err := codec.Encode(ctx, revealState())
	require.NoError(t, err)

	for i := 0; i < len(tok); i++ {
		repl := byte('A')
		if tok[i] == repl {
			repl = 'B'
		}
		_, err := codec.Decode(ctx, tok[:i]+string(repl)+tok[i+1:])
		require.ErrorIs(t, err, apperrors.ErrVerification, "byte %d", i)
	}
}

func TestDecodeRejectsSignedGarbage(t *testing.T) {
	ctx := context.Background()
	s := newSigner(t)
	codec := NewCodec(s)

	cases := map[string]string{
		"unknown stage":   `{"v":1,"tid":"6f1c1f9e-8a59-4a4f-9b0e-0f5f1b9a2c11","iat":1,"state":{"version":1,"gameId":"g","cycleId":"00000000-0000-0000-0000-000000000000","stage":"Bonus","wager":0,"ledger":{"settled":0,"pending":0,"payout":0},"reveal":{"rounds":0,"complete":false}}}`,
		"unknown version": `{"v":2,"tid":"6f1c1f9e-8a59-4a4f-9b0e-0f5f1b9a2c11","iat":1,"state":{"version":1,"gameId":"g","cycleId":"00000000-0000-0000-0000-000000000000","stage":"Wager","wager":0,"ledger":{"settled":0,"pending":0,"payout":0},"reveal":{"rounds":0,"complete":false}}}`,
		"missing state":   `{"v":1,"tid":"6f1c1f9e-8a59-4a4f-9b0e-0f5f1b9a2c11","iat":1}`,
		"unknown field":   `{"v":1,"tid":"6f1c1f9e-8a59-4a4f-9b0e-0f5f1b9a2c11","iat":1,"admin":true}`,
		"bad ledger":      `{"v":1,"tid":"6f1c1f9e-8a59-4a4f-9b0e-0f5f1b9a2c11","iat":1,"state":{"version":1,"gameId":"g","cycleId":"00000000-0000-0000-0000-000000000000","stage":"Scenario","mode":"BUY","wager":2,"ledger":{"settled":0,"pending":1,"payout":0},"reveal":{"rounds":0,"complete":false}}}`,
		"not json":        `state`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			tok, err := s.Sign(ctx, []byte(payload))
			require.NoError(t, err)
			_, err = codec.Decode(ctx, tok)
			assert.ErrorIs(t, err, apperrors.ErrVerification)
		})
	}
}

func TestDecodeEmptyToken(t *testing.T) {
	_, err := NewCodec(newSigner(t)).Decode(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrVerification)
}

func TestTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	codec := NewCodec(newSigner(t), WithTTL(time.Hour), WithClock(func() time.Time { return now }))

	tok, err := codec.Encode(ctx, session.New("g"))
	require.NoError(t, err)

	now = now.Add(59 * time.Minute)
	_, err = codec.Decode(ctx, tok)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = codec.Decode(ctx, tok)
	assert.ErrorIs(t, err, apperrors.ErrVerification)
}

func TestEncodeRejectsInvalidState(t *testing.T) {
	state := session.New("g")
	state.Stage = session.StageScenario
	state.Mode = session.ModeBuy
	state.Wager = 2

	_, err := NewCodec(newSigner(t)).Encode(context.Background(), state)
	assert.ErrorIs(t, err, apperrors.ErrInvariantViolation)
}
