// Package token turns session state into signed opaque tokens and back.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/instawin/merchprize/internal/apperrors"
	"github.com/instawin/merchprize/internal/domain/session"
)

const envelopeVersion = 1

// Signer seals and opens token payloads.
type Signer interface {
	Sign(ctx context.Context, payload []byte) (string, error)
	Verify(ctx context.Context, token string) ([]byte, error)
}

// Claims is a decoded token.
type Claims struct {
	TokenID  uuid.UUID
	IssuedAt time.Time
	State    *session.State
}

type envelope struct {
	V     int            `json:"v"`
	TID   uuid.UUID      `json:"tid"`
	IAT   int64          `json:"iat"`
	State *session.State `json:"state"`
}

// Codec encodes and decodes session tokens.
type Codec struct {
	signer Signer
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithTTL rejects tokens older than ttl. Zero disables the check.
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) { c.ttl = ttl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(signer Signer, opts ...Option) *Codec {
	c := &Codec{signer: signer, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode signs state into a new token.
func (c *Codec) Encode(ctx context.Context, state *session.State) (string, error) {
	tok, _, err := c.EncodeWithID(ctx, state)
	return tok, err
}

// EncodeWithID signs state and also returns the id assigned to the token.
func (c *Codec) EncodeWithID(ctx context.Context, state *session.State) (string, uuid.UUID, error) {
	if state == nil {
		return "", uuid.Nil, apperrors.New(apperrors.CodeInvariantViolation, "encode nil state")
	}
	if err := state.Validate(); err != nil {
		return "", uuid.Nil, apperrors.Wrap(apperrors.CodeInvariantViolation, "encode invalid state", err)
	}
	env := envelope{
		V:     envelopeVersion,
		TID:   uuid.New(),
		IAT:   c.now().Unix(),
		State: state,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("failed to marshal token: %w", err)
	}
	tok, err := c.signer.Sign(ctx, payload)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return tok, env.TID, nil
}

// Decode verifies a token and returns its claims. Every failure is a
// verification error.
func (c *Codec) Decode(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, apperrors.New(apperrors.CodeVerification, "empty token")
	}
	payload, err := c.signer.Verify(ctx, token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeVerification, "token signature", err)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeVerification, "token payload", err)
	}
	if env.V != envelopeVersion {
		return nil, apperrors.New(apperrors.CodeVerification, fmt.Sprintf("unsupported token version %d", env.V))
	}
	if env.TID == uuid.Nil || env.State == nil {
		return nil, apperrors.New(apperrors.CodeVerification, "incomplete token payload")
	}
	if err := env.State.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeVerification, "token state", err)
	}

	issued := time.Unix(env.IAT, 0).UTC()
	if c.ttl > 0 && c.now().Sub(issued) > c.ttl {
		return nil, apperrors.New(apperrors.CodeVerification, "token expired")
	}
	return &Claims{TokenID: env.TID, IssuedAt: issued, State: env.State}, nil
}
