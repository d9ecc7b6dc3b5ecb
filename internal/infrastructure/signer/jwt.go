package signer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// sessionClaims carries the token payload next to the registered claims.
type sessionClaims struct {
	jwt.RegisteredClaims
	Session json.RawMessage `json:"ses"`
}

// JWTSigner wraps payloads in HS256 JWTs with a kid header.
type JWTSigner struct {
	keys   KeyStore
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// JWTOption configures a JWTSigner.
type JWTOption func(*JWTSigner)

// WithIssuer sets and enforces the iss claim.
func WithIssuer(issuer string) JWTOption {
	return func(s *JWTSigner) { s.issuer = issuer }
}

// WithExpiry sets exp to iat+ttl and requires it on verification.
func WithExpiry(ttl time.Duration) JWTOption {
	return func(s *JWTSigner) { s.ttl = ttl }
}

// WithNow overrides the clock used for iat and exp.
func WithNow(now func() time.Time) JWTOption {
	return func(s *JWTSigner) { s.now = now }
}

func NewJWTSigner(keys KeyStore, opts ...JWTOption) *JWTSigner {
	s := &JWTSigner{keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *JWTSigner) Sign(ctx context.Context, payload []byte) (string, error) {
	if !json.Valid(payload) {
		return "", errors.New("jwt payload must be JSON")
	}
	keyID, key, err := s.keys.ActiveKey(ctx)
	if err != nil {
		return "", fmt.Errorf("active signing key: %w", err)
	}
	now := s.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Issuer:   s.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
		Session: json.RawMessage(payload),
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = keyID
	signed, err := tok.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

func (s *JWTSigner) Verify(ctx context.Context, token string) ([]byte, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.ttl > 0 {
		opts = append(opts, jwt.WithExpirationRequired())
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		keyID, _ := t.Header["kid"].(string)
		if keyID == "" {
			return nil, errors.New("missing kid header")
		}
		return s.keys.GetKey(ctx, keyID)
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(claims.Session) == 0 {
		return nil, ErrMalformed
	}
	return claims.Session, nil
}
