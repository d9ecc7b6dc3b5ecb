package signer

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

const hmacPrefix = "v1"

var b64 = base64.RawURLEncoding.Strict()

// HMACSigner produces compact tokens "v1.<kid>.<payload>.<mac>" where the
// MAC is HMAC-SHA256 over everything before the last dot.
type HMACSigner struct {
	keys KeyStore
}

func NewHMACSigner(keys KeyStore) *HMACSigner {
	return &HMACSigner{keys: keys}
}

func (s *HMACSigner) Sign(ctx context.Context, payload []byte) (string, error) {
	keyID, key, err := s.keys.ActiveKey(ctx)
	if err != nil {
		return "", fmt.Errorf("active signing key: %w", err)
	}
	body := hmacPrefix + "." + keyID + "." + b64.EncodeToString(payload)
	return body + "." + b64.EncodeToString(mac(key, body)), nil
}

func (s *HMACSigner) Verify(ctx context.Context, token string) ([]byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 || parts[0] != hmacPrefix || parts[1] == "" {
		return nil, ErrMalformed
	}
	key, err := s.keys.GetKey(ctx, parts[1])
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", parts[1], err)
	}
	got, err := b64.DecodeString(parts[3])
	if err != nil {
		return nil, ErrMalformed
	}
	body := token[:len(token)-len(parts[3])-1]
	if !hmac.Equal(got, mac(key, body)) {
		return nil, ErrInvalidSignature
	}
	payload, err := b64.DecodeString(parts[2])
	if err != nil {
		return nil, ErrMalformed
	}
	return payload, nil
}

func mac(key []byte, body string) []byte {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(body))
	return m.Sum(nil)
}
