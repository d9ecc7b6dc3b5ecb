// Package signer implements token signing over the configured keystore.
package signer

import (
	"context"
	"errors"
)

var (
	ErrMalformed        = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid signature")
)

// KeyStore provides signing keys by id.
type KeyStore interface {
	GetKey(ctx context.Context, keyID string) ([]byte, error)
	ActiveKey(ctx context.Context) (keyID string, key []byte, err error)
}
