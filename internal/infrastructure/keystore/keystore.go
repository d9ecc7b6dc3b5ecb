package keystore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrNoDefaultKey   = errors.New("default key not configured")
	ErrInvalidKeySpec = errors.New("invalid SIGNING_KEYS format")
)

// minKeyLen is the shortest accepted signing key in bytes.
const minKeyLen = 16

// StaticKeyStore is a simple in-memory keystore.
type StaticKeyStore struct {
	keys         map[string][]byte
	defaultKeyID string
}

// ParseKeys decodes "keyId:hex,keyId2:hex".
func ParseKeys(raw string) (map[string][]byte, error) {
	keys := make(map[string][]byte)
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, ErrInvalidKeySpec
		}
		keyID := strings.TrimSpace(parts[0])
		if strings.Contains(keyID, ".") {
			return nil, fmt.Errorf("%w: key id %q must not contain '.'", ErrInvalidKeySpec, keyID)
		}
		key, err := hex.DecodeString(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: key %s: %v", ErrInvalidKeySpec, keyID, err)
		}
		if len(key) < minKeyLen {
			return nil, fmt.Errorf("%w: key %s shorter than %d bytes", ErrInvalidKeySpec, keyID, minKeyLen)
		}
		if _, dup := keys[keyID]; dup {
			return nil, fmt.Errorf("%w: key %s listed twice", ErrInvalidKeySpec, keyID)
		}
		keys[keyID] = key
	}
	return keys, nil
}

// New builds a keystore. When defaultKeyID is empty and exactly one key is
// configured, that key becomes the default.
func New(keys map[string][]byte, defaultKeyID string) (*StaticKeyStore, error) {
	if defaultKeyID == "" && len(keys) == 1 {
		for id := range keys {
			defaultKeyID = id
		}
	}
	if defaultKeyID == "" {
		return nil, ErrNoDefaultKey
	}
	if _, ok := keys[defaultKeyID]; !ok {
		return nil, fmt.Errorf("default key %s: %w", defaultKeyID, ErrKeyNotFound)
	}
	return &StaticKeyStore{keys: keys, defaultKeyID: defaultKeyID}, nil
}

// FromSpec parses a SIGNING_KEYS value and builds the keystore.
func FromSpec(raw, defaultKeyID string) (*StaticKeyStore, error) {
	keys, err := ParseKeys(raw)
	if err != nil {
		return nil, err
	}
	return New(keys, defaultKeyID)
}

// EphemeralKeyID names the key created by NewEphemeral.
const EphemeralKeyID = "ephemeral"

// NewEphemeral creates a keystore holding one random key. Tokens signed with
// it do not survive a restart.
func NewEphemeral() (*StaticKeyStore, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return New(map[string][]byte{EphemeralKeyID: key}, EphemeralKeyID)
}

// GetKey returns the key for keyID. Retired keys stay verifiable as long as
// they remain configured.
func (s *StaticKeyStore) GetKey(ctx context.Context, keyID string) ([]byte, error) {
	_ = ctx
	key, ok := s.keys[keyID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

// ActiveKey returns the key new tokens are signed with.
func (s *StaticKeyStore) ActiveKey(ctx context.Context) (keyID string, key []byte, err error) {
	if s.defaultKeyID == "" {
		return "", nil, ErrNoDefaultKey
	}
	key, err = s.GetKey(ctx, s.defaultKeyID)
	return s.defaultKeyID, key, err
}

// KeyIDs lists the configured key ids.
func (s *StaticKeyStore) KeyIDs() []string {
	ids := make([]string, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
