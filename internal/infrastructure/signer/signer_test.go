package signer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/instawin/merchprize/internal/infrastructure/keystore"
)

// MockKeyStore is a mock implementation of KeyStore.
type MockKeyStore struct {
	mock.Mock
}

func (m *MockKeyStore) GetKey(ctx context.Context, keyID string) ([]byte, error) {
	args := m.Called(ctx, keyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKeyStore) ActiveKey(ctx context.Context) (string, []byte, error) {
	args := m.Called(ctx)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).([]byte), args.Error(2)
}

var (
	keyOne = []byte("0123456789abcdef0123456789abcdef")
	keyTwo = []byte("fedcba9876543210fedcba9876543210")
)

const payload = `{"v":1,"state":{"stage":"Wager"}}`

func newKeyStore(t *testing.T) *MockKeyStore {
	t.Helper()
	ks := new(MockKeyStore)
	ks.On("ActiveKey", mock.Anything).Return("k1", keyOne, nil).Maybe()
	ks.On("GetKey", mock.Anything, "k1").Return(keyOne, nil).Maybe()
	ks.On("GetKey", mock.Anything, "k2").Return(keyTwo, nil).Maybe()
	ks.On("GetKey", mock.Anything, mock.Anything).Return(nil, keystore.ErrKeyNotFound).Maybe()
	return ks
}

type tokenSigner interface {
	Sign(ctx context.Context, payload []byte) (string, error)
	Verify(ctx context.Context, token string) ([]byte, error)
}

func signers(t *testing.T) map[string]tokenSigner {
	ks := newKeyStore(t)
	return map[string]tokenSigner{
		"hmac": NewHMACSigner(ks),
		"jwt":  NewJWTSigner(ks, WithIssuer("merchprize")),
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range signers(t) {
		t.Run(name, func(t *testing.T) {
			tok, err := s.Sign(ctx, []byte(payload))
			require.NoError(t, err)

			got, err := s.Verify(ctx, tok)
			require.NoError(t, err)
			assert.Equal(t, payload, string(got))
		})
	}
}

func TestAnyAlteredByteFails(t *testing.T) {
	ctx := context.Background()
	for name, s := range signers(t) {
		t.Run(name, func(t *testing.T) {
			tok, err := s.Sign(ctx, []byte(payload))
			require.NoError(t, err)

			for i := 0; i < len(tok); i++ {
				for _, repl := range []byte{'A', 'x', '.', '_'} {
					if tok[i] == repl {
						continue
					}
					altered := tok[:i] + string(repl) + tok[i+1:]
					_, err := s.Verify(ctx, altered)
					require.Error(t, err, "byte %d replaced by %q", i, repl)
				}
			}
			_, err = s.Verify(ctx, tok[:len(tok)-1])
			assert.Error(t, err)
			_, err = s.Verify(ctx, tok+"A")
			assert.Error(t, err)
		})
	}
}

func TestHMACTokenShape(t *testing.T) {
	s := NewHMACSigner(newKeyStore(t))
	tok, err := s.Sign(context.Background(), []byte(payload))
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 4)
	assert.Equal(t, "v1", parts[0])
	assert.Equal(t, "k1", parts[1])
}

func TestHMACRejectsUnknownKey(t *testing.T) {
	ctx := context.Background()
	s := NewHMACSigner(newKeyStore(t))
	tok, err := s.Sign(ctx, []byte(payload))
	require.NoError(t, err)

	_, err = s.Verify(ctx, strings.Replace(tok, ".k1.", ".k9.", 1))
	assert.ErrorIs(t, err, keystore.ErrKeyNotFound)

	_, err = s.Verify(ctx, strings.Replace(tok, ".k1.", ".k2.", 1))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestSignFailsWithoutActiveKey(t *testing.T) {
	ks := new(MockKeyStore)
	ks.On("ActiveKey", mock.Anything).Return("", nil, keystore.ErrNoDefaultKey)

	_, err := NewHMACSigner(ks).Sign(context.Background(), []byte(payload))
	assert.ErrorIs(t, err, keystore.ErrNoDefaultKey)
	_, err = NewJWTSigner(ks).Sign(context.Background(), []byte(payload))
	assert.ErrorIs(t, err, keystore.ErrNoDefaultKey)
	ks.AssertExpectations(t)
}

func TestJWTExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ks := newKeyStore(t)

	s := NewJWTSigner(ks, WithExpiry(time.Minute), WithNow(clock))
	tok, err := s.Sign(ctx, []byte(payload))
	require.NoError(t, err)

	_, err = s.Verify(ctx, tok)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = s.Verify(ctx, tok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestJWTIssuerMismatch(t *testing.T) {
	ctx := context.Background()
	ks := newKeyStore(t)

	tok, err := NewJWTSigner(ks, WithIssuer("other")).Sign(ctx, []byte(payload))
	require.NoError(t, err)

	_, err = NewJWTSigner(ks, WithIssuer("merchprize")).Verify(ctx, tok)
	assert.Error(t, err)
}

func TestJWTRejectsNonJSONPayload(t *testing.T) {
	_, err := NewJWTSigner(newKeyStore(t)).Sign(context.Background(), []byte("nope"))
	assert.Error(t, err)
}
