package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodePrizeMismatch, "tier id does not match")
	wrapped := fmt.Errorf("play: %w", err)

	assert.True(t, errors.Is(wrapped, ErrPrizeMismatch))
	assert.False(t, errors.Is(wrapped, ErrInvalidInput))
	assert.Equal(t, CodePrizeMismatch, CodeOf(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeOutcomeResolution, "determine outcome", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "determine outcome: connection refused", err.Error())
}

func TestCodeOfUnknown(t *testing.T) {
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeUnknown, CodeOf(nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeVerification:       http.StatusUnauthorized,
		CodeInvalidInput:       http.StatusBadRequest,
		CodeInvalidStageAction: http.StatusConflict,
		CodePrizeMismatch:      http.StatusUnprocessableEntity,
		CodeOutcomeResolution:  http.StatusBadGateway,
		CodeInvariantViolation: http.StatusInternalServerError,
		CodeTokenReplayed:      http.StatusConflict,
		CodeNotFound:           http.StatusNotFound,
	}
	for code, want := range cases {
		assert.Equal(t, want, code.HTTPStatus(), code)
	}
	assert.True(t, CodeInvariantViolation.Fatal())
	assert.False(t, CodeInvalidInput.Fatal())
}
