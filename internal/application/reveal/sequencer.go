// Package reveal drives the multi-round reveal sub-protocol.
package reveal

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/instawin/merchprize/internal/apperrors"
	"github.com/instawin/merchprize/internal/domain/session"
)

const (
	KeyStatus = "revealStatus"
	KeyData   = "revealData"
)

// StatusComplete ends the reveal.
const StatusComplete = 0

// Input is one decoded reveal round.
type Input struct {
	Status int
	Data   json.RawMessage
}

// HasData reports whether the round carries a non-null reveal payload.
func (in Input) HasData() bool {
	d := bytes.TrimSpace(in.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// ParseInput decodes {"revealStatus": n, "revealData": any}. The boolean
// reports whether revealStatus was present at all.
func ParseInput(payload json.RawMessage) (Input, bool, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return Input{}, false, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return Input{}, false, apperrors.Wrap(apperrors.CodeInvalidInput, "reveal payload must be a JSON object", err)
	}
	rawStatus, ok := obj[KeyStatus]
	if !ok {
		return Input{}, false, nil
	}
	if bytes.Equal(bytes.TrimSpace(rawStatus), []byte("null")) {
		return Input{}, true, apperrors.New(apperrors.CodeInvalidInput, KeyStatus+" must not be null")
	}
	var status int
	if err := json.Unmarshal(rawStatus, &status); err != nil {
		return Input{}, true, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("%s must be an integer", KeyStatus), err)
	}
	in := Input{Status: status}
	if data, ok := obj[KeyData]; ok {
		var compact bytes.Buffer
		if err := json.Compact(&compact, data); err != nil {
			return Input{}, true, apperrors.Wrap(apperrors.CodeInvalidInput, "reveal data", err)
		}
		in.Data = json.RawMessage(compact.Bytes())
	}
	return in, true, nil
}

// Advance applies one round. Non-null data replaces the carried value,
// null or absent data keeps it.
func Advance(cur session.RevealState, in Input) session.RevealState {
	next := session.RevealState{
		Data:     cur.Data,
		Rounds:   cur.Rounds + 1,
		Complete: in.Status == StatusComplete,
	}
	if in.HasData() {
		next.Data = in.Data
	}
	return next
}
