package outcome

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_engine.go -package=mocks . Engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/instawin/merchprize/internal/domain/session"
)

var (
	ErrMissingField   = errors.New("outcome field missing")
	ErrInvalidOutcome = errors.New("invalid outcome")
)

// Request is what the outcome engine sees for one determination.
type Request struct {
	GameID  string             `json:"gameId"`
	CycleID uuid.UUID          `json:"cycleId"`
	Stage   session.Stage      `json:"stage"`
	Mode    session.ActionMode `json:"mode"`
	Wager   int64              `json:"wager"`
	Payload json.RawMessage    `json:"payload,omitempty"`
}

// Result is the engine's decision. Detail keeps the full engine document,
// including fields this service does not interpret.
type Result struct {
	PrizeValue    int64           `json:"prizeValue"`
	PrizeDivision int             `json:"prizeDivision"`
	Detail        json.RawMessage `json:"-"`
}

// Engine determines the prize of a cycle.
type Engine interface {
	Determine(ctx context.Context, req *Request) (*Result, error)
}

// Validate rejects results the state machine cannot act on.
func (r *Result) Validate() error {
	if r.PrizeValue < 0 {
		return fmt.Errorf("%w: negative prize value %d", ErrInvalidOutcome, r.PrizeValue)
	}
	if r.PrizeDivision <= 0 {
		return fmt.Errorf("%w: prize division %d", ErrInvalidOutcome, r.PrizeDivision)
	}
	return nil
}

// ParseResult decodes an engine JSON document. prizeValue and prizeDivision
// must be integers; every other field is kept verbatim in Detail.
func ParseResult(raw []byte) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode outcome: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidOutcome)
	}
	value, err := intField(doc, "prizeValue")
	if err != nil {
		return nil, err
	}
	division, err := intField(doc, "prizeDivision")
	if err != nil {
		return nil, err
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, fmt.Errorf("compact outcome: %w", err)
	}
	res := &Result{
		PrizeValue:    value,
		PrizeDivision: int(division),
		Detail:        json.RawMessage(compact.Bytes()),
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// Document renders the result as an engine JSON document. Fields already
// present in Detail are kept; prizeValue and prizeDivision are overwritten.
func (r *Result) Document() (json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(r.Detail)) > 0 {
		if err := json.Unmarshal(r.Detail, &doc); err != nil {
			return nil, fmt.Errorf("decode outcome detail: %w", err)
		}
	}
	doc["prizeValue"] = json.RawMessage(fmt.Sprintf("%d", r.PrizeValue))
	doc["prizeDivision"] = json.RawMessage(fmt.Sprintf("%d", r.PrizeDivision))
	return json.Marshal(doc)
}

func intField(doc map[string]interface{}, key string) (int64, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a number", ErrInvalidOutcome, key)
	}
	i, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidOutcome, key)
	}
	return i, nil
}
