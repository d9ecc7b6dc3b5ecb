package outcome

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/instawin/merchprize/internal/apperrors"
	"github.com/instawin/merchprize/internal/domain/gameparams"
	"github.com/instawin/merchprize/internal/domain/outcome"
	"github.com/instawin/merchprize/internal/domain/session"
)

// Resolver asks the outcome engine for a cycle's prize.
type Resolver struct {
	engine  outcome.Engine
	timeout time.Duration
	logger  zerolog.Logger
}

func NewResolver(engine outcome.Engine, timeout time.Duration, logger zerolog.Logger) *Resolver {
	return &Resolver{
		engine:  engine,
		timeout: timeout,
		logger:  logger.With().Str("service", "outcome").Logger(),
	}
}

// Resolve determines the outcome for the cycle in state. Any engine failure
// or unusable result is an OUTCOME_RESOLUTION_FAILED error.
func (r *Resolver) Resolve(ctx context.Context, params *gameparams.GameParams, state *session.State, input session.PlayerInput) (*outcome.Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req := &outcome.Request{
		GameID:  params.GameID,
		CycleID: state.CycleID,
		Stage:   state.Stage,
		Mode:    state.Mode,
		Wager:   state.Wager,
		Payload: input.Payload,
	}
	start := time.Now()
	res, err := r.engine.Determine(ctx, req)
	if err != nil {
		r.logger.Warn().Err(err).
			Str("game_id", req.GameID).
			Str("cycle_id", req.CycleID.String()).
			Dur("elapsed", time.Since(start)).
			Msg("outcome engine failed")
		return nil, apperrors.Wrap(apperrors.CodeOutcomeResolution, "determine outcome", err)
	}
	if res == nil {
		return nil, apperrors.New(apperrors.CodeOutcomeResolution, "outcome engine returned no result")
	}
	if err := res.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeOutcomeResolution, "outcome", err)
	}

	out := &outcome.Result{PrizeValue: res.PrizeValue, PrizeDivision: res.PrizeDivision}
	if len(bytes.TrimSpace(res.Detail)) == 0 {
		out.Detail, err = res.Document()
	} else {
		out.Detail, err = compact(res.Detail)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeOutcomeResolution, "outcome detail", err)
	}

	r.logger.Debug().
		Str("game_id", req.GameID).
		Str("cycle_id", req.CycleID.String()).
		Int("division", out.PrizeDivision).
		Int64("prize_value", out.PrizeValue).
		Msg("outcome determined")
	return out, nil
}

func compact(raw json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &obj); err != nil {
		return nil, errors.New("outcome detail must be a JSON object")
	}
	return json.RawMessage(buf.Bytes()), nil
}
