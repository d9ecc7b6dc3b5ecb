// Package play runs the session state machine: one call decodes the previous
// token, advances exactly one stage and signs the next token.
package play

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/instawin/merchprize/internal/apperrors"
	appOutcome "github.com/instawin/merchprize/internal/application/outcome"
	"github.com/instawin/merchprize/internal/application/token"
	"github.com/instawin/merchprize/internal/domain/gameparams"
	"github.com/instawin/merchprize/internal/domain/journal"
	"github.com/instawin/merchprize/internal/domain/ledger"
	"github.com/instawin/merchprize/internal/domain/replay"
	"github.com/instawin/merchprize/internal/domain/session"
)

// Recorder persists closed cycles.
type Recorder interface {
	Record(ctx context.Context, rec *journal.Record) error
}

// Notifier receives session events after a token has been issued.
type Notifier interface {
	Notify(ctx context.Context, event session.Event)
}

// Request is one protocol call.
type Request struct {
	Params        *gameparams.GameParams
	PreviousToken string
	Input         session.PlayerInput
}

// OutcomeView is the determined outcome as shown to the caller.
type OutcomeView struct {
	PrizeDivision int             `json:"prizeDivision"`
	PrizeValue    int64           `json:"prizeValue"`
	Merchandise   bool            `json:"merchandise"`
	Detail        json.RawMessage `json:"detail,omitempty"`
}

// Result is the outcome of one call.
type Result struct {
	Token          string
	TokenID        uuid.UUID
	Stage          session.Stage
	CycleID        uuid.UUID
	Mode           session.ActionMode
	Ledger         ledger.Ledger
	Outcome        *OutcomeView
	Offer          []session.MerchandisePrize
	Merchandise    *session.MerchandisePrize
	RevealData     json.RawMessage
	RevealComplete bool
	Settled        bool
}

// Service handles play calls.
type Service struct {
	codec    *token.Codec
	resolver *appOutcome.Resolver
	guard    replay.Guard
	recorder Recorder
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithReplayGuard makes every token single-use.
func WithReplayGuard(g replay.Guard) Option {
	return func(s *Service) { s.guard = g }
}

// WithRecorder journals every closed cycle.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithNotifier publishes session events.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new play service
func NewService(codec *token.Codec, resolver *appOutcome.Resolver, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		codec:    codec,
		resolver: resolver,
		logger:   logger.With().Str("service", "play").Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Play advances the session by one stage. Nothing is signed, consumed or
// recorded when an error is returned.
func (s *Service) Play(ctx context.Context, req Request) (*Result, error) {
	if req.Params == nil {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "unknown game")
	}

	state := session.New(req.Params.GameID)
	var prevID uuid.UUID
	if req.PreviousToken != "" {
		claims, err := s.codec.Decode(ctx, req.PreviousToken)
		if err != nil {
			return nil, err
		}
		if claims.State.GameID != req.Params.GameID {
			return nil, apperrors.WithMetadata(apperrors.CodeInvalidInput, "token belongs to another game",
				map[string]string{"gameId": claims.State.GameID})
		}
		state = claims.State
		prevID = claims.TokenID
	}

	from := state.Stage
	next, st, err := s.advance(ctx, req.Params, state, req.Input)
	if err != nil {
		s.logFailure(state, req.Input, err)
		return nil, err
	}
	if !from.CanTransitionTo(next.Stage) {
		return nil, apperrors.Wrap(apperrors.CodeInvariantViolation,
			fmt.Sprintf("%s -> %s", from, next.Stage), session.ErrInvalidTransition)
	}

	tok, tokenID, err := s.codec.EncodeWithID(ctx, next)
	if err != nil {
		return nil, err
	}

	// The previous token is burned only once its successor exists.
	if s.guard != nil && prevID != uuid.Nil {
		fresh, err := s.guard.Consume(ctx, prevID)
		if err != nil {
			return nil, fmt.Errorf("failed to consume token: %w", err)
		}
		if !fresh {
			return nil, apperrors.WithMetadata(apperrors.CodeTokenReplayed, "token already used",
				map[string]string{"tokenId": prevID.String()})
		}
	}

	res := &Result{
		Token:          tok,
		TokenID:        tokenID,
		Stage:          next.Stage,
		CycleID:        next.CycleID,
		Mode:           next.Mode,
		Ledger:         next.Ledger,
		Outcome:        st.outcome,
		Offer:          st.offer,
		Merchandise:    st.merchandise,
		RevealData:     st.revealData,
		RevealComplete: st.revealComplete,
		Settled:        st.settlement != nil,
	}

	s.logger.Info().
		Str("game_id", next.GameID).
		Str("cycle_id", next.CycleID.String()).
		Str("from", string(from)).
		Str("stage", string(next.Stage)).
		Str("mode", string(next.Mode)).
		Int64("settled", next.Ledger.Settled).
		Int64("pending", next.Ledger.Pending).
		Int64("payout", next.Ledger.Payout).
		Msg("stage transition")

	s.afterIssue(ctx, from, next, st)
	return res, nil
}

// afterIssue journals and publishes. Failures are logged only: the token
// has already been issued.
func (s *Service) afterIssue(ctx context.Context, from session.Stage, next *session.State, st *step) {
	at := s.now().UTC()
	eventType := session.EventStageChanged
	if st.settlement != nil {
		eventType = session.EventCycleSettled
		if s.recorder != nil {
			rec := journal.NewRecord(*st.settlement, at)
			if err := s.recorder.Record(ctx, rec); err != nil {
				s.logger.Warn().Err(err).
					Str("cycle_id", next.CycleID.String()).
					Msg("failed to journal settlement")
			}
		}
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, session.Event{
			Type:    eventType,
			GameID:  next.GameID,
			CycleID: next.CycleID,
			From:    from,
			Stage:   next.Stage,
			Mode:    next.Mode,
			Ledger:  next.Ledger,
			At:      at,
		})
	}
}

func (s *Service) logFailure(state *session.State, in session.PlayerInput, err error) {
	code := apperrors.CodeOf(err)
	evt := s.logger.Info()
	if code.Fatal() {
		evt = s.logger.Error()
	}
	evt.Err(err).
		Str("game_id", state.GameID).
		Str("cycle_id", state.CycleID.String()).
		Str("stage", string(state.Stage)).
		Str("action", in.Action).
		Str("code", string(code)).
		Msg("play rejected")
}
