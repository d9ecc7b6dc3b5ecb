package play

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/instawin/merchprize/internal/apperrors"
	"github.com/instawin/merchprize/internal/application/reveal"
	"github.com/instawin/merchprize/internal/domain/gameparams"
	"github.com/instawin/merchprize/internal/domain/journal"
	"github.com/instawin/merchprize/internal/domain/ledger"
	"github.com/instawin/merchprize/internal/domain/session"
)

// step collects what one transition shows the caller besides the new state.
type step struct {
	outcome        *OutcomeView
	offer          []session.MerchandisePrize
	merchandise    *session.MerchandisePrize
	revealData     json.RawMessage
	revealComplete bool
	settlement     *journal.Settlement
}

func (s *Service) advance(ctx context.Context, params *gameparams.GameParams, state *session.State, in session.PlayerInput) (*session.State, *step, error) {
	switch state.Stage {
	case session.StageWager:
		return s.wager(ctx, params, state, in)
	case session.StageScenario:
		return s.scenario(ctx, params, state, in)
	case session.StageMerchandisePrize:
		return s.merchandisePrize(params, state, in)
	case session.StageReveal:
		return s.reveal(state, in)
	default:
		return nil, nil, stageError(state.Stage, "unknown stage")
	}
}

func (s *Service) wager(ctx context.Context, params *gameparams.GameParams, state *session.State, in session.PlayerInput) (*session.State, *step, error) {
	if in.NonCashPrize != nil {
		return nil, nil, stageError(state.Stage, "merchandise acceptance is not expected")
	}
	if in.HasPayloadKey(reveal.KeyStatus) {
		return nil, nil, stageError(state.Stage, "reveal input is not expected")
	}
	mode, ok := session.ParseActionMode(in.Action)
	if !ok {
		return nil, nil, apperrors.WithMetadata(apperrors.CodeInvalidInput,
			fmt.Sprintf("unknown wager action %q", in.Action), map[string]string{"field": "action"})
	}
	if in.Wager == nil {
		return nil, nil, apperrors.WithMetadata(apperrors.CodeInvalidInput, "wager is required",
			map[string]string{"field": "wager"})
	}
	w := *in.Wager
	if w <= 0 || !params.ValidWager(w) {
		return nil, nil, apperrors.WithMetadata(apperrors.CodeInvalidInput,
			fmt.Sprintf("wager %d is not a configured price point", w), map[string]string{"field": "wager"})
	}

	next := state.Clone()
	next.StartCycle(mode, w)
	l, err := next.Ledger.Apply(ledger.Open(w))
	if err != nil {
		return nil, nil, err
	}
	next.Ledger = l

	if mode == session.ModeBuy {
		next.Stage = session.StageScenario
		return next, &step{}, nil
	}
	st, err := s.determine(ctx, params, next, in)
	if err != nil {
		return nil, nil, err
	}
	return next, st, nil
}

func (s *Service) scenario(ctx context.Context, params *gameparams.GameParams, state *session.State, in session.PlayerInput) (*session.State, *step, error) {
	if in.NonCashPrize != nil {
		return nil, nil, stageError(state.Stage, "merchandise acceptance is not expected")
	}
	if in.HasPayloadKey(reveal.KeyStatus) {
		return nil, nil, stageError(state.Stage, "reveal input is not expected")
	}
	if !session.IsPlay(in.Action) {
		return nil, nil, stageError(state.Stage, fmt.Sprintf("action %q is not allowed", in.Action))
	}
	next := state.Clone()
	st, err := s.determine(ctx, params, next, in)
	if err != nil {
		return nil, nil, err
	}
	return next, st, nil
}

// determine resolves the outcome for next and moves it to the stage the
// prize tier calls for.
func (s *Service) determine(ctx context.Context, params *gameparams.GameParams, next *session.State, in session.PlayerInput) (*step, error) {
	res, err := s.resolver.Resolve(ctx, params, next, in)
	if err != nil {
		return nil, err
	}
	next.PrizeDivision = res.PrizeDivision
	next.PrizeValue = res.PrizeValue
	next.OutcomeDetail = res.Detail

	tier := params.TierFor(res.PrizeDivision)
	st := &step{outcome: outcomeView(next, tier)}

	if tier.IsMerchandise() {
		if err := hold(next); err != nil {
			return nil, err
		}
		next.Stage = session.StageMerchandisePrize
		for _, p := range tier.Prizes {
			st.offer = append(st.offer, p.MerchandisePrize())
		}
		return st, nil
	}

	revealed, err := requiresReveal(tier, next)
	if err != nil {
		return nil, err
	}
	if revealed {
		if err := hold(next); err != nil {
			return nil, err
		}
		next.Stage = session.StageReveal
		return st, nil
	}
	if err := settle(next, next.PrizeValue, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) merchandisePrize(params *gameparams.GameParams, state *session.State, in session.PlayerInput) (*session.State, *step, error) {
	if in.HasPayloadKey(reveal.KeyStatus) {
		return nil, nil, stageError(state.Stage, "reveal input is not expected")
	}
	if in.NonCashPrize == nil {
		return nil, nil, apperrors.New(apperrors.CodePrizeMismatch, "merchandise acceptance is required")
	}
	tier := params.TierFor(state.PrizeDivision)
	if !tier.IsMerchandise() {
		return nil, nil, apperrors.WithMetadata(apperrors.CodePrizeMismatch,
			fmt.Sprintf("division %d is not a merchandise tier", state.PrizeDivision),
			map[string]string{"division": fmt.Sprint(state.PrizeDivision)})
	}
	prize, ok := tier.FindPrize(*in.NonCashPrize)
	if !ok {
		return nil, nil, apperrors.WithMetadata(apperrors.CodePrizeMismatch,
			"accepted prize does not match the won tier",
			map[string]string{"tierId": in.NonCashPrize.TierID, "division": fmt.Sprint(state.PrizeDivision)})
	}

	next := state.Clone()
	m := prize.MerchandisePrize()
	next.Merchandise = &m
	st := &step{outcome: outcomeView(next, tier), merchandise: &m}

	revealed, err := requiresReveal(tier, next)
	if err != nil {
		return nil, nil, err
	}
	if revealed {
		if err := hold(next); err != nil {
			return nil, nil, err
		}
		next.Stage = session.StageReveal
		return next, st, nil
	}
	if err := settle(next, 0, st); err != nil {
		return nil, nil, err
	}
	return next, st, nil
}

func (s *Service) reveal(state *session.State, in session.PlayerInput) (*session.State, *step, error) {
	if in.NonCashPrize != nil {
		return nil, nil, stageError(state.Stage, "merchandise acceptance is not expected")
	}
	if !session.IsPlay(in.Action) {
		return nil, nil, stageError(state.Stage, fmt.Sprintf("action %q is not allowed", in.Action))
	}
	rin, present, err := reveal.ParseInput(in.Payload)
	if err != nil {
		return nil, nil, err
	}
	if !present {
		return nil, nil, apperrors.WithMetadata(apperrors.CodeInvalidInput,
			reveal.KeyStatus+" is required", map[string]string{"field": reveal.KeyStatus})
	}

	next := state.Clone()
	next.Reveal = reveal.Advance(next.Reveal, rin)
	st := &step{
		merchandise:    next.Merchandise,
		revealData:     next.Reveal.Data,
		revealComplete: next.Reveal.Complete,
	}
	if !next.Reveal.Complete {
		if err := hold(next); err != nil {
			return nil, nil, err
		}
		return next, st, nil
	}

	payout := next.PrizeValue
	if next.Merchandise != nil {
		payout = 0
	}
	st.outcome = &OutcomeView{
		PrizeDivision: next.PrizeDivision,
		PrizeValue:    next.PrizeValue,
		Merchandise:   next.Merchandise != nil,
		Detail:        next.OutcomeDetail,
	}
	if err := settle(next, payout, st); err != nil {
		return nil, nil, err
	}
	return next, st, nil
}

func hold(next *session.State) error {
	l, err := next.Ledger.Apply(ledger.Hold(next.Wager))
	if err != nil {
		return err
	}
	next.Ledger = l
	return nil
}

// settle finalizes the ledger and closes the cycle, keeping what the journal
// needs before Close drops it.
func settle(next *session.State, payout int64, st *step) error {
	l, err := next.Ledger.Apply(ledger.Settle(next.Wager, payout))
	if err != nil {
		return err
	}
	sett := &journal.Settlement{
		CycleID:       next.CycleID,
		GameID:        next.GameID,
		Mode:          next.Mode,
		Wager:         next.Wager,
		Settled:       l.Settled,
		Payout:        l.Payout,
		PrizeDivision: next.PrizeDivision,
		PrizeValue:    next.PrizeValue,
		RevealRounds:  next.Reveal.Rounds,
	}
	if next.Merchandise != nil {
		sett.MerchandiseTierID = next.Merchandise.TierID
	}
	st.settlement = sett
	next.Close(l)
	return nil
}

func requiresReveal(tier gameparams.Tier, next *session.State) (bool, error) {
	ok, err := tier.RequiresReveal(gameparams.RuleVars{
		Mode:       next.Mode,
		Division:   next.PrizeDivision,
		PrizeValue: next.PrizeValue,
		Wager:      next.Wager,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate reveal rule for division %d: %w", next.PrizeDivision, err)
	}
	return ok, nil
}

func outcomeView(state *session.State, tier gameparams.Tier) *OutcomeView {
	return &OutcomeView{
		PrizeDivision: state.PrizeDivision,
		PrizeValue:    state.PrizeValue,
		Merchandise:   tier.IsMerchandise(),
		Detail:        state.OutcomeDetail,
	}
}

func stageError(stage session.Stage, reason string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidStageAction, reason,
		map[string]string{"stage": string(stage)})
}
