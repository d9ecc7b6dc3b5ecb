package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/instawin/merchprize/internal/apperrors"
	"github.com/instawin/merchprize/internal/application/play"
	"github.com/instawin/merchprize/internal/domain/ledger"
	"github.com/instawin/merchprize/internal/domain/session"
)

type playRequest struct {
	Token   string          `json:"token,omitempty"`
	Action  string          `json:"action"`
	Wager   *int64          `json:"wager,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type merchandiseRequest struct {
	Token string                    `json:"token"`
	Prize *session.MerchandisePrize `json:"prize"`
}

type playResponse struct {
	Token            string                     `json:"token"`
	Stage            session.Stage              `json:"stage"`
	CycleID          uuid.UUID                  `json:"cycleId"`
	Mode             session.ActionMode         `json:"mode"`
	Ledger           ledger.Ledger              `json:"ledger"`
	Outcome          *play.OutcomeView          `json:"outcome,omitempty"`
	Offer            []session.MerchandisePrize `json:"offer,omitempty"`
	MerchandisePrize *session.MerchandisePrize  `json:"merchandisePrize,omitempty"`
	RevealData       json.RawMessage            `json:"revealData,omitempty"`
	RevealComplete   bool                       `json:"revealComplete"`
	Settled          bool                       `json:"settled"`
}

func newPlayResponse(res *play.Result) playResponse {
	return playResponse{
		Token:            res.Token,
		Stage:            res.Stage,
		CycleID:          res.CycleID,
		Mode:             res.Mode,
		Ledger:           res.Ledger,
		Outcome:          res.Outcome,
		Offer:            res.Offer,
		MerchandisePrize: res.Merchandise,
		RevealData:       res.RevealData,
		RevealComplete:   res.RevealComplete,
		Settled:          res.Settled,
	}
}

func (s *Server) getParams(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gameFromRequest(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, g)
}

func (s *Server) play(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gameFromRequest(w, r)
	if !ok {
		return
	}
	var req playRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, string(apperrors.CodeInvalidInput), err.Error())
		return
	}

	res, err := s.playSvc.Play(r.Context(), play.Request{
		Params:        g,
		PreviousToken: req.Token,
		Input: session.PlayerInput{
			Action:  req.Action,
			Wager:   req.Wager,
			Payload: req.Payload,
		},
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newPlayResponse(res))
}

// acceptMerchandise is the privileged path that confirms a non-cash prize.
func (s *Server) acceptMerchandise(w http.ResponseWriter, r *http.Request) {
	g, ok := s.gameFromRequest(w, r)
	if !ok {
		return
	}
	var req merchandiseRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, string(apperrors.CodeInvalidInput), err.Error())
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, string(apperrors.CodeInvalidInput), "token is required")
		return
	}

	res, err := s.playSvc.Play(r.Context(), play.Request{
		Params:        g,
		PreviousToken: req.Token,
		Input: session.PlayerInput{
			Action:       session.ActionPlay,
			NonCashPrize: req.Prize,
		},
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newPlayResponse(res))
}
