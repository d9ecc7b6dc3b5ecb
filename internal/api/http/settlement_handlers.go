package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/instawin/merchprize/internal/apperrors"
	appJournal "github.com/instawin/merchprize/internal/application/journal"
)

func (s *Server) listSettlements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := appJournal.QueryParams{}
	if v := q.Get("gameId"); v != "" {
		params.GameID = &v
	}
	if v := q.Get("mode"); v != "" {
		params.Mode = &v
	}
	if v := q.Get("cursor"); v != "" {
		params.Cursor = &v
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, string(apperrors.CodeInvalidInput), "invalid limit")
			return
		}
		params.Limit = limit
	}
	for key, dst := range map[string]**time.Time{"since": &params.Since, "until": &params.Until} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, string(apperrors.CodeInvalidInput), "invalid "+key)
			return
		}
		*dst = &t
	}

	result, err := s.journalSvc.List(r.Context(), params)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) getSettlement(w http.ResponseWriter, r *http.Request) {
	cycleID, err := parseUUIDParam(r, "cycleId")
	if err != nil {
		respondError(w, http.StatusBadRequest, string(apperrors.CodeInvalidInput), "invalid cycleId")
		return
	}
	rec, err := s.journalSvc.Get(r.Context(), cycleID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	verification, err := s.journalSvc.Verify(r.Context(), cycleID)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"settlement":   rec,
		"verification": verification,
	})
}
