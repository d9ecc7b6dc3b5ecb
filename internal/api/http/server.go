package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/instawin/merchprize/internal/apperrors"
	appJournal "github.com/instawin/merchprize/internal/application/journal"
	"github.com/instawin/merchprize/internal/application/play"
	"github.com/instawin/merchprize/internal/domain/gameparams"
	"github.com/instawin/merchprize/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	playSvc         *play.Service
	journalSvc      *appJournal.Service
	games           *gameparams.Registry
	sseHub          *sse.Hub
	operatorKeyHash string
	keepAlive       time.Duration
	logger          zerolog.Logger
}

func NewServer(
	playSvc *play.Service,
	journalSvc *appJournal.Service,
	games *gameparams.Registry,
	sseHub *sse.Hub,
	operatorKeyHash string,
	logger zerolog.Logger,
) *Server {
	return &Server{
		playSvc:         playSvc,
		journalSvc:      journalSvc,
		games:           games,
		sseHub:          sseHub,
		operatorKeyHash: operatorKeyHash,
		keepAlive:       defaultKeepAlive,
		logger:          logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Route("/games/{gameId}", func(r chi.Router) {
				r.Get("/params", s.getParams)
				r.Post("/play", s.play)
				r.With(s.requireOperator).Post("/merchandise", s.acceptMerchandise)
			})

			r.Route("/settlements", func(r chi.Router) {
				r.Use(s.requireOperator)
				r.Get("/", s.listSettlements)
				r.Get("/{cycleId}", s.getSettlement)
			})
		})

		r.With(s.requireOperator).Get("/events", s.sseEndpoint)
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"games":   s.games.IDs(),
		"streams": s.sseHub.GetClientCount(),
	})
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondAppError maps a service error onto its protocol code and status.
func respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()
	body := map[string]interface{}{
		"error":   string(code),
		"message": err.Error(),
	}
	if code.Fatal() {
		hlog.FromRequest(r).Error().Err(err).Str("code", string(code)).Msg("request failed")
		body["message"] = "internal error"
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && len(appErr.Metadata) > 0 {
		body["metadata"] = appErr.Metadata
	}
	respondJSON(w, status, body)
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val := chi.URLParam(r, key)
	return uuid.Parse(val)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) gameFromRequest(w http.ResponseWriter, r *http.Request) (*gameparams.GameParams, bool) {
	gameID := chi.URLParam(r, "gameId")
	g, ok := s.games.Get(gameID)
	if !ok {
		respondError(w, http.StatusNotFound, string(apperrors.CodeNotFound), "unknown game "+gameID)
		return nil, false
	}
	return g, true
}
