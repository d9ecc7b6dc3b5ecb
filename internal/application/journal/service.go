package journal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/instawin/merchprize/internal/apperrors"
	"github.com/instawin/merchprize/internal/domain/journal"
	"github.com/instawin/merchprize/internal/domain/session"
)

// Service handles settlement journal operations
type Service struct {
	repo    journal.Repository
	logger  zerolog.Logger
	signKey []byte
}

// NewService creates a new journal service
func NewService(repo journal.Repository, logger zerolog.Logger, signKey []byte) *Service {
	return &Service{
		repo:    repo,
		signKey: signKey,
		logger:  logger.With().Str("service", "journal").Logger(),
	}
}

// Record signs and stores a settlement.
func (s *Service) Record(ctx context.Context, rec *journal.Record) error {
	if len(s.signKey) > 0 {
		sig, err := journal.Sign(rec, s.signKey)
		if err != nil {
			return fmt.Errorf("failed to sign settlement: %w", err)
		}
		rec.Signature = sig
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return fmt.Errorf("failed to save settlement: %w", err)
	}

	s.logger.Debug().
		Str("recordId", rec.RecordID.String()).
		Str("cycleId", rec.CycleID.String()).
		Str("gameId", rec.GameID).
		Int64("settled", rec.Settled).
		Int64("payout", rec.Payout).
		Msg("settlement recorded")
	return nil
}

// Get returns the settlement of a cycle.
func (s *Service) Get(ctx context.Context, cycleID uuid.UUID) (*journal.Record, error) {
	rec, err := s.repo.GetByCycleID(ctx, cycleID)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, "settlement "+cycleID.String(), err)
		}
		s.logger.Error().Err(err).Str("cycleId", cycleID.String()).Msg("failed to get settlement")
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	if rec == nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "settlement "+cycleID.String())
	}
	return rec, nil
}

// QueryParams represents query parameters for settlements
type QueryParams struct {
	GameID *string
	Mode   *string
	Since  *time.Time
	Until  *time.Time
	Cursor *string
	Limit  int
}

// QueryResult represents one page of settlements
type QueryResult struct {
	Records    []*journal.Record `json:"records"`
	Pagination Pagination        `json:"pagination"`
}

// Pagination holds pagination information
type Pagination struct {
	Cursor  *string `json:"cursor,omitempty"`
	HasMore bool    `json:"hasMore"`
	Count   int     `json:"count"`
}

// List pages through settlements, newest first.
func (s *Service) List(ctx context.Context, params QueryParams) (*QueryResult, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	}
	if params.Limit > 200 {
		params.Limit = 200
	}

	var cursor *journal.Cursor
	if params.Cursor != nil && *params.Cursor != "" {
		c, err := decodeCursor(*params.Cursor)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid cursor", err)
		}
		cursor = c
	}

	filter := journal.Filter{GameID: params.GameID, Since: params.Since, Until: params.Until}
	if params.Mode != nil {
		mode, ok := session.ParseActionMode(*params.Mode)
		if !ok {
			return nil, apperrors.New(apperrors.CodeInvalidInput, fmt.Sprintf("unknown mode %q", *params.Mode))
		}
		filter.Mode = &mode
	}

	records, next, err := s.repo.List(ctx, filter, cursor, params.Limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list settlements")
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	if records == nil {
		records = []*journal.Record{}
	}

	result := &QueryResult{
		Records: records,
		Pagination: Pagination{
			Count:   len(records),
			HasMore: next != nil,
		},
	}
	if next != nil {
		encoded, err := encodeCursor(next)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to encode cursor")
		} else {
			result.Pagination.Cursor = &encoded
		}
	}
	return result, nil
}

// VerifyResult reports the integrity of one settlement.
type VerifyResult struct {
	CycleID  uuid.UUID `json:"cycleId"`
	Verified bool      `json:"verified"`
	Message  string    `json:"message"`
}

// Verify checks the stored signature of a settlement.
func (s *Service) Verify(ctx context.Context, cycleID uuid.UUID) (*VerifyResult, error) {
	rec, err := s.Get(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if len(s.signKey) == 0 {
		return &VerifyResult{CycleID: cycleID, Message: "journal signing is not configured"}, nil
	}
	verified, err := journal.VerifySignature(rec, s.signKey)
	if err != nil {
		return nil, fmt.Errorf("failed to verify signature: %w", err)
	}

	result := &VerifyResult{CycleID: cycleID, Verified: verified}
	if verified {
		result.Message = "Settlement integrity verified"
	} else {
		result.Message = "Settlement signature mismatch - possible tampering detected"
		s.logger.Warn().Str("cycleId", cycleID.String()).Msg("settlement signature verification failed")
	}
	return result, nil
}

func encodeCursor(c *journal.Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

func decodeCursor(s string) (*journal.Cursor, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	var c journal.Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
