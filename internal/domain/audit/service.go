package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Recorder is the write side of the audit trail, consumed by the policy
// engine and the federated retriever. A failed write must never block the
// primary decision, so Record has no error return.
type Recorder interface {
	Record(ctx context.Context, e *Entry) *Entry
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record appends one entry. Store failures are logged and swallowed: the
// entry (with its assigned id and timestamp) is returned either way so the
// caller can carry on with the primary result.
func (s *Service) Record(ctx context.Context, e *Entry) *Entry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if err := s.repo.Create(ctx, e); err != nil {
		s.logger.Error().Err(err).
			Str("requester_id", e.RequesterID).
			Str("patient_id", e.PatientID).
			Bool("succeeded", e.Succeeded).
			Msg("failed to persist audit entry")
	}
	return e
}

func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByRequester(ctx, requesterID, limit, offset)
}

func (s *Service) ListByDocument(ctx context.Context, documentID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByDocument(ctx, documentID, limit, offset)
}

func (s *Service) ListByDateRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByDateRange(ctx, from, to, limit, offset)
}

func (s *Service) CountsPerDay(ctx context.Context, from, to time.Time) ([]DayCount, error) {
	return s.repo.CountsPerDay(ctx, from, to)
}

func (s *Service) CountsPerRequester(ctx context.Context, from, to time.Time) ([]KeyCount, error) {
	return s.repo.CountsPerRequester(ctx, from, to)
}

func (s *Service) CountsPerPatient(ctx context.Context, from, to time.Time) ([]KeyCount, error) {
	return s.repo.CountsPerPatient(ctx, from, to)
}

func (s *Service) CountsPerDocumentType(ctx context.Context, from, to time.Time) ([]KeyCount, error) {
	return s.repo.CountsPerDocumentType(ctx, from, to)
}
