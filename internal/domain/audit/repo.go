package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Entry, int, error)
	ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*Entry, int, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID, limit, offset int) ([]*Entry, int, error)
	ListByDateRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Entry, int, error)

	CountsPerDay(ctx context.Context, from, to time.Time) ([]DayCount, error)
	CountsPerRequester(ctx context.Context, from, to time.Time) ([]KeyCount, error)
	CountsPerPatient(ctx context.Context, from, to time.Time) ([]KeyCount, error)
	CountsPerDocumentType(ctx context.Context, from, to time.Time) ([]KeyCount, error)
}
