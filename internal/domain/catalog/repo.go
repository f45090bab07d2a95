package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("catalog entry not found")

// Store is the read-only view of the catalog the core consumes.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Entry, int, error)
}
