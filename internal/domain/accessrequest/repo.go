package accessrequest

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *AccessRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*AccessRequest, error)
	// Resolve is a compare-and-swap on status: the row is stamped with the
	// terminal state only if it is still PENDING. The boolean reports
	// whether this call won the transition.
	Resolve(ctx context.Context, id uuid.UUID, status Status, resolvedBy, comment string, at time.Time) (bool, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*AccessRequest, int, error)
	ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*AccessRequest, int, error)
	ListPending(ctx context.Context, limit, offset int) ([]*AccessRequest, int, error)
	ListPendingForPatient(ctx context.Context, patientID string, limit, offset int) ([]*AccessRequest, int, error)
}
