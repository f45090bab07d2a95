package policy

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	Create(ctx context.Context, p *AccessPolicy) error
	GetByID(ctx context.Context, id uuid.UUID) (*AccessPolicy, error)
	// ListActiveByPatient returns the active, non-expired policies for a
	// patient. Expiry filtering happens in the store so evaluation never
	// sees a lapsed grant.
	ListActiveByPatient(ctx context.Context, patientID string) ([]*AccessPolicy, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*AccessPolicy, int, error)
	// Revoke soft-deletes: the row stays for audit, active becomes false.
	Revoke(ctx context.Context, id uuid.UUID) error
	// Delete hard-removes a policy. Rarely used.
	Delete(ctx context.Context, id uuid.UUID) error
}
