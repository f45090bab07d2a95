package accessrequest

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the workflow state of an access request. PENDING is initial;
// APPROVED and REJECTED are terminal.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

var (
	ErrNotFound = errors.New("access request not found")
	// ErrAlreadyResolved marks an invalid cross-terminal transition
	// (approve after reject or the reverse). Repeating the same terminal
	// resolution is not an error; it is an idempotent no-op.
	ErrAlreadyResolved = errors.New("access request already resolved")
	ErrValidation      = errors.New("invalid access request")
)

// AccessRequest is a professional's pending ask for a standing access
// policy on a patient's documents.
type AccessRequest struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	RequesterID        string     `db:"requester_id" json:"requester_id"`
	RequesterSpecialty string     `db:"requester_specialty" json:"requester_specialty"`
	PatientID          string     `db:"patient_id" json:"patient_id"`
	DocumentType       *string    `db:"document_type" json:"document_type,omitempty"`
	DocumentID         *uuid.UUID `db:"document_id" json:"document_id,omitempty"`
	Reason             string     `db:"reason" json:"reason"`
	RequestingClinic   string     `db:"requesting_clinic" json:"requesting_clinic"`
	Status             Status     `db:"status" json:"status"`
	SubmittedAt        time.Time  `db:"submitted_at" json:"submitted_at"`
	ResolvedAt         *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy         *string    `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolutionComment  *string    `db:"resolution_comment" json:"resolution_comment,omitempty"`
}
