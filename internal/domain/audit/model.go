package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one immutable record of an access attempt: a policy check or a
// cross-node document retrieval. Entries are append-only; nothing in the
// system updates or deletes them.
type Entry struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	RequesterID        string     `db:"requester_id" json:"requester_id"`
	RequesterName      string     `db:"requester_name" json:"requester_name"`
	RequesterSpecialty string     `db:"requester_specialty" json:"requester_specialty"`
	PatientID          string     `db:"patient_id" json:"patient_id"`
	DocumentID         *uuid.UUID `db:"document_id" json:"document_id,omitempty"`
	DocumentType       string     `db:"document_type" json:"document_type"`
	ClinicID           string     `db:"clinic_id" json:"clinic_id"`
	IPAddress          string     `db:"ip_address" json:"ip_address"`
	UserAgent          string     `db:"user_agent" json:"user_agent"`
	Succeeded          bool       `db:"succeeded" json:"succeeded"`
	DenialReason       *string    `db:"denial_reason" json:"denial_reason,omitempty"`
	Reference          string     `db:"reference" json:"reference"`
	Timestamp          time.Time  `db:"timestamp" json:"timestamp"`
}

// Denied builds a failed entry from a base attempt and a reason.
func (e Entry) Denied(reason string) *Entry {
	e.Succeeded = false
	e.DenialReason = &reason
	return &e
}

// Permitted builds a succeeded entry from a base attempt.
func (e Entry) Permitted() *Entry {
	e.Succeeded = true
	e.DenialReason = nil
	return &e
}

// DayCount is the number of attempts on one calendar day, split by outcome.
type DayCount struct {
	Day       time.Time `json:"day"`
	Succeeded int       `json:"succeeded"`
	Denied    int       `json:"denied"`
}

// KeyCount is the number of attempts per grouping key (requester, patient
// or document type), split by outcome.
type KeyCount struct {
	Key       string `json:"key"`
	Succeeded int    `json:"succeeded"`
	Denied    int    `json:"denied"`
}
