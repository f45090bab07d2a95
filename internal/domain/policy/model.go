package policy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Scope says whether a policy covers every document of a patient or only a
// single document type.
type Scope string

const (
	ScopeAllDocuments     Scope = "ALL_DOCUMENTS"
	ScopeSpecificDocument Scope = "SPECIFIC_DOCUMENT"
)

// Duration says whether a policy ever expires.
type Duration string

const (
	DurationIndefinite Duration = "INDEFINITE"
	DurationTemporary  Duration = "TEMPORARY"
)

// ManagementKind records how a policy came to exist. Provenance only; it
// plays no part in evaluation.
type ManagementKind string

const (
	ManagementManual    ManagementKind = "MANUAL"
	ManagementAutomatic ManagementKind = "AUTOMATIC"
)

// GrantedToAny is the wildcard professional identifier: any professional at
// the authorized clinic.
const GrantedToAny = "*"

// AccessPolicy is a standing grant allowing a professional (or any
// professional at a clinic) to view a patient's documents. Policies are
// never updated in place except for the soft-revoke Active flag.
type AccessPolicy struct {
	ID               uuid.UUID      `db:"id" json:"id"`
	PatientID        string         `db:"patient_id" json:"patient_id"`
	GrantedTo        string         `db:"granted_to" json:"granted_to"`
	DocumentType     *string        `db:"document_type" json:"document_type,omitempty"`
	Scope            Scope          `db:"scope" json:"scope"`
	AuthorizedClinic *string        `db:"authorized_clinic" json:"authorized_clinic,omitempty"`
	Specialties      []string       `db:"specialties" json:"specialties,omitempty"`
	Duration         Duration       `db:"duration" json:"duration"`
	ExpiresAt        *time.Time     `db:"expires_at" json:"expires_at,omitempty"`
	Management       ManagementKind `db:"management" json:"management"`
	Active           bool           `db:"active" json:"active"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	Reference        string         `db:"reference" json:"reference"`
}

// Validate enforces the structural invariants of a policy before it is
// persisted.
func (p *AccessPolicy) Validate() error {
	if p.PatientID == "" {
		return fmt.Errorf("%w: patient_id is required", ErrValidation)
	}
	switch p.Scope {
	case ScopeAllDocuments:
		if p.DocumentType != nil {
			return fmt.Errorf("%w: document_type must be empty when scope is ALL_DOCUMENTS", ErrValidation)
		}
	case ScopeSpecificDocument:
		if p.DocumentType == nil || *p.DocumentType == "" {
			return fmt.Errorf("%w: document_type is required when scope is SPECIFIC_DOCUMENT", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrValidation, p.Scope)
	}
	switch p.Duration {
	case DurationIndefinite:
		// expires_at is ignored
	case DurationTemporary:
		if p.ExpiresAt == nil {
			return fmt.Errorf("%w: expires_at is required when duration is TEMPORARY", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown duration %q", ErrValidation, p.Duration)
	}
	return nil
}

// Expired reports whether a TEMPORARY policy has lapsed as of now.
func (p *AccessPolicy) Expired(now time.Time) bool {
	return p.Duration == DurationTemporary && p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// HasSpecialty reports whether the policy's specialty restriction admits the
// given specialty. An unrestricted policy admits everything.
func (p *AccessPolicy) HasSpecialty(specialty string) bool {
	if len(p.Specialties) == 0 {
		return true
	}
	for _, s := range p.Specialties {
		if strings.EqualFold(s, specialty) {
			return true
		}
	}
	return false
}

// ParseSpecialties normalizes the flexible on-disk specialty list — either a
// JSON array or a comma-separated string — into an upper-cased, deduplicated
// slice. Parsing happens once at the storage boundary, never per evaluation.
func ParseSpecialties(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var parts []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &parts); err != nil {
			parts = strings.Split(raw, ",")
		}
	} else {
		parts = strings.Split(raw, ",")
	}

	seen := make(map[string]bool, len(parts))
	var out []string
	for _, p := range parts {
		s := strings.ToUpper(strings.TrimSpace(p))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// NormalizeSpecialties upper-cases, trims and deduplicates a specialty list.
func NormalizeSpecialties(specialties []string) []string {
	if len(specialties) == 0 {
		return nil
	}
	return ParseSpecialties(strings.Join(specialties, ","))
}

// EncodeSpecialties renders a specialty list in the canonical on-disk form,
// a JSON array.
func EncodeSpecialties(specialties []string) string {
	normalized := NormalizeSpecialties(specialties)
	if len(normalized) == 0 {
		return ""
	}
	b, _ := json.Marshal(normalized)
	return string(b)
}
