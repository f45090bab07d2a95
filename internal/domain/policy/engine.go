package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/accesscore/internal/domain/audit"
)

// Denial reasons recorded in the audit trail. Every denied check names one.
const (
	denyNoClinicContext = "no clinic context"
	denyNoMatch         = "no matching active policy"
	denyEvalError       = "evaluation error"
)

// EvalInput is one authorization question: may this requester see this
// patient's documents (of this type) from this clinic? The requester's name,
// address and user agent ride along for the audit trail only.
type EvalInput struct {
	RequesterID        string
	RequesterName      string
	RequesterSpecialty string
	PatientID          string
	DocumentType       string // empty means "any type"
	ClinicID           string // empty means unknown, which is a deny
	IPAddress          string
	UserAgent          string
	Reference          string
}

// Engine evaluates access policies. It is fail-secure: any error while
// loading or matching policies yields a denial, never a propagated failure.
// Every call records exactly one audit entry.
type Engine struct {
	store  Store
	audit  audit.Recorder
	logger zerolog.Logger
}

func NewEngine(store Store, recorder audit.Recorder, logger zerolog.Logger) *Engine {
	return &Engine{store: store, audit: recorder, logger: logger}
}

// Evaluate reports whether at least one active, non-expired policy matches
// the input. The answer is recorded in the audit trail before it is
// returned.
func (e *Engine) Evaluate(ctx context.Context, in EvalInput) bool {
	permitted, reason := e.match(ctx, in)

	entry := audit.Entry{
		RequesterID:        in.RequesterID,
		RequesterName:      in.RequesterName,
		RequesterSpecialty: in.RequesterSpecialty,
		PatientID:          in.PatientID,
		DocumentType:       in.DocumentType,
		ClinicID:           in.ClinicID,
		IPAddress:          in.IPAddress,
		UserAgent:          in.UserAgent,
		Reference:          in.Reference,
	}
	if permitted {
		e.audit.Record(ctx, entry.Permitted())
	} else {
		e.audit.Record(ctx, entry.Denied(reason))
	}
	return permitted
}

func (e *Engine) match(ctx context.Context, in EvalInput) (bool, string) {
	// The design requires knowing the requester's clinic: absence of clinic
	// context is a deny, not a wildcard permit.
	if in.ClinicID == "" {
		return false, denyNoClinicContext
	}

	policies, err := e.store.ListActiveByPatient(ctx, in.PatientID)
	if err != nil {
		e.logger.Error().Err(err).
			Str("requester_id", in.RequesterID).
			Str("patient_id", in.PatientID).
			Msg("policy lookup failed, denying")
		return false, denyEvalError
	}

	for _, p := range policies {
		if matches(p, in) {
			return true, ""
		}
	}
	return false, denyNoMatch
}

// matches filters on clinic, document type and specialty. GrantedTo is
// provenance, not a filter: a grant admits any professional at the
// authorized clinic who clears the specialty restriction.
func matches(p *AccessPolicy, in EvalInput) bool {
	// Clinic: the policy must name the requester's clinic.
	if p.AuthorizedClinic == nil || *p.AuthorizedClinic != in.ClinicID {
		return false
	}

	// Document type: a type-less policy or ALL_DOCUMENTS scope covers any
	// type; otherwise the types must agree. When the caller asks for "any",
	// only unrestricted policies qualify.
	if p.Scope != ScopeAllDocuments && p.DocumentType != nil {
		if in.DocumentType == "" || *p.DocumentType != in.DocumentType {
			return false
		}
	}

	// Specialty: restricted policies admit only listed specialties.
	if !p.HasSpecialty(in.RequesterSpecialty) {
		return false
	}

	return true
}

// Approval carries the fields of an approved access request that shape the
// synthesized policy.
type Approval struct {
	RequesterID      string
	PatientID        string
	DocumentType     *string
	RequestingClinic string
	Reference        string
}

// CreateFromApproval synthesizes and persists the standing policy an
// approved access request entitles the requester to. A request naming a
// document type yields a SPECIFIC_DOCUMENT grant for that type; one asking
// for everything yields ALL_DOCUMENTS. The grant never expires on its own.
func (e *Engine) CreateFromApproval(ctx context.Context, a Approval) (*AccessPolicy, error) {
	grantedTo := a.RequesterID
	if grantedTo == "" {
		grantedTo = GrantedToAny
	}

	p := &AccessPolicy{
		PatientID:  a.PatientID,
		GrantedTo:  grantedTo,
		Scope:      ScopeAllDocuments,
		Duration:   DurationIndefinite,
		Management: ManagementAutomatic,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
		Reference:  a.Reference,
	}
	if a.DocumentType != nil && *a.DocumentType != "" {
		p.Scope = ScopeSpecificDocument
		docType := *a.DocumentType
		p.DocumentType = &docType
	}
	if a.RequestingClinic != "" {
		clinic := a.RequestingClinic
		p.AuthorizedClinic = &clinic
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := e.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create policy from approval: %w", err)
	}
	return p, nil
}
