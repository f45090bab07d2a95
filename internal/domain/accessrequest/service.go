package accessrequest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/accesscore/internal/domain/policy"
	"github.com/ehr/accesscore/internal/platform/notification"
)

// PolicyCreator is the slice of the policy engine the workflow needs: turn
// an approval into a standing policy.
type PolicyCreator interface {
	CreateFromApproval(ctx context.Context, a policy.Approval) (*policy.AccessPolicy, error)
}

type Service struct {
	repo     Repository
	policies PolicyCreator
	notifier notification.Notifier
	logger   zerolog.Logger
}

func NewService(repo Repository, policies PolicyCreator, notifier notification.Notifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, policies: policies, notifier: notifier, logger: logger}
}

// Submit creates a new PENDING request. The patient is notified best
// effort: a delivery failure is logged and the submission still succeeds.
func (s *Service) Submit(ctx context.Context, r *AccessRequest) (*AccessRequest, error) {
	if r.RequesterID == "" {
		return nil, fmt.Errorf("%w: requester_id is required", ErrValidation)
	}
	if r.PatientID == "" {
		return nil, fmt.Errorf("%w: patient_id is required", ErrValidation)
	}

	r.Status = StatusPending
	r.ResolvedAt = nil
	r.ResolvedBy = nil
	r.ResolutionComment = nil
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create access request: %w", err)
	}

	if err := s.notifier.Notify(ctx, r.PatientID, notification.KindAccessRequested,
		"New access request",
		fmt.Sprintf("Professional %s requested access to your documents.", r.RequesterID),
	); err != nil {
		s.logger.Warn().Err(err).
			Str("request_id", r.ID.String()).
			Str("patient_id", r.PatientID).
			Msg("failed to notify patient of new access request")
	}

	return r, nil
}

// Approve moves a PENDING request to APPROVED and synthesizes the standing
// policy it entitles. Approving an already-approved request is an
// idempotent no-op; approving a rejected one is a conflict. The policy step
// is best effort: its failure is logged, the approval stands.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, resolvedBy, comment string) (*AccessRequest, error) {
	r, transitioned, err := s.resolve(ctx, id, StatusApproved, resolvedBy, comment)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// Already APPROVED: the policy and notification happened on the
		// call that won the transition.
		return r, nil
	}

	if _, err := s.policies.CreateFromApproval(ctx, policy.Approval{
		RequesterID:      r.RequesterID,
		PatientID:        r.PatientID,
		DocumentType:     r.DocumentType,
		RequestingClinic: r.RequestingClinic,
		Reference:        fmt.Sprintf("created from request %s", r.ID),
	}); err != nil {
		// At-least-once, not atomic: the request stays APPROVED and an
		// operator re-creates the policy from the audit reference.
		s.logger.Error().Err(err).
			Str("request_id", r.ID.String()).
			Msg("approved request but failed to create policy")
	}

	s.notifyResolution(ctx, r, notification.KindAccessApproved, "Access request approved")
	return r, nil
}

// Reject moves a PENDING request to REJECTED. Same idempotency and conflict
// rules as Approve, no policy side effect.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, resolvedBy, comment string) (*AccessRequest, error) {
	r, transitioned, err := s.resolve(ctx, id, StatusRejected, resolvedBy, comment)
	if err != nil {
		return nil, err
	}
	if transitioned {
		s.notifyResolution(ctx, r, notification.KindAccessRejected, "Access request rejected")
	}
	return r, nil
}

// resolve applies the terminal transition rules. The repository update is a
// compare-and-swap on PENDING, so two concurrent resolutions cannot both
// win; the loser re-reads and is judged by the idempotency rules. The bool
// reports whether THIS call performed the transition, so callers run their
// side effects at most once per request.
func (s *Service) resolve(ctx context.Context, id uuid.UUID, target Status, resolvedBy, comment string) (*AccessRequest, bool, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if r.Status == target {
		return r, false, nil
	}
	if r.Status.Terminal() {
		return nil, false, fmt.Errorf("%w: request %s is %s, cannot move to %s",
			ErrAlreadyResolved, id, r.Status, target)
	}

	won, err := s.repo.Resolve(ctx, id, target, resolvedBy, comment, time.Now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("resolve access request: %w", err)
	}
	if !won {
		// Lost a race: somebody else resolved it between read and update.
		r, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if r.Status == target {
			return r, false, nil
		}
		return nil, false, fmt.Errorf("%w: request %s is %s, cannot move to %s",
			ErrAlreadyResolved, id, r.Status, target)
	}

	r, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (s *Service) notifyResolution(ctx context.Context, r *AccessRequest, kind notification.Kind, title string) {
	if err := s.notifier.Notify(ctx, r.RequesterID, kind, title,
		fmt.Sprintf("Your access request for patient %s was resolved.", r.PatientID),
	); err != nil {
		s.logger.Warn().Err(err).
			Str("request_id", r.ID.String()).
			Msg("failed to notify requester of resolution")
	}
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*AccessRequest, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*AccessRequest, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]*AccessRequest, int, error) {
	return s.repo.ListByRequester(ctx, requesterID, limit, offset)
}

func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*AccessRequest, int, error) {
	return s.repo.ListPending(ctx, limit, offset)
}

func (s *Service) ListPendingForPatient(ctx context.Context, patientID string, limit, offset int) ([]*AccessRequest, int, error) {
	return s.repo.ListPendingForPatient(ctx, patientID, limit, offset)
}
