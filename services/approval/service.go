package approval

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/repositories"
	"github.com/upb/governance-engine/services"
)

// sweepBatchSize bounds how many expired cases one sweep pass processes
const sweepBatchSize = 100

// ApproverDirectory resolves the ordered approver chain for a tier.
// Enterprise and restricted tiers draw only from the privileged pool.
type ApproverDirectory interface {
	EligibleApprovers(ctx context.Context, tier models.GovernanceTier) ([]uuid.UUID, error)
}

// ReservationReleaser releases the governor reservation held by a case
// that will never be approved
type ReservationReleaser interface {
	Release(ctx context.Context, reservationID string) error
}

// OpenRequest carries everything needed to open an approval case
type OpenRequest struct {
	RequestType   string
	ResourceType  string
	ResourceID    string
	Requester     *models.Actor
	Justification string
	ImpactLevel   models.ComplianceImpact
	Risk          models.RiskLevel
	Tier          models.GovernanceTier
	EstimatedCost float64
	ReservationID string
	Deadline      *time.Time
}

// DecideRequest carries a reviewer's verdict on a case
type DecideRequest struct {
	CaseID     uuid.UUID
	ApproverID uuid.UUID
	Decision   models.ApprovalDecision
	Notes      string
	ReassignTo *uuid.UUID
}

// Service runs the approval workflow: opening cases, collecting decisions
// in approver order, and expiring cases that pass their deadline
type Service struct {
	cases     repositories.ApprovalRepository
	directory ApproverDirectory
	releaser  ReservationReleaser
	logger    *zap.Logger

	// Per-case mutexes serialize concurrent decisions on the same case
	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex

	sweepRunning sync.Mutex
}

// NewService creates a new approval service
func NewService(
	cases repositories.ApprovalRepository,
	directory ApproverDirectory,
	releaser ReservationReleaser,
	logger *zap.Logger,
) *Service {
	return &Service{
		cases:     cases,
		directory: directory,
		releaser:  releaser,
		logger:    logger,
		locks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

// caseLock returns the mutex serializing operations on one case
func (s *Service) caseLock(id uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// dropCaseLock discards the mutex of a case that reached a terminal state
func (s *Service) dropCaseLock(id uuid.UUID) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	delete(s.locks, id)
}

// Open creates a new approval case, assigning the approver chain for the
// request's tier. The first approver in the chain reviews first.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*models.ApprovalCase, error) {
	if req.Requester == nil {
		return nil, services.ErrInvalidInput.WithDetail("field", "requester")
	}
	if req.RequestType == "" || req.ResourceType == "" {
		return nil, services.ErrInvalidInput.WithDetail("field", "request_type")
	}

	tier := req.Tier
	if !tier.IsValid() {
		tier = req.Requester.GovernanceTier
	}

	approvers, err := s.directory.EligibleApprovers(ctx, tier)
	if err != nil {
		return nil, services.WrapInternal("failed to resolve approvers", err)
	}
	if len(approvers) == 0 {
		return nil, services.ErrNoApprovers.WithDetail("tier", string(tier))
	}

	now := time.Now()
	deadline := now.Add(tier.DefaultApprovalWindow())
	if req.Deadline != nil && req.Deadline.After(now) {
		deadline = *req.Deadline
	}

	impact := req.ImpactLevel
	if !impact.IsValid() {
		impact = models.ImpactMedium
	}
	risk := req.Risk
	if !risk.IsValid() {
		risk = models.RiskMedium
	}

	approvalCase := &models.ApprovalCase{
		ID:             uuid.New(),
		RequestType:    req.RequestType,
		ResourceType:   req.ResourceType,
		ResourceID:     req.ResourceID,
		RequesterID:    req.Requester.ID,
		Approvers:      approvers,
		CurrentIndex:   0,
		Status:         models.ApprovalStatusPending,
		Justification:  req.Justification,
		ImpactLevel:    impact,
		RiskAssessment: risk,
		Tier:           tier,
		EstimatedCost:  req.EstimatedCost,
		ReservationID:  req.ReservationID,
		Deadline:       deadline,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.cases.Create(ctx, approvalCase); err != nil {
		return nil, services.WrapInternal("failed to create approval case", err)
	}

	s.logger.Info("approval case opened",
		zap.String("case_id", approvalCase.ID.String()),
		zap.String("requester_id", req.Requester.ID.String()),
		zap.String("tier", string(tier)),
		zap.Time("deadline", deadline))

	return approvalCase, nil
}

// Get retrieves a case by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.ApprovalCase, error) {
	approvalCase, err := s.cases.GetByID(ctx, id)
	if err != nil {
		if services.IsNotFoundError(err) {
			return nil, services.ErrApprovalNotFound.WithDetail("case_id", id.String())
		}
		return nil, services.WrapInternal("failed to load approval case", err)
	}
	return approvalCase, nil
}

// ListByStatus retrieves cases in a state, oldest first
func (s *Service) ListByStatus(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]*models.ApprovalCase, error) {
	if !status.IsValid() {
		return nil, services.ErrInvalidInput.WithDetail("status", string(status))
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	cases, err := s.cases.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list approval cases", err)
	}
	return cases, nil
}

// ListByRequester retrieves a requester's cases, newest first
func (s *Service) ListByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]*models.ApprovalCase, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	cases, err := s.cases.ListByRequester(ctx, requesterID, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list approval cases", err)
	}
	return cases, nil
}

// Decide applies a reviewer's verdict to a case. Only the approver whose
// turn it is may decide. APPROVE advances the chain or, at its end,
// approves the case; REJECT terminates immediately; REASSIGN hands the
// turn to another reviewer and marks the case under review.
func (s *Service) Decide(ctx context.Context, req DecideRequest) (*models.ApprovalCase, error) {
	if !req.Decision.IsValid() {
		return nil, services.ErrInvalidDecision.WithDetail("decision", string(req.Decision))
	}

	lock := s.caseLock(req.CaseID)
	lock.Lock()
	defer lock.Unlock()

	approvalCase, err := s.Get(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}

	if approvalCase.Status.IsTerminal() {
		return nil, services.ErrCaseTerminal.
			WithDetail("case_id", req.CaseID.String()).
			WithDetail("status", string(approvalCase.Status))
	}

	if approvalCase.CurrentApprover() != req.ApproverID {
		return nil, services.ErrNotEligibleApprover.
			WithDetail("case_id", req.CaseID.String()).
			WithDetail("approver_id", req.ApproverID.String())
	}

	now := time.Now()

	switch req.Decision {
	case models.DecisionApprove:
		if approvalCase.CurrentIndex+1 < len(approvalCase.Approvers) {
			approvalCase.CurrentIndex++
			approvalCase.Record(models.ApprovalStatusUnderReview, req.ApproverID, req.Decision, req.Notes, now)
		} else {
			approvalCase.Record(models.ApprovalStatusApproved, req.ApproverID, req.Decision, req.Notes, now)
		}

	case models.DecisionReject:
		approvalCase.Record(models.ApprovalStatusRejected, req.ApproverID, req.Decision, req.Notes, now)

	case models.DecisionReassign:
		if req.ReassignTo == nil || *req.ReassignTo == uuid.Nil {
			return nil, services.ErrInvalidDecision.WithDetail("field", "reassign_to")
		}
		approvalCase.Approvers[approvalCase.CurrentIndex] = *req.ReassignTo
		approvalCase.Record(models.ApprovalStatusUnderReview, req.ApproverID, req.Decision, req.Notes, now)
	}

	if err := s.cases.Update(ctx, approvalCase); err != nil {
		return nil, services.WrapInternal("failed to persist approval decision", err)
	}

	if approvalCase.Status == models.ApprovalStatusRejected {
		s.releaseReservation(ctx, approvalCase)
	}
	if approvalCase.Status.IsTerminal() {
		s.dropCaseLock(approvalCase.ID)
	}

	s.logger.Info("approval decision recorded",
		zap.String("case_id", approvalCase.ID.String()),
		zap.String("decision", string(req.Decision)),
		zap.String("status", string(approvalCase.Status)))

	return approvalCase, nil
}

// Cancel withdraws an open case. Only the requester or an admin may
// cancel.
func (s *Service) Cancel(ctx context.Context, caseID uuid.UUID, actor *models.Actor) (*models.ApprovalCase, error) {
	if actor == nil {
		return nil, services.ErrInvalidInput.WithDetail("field", "actor")
	}

	lock := s.caseLock(caseID)
	lock.Lock()
	defer lock.Unlock()

	approvalCase, err := s.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if approvalCase.Status.IsTerminal() {
		return nil, services.ErrCaseTerminal.
			WithDetail("case_id", caseID.String()).
			WithDetail("status", string(approvalCase.Status))
	}

	if approvalCase.RequesterID != actor.ID && !actor.IsAdmin() {
		return nil, services.ErrNotRequester.WithDetail("case_id", caseID.String())
	}

	approvalCase.Record(models.ApprovalStatusCancelled, actor.ID, "", "cancelled by requester", time.Now())

	if err := s.cases.Update(ctx, approvalCase); err != nil {
		return nil, services.WrapInternal("failed to cancel approval case", err)
	}

	s.releaseReservation(ctx, approvalCase)
	s.dropCaseLock(caseID)

	s.logger.Info("approval case cancelled",
		zap.String("case_id", caseID.String()),
		zap.String("actor_id", actor.ID.String()))

	return approvalCase, nil
}

// SweepExpired expires open cases whose deadline has passed, oldest
// first. Single-flight: overlapping invocations return immediately.
// Idempotent: a second pass over the same window expires nothing.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	if !s.sweepRunning.TryLock() {
		return 0, nil
	}
	defer s.sweepRunning.Unlock()

	expired, err := s.cases.ListOpenExpiredBefore(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, services.WrapInternal("failed to list expired approval cases", err)
	}

	count := 0
	for _, candidate := range expired {
		lock := s.caseLock(candidate.ID)
		lock.Lock()

		// Re-read under the lock: a decision may have landed since the list
		approvalCase, err := s.Get(ctx, candidate.ID)
		if err != nil {
			lock.Unlock()
			continue
		}
		if !approvalCase.IsExpiredAt(now) {
			lock.Unlock()
			continue
		}

		approvalCase.Record(models.ApprovalStatusExpired, uuid.Nil, "", "deadline passed", now)

		if err := s.cases.Update(ctx, approvalCase); err != nil {
			s.logger.Error("failed to expire approval case",
				zap.String("case_id", approvalCase.ID.String()),
				zap.Error(err))
			lock.Unlock()
			continue
		}

		s.releaseReservation(ctx, approvalCase)
		lock.Unlock()
		s.dropCaseLock(approvalCase.ID)
		count++
	}

	if count > 0 {
		s.logger.Info("expired approval cases", zap.Int("count", count))
	}

	return count, nil
}

// StartSweepWorker runs the expiry sweep on a ticker until the context is
// cancelled
func (s *Service) StartSweepWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.SweepExpired(ctx, time.Now()); err != nil {
				s.logger.Error("approval expiry sweep failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// releaseReservation returns the governor capacity held by a case that
// ended without approval. Already-released reservations are fine.
func (s *Service) releaseReservation(ctx context.Context, approvalCase *models.ApprovalCase) {
	if approvalCase.ReservationID == "" || s.releaser == nil {
		return
	}
	if err := s.releaser.Release(ctx, approvalCase.ReservationID); err != nil && !services.IsNotFoundError(err) {
		s.logger.Error("failed to release reservation for closed case",
			zap.String("case_id", approvalCase.ID.String()),
			zap.String("reservation_id", approvalCase.ReservationID),
			zap.Error(err))
	}
}
