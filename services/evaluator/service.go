package evaluator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/services"
	"github.com/upb/governance-engine/services/approval"
	"github.com/upb/governance-engine/services/governor"
)

// Effect is the overall verdict of an evaluation
type Effect string

const (
	EffectAllow   Effect = "ALLOW"
	EffectDeny    Effect = "DENY"
	EffectPending Effect = "PENDING"
)

// Reason codes carried on decisions
const (
	ReasonAccountInactive            = "ACCOUNT_INACTIVE"
	ReasonNoPolicy                   = "NO_POLICY"
	ReasonExplicitlyDenied           = "EXPLICITLY_DENIED"
	ReasonInsufficientPermissions    = "INSUFFICIENT_PERMISSIONS"
	ReasonInsufficientGovernanceTier = "INSUFFICIENT_GOVERNANCE_TIER"
	ReasonConditionNotMet            = "CONDITION_NOT_MET"
	ReasonInsufficientCompliance     = "INSUFFICIENT_COMPLIANCE_SCORE"
	ReasonApprovalRequired           = "APPROVAL_REQUIRED"
	ReasonAllowed                    = "ALLOWED"
	ReasonEvaluationError            = "EVALUATION_ERROR"
)

// ActionRequest describes the action an actor wants to perform
type ActionRequest struct {
	Actor         *models.Actor
	ResourceType  string
	ResourceID    string
	Operation     string
	EstimatedCost float64
	RequestID     string
	IPAddress     string
	Location      string
}

// Decision is the evaluation verdict returned to the caller
type Decision struct {
	Effect         Effect     `json:"effect"`
	Reason         string     `json:"reason"`
	ApprovalCaseID *uuid.UUID `json:"approval_case_id,omitempty"`
	ReservationID  string     `json:"reservation_id,omitempty"`
	MatchedPolicy  string     `json:"matched_policy,omitempty"`
	EvaluatedAt    time.Time  `json:"evaluated_at"`
}

// Allowed returns true for ALLOW decisions
func (d *Decision) Allowed() bool {
	return d.Effect == EffectAllow
}

// Catalog resolves policies and governance configs
type Catalog interface {
	FindPolicies(ctx context.Context, query models.PolicyQuery) ([]*models.AccessControlPolicy, error)
	ResolveConfig(ctx context.Context, scope string) (*models.GovernanceConfig, error)
}

// Governor reserves and releases capacity for governed actions
type Governor interface {
	CheckAndReserve(ctx context.Context, actor *models.Actor, estimatedCost float64) (*governor.CheckResult, error)
	Release(ctx context.Context, reservationID string) error
	RecordViolation(ctx context.Context, scopeKey string)
}

// Approvals opens approval cases for actions that need sign-off
type Approvals interface {
	Open(ctx context.Context, req approval.OpenRequest) (*models.ApprovalCase, error)
}

// ComplianceScorer computes an actor's windowed compliance score
type ComplianceScorer interface {
	ScoreForActor(ctx context.Context, actorID uuid.UUID) (float64, error)
}

// AuditSink receives one entry per evaluation outcome
type AuditSink interface {
	Record(entry *models.AuditEntry) error
}

// Service evaluates whether an actor may perform an action. Fail-closed:
// any internal failure denies the action.
type Service struct {
	catalog   Catalog
	governor  Governor
	approvals Approvals
	scorer    ComplianceScorer
	audit     AuditSink
	logger    *zap.Logger

	// Operations allowed without a matching policy, as "resource:operation"
	publicOperations map[string]bool
}

// NewService creates a new evaluator
func NewService(
	catalog Catalog,
	gov Governor,
	approvals Approvals,
	scorer ComplianceScorer,
	audit AuditSink,
	publicOperations []string,
	logger *zap.Logger,
) *Service {
	public := make(map[string]bool, len(publicOperations))
	for _, op := range publicOperations {
		public[op] = true
	}
	return &Service{
		catalog:          catalog,
		governor:         gov,
		approvals:        approvals,
		scorer:           scorer,
		audit:            audit,
		publicOperations: public,
		logger:           logger,
	}
}

// Evaluate runs the decision pipeline for an action request. The returned
// decision is always usable; err is non-nil only for internal failures,
// and those always come with a DENY decision.
func (s *Service) Evaluate(ctx context.Context, req ActionRequest) (*Decision, error) {
	decision, err := s.evaluate(ctx, req)
	if err != nil {
		s.logger.Error("evaluation failed, denying",
			zap.String("resource_type", req.ResourceType),
			zap.String("operation", req.Operation),
			zap.Error(err))
		decision = &Decision{
			Effect:      EffectDeny,
			Reason:      ReasonEvaluationError,
			EvaluatedAt: time.Now(),
		}
		s.emitAudit(req, decision, models.OutcomeError)
		return decision, services.NewDomainError(services.ErrorTypeInternal, "evaluation failed", err)
	}

	switch decision.Effect {
	case EffectAllow:
		s.emitAudit(req, decision, models.OutcomeAllow)
	case EffectPending:
		s.emitAudit(req, decision, models.OutcomePending)
	default:
		s.emitAudit(req, decision, models.OutcomeDeny)
		if req.Actor != nil {
			s.governor.RecordViolation(ctx, req.Actor.ScopeKey())
		}
	}

	return decision, nil
}

// evaluate runs the pipeline steps in order; the first failing step wins
func (s *Service) evaluate(ctx context.Context, req ActionRequest) (*Decision, error) {
	now := time.Now()
	decision := &Decision{EvaluatedAt: now}

	if req.Actor == nil {
		return nil, fmt.Errorf("action request has no actor")
	}
	if req.ResourceType == "" || req.Operation == "" {
		return nil, fmt.Errorf("action request missing resource type or operation")
	}

	// Step 1: the actor's account must be active
	if !req.Actor.Active {
		decision.Effect = EffectDeny
		decision.Reason = ReasonAccountInactive
		return decision, nil
	}

	// Step 2: find the policies in scope for this action
	query := models.PolicyQuery{
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		UserID:       &req.Actor.ID,
		TeamID:       req.Actor.TeamID,
		Department:   req.Actor.Department,
	}
	policies, err := s.catalog.FindPolicies(ctx, query)
	if err != nil {
		return nil, err
	}

	required := requiredPermissions(req.ResourceType, req.Operation)

	if len(policies) == 0 {
		if s.publicOperations[req.ResourceType+":"+req.Operation] {
			return s.govern(ctx, req, decision, nil)
		}
		decision.Effect = EffectDeny
		decision.Reason = ReasonNoPolicy
		return decision, nil
	}

	// Step 3: deny wins across every matching policy, regardless of what
	// other policies grant. Denied permissions bind all access levels.
	for _, policy := range policies {
		if policy.Denies(required) {
			decision.Effect = EffectDeny
			decision.Reason = ReasonExplicitlyDenied
			decision.MatchedPolicy = policy.Name
			return decision, nil
		}
	}

	evalCtx := models.EvaluationContext{
		Now:       now,
		IPAddress: req.IPAddress,
		Location:  req.Location,
	}

	// Steps 4-6: find a policy that grants the action with all its
	// requirements met. Track the strictest failure for the reason code.
	var granting *models.AccessControlPolicy
	failReason := ReasonInsufficientPermissions
	bypass := req.Actor.AccessLevel.BypassesPermissionChecks()

	for _, policy := range policies {
		// Step 4: permission grant (admin and above skip the fine-grained
		// match, not the policy's other requirements)
		if !bypass && !policy.Grants(required) {
			continue
		}

		// Step 5: governance tier requirement applies to every level
		if policy.RequiredTier != "" && !req.Actor.GovernanceTier.AtLeast(policy.RequiredTier) {
			failReason = ReasonInsufficientGovernanceTier
			continue
		}

		// Step 6: contextual conditions
		if !policy.Conditions.Met(evalCtx) {
			failReason = ReasonConditionNotMet
			continue
		}

		// Minimum compliance score, when the policy demands one
		if policy.MinComplianceScore != nil {
			score, err := s.scorer.ScoreForActor(ctx, req.Actor.ID)
			if err != nil {
				return nil, err
			}
			if score < *policy.MinComplianceScore {
				failReason = ReasonInsufficientCompliance
				continue
			}
		}

		granting = policy
		break
	}

	if granting == nil {
		decision.Effect = EffectDeny
		decision.Reason = failReason
		return decision, nil
	}
	decision.MatchedPolicy = granting.Name

	// Steps 7-8: governance limits and approval routing
	return s.govern(ctx, req, decision, granting)
}

// govern applies the usage governor and approval routing to an action the
// policies allow
func (s *Service) govern(ctx context.Context, req ActionRequest, decision *Decision, granting *models.AccessControlPolicy) (*Decision, error) {
	check, err := s.governor.CheckAndReserve(ctx, req.Actor, req.EstimatedCost)
	if err != nil {
		return nil, err
	}

	if !check.Allowed {
		decision.Effect = EffectDeny
		decision.Reason = check.Reason
		return decision, nil
	}
	decision.ReservationID = check.ReservationID

	needsApproval := check.RequiresApproval
	if granting != nil && granting.RequiresApproval && !req.Actor.AccessLevel.BypassesPermissionChecks() {
		needsApproval = true
	}

	if needsApproval {
		tier := req.Actor.GovernanceTier
		if granting != nil && granting.RequiredTier != "" && granting.RequiredTier.Rank() > tier.Rank() {
			tier = granting.RequiredTier
		}

		approvalCase, err := s.approvals.Open(ctx, approval.OpenRequest{
			RequestType:   req.Operation,
			ResourceType:  req.ResourceType,
			ResourceID:    req.ResourceID,
			Requester:     req.Actor,
			Justification: fmt.Sprintf("%s on %s above auto-approval threshold", req.Operation, req.ResourceType),
			ImpactLevel:   impactFor(req, tier),
			Tier:          tier,
			EstimatedCost: req.EstimatedCost,
			ReservationID: check.ReservationID,
		})
		if err != nil {
			// The reservation must not leak when the case cannot be opened
			if relErr := s.governor.Release(ctx, check.ReservationID); relErr != nil {
				s.logger.Error("failed to release reservation after approval open failure",
					zap.String("reservation_id", check.ReservationID),
					zap.Error(relErr))
			}
			return nil, err
		}

		decision.Effect = EffectPending
		decision.Reason = ReasonApprovalRequired
		decision.ApprovalCaseID = &approvalCase.ID
		return decision, nil
	}

	decision.Effect = EffectAllow
	decision.Reason = ReasonAllowed
	return decision, nil
}

// requiredPermissions derives the fine-grained permissions an operation
// needs on a resource type
func requiredPermissions(resourceType, operation string) []string {
	return []string{resourceType + ":" + operation}
}

// impactFor classifies the compliance impact of an action for audit and
// approval purposes
func impactFor(req ActionRequest, tier models.GovernanceTier) models.ComplianceImpact {
	switch {
	case tier == models.TierRestricted:
		return models.ImpactCritical
	case tier == models.TierEnterprise:
		return models.ImpactHigh
	case req.Operation == "delete" || req.Operation == "deploy":
		return models.ImpactHigh
	case req.EstimatedCost > 0:
		return models.ImpactMedium
	default:
		return models.ImpactLow
	}
}

// emitAudit records the evaluation outcome through the audit pipeline.
// Emission failures are already logged by the pipeline; they never fail
// the decision.
func (s *Service) emitAudit(req ActionRequest, decision *Decision, outcome models.AuditOutcome) {
	actorID := uuid.Nil
	tier := models.GovernanceTier("")
	if req.Actor != nil {
		actorID = req.Actor.ID
		tier = req.Actor.GovernanceTier
	}

	entry := models.NewAuditEntry(actorID, req.Operation, req.ResourceType, outcome).
		WithResourceID(req.ResourceID).
		WithReason(decision.Reason).
		WithImpact(impactFor(req, tier)).
		WithTier(tier).
		WithRequestID(req.RequestID).
		WithIPAddress(req.IPAddress)
	if decision.MatchedPolicy != "" {
		entry.WithDetail("matched_policy", decision.MatchedPolicy)
	}
	if decision.ApprovalCaseID != nil {
		entry.WithDetail("approval_case_id", decision.ApprovalCaseID.String())
	}
	if req.EstimatedCost > 0 {
		entry.WithDetail("estimated_cost", req.EstimatedCost)
	}

	_ = s.audit.Record(entry)
}
