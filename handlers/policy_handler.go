package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/middleware"
	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/services/catalog"
	"github.com/upb/governance-engine/utils"
)

// CreatePolicyRequest represents a request to create an access policy
type CreatePolicyRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description,omitempty" validate:"max=2000"`

	ResourceType string     `json:"resource_type" validate:"required"`
	ResourceID   string     `json:"resource_id,omitempty"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	TeamID       string     `json:"team_id,omitempty"`
	Department   string     `json:"department,omitempty"`

	Permissions        []string                 `json:"permissions,omitempty"`
	DeniedPermissions  []string                 `json:"denied_permissions,omitempty"`
	Conditions         *models.PolicyConditions `json:"conditions,omitempty"`
	RequiredTier       models.GovernanceTier    `json:"required_tier,omitempty"`
	MinComplianceScore *float64                 `json:"min_compliance_score,omitempty" validate:"omitempty,gte=0,lte=100"`
	RequiresApproval   bool                     `json:"requires_approval"`

	Status      models.PolicyStatus `json:"status,omitempty"`
	EffectiveAt *time.Time          `json:"effective_at,omitempty"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
}

// UpdatePolicyRequest represents a partial update to an access policy
type UpdatePolicyRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`

	Permissions        []string                 `json:"permissions,omitempty"`
	DeniedPermissions  []string                 `json:"denied_permissions,omitempty"`
	Conditions         *models.PolicyConditions `json:"conditions,omitempty"`
	RequiredTier       *models.GovernanceTier   `json:"required_tier,omitempty"`
	MinComplianceScore *float64                 `json:"min_compliance_score,omitempty" validate:"omitempty,gte=0,lte=100"`
	RequiresApproval   *bool                    `json:"requires_approval,omitempty"`

	Status    *models.PolicyStatus `json:"status,omitempty"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
}

// PolicyHandler handles access policy HTTP requests
type PolicyHandler struct {
	catalog *catalog.Service
	logger  *zap.Logger
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(catalogService *catalog.Service, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{
		catalog: catalogService,
		logger:  logger,
	}
}

// HandleListPolicies handles GET /api/v1/policies
func (h *PolicyHandler) HandleListPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := parsePagination(r)
	policies, err := h.catalog.ListPolicies(ctx, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, policies)
}

// HandleGetPolicy handles GET /api/v1/policies/{id}
func (h *PolicyHandler) HandleGetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid policy ID format", nil)
		return
	}

	policy, err := h.catalog.GetPolicy(ctx, policyID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, policy)
}

// HandleCreatePolicy handles POST /api/v1/policies
func (h *PolicyHandler) HandleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	policy := &models.AccessControlPolicy{
		Name:               req.Name,
		Description:        req.Description,
		ResourceType:       req.ResourceType,
		ResourceID:         req.ResourceID,
		UserID:             req.UserID,
		TeamID:             req.TeamID,
		Department:         req.Department,
		Permissions:        req.Permissions,
		DeniedPermissions:  req.DeniedPermissions,
		Conditions:         req.Conditions,
		RequiredTier:       req.RequiredTier,
		MinComplianceScore: req.MinComplianceScore,
		RequiresApproval:   req.RequiresApproval,
		Status:             req.Status,
		ExpiresAt:          req.ExpiresAt,
	}
	if req.EffectiveAt != nil {
		policy.EffectiveAt = *req.EffectiveAt
	}

	if err := h.catalog.CreatePolicy(ctx, policy, actor); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("access policy created",
		zap.String("request_id", requestID),
		zap.String("policy_id", policy.ID.String()),
		zap.String("resource_type", policy.ResourceType),
		zap.String("actor_id", actor.ID.String()))

	_ = utils.WriteCreated(w, policy)
}

// HandleUpdatePolicy handles PATCH /api/v1/policies/{id}
func (h *PolicyHandler) HandleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	policyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid policy ID format", nil)
		return
	}

	var req UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	policy, err := h.catalog.GetPolicy(ctx, policyID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	applyPolicyUpdate(policy, &req)

	if err := h.catalog.UpdatePolicy(ctx, policy, actor); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("access policy updated",
		zap.String("request_id", requestID),
		zap.String("policy_id", policyID.String()),
		zap.String("status", string(policy.Status)),
		zap.String("actor_id", actor.ID.String()))

	_ = utils.WriteOK(w, policy)
}

// HandleDeletePolicy handles DELETE /api/v1/policies/{id}
func (h *PolicyHandler) HandleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	policyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid policy ID format", nil)
		return
	}

	if err := h.catalog.DeletePolicy(ctx, policyID, actor); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("access policy deleted",
		zap.String("request_id", requestID),
		zap.String("policy_id", policyID.String()),
		zap.String("actor_id", actor.ID.String()))

	utils.WriteNoContent(w)
}

// applyPolicyUpdate copies set fields from the request onto the policy
func applyPolicyUpdate(policy *models.AccessControlPolicy, req *UpdatePolicyRequest) {
	if req.Name != nil {
		policy.Name = *req.Name
	}
	if req.Description != nil {
		policy.Description = *req.Description
	}
	if req.Permissions != nil {
		policy.Permissions = req.Permissions
	}
	if req.DeniedPermissions != nil {
		policy.DeniedPermissions = req.DeniedPermissions
	}
	if req.Conditions != nil {
		policy.Conditions = req.Conditions
	}
	if req.RequiredTier != nil {
		policy.RequiredTier = *req.RequiredTier
	}
	if req.MinComplianceScore != nil {
		policy.MinComplianceScore = req.MinComplianceScore
	}
	if req.RequiresApproval != nil {
		policy.RequiresApproval = *req.RequiresApproval
	}
	if req.Status != nil {
		policy.Status = *req.Status
	}
	if req.ExpiresAt != nil {
		policy.ExpiresAt = req.ExpiresAt
	}
}
