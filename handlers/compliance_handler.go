package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/governance-engine/middleware"
	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/services/compliance"
	"github.com/upb/governance-engine/utils"
)

// CreateRequirementRequest represents a request to register a compliance
// requirement
type CreateRequirementRequest struct {
	Name          string                      `json:"name" validate:"required,max=255"`
	Description   string                      `json:"description,omitempty" validate:"max=2000"`
	Framework     models.ComplianceFramework  `json:"framework" validate:"required"`
	RequirementID string                      `json:"requirement_id" validate:"required,max=64"`
	Category      string                      `json:"category,omitempty" validate:"max=128"`
	RiskLevel     models.RiskLevel            `json:"risk_level,omitempty"`
	Mandatory     bool                        `json:"mandatory"`
	ReviewCycle   string                      `json:"review_cycle,omitempty" validate:"max=64"`
}

// ComplianceHandler handles compliance reporting HTTP requests
type ComplianceHandler struct {
	compliance *compliance.Service
	logger     *zap.Logger
}

// NewComplianceHandler creates a new ComplianceHandler
func NewComplianceHandler(complianceService *compliance.Service, logger *zap.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		compliance: complianceService,
		logger:     logger,
	}
}

// HandleGetReport handles GET /api/v1/compliance/report. Optional start and
// end query params (RFC 3339) override the default reporting window.
func (h *ComplianceHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	var report *compliance.Report
	var err error

	if startStr != "" || endStr != "" {
		start, parseErr := time.Parse(time.RFC3339, startStr)
		if parseErr != nil {
			_ = utils.WriteBadRequest(w, "Invalid start timestamp, expected RFC 3339", nil)
			return
		}
		end, parseErr := time.Parse(time.RFC3339, endStr)
		if parseErr != nil {
			_ = utils.WriteBadRequest(w, "Invalid end timestamp, expected RFC 3339", nil)
			return
		}
		if !end.After(start) {
			_ = utils.WriteBadRequest(w, "End must be after start", nil)
			return
		}
		report, err = h.compliance.ReportForWindow(ctx, start, end)
	} else {
		report, err = h.compliance.Report(ctx)
	}

	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, report)
}

// HandleListViolations handles GET /api/v1/compliance/violations
func (h *ComplianceHandler) HandleListViolations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	violations, err := h.compliance.Violations(ctx)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, violations)
}

// HandleListRequirements handles GET /api/v1/compliance/requirements
func (h *ComplianceHandler) HandleListRequirements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requirements, err := h.compliance.ListRequirements(ctx)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, requirements)
}

// HandleCreateRequirement handles POST /api/v1/compliance/requirements
func (h *ComplianceHandler) HandleCreateRequirement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateRequirementRequest
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

	requirement := &models.ComplianceRequirement{
		Name:          req.Name,
		Description:   req.Description,
		Framework:     req.Framework,
		RequirementID: req.RequirementID,
		Category:      req.Category,
		RiskLevel:     req.RiskLevel,
		Mandatory:     req.Mandatory,
		ReviewCycle:   req.ReviewCycle,
	}

	if err := h.compliance.CreateRequirement(ctx, requirement, actor); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("compliance requirement created",
		zap.String("request_id", requestID),
		zap.String("requirement_id", requirement.ID.String()),
		zap.String("framework", string(requirement.Framework)),
		zap.String("actor_id", actor.ID.String()))

	_ = utils.WriteCreated(w, requirement)
}
