package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/middleware"
	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/services/approval"
	"github.com/upb/governance-engine/utils"
)

// DecideApprovalRequest represents a reviewer's verdict on a case
type DecideApprovalRequest struct {
	Decision   models.ApprovalDecision `json:"decision" validate:"required,oneof=APPROVE REJECT REASSIGN"`
	Notes      string                  `json:"notes,omitempty" validate:"max=2000"`
	ReassignTo *uuid.UUID              `json:"reassign_to,omitempty"`
}

// ApprovalHandler handles approval case HTTP requests
type ApprovalHandler struct {
	service *approval.Service
	logger  *zap.Logger
}

// NewApprovalHandler creates a new ApprovalHandler
func NewApprovalHandler(service *approval.Service, logger *zap.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		service: service,
		logger:  logger,
	}
}

// HandleGetCase handles GET /api/v1/approvals/{id}
func (h *ApprovalHandler) HandleGetCase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid case ID format", nil)
		return
	}

	approvalCase, err := h.service.Get(ctx, caseID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, approvalCase)
}

// HandleListCases handles GET /api/v1/approvals?status=PENDING
func (h *ApprovalHandler) HandleListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := models.ApprovalStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.ApprovalStatusPending
	}

	limit, offset := parsePagination(r)
	cases, err := h.service.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, cases)
}

// HandleListMine handles GET /api/v1/approvals/mine, the requester's own cases
func (h *ApprovalHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, offset := parsePagination(r)
	cases, err := h.service.ListByRequester(ctx, actor.ID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, cases)
}

// HandleDecide handles POST /api/v1/approvals/{id}/decisions
func (h *ApprovalHandler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	caseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid case ID format", nil)
		return
	}

	var req DecideApprovalRequest
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

	approvalCase, err := h.service.Decide(ctx, approval.DecideRequest{
		CaseID:     caseID,
		ApproverID: actor.ID,
		Decision:   req.Decision,
		Notes:      req.Notes,
		ReassignTo: req.ReassignTo,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("approval decision recorded",
		zap.String("request_id", requestID),
		zap.String("case_id", caseID.String()),
		zap.String("approver_id", actor.ID.String()),
		zap.String("decision", string(req.Decision)),
		zap.String("status", string(approvalCase.Status)))

	_ = utils.WriteOK(w, approvalCase)
}

// HandleCancel handles POST /api/v1/approvals/{id}/cancel
func (h *ApprovalHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	caseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid case ID format", nil)
		return
	}

	approvalCase, err := h.service.Cancel(ctx, caseID, actor)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("approval case cancelled",
		zap.String("request_id", requestID),
		zap.String("case_id", caseID.String()),
		zap.String("actor_id", actor.ID.String()))

	_ = utils.WriteOK(w, approvalCase)
}

// parsePagination extracts limit/offset query params with sane defaults
func parsePagination(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
