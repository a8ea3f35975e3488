package handlers

import (
	"encoding/json"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/governance-engine/middleware"
	"github.com/upb/governance-engine/services/evaluator"
	"github.com/upb/governance-engine/utils"
)

// EvaluateRequest represents a request to evaluate an action
type EvaluateRequest struct {
	ResourceType  string  `json:"resource_type" validate:"required"`
	ResourceID    string  `json:"resource_id,omitempty"`
	Operation     string  `json:"operation" validate:"required"`
	EstimatedCost float64 `json:"estimated_cost" validate:"gte=0"`
	Location      string  `json:"location,omitempty"`
}

// EvaluateHandler handles action evaluation requests
type EvaluateHandler struct {
	evaluator *evaluator.Service
	logger    *zap.Logger
}

// NewEvaluateHandler creates a new EvaluateHandler
func NewEvaluateHandler(evaluatorService *evaluator.Service, logger *zap.Logger) *EvaluateHandler {
	return &EvaluateHandler{
		evaluator: evaluatorService,
		logger:    logger,
	}
}

// HandleEvaluate handles POST /api/v1/evaluate. The decision document is
// returned on every outcome; the status code tracks the effect: 200 for
// ALLOW, 202 for PENDING, 403 for DENY.
func (h *EvaluateHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		h.logger.Error("actor not found in context",
			zap.String("request_id", requestID))
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req EvaluateRequest
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

	decision, err := h.evaluator.Evaluate(ctx, evaluator.ActionRequest{
		Actor:         actor,
		ResourceType:  req.ResourceType,
		ResourceID:    req.ResourceID,
		Operation:     req.Operation,
		EstimatedCost: req.EstimatedCost,
		RequestID:     requestID,
		IPAddress:     clientIP(r),
		Location:      req.Location,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("action evaluated",
		zap.String("request_id", requestID),
		zap.String("actor_id", actor.ID.String()),
		zap.String("resource_type", req.ResourceType),
		zap.String("operation", req.Operation),
		zap.String("effect", string(decision.Effect)),
		zap.String("reason", decision.Reason))

	switch decision.Effect {
	case evaluator.EffectAllow:
		_ = utils.WriteOK(w, decision)
	case evaluator.EffectPending:
		_ = utils.WriteAccepted(w, decision)
	default:
		_ = utils.WriteJSON(w, http.StatusForbidden, utils.SuccessResponse{Data: decision})
	}
}

// clientIP extracts the caller's IP, preferring the X-Forwarded-For header
// set by the ingress
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
