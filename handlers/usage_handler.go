package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/middleware"
	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/services/governor"
	"github.com/upb/governance-engine/utils"
)

// CommitReservationRequest carries the actual cost observed for a committed
// reservation
type CommitReservationRequest struct {
	ActualCost float64 `json:"actual_cost" validate:"gte=0"`
}

// UsageHandler handles reservation lifecycle and usage metric HTTP requests
type UsageHandler struct {
	governor *governor.Service
	logger   *zap.Logger
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(governorService *governor.Service, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{
		governor: governorService,
		logger:   logger,
	}
}

// HandleCommitReservation handles POST /api/v1/reservations/{id}/commit
func (h *UsageHandler) HandleCommitReservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	reservationID := chi.URLParam(r, "id")
	if reservationID == "" {
		_ = utils.WriteBadRequest(w, "Reservation ID is required", nil)
		return
	}

	var req CommitReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.governor.Commit(ctx, reservationID, req.ActualCost); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("reservation committed",
		zap.String("request_id", requestID),
		zap.String("reservation_id", reservationID),
		zap.Float64("actual_cost", req.ActualCost))

	utils.WriteNoContent(w)
}

// HandleReleaseReservation handles POST /api/v1/reservations/{id}/release
func (h *UsageHandler) HandleReleaseReservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	reservationID := chi.URLParam(r, "id")
	if reservationID == "" {
		_ = utils.WriteBadRequest(w, "Reservation ID is required", nil)
		return
	}

	if err := h.governor.Release(ctx, reservationID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("reservation released",
		zap.String("request_id", requestID),
		zap.String("reservation_id", reservationID))

	utils.WriteNoContent(w)
}

// HandleGetUsage handles GET /api/v1/usage?period=daily. Returns the
// caller's own scope usage; admins can query any entity via ?entity=.
func (h *UsageHandler) HandleGetUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	period := models.UsagePeriod(r.URL.Query().Get("period"))
	if period == "" {
		period = models.PeriodDaily
	}
	if period != models.PeriodDaily && period != models.PeriodMonthly {
		_ = utils.WriteBadRequest(w, "Period must be daily or monthly", nil)
		return
	}

	entityID := actor.ScopeKey()
	if requested := r.URL.Query().Get("entity"); requested != "" && requested != entityID {
		if !actor.IsAdmin() {
			_ = utils.WriteForbidden(w, "Cannot view usage for other entities")
			return
		}
		entityID = requested
	}

	usage, err := h.governor.Usage(ctx, entityID, period)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, usage)
}
