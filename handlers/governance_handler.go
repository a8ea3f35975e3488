package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/middleware"
	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/services/catalog"
	"github.com/upb/governance-engine/utils"
)

// GovernanceHandler handles governance config HTTP requests
type GovernanceHandler struct {
	catalog *catalog.Service
	logger  *zap.Logger
}

// NewGovernanceHandler creates a new GovernanceHandler
func NewGovernanceHandler(catalogService *catalog.Service, logger *zap.Logger) *GovernanceHandler {
	return &GovernanceHandler{
		catalog: catalogService,
		logger:  logger,
	}
}

// HandleGetConfig handles GET /api/v1/governance/configs/{scope}
func (h *GovernanceHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	scope := chi.URLParam(r, "scope")
	if scope == "" {
		_ = utils.WriteBadRequest(w, "Scope is required", nil)
		return
	}

	config, err := h.catalog.GetActiveConfig(ctx, scope)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, config)
}

// HandleListConfigs handles GET /api/v1/governance/configs
func (h *GovernanceHandler) HandleListConfigs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	configs, err := h.catalog.ListConfigs(ctx)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, configs)
}

// HandleUpsertConfig handles PUT /api/v1/governance/configs/{scope}.
// The scope in the URL wins over any scope in the body.
func (h *GovernanceHandler) HandleUpsertConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	actor := middleware.GetActorFromContext(ctx)
	if actor == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	scope := chi.URLParam(r, "scope")
	if scope == "" {
		_ = utils.WriteBadRequest(w, "Scope is required", nil)
		return
	}

	var config models.GovernanceConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	config.Scope = scope

	if err := h.catalog.UpsertConfig(ctx, &config, actor); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("governance config upserted",
		zap.String("request_id", requestID),
		zap.String("scope", scope),
		zap.String("tier", string(config.Tier)),
		zap.String("actor_id", actor.ID.String()))

	_ = utils.WriteOK(w, config)
}

// HandleCacheStats handles GET /api/v1/governance/cache/stats
func (h *GovernanceHandler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.catalog.CacheStats())
}
