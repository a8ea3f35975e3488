package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/governance-engine/app"
	"github.com/upb/governance-engine/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Handlers
	healthHandler := handlers.NewHealthHandler(deps.DB.DB, deps.Audit, deps.Logger)
	evaluateHandler := handlers.NewEvaluateHandler(deps.Evaluator, deps.Logger)
	approvalHandler := handlers.NewApprovalHandler(deps.Approvals, deps.Logger)
	governanceHandler := handlers.NewGovernanceHandler(deps.Catalog, deps.Logger)
	policyHandler := handlers.NewPolicyHandler(deps.Catalog, deps.Logger)
	usageHandler := handlers.NewUsageHandler(deps.Governor, deps.Logger)
	complianceHandler := handlers.NewComplianceHandler(deps.Compliance, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	// API v1 routes (all require authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		// Action evaluation and reservation lifecycle
		r.Post("/evaluate", evaluateHandler.HandleEvaluate)
		r.Route("/reservations", func(r chi.Router) {
			r.Post("/{id}/commit", usageHandler.HandleCommitReservation)
			r.Post("/{id}/release", usageHandler.HandleReleaseReservation)
		})

		// Approval workflow
		r.Route("/approvals", func(r chi.Router) {
			r.Get("/", approvalHandler.HandleListCases)
			r.Get("/mine", approvalHandler.HandleListMine)
			r.Get("/{id}", approvalHandler.HandleGetCase)
			r.Post("/{id}/decisions", approvalHandler.HandleDecide)
			r.Post("/{id}/cancel", approvalHandler.HandleCancel)
		})

		// Governance configuration (writes guarded in the catalog service)
		r.Route("/governance", func(r chi.Router) {
			r.Get("/configs", governanceHandler.HandleListConfigs)
			r.Get("/configs/{scope}", governanceHandler.HandleGetConfig)
			r.Put("/configs/{scope}", governanceHandler.HandleUpsertConfig)
			r.With(deps.AuthMiddleware.RequirePermission("governance:read")).
				Get("/cache/stats", governanceHandler.HandleCacheStats)
		})

		// Access policy management
		r.Route("/policies", func(r chi.Router) {
			r.Get("/", policyHandler.HandleListPolicies)
			r.Post("/", policyHandler.HandleCreatePolicy)
			r.Get("/{id}", policyHandler.HandleGetPolicy)
			r.Patch("/{id}", policyHandler.HandleUpdatePolicy)
			r.Delete("/{id}", policyHandler.HandleDeletePolicy)
		})

		// Usage metrics
		r.Get("/usage", usageHandler.HandleGetUsage)

		// Compliance reporting (admin-gated)
		r.Route("/compliance", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequirePermission("compliance:read"))
			r.Get("/report", complianceHandler.HandleGetReport)
			r.Get("/violations", complianceHandler.HandleListViolations)
			r.Get("/requirements", complianceHandler.HandleListRequirements)
			r.Post("/requirements", complianceHandler.HandleCreateRequirement)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
