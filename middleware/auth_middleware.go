package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/utils"
)

// TokenValidator defines the interface for validating bearer tokens and
// resolving them into an actor
type TokenValidator interface {
	// ValidateToken validates a token and returns the resolved actor
	ValidateToken(ctx context.Context, token string) (*models.Actor, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		logger:    logger,
	}
}

// RequireAuth is a middleware that requires a valid bearer token and places
// the resolved actor on the request context
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		actor, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx = WithActor(ctx, actor)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("actor_id", actor.ID.String()),
			zap.String("email", actor.Email))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission is a middleware that requires the authenticated actor to
// hold a permission. Actors with admin access or above pass regardless.
// This should be called after RequireAuth.
func (m *AuthMiddleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			actor := GetActorFromContext(ctx)
			if actor == nil {
				m.logger.Error("actor not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if !actor.AccessLevel.BypassesPermissionChecks() && !actor.HasPermission(permission) {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("actor_id", actor.ID.String()),
					zap.String("required_permission", permission))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	// Check if it starts with "Bearer "
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
