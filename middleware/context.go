package middleware

import (
	"context"

	"github.com/upb/governance-engine/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// ActorKey is the context key for the authenticated actor
	ActorKey contextKey = "actor"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetActorFromContext retrieves the authenticated actor from context
func GetActorFromContext(ctx context.Context) *models.Actor {
	if val := ctx.Value(ActorKey); val != nil {
		if actor, ok := val.(*models.Actor); ok {
			return actor
		}
	}
	return nil
}

// WithActor adds the authenticated actor to the context
func WithActor(ctx context.Context, actor *models.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}
