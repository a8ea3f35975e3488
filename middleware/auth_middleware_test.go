package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/models"
)

// stubValidator resolves a fixed actor for a known token
type stubValidator struct {
	actor *models.Actor
	err   error
}

func (s *stubValidator) ValidateToken(ctx context.Context, token string) (*models.Actor, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.actor, nil
}

func testActor(level models.AccessLevel, permissions ...string) *models.Actor {
	return &models.Actor{
		ID:          uuid.New(),
		Email:       "dev@example.com",
		AccessLevel: level,
		Permissions: permissions,
		Active:      true,
	}
}

func TestRequireAuth(t *testing.T) {
	actor := testActor(models.AccessLevelWrite, "model:invoke")

	t.Run("valid bearer token passes the actor along", func(t *testing.T) {
		m := NewAuthMiddleware(&stubValidator{actor: actor}, zap.NewNop())

		var seen *models.Actor
		handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetActorFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer token-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, actor.ID, seen.ID)
	})

	t.Run("missing authorization header", func(t *testing.T) {
		m := NewAuthMiddleware(&stubValidator{actor: actor}, zap.NewNop())
		handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not be reached")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed authorization header", func(t *testing.T) {
		m := NewAuthMiddleware(&stubValidator{actor: actor}, zap.NewNop())
		handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not be reached")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		m := NewAuthMiddleware(&stubValidator{err: errors.New("expired")}, zap.NewNop())
		handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not be reached")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(actor *models.Actor, permission string) *httptest.ResponseRecorder {
		m := NewAuthMiddleware(&stubValidator{}, zap.NewNop())
		handler := m.RequirePermission(permission)(next)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if actor != nil {
			req = req.WithContext(WithActor(req.Context(), actor))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("actor with the permission passes", func(t *testing.T) {
		rec := serve(testActor(models.AccessLevelWrite, "governance:write"), "governance:write")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("admin passes without the permission", func(t *testing.T) {
		rec := serve(testActor(models.AccessLevelAdmin), "governance:write")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing permission is forbidden", func(t *testing.T) {
		rec := serve(testActor(models.AccessLevelWrite), "governance:write")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no actor on context", func(t *testing.T) {
		rec := serve(nil, "governance:write")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard bearer", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"empty header", "", ""},
		{"no scheme", "abc123", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"trims whitespace", "Bearer   abc123", "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, extractBearerToken(req))
		})
	}
}

func TestActorContext(t *testing.T) {
	actor := testActor(models.AccessLevelRead)

	ctx := WithActor(context.Background(), actor)
	assert.Equal(t, actor, GetActorFromContext(ctx))
	assert.Nil(t, GetActorFromContext(context.Background()))

	ctx = WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestIDFromContext(ctx))
	assert.Empty(t, GetRequestIDFromContext(context.Background()))
}
