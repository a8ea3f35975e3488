package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/middleware"
	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/services/approval"
	"github.com/upb/governance-engine/services/evaluator"
	"github.com/upb/governance-engine/services/governor"
)

// evaluator stubs: the handler takes the concrete evaluator service, so the
// tests wire it with canned collaborators

type stubCatalog struct {
	policies []*models.AccessControlPolicy
}

func (s *stubCatalog) FindPolicies(ctx context.Context, query models.PolicyQuery) ([]*models.AccessControlPolicy, error) {
	return s.policies, nil
}

func (s *stubCatalog) ResolveConfig(ctx context.Context, scope string) (*models.GovernanceConfig, error) {
	return models.NewGovernanceConfig(scope, models.TierStandard, uuid.New()), nil
}

type stubGovernor struct {
	result *governor.CheckResult
}

func (s *stubGovernor) CheckAndReserve(ctx context.Context, actor *models.Actor, estimatedCost float64) (*governor.CheckResult, error) {
	if s.result != nil {
		return s.result, nil
	}
	return &governor.CheckResult{Allowed: true, ReservationID: "res-1"}, nil
}

func (s *stubGovernor) Release(ctx context.Context, reservationID string) error { return nil }

func (s *stubGovernor) RecordViolation(ctx context.Context, scopeKey string) {}

type stubApprovals struct{}

func (s *stubApprovals) Open(ctx context.Context, req approval.OpenRequest) (*models.ApprovalCase, error) {
	return &models.ApprovalCase{ID: uuid.New(), Status: models.ApprovalStatusPending}, nil
}

type stubScorer struct{}

func (s *stubScorer) ScoreForActor(ctx context.Context, actorID uuid.UUID) (float64, error) {
	return 100, nil
}

type stubAudit struct{}

func (s *stubAudit) Record(entry *models.AuditEntry) error { return nil }

func evaluateHandler(gov *stubGovernor, policies ...*models.AccessControlPolicy) *EvaluateHandler {
	svc := evaluator.NewService(
		&stubCatalog{policies: policies},
		gov,
		&stubApprovals{},
		&stubScorer{},
		&stubAudit{},
		nil,
		zap.NewNop(),
	)
	return NewEvaluateHandler(svc, zap.NewNop())
}

func invokePolicy() *models.AccessControlPolicy {
	return &models.AccessControlPolicy{
		ID:           uuid.New(),
		Name:         "allow-model-invoke",
		ResourceType: "model",
		TeamID:       "platform",
		Permissions:  []string{"model:invoke"},
		Status:       models.PolicyStatusActive,
		EffectiveAt:  time.Now().Add(-time.Hour),
	}
}

func evaluateRequest(t *testing.T, actor *models.Actor, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", &buf)
	if actor != nil {
		req = req.WithContext(middleware.WithActor(req.Context(), actor))
	}
	return req
}

func writerActor() *models.Actor {
	return &models.Actor{
		ID:             uuid.New(),
		TeamID:         "platform",
		AccessLevel:    models.AccessLevelWrite,
		GovernanceTier: models.TierStandard,
		Active:         true,
	}
}

func decodeDecision(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope.Data
}

func TestHandleEvaluate(t *testing.T) {
	validBody := EvaluateRequest{ResourceType: "model", Operation: "invoke"}

	t.Run("allow returns 200", func(t *testing.T) {
		h := evaluateHandler(&stubGovernor{}, invokePolicy())
		rec := httptest.NewRecorder()
		h.HandleEvaluate(rec, evaluateRequest(t, writerActor(), validBody))

		assert.Equal(t, http.StatusOK, rec.Code)
		decision := decodeDecision(t, rec)
		assert.Equal(t, "ALLOW", decision["effect"])
		assert.Equal(t, "ALLOWED", decision["reason"])
	})

	t.Run("deny returns 403 with the decision document", func(t *testing.T) {
		h := evaluateHandler(&stubGovernor{})
		rec := httptest.NewRecorder()
		h.HandleEvaluate(rec, evaluateRequest(t, writerActor(), validBody))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		decision := decodeDecision(t, rec)
		assert.Equal(t, "DENY", decision["effect"])
		assert.Equal(t, "NO_POLICY", decision["reason"])
	})

	t.Run("pending returns 202 with the approval case", func(t *testing.T) {
		gov := &stubGovernor{result: &governor.CheckResult{
			Allowed:          true,
			RequiresApproval: true,
			ReservationID:    "res-2",
		}}
		h := evaluateHandler(gov, invokePolicy())
		rec := httptest.NewRecorder()
		h.HandleEvaluate(rec, evaluateRequest(t, writerActor(), validBody))

		assert.Equal(t, http.StatusAccepted, rec.Code)
		decision := decodeDecision(t, rec)
		assert.Equal(t, "PENDING", decision["effect"])
		assert.NotEmpty(t, decision["approval_case_id"])
		assert.Equal(t, "res-2", decision["reservation_id"])
	})

	t.Run("no actor returns 401", func(t *testing.T) {
		h := evaluateHandler(&stubGovernor{})
		rec := httptest.NewRecorder()
		h.HandleEvaluate(rec, evaluateRequest(t, nil, validBody))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		h := evaluateHandler(&stubGovernor{})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", bytes.NewBufferString("{"))
		req = req.WithContext(middleware.WithActor(req.Context(), writerActor()))
		rec := httptest.NewRecorder()
		h.HandleEvaluate(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing required fields returns 400", func(t *testing.T) {
		h := evaluateHandler(&stubGovernor{})
		rec := httptest.NewRecorder()
		h.HandleEvaluate(rec, evaluateRequest(t, writerActor(), EvaluateRequest{ResourceType: "model"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestClientIP(t *testing.T) {
	t.Run("prefers forwarded header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		assert.Equal(t, "203.0.113.7", clientIP(req))
	})

	t.Run("falls back to remote addr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:54321"
		assert.Equal(t, "10.1.2.3", clientIP(req))
	})
}
