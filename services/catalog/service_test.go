package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/repositories"
	"github.com/upb/governance-engine/services"
)

// MockConfigRepository is a mock implementation of ConfigRepository
type MockConfigRepository struct {
	mock.Mock
}

func (m *MockConfigRepository) GetActive(ctx context.Context, scope string) (*models.GovernanceConfig, error) {
	args := m.Called(ctx, scope)
	if cfg := args.Get(0); cfg != nil {
		return cfg.(*models.GovernanceConfig), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConfigRepository) Upsert(ctx context.Context, config *models.GovernanceConfig) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

func (m *MockConfigRepository) List(ctx context.Context) ([]*models.GovernanceConfig, error) {
	args := m.Called(ctx)
	if configs := args.Get(0); configs != nil {
		return configs.([]*models.GovernanceConfig), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConfigRepository) WithTx(tx repositories.Transaction) repositories.ConfigRepository {
	return m
}

// MockPolicyRepository is a mock implementation of PolicyRepository
type MockPolicyRepository struct {
	mock.Mock
}

func (m *MockPolicyRepository) Create(ctx context.Context, policy *models.AccessControlPolicy) error {
	args := m.Called(ctx, policy)
	return args.Error(0)
}

func (m *MockPolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AccessControlPolicy, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*models.AccessControlPolicy), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPolicyRepository) FindActive(ctx context.Context, query models.PolicyQuery, now time.Time) ([]*models.AccessControlPolicy, error) {
	args := m.Called(ctx, query, now)
	if p := args.Get(0); p != nil {
		return p.([]*models.AccessControlPolicy), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPolicyRepository) List(ctx context.Context, limit, offset int) ([]*models.AccessControlPolicy, error) {
	args := m.Called(ctx, limit, offset)
	if p := args.Get(0); p != nil {
		return p.([]*models.AccessControlPolicy), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPolicyRepository) Update(ctx context.Context, policy *models.AccessControlPolicy) error {
	args := m.Called(ctx, policy)
	return args.Error(0)
}

func (m *MockPolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPolicyRepository) WithTx(tx repositories.Transaction) repositories.PolicyRepository {
	return m
}

func newTestService() (*Service, *MockConfigRepository, *MockPolicyRepository) {
	configs := new(MockConfigRepository)
	policies := new(MockPolicyRepository)
	cache := NewPolicyCache(100, time.Minute)
	svc := NewService(configs, policies, cache, zap.NewNop())
	return svc, configs, policies
}

func adminActor() *models.Actor {
	return &models.Actor{
		ID:          uuid.New(),
		AccessLevel: models.AccessLevelAdmin,
		Active:      true,
	}
}

func readerActor() *models.Actor {
	return &models.Actor{
		ID:          uuid.New(),
		AccessLevel: models.AccessLevelRead,
		Active:      true,
	}
}

func TestGetActiveConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		svc, configs, _ := newTestService()
		expected := models.NewGovernanceConfig("team:platform", models.TierStandard, uuid.New())
		configs.On("GetActive", ctx, "team:platform").Return(expected, nil)

		got, err := svc.GetActiveConfig(ctx, "team:platform")
		require.NoError(t, err)
		assert.Equal(t, expected, got)
	})

	t.Run("empty scope falls back to default", func(t *testing.T) {
		svc, configs, _ := newTestService()
		expected := models.NewGovernanceConfig(DefaultScope, models.TierBasic, uuid.New())
		configs.On("GetActive", ctx, DefaultScope).Return(expected, nil)

		got, err := svc.GetActiveConfig(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, DefaultScope, got.Scope)
	})

	t.Run("not found", func(t *testing.T) {
		svc, configs, _ := newTestService()
		configs.On("GetActive", ctx, "team:ghost").Return(nil, services.ErrConfigNotFound)

		_, err := svc.GetActiveConfig(ctx, "team:ghost")
		assert.True(t, services.IsNotFoundError(err))
	})
}

func TestResolveConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("scoped config wins", func(t *testing.T) {
		svc, configs, _ := newTestService()
		scoped := models.NewGovernanceConfig("team:platform", models.TierEnhanced, uuid.New())
		configs.On("GetActive", ctx, "team:platform").Return(scoped, nil)

		got, err := svc.ResolveConfig(ctx, "team:platform")
		require.NoError(t, err)
		assert.Equal(t, models.TierEnhanced, got.Tier)
		configs.AssertNumberOfCalls(t, "GetActive", 1)
	})

	t.Run("falls back to default scope", func(t *testing.T) {
		svc, configs, _ := newTestService()
		fallback := models.NewGovernanceConfig(DefaultScope, models.TierBasic, uuid.New())
		configs.On("GetActive", ctx, "team:new").Return(nil, services.ErrConfigNotFound)
		configs.On("GetActive", ctx, DefaultScope).Return(fallback, nil)

		got, err := svc.ResolveConfig(ctx, "team:new")
		require.NoError(t, err)
		assert.Equal(t, DefaultScope, got.Scope)
	})

	t.Run("no default config", func(t *testing.T) {
		svc, configs, _ := newTestService()
		configs.On("GetActive", ctx, mock.Anything).Return(nil, services.ErrConfigNotFound)

		_, err := svc.ResolveConfig(ctx, "team:new")
		assert.True(t, services.IsNotFoundError(err))
	})

	t.Run("internal errors are not retried against default", func(t *testing.T) {
		svc, configs, _ := newTestService()
		configs.On("GetActive", ctx, "team:platform").Return(nil, errors.New("connection refused"))

		_, err := svc.ResolveConfig(ctx, "team:platform")
		assert.True(t, services.IsInternalError(err))
		configs.AssertNumberOfCalls(t, "GetActive", 1)
	})
}

func TestUpsertConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("admin can upsert", func(t *testing.T) {
		svc, configs, _ := newTestService()
		actor := adminActor()
		cfg := models.NewGovernanceConfig("team:platform", models.TierStandard, actor.ID)
		configs.On("Upsert", ctx, cfg).Return(nil)

		err := svc.UpsertConfig(ctx, cfg, actor)
		require.NoError(t, err)
		assert.Equal(t, actor.ID, cfg.UpdatedBy)
		configs.AssertExpectations(t)
	})

	t.Run("reader is rejected", func(t *testing.T) {
		svc, _, _ := newTestService()
		cfg := models.NewGovernanceConfig("team:platform", models.TierStandard, uuid.New())

		err := svc.UpsertConfig(ctx, cfg, readerActor())
		assert.True(t, services.IsAuthorizationError(err))
	})

	t.Run("writer with governance:write is allowed", func(t *testing.T) {
		svc, configs, _ := newTestService()
		actor := readerActor()
		actor.AccessLevel = models.AccessLevelWrite
		actor.Permissions = []string{"governance:write"}
		cfg := models.NewGovernanceConfig("team:platform", models.TierStandard, actor.ID)
		configs.On("Upsert", ctx, cfg).Return(nil)

		assert.NoError(t, svc.UpsertConfig(ctx, cfg, actor))
	})

	t.Run("invalid config is rejected before persistence", func(t *testing.T) {
		svc, configs, _ := newTestService()
		cfg := models.NewGovernanceConfig("team:platform", models.TierStandard, uuid.New())
		cfg.AutoApprovalLimit = models.MaxAutoApprovalLimit + 1

		err := svc.UpsertConfig(ctx, cfg, adminActor())
		assert.True(t, services.IsValidationError(err))
		configs.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("upsert clears the policy cache", func(t *testing.T) {
		svc, configs, policies := newTestService()
		q := models.PolicyQuery{ResourceType: "model", TeamID: "platform"}
		policies.On("FindActive", ctx, q, mock.Anything).Return([]*models.AccessControlPolicy{}, nil)

		_, err := svc.FindPolicies(ctx, q)
		require.NoError(t, err)
		require.Equal(t, 1, svc.CacheStats().Size)

		actor := adminActor()
		cfg := models.NewGovernanceConfig("team:platform", models.TierStandard, actor.ID)
		configs.On("Upsert", ctx, cfg).Return(nil)
		require.NoError(t, svc.UpsertConfig(ctx, cfg, actor))

		assert.Equal(t, 0, svc.CacheStats().Size)
	})
}

func TestFindPolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("filters by scope and activity window", func(t *testing.T) {
		svc, _, policies := newTestService()
		q := models.PolicyQuery{ResourceType: "model", TeamID: "platform"}

		matching := &models.AccessControlPolicy{
			ID:           uuid.New(),
			ResourceType: "model",
			TeamID:       "platform",
			Status:       models.PolicyStatusActive,
			EffectiveAt:  time.Now().Add(-time.Hour),
		}
		wrongTeam := &models.AccessControlPolicy{
			ID:           uuid.New(),
			ResourceType: "model",
			TeamID:       "other",
			Status:       models.PolicyStatusActive,
			EffectiveAt:  time.Now().Add(-time.Hour),
		}
		inactive := &models.AccessControlPolicy{
			ID:           uuid.New(),
			ResourceType: "model",
			TeamID:       "platform",
			Status:       models.PolicyStatusInactive,
			EffectiveAt:  time.Now().Add(-time.Hour),
		}
		policies.On("FindActive", ctx, q, mock.Anything).
			Return([]*models.AccessControlPolicy{matching, wrongTeam, inactive}, nil)

		got, err := svc.FindPolicies(ctx, q)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, matching.ID, got[0].ID)
	})

	t.Run("second lookup is served from cache", func(t *testing.T) {
		svc, _, policies := newTestService()
		q := models.PolicyQuery{ResourceType: "model", TeamID: "platform"}
		policies.On("FindActive", ctx, q, mock.Anything).Return([]*models.AccessControlPolicy{}, nil)

		_, err := svc.FindPolicies(ctx, q)
		require.NoError(t, err)
		_, err = svc.FindPolicies(ctx, q)
		require.NoError(t, err)

		policies.AssertNumberOfCalls(t, "FindActive", 1)
	})

	t.Run("repository error", func(t *testing.T) {
		svc, _, policies := newTestService()
		q := models.PolicyQuery{ResourceType: "model"}
		policies.On("FindActive", ctx, q, mock.Anything).Return(nil, errors.New("db down"))

		_, err := svc.FindPolicies(ctx, q)
		assert.True(t, services.IsInternalError(err))
	})
}

func TestCreatePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults applied", func(t *testing.T) {
		svc, _, policies := newTestService()
		actor := adminActor()
		policy := &models.AccessControlPolicy{
			Name:         "new-policy",
			ResourceType: "model",
			TeamID:       "platform",
			Permissions:  []string{"model:invoke"},
		}
		policies.On("Create", ctx, policy).Return(nil)

		err := svc.CreatePolicy(ctx, policy, actor)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, policy.ID)
		assert.Equal(t, models.PolicyStatusDraft, policy.Status)
		assert.False(t, policy.EffectiveAt.IsZero())
		assert.Equal(t, actor.ID, policy.CreatedBy)
	})

	t.Run("non-manager rejected", func(t *testing.T) {
		svc, _, _ := newTestService()
		err := svc.CreatePolicy(ctx, &models.AccessControlPolicy{}, readerActor())
		assert.True(t, services.IsAuthorizationError(err))
	})

	t.Run("invalid policy rejected", func(t *testing.T) {
		svc, _, policies := newTestService()
		policy := &models.AccessControlPolicy{Name: "no-permissions", ResourceType: "model", TeamID: "x"}

		err := svc.CreatePolicy(ctx, policy, adminActor())
		assert.True(t, services.IsValidationError(err))
		policies.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestUpdatePolicy(t *testing.T) {
	ctx := context.Background()

	existingPolicy := func(status models.PolicyStatus) *models.AccessControlPolicy {
		return &models.AccessControlPolicy{
			ID:           uuid.New(),
			Name:         "existing",
			ResourceType: "model",
			TeamID:       "platform",
			Permissions:  []string{"model:invoke"},
			Status:       status,
			EffectiveAt:  time.Now().Add(-time.Hour),
			CreatedAt:    time.Now().Add(-24 * time.Hour),
			CreatedBy:    uuid.New(),
		}
	}

	t.Run("allowed transition", func(t *testing.T) {
		svc, _, policies := newTestService()
		existing := existingPolicy(models.PolicyStatusDraft)
		updated := *existing
		updated.Status = models.PolicyStatusActive

		policies.On("GetByID", ctx, existing.ID).Return(existing, nil)
		policies.On("Update", ctx, &updated).Return(nil)

		err := svc.UpdatePolicy(ctx, &updated, adminActor())
		require.NoError(t, err)
		assert.Equal(t, existing.CreatedBy, updated.CreatedBy, "authorship is immutable")
	})

	t.Run("forbidden transition", func(t *testing.T) {
		svc, _, policies := newTestService()
		existing := existingPolicy(models.PolicyStatusArchived)
		updated := *existing
		updated.Status = models.PolicyStatusActive

		policies.On("GetByID", ctx, existing.ID).Return(existing, nil)

		err := svc.UpdatePolicy(ctx, &updated, adminActor())
		assert.True(t, services.IsConflictError(err))
		policies.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("policy not found", func(t *testing.T) {
		svc, _, policies := newTestService()
		missing := existingPolicy(models.PolicyStatusActive)
		policies.On("GetByID", ctx, missing.ID).Return(nil, services.ErrPolicyNotFound)

		err := svc.UpdatePolicy(ctx, missing, adminActor())
		assert.True(t, services.IsNotFoundError(err))
	})
}

func TestDeletePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("delete clears cache", func(t *testing.T) {
		svc, _, policies := newTestService()
		id := uuid.New()
		q := models.PolicyQuery{ResourceType: "model", TeamID: "platform"}
		policies.On("FindActive", ctx, q, mock.Anything).Return([]*models.AccessControlPolicy{}, nil)
		policies.On("Delete", ctx, id).Return(nil)

		_, err := svc.FindPolicies(ctx, q)
		require.NoError(t, err)
		require.NoError(t, svc.DeletePolicy(ctx, id, adminActor()))
		assert.Equal(t, 0, svc.CacheStats().Size)
	})

	t.Run("not found", func(t *testing.T) {
		svc, _, policies := newTestService()
		id := uuid.New()
		policies.On("Delete", ctx, id).Return(services.ErrPolicyNotFound)

		err := svc.DeletePolicy(ctx, id, adminActor())
		assert.True(t, services.IsNotFoundError(err))
	})

	t.Run("non-manager rejected", func(t *testing.T) {
		svc, _, _ := newTestService()
		err := svc.DeletePolicy(ctx, uuid.New(), readerActor())
		assert.True(t, services.IsAuthorizationError(err))
	})
}

func TestListPolicies_PaginationBounds(t *testing.T) {
	ctx := context.Background()
	svc, _, policies := newTestService()
	policies.On("List", ctx, 50, 0).Return([]*models.AccessControlPolicy{}, nil)

	_, err := svc.ListPolicies(ctx, -5, -10)
	require.NoError(t, err)
	policies.AssertCalled(t, "List", ctx, 50, 0)
}
