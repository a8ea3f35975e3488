package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/repositories"
	"github.com/upb/governance-engine/services"
)

// DefaultScope is the scope configs fall back to when no scope-specific
// config exists
const DefaultScope = "default"

// Service is the policy catalog: governance configurations and
// access-control policies with a read-through cache
type Service struct {
	configs  repositories.ConfigRepository
	policies repositories.PolicyRepository
	cache    *PolicyCache
	logger   *zap.Logger
}

// NewService creates a new catalog service
func NewService(
	configs repositories.ConfigRepository,
	policies repositories.PolicyRepository,
	cache *PolicyCache,
	logger *zap.Logger,
) *Service {
	return &Service{
		configs:  configs,
		policies: policies,
		cache:    cache,
		logger:   logger,
	}
}

// GetActiveConfig retrieves the active governance config for a scope
func (s *Service) GetActiveConfig(ctx context.Context, scope string) (*models.GovernanceConfig, error) {
	if scope == "" {
		scope = DefaultScope
	}

	config, err := s.configs.GetActive(ctx, scope)
	if err != nil {
		if services.IsNotFoundError(err) {
			return nil, services.ErrConfigNotFound.WithDetail("scope", scope)
		}
		return nil, services.WrapInternal("failed to load governance config", err)
	}

	return config, nil
}

// ResolveConfig retrieves the config for a scope, falling back to the
// default scope when the scope has no config of its own
func (s *Service) ResolveConfig(ctx context.Context, scope string) (*models.GovernanceConfig, error) {
	config, err := s.GetActiveConfig(ctx, scope)
	if err == nil {
		return config, nil
	}
	if !services.IsNotFoundError(err) || scope == DefaultScope {
		return nil, err
	}

	s.logger.Debug("no scoped config, falling back to default",
		zap.String("scope", scope))

	return s.GetActiveConfig(ctx, DefaultScope)
}

// UpsertConfig validates and persists a governance config. Only actors
// holding governance:write (or admin level and above) may call this.
func (s *Service) UpsertConfig(ctx context.Context, config *models.GovernanceConfig, actor *models.Actor) error {
	if actor == nil || !actor.CanManageGovernance() {
		return services.ErrNotAuthorized.WithDetail("operation", "upsert_config")
	}

	if err := config.Validate(); err != nil {
		return services.NewDomainError(services.ErrorTypeValidation, err.Error(), nil).
			WithDetail("scope", config.Scope)
	}

	now := time.Now()
	if config.ID == uuid.Nil {
		config.ID = uuid.New()
		config.CreatedAt = now
		config.CreatedBy = actor.ID
	}
	config.UpdatedAt = now
	config.UpdatedBy = actor.ID

	if err := s.configs.Upsert(ctx, config); err != nil {
		return services.WrapInternal("failed to persist governance config", err)
	}

	// Policy decisions depend on the config's tier and limits
	s.cache.Clear()

	s.logger.Info("governance config upserted",
		zap.String("scope", config.Scope),
		zap.String("tier", string(config.Tier)),
		zap.String("updated_by", actor.ID.String()))

	return nil
}

// ListConfigs retrieves all governance configs
func (s *Service) ListConfigs(ctx context.Context) ([]*models.GovernanceConfig, error) {
	configs, err := s.configs.List(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to list governance configs", err)
	}
	return configs, nil
}

// FindPolicies returns the active policies matching the query's scope at
// the current time. Results are cached; mutations clear the cache.
func (s *Service) FindPolicies(ctx context.Context, query models.PolicyQuery) ([]*models.AccessControlPolicy, error) {
	if cached, ok := s.cache.Get(query); ok {
		return cached, nil
	}

	now := time.Now()
	candidates, err := s.policies.FindActive(ctx, query, now)
	if err != nil {
		return nil, services.WrapInternal("failed to query policies", err)
	}

	// The repository narrows by indexed columns; re-check the full scope
	// and the activity window here
	matched := make([]*models.AccessControlPolicy, 0, len(candidates))
	for _, policy := range candidates {
		if policy.MatchesScope(query) && policy.IsActiveAt(now) {
			matched = append(matched, policy)
		}
	}

	s.cache.Set(query, matched)

	s.logger.Debug("policies resolved",
		zap.String("resource_type", query.ResourceType),
		zap.Int("matched", len(matched)))

	return matched, nil
}

// GetPolicy retrieves a policy by id
func (s *Service) GetPolicy(ctx context.Context, id uuid.UUID) (*models.AccessControlPolicy, error) {
	policy, err := s.policies.GetByID(ctx, id)
	if err != nil {
		if services.IsNotFoundError(err) {
			return nil, services.ErrPolicyNotFound.WithDetail("policy_id", id.String())
		}
		return nil, services.WrapInternal("failed to load policy", err)
	}
	return policy, nil
}

// ListPolicies retrieves policies with pagination
func (s *Service) ListPolicies(ctx context.Context, limit, offset int) ([]*models.AccessControlPolicy, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	policies, err := s.policies.List(ctx, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list policies", err)
	}
	return policies, nil
}

// CreatePolicy validates and persists a new policy
func (s *Service) CreatePolicy(ctx context.Context, policy *models.AccessControlPolicy, actor *models.Actor) error {
	if actor == nil || !actor.CanManageGovernance() {
		return services.ErrNotAuthorized.WithDetail("operation", "create_policy")
	}

	now := time.Now()
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	if policy.Status == "" {
		policy.Status = models.PolicyStatusDraft
	}
	if policy.EffectiveAt.IsZero() {
		policy.EffectiveAt = now
	}
	policy.CreatedAt = now
	policy.UpdatedAt = now
	policy.CreatedBy = actor.ID

	if err := policy.Validate(); err != nil {
		return services.NewDomainError(services.ErrorTypeValidation, err.Error(), nil).
			WithDetail("policy_name", policy.Name)
	}

	if err := s.policies.Create(ctx, policy); err != nil {
		return services.WrapInternal("failed to create policy", err)
	}

	s.cache.Clear()

	s.logger.Info("policy created",
		zap.String("policy_id", policy.ID.String()),
		zap.String("name", policy.Name),
		zap.String("resource_type", policy.ResourceType))

	return nil
}

// UpdatePolicy validates and persists changes to an existing policy,
// enforcing the lifecycle transition rules
func (s *Service) UpdatePolicy(ctx context.Context, policy *models.AccessControlPolicy, actor *models.Actor) error {
	if actor == nil || !actor.CanManageGovernance() {
		return services.ErrNotAuthorized.WithDetail("operation", "update_policy")
	}

	existing, err := s.GetPolicy(ctx, policy.ID)
	if err != nil {
		return err
	}

	if existing.Status != policy.Status && !existing.Status.CanTransitionTo(policy.Status) {
		return services.ErrInvalidTransition.
			WithDetail("from", string(existing.Status)).
			WithDetail("to", string(policy.Status))
	}

	policy.CreatedAt = existing.CreatedAt
	policy.CreatedBy = existing.CreatedBy
	policy.UpdatedAt = time.Now()

	if err := policy.Validate(); err != nil {
		return services.NewDomainError(services.ErrorTypeValidation, err.Error(), nil).
			WithDetail("policy_id", policy.ID.String())
	}

	if err := s.policies.Update(ctx, policy); err != nil {
		if services.IsNotFoundError(err) {
			return services.ErrPolicyNotFound.WithDetail("policy_id", policy.ID.String())
		}
		return services.WrapInternal("failed to update policy", err)
	}

	s.cache.Clear()

	s.logger.Info("policy updated",
		zap.String("policy_id", policy.ID.String()),
		zap.String("status", string(policy.Status)))

	return nil
}

// DeletePolicy removes a policy
func (s *Service) DeletePolicy(ctx context.Context, id uuid.UUID, actor *models.Actor) error {
	if actor == nil || !actor.CanManageGovernance() {
		return services.ErrNotAuthorized.WithDetail("operation", "delete_policy")
	}

	if err := s.policies.Delete(ctx, id); err != nil {
		if services.IsNotFoundError(err) {
			return services.ErrPolicyNotFound.WithDetail("policy_id", id.String())
		}
		return services.WrapInternal("failed to delete policy", err)
	}

	s.cache.Clear()

	s.logger.Info("policy deleted", zap.String("policy_id", id.String()))
	return nil
}

// CacheStats exposes cache statistics for observability endpoints
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}
