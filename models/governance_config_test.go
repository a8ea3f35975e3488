package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGovernanceConfig_Defaults(t *testing.T) {
	createdBy := uuid.New()

	t.Run("standard tier", func(t *testing.T) {
		cfg := NewGovernanceConfig("team:platform", TierStandard, createdBy)

		assert.Equal(t, "team:platform", cfg.Scope)
		assert.False(t, cfg.RequireApproval)
		assert.False(t, cfg.RequireMFA)
		assert.True(t, cfg.AuditLoggingEnabled)
		assert.False(t, cfg.ComplianceReportingEnabled)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("enhanced tier requires approval", func(t *testing.T) {
		cfg := NewGovernanceConfig("team:platform", TierEnhanced, createdBy)
		assert.True(t, cfg.RequireApproval)
	})

	t.Run("enterprise tier enables compliance reporting", func(t *testing.T) {
		cfg := NewGovernanceConfig("team:platform", TierEnterprise, createdBy)
		assert.True(t, cfg.ComplianceReportingEnabled)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("restricted tier requires mfa", func(t *testing.T) {
		cfg := NewGovernanceConfig("team:platform", TierRestricted, createdBy)
		assert.True(t, cfg.RequireMFA)
		assert.NoError(t, cfg.Validate())
	})
}

func TestGovernanceConfig_Validate(t *testing.T) {
	base := func() *GovernanceConfig {
		return NewGovernanceConfig("team:platform", TierStandard, uuid.New())
	}

	t.Run("missing scope", func(t *testing.T) {
		cfg := base()
		cfg.Scope = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid tier", func(t *testing.T) {
		cfg := base()
		cfg.Tier = "platinum"
		assert.Error(t, cfg.Validate())
	})

	t.Run("auto approval limit cap", func(t *testing.T) {
		cfg := base()
		cfg.AutoApprovalLimit = MaxAutoApprovalLimit
		require.NoError(t, cfg.Validate())

		cfg.AutoApprovalLimit = MaxAutoApprovalLimit + 1
		assert.Error(t, cfg.Validate())
	})

	t.Run("monthly cost limit cap", func(t *testing.T) {
		cfg := base()
		cfg.MonthlyCostLimit = MaxMonthlyCostLimit
		require.NoError(t, cfg.Validate())

		cfg.MonthlyCostLimit = MaxMonthlyCostLimit + 1
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative limits rejected", func(t *testing.T) {
		for _, mutate := range []func(*GovernanceConfig){
			func(c *GovernanceConfig) { c.AutoApprovalLimit = -1 },
			func(c *GovernanceConfig) { c.MonthlyCostLimit = -1 },
			func(c *GovernanceConfig) { c.DailyRequestLimit = -1 },
			func(c *GovernanceConfig) { c.ConcurrentRequestLimit = -1 },
			func(c *GovernanceConfig) { c.RateLimitRequests = -1 },
			func(c *GovernanceConfig) { c.DataRetentionDays = -1 },
		} {
			cfg := base()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		}
	})

	t.Run("enterprise requires audit logging", func(t *testing.T) {
		cfg := NewGovernanceConfig("team:platform", TierEnterprise, uuid.New())
		cfg.AuditLoggingEnabled = false
		assert.Error(t, cfg.Validate())
	})

	t.Run("enterprise requires compliance reporting", func(t *testing.T) {
		cfg := NewGovernanceConfig("team:platform", TierEnterprise, uuid.New())
		cfg.ComplianceReportingEnabled = false
		assert.Error(t, cfg.Validate())
	})

	t.Run("restricted requires mfa", func(t *testing.T) {
		cfg := NewGovernanceConfig("team:platform", TierRestricted, uuid.New())
		cfg.RequireMFA = false
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid risk tolerance", func(t *testing.T) {
		cfg := base()
		cfg.RiskTolerance = "extreme"
		assert.Error(t, cfg.Validate())
	})
}

func TestGovernanceConfig_IsProviderAllowed(t *testing.T) {
	cfg := &GovernanceConfig{}
	assert.True(t, cfg.IsProviderAllowed("anything"), "empty allow-list permits all")

	cfg.AllowedProviders = []string{"openai", "anthropic"}
	assert.True(t, cfg.IsProviderAllowed("anthropic"))
	assert.False(t, cfg.IsProviderAllowed("selfhosted"))
}
