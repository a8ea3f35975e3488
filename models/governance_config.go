package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Validation caps for governance limits
const (
	MaxAutoApprovalLimit = 10_000.0
	MaxMonthlyCostLimit  = 1_000_000.0
)

// GovernanceConfig holds the active governance limits and requirements for
// a scope (a team, a department, or the platform default). Exactly one
// config is active per scope.
type GovernanceConfig struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Scope       string    `json:"scope" db:"scope"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`

	Tier            GovernanceTier `json:"tier" db:"tier"`
	ComplianceLevel string         `json:"compliance_level,omitempty" db:"compliance_level"`
	RiskTolerance   RiskLevel      `json:"risk_tolerance" db:"risk_tolerance"`

	RequireApproval   bool    `json:"require_approval" db:"require_approval"`
	AutoApprovalLimit float64 `json:"auto_approval_limit" db:"auto_approval_limit"`
	RequireMFA        bool    `json:"require_mfa" db:"require_mfa"`

	DailyRequestLimit      int     `json:"daily_request_limit" db:"daily_request_limit"`
	MonthlyCostLimit       float64 `json:"monthly_cost_limit" db:"monthly_cost_limit"`
	ConcurrentRequestLimit int     `json:"concurrent_request_limit" db:"concurrent_request_limit"`
	RateLimitRequests      int     `json:"rate_limit_requests" db:"rate_limit_requests"`
	RateLimitWindowSeconds int     `json:"rate_limit_window_seconds" db:"rate_limit_window_seconds"`

	DataRetentionDays          int  `json:"data_retention_days" db:"data_retention_days"`
	AuditLoggingEnabled        bool `json:"audit_logging_enabled" db:"audit_logging_enabled"`
	ComplianceReportingEnabled bool `json:"compliance_reporting_enabled" db:"compliance_reporting_enabled"`

	AllowedProviders    []string `json:"allowed_providers,omitempty" db:"allowed_providers"`
	SelfHostedAllowed   bool     `json:"self_hosted_allowed" db:"self_hosted_allowed"`
	CostThresholdAlerts bool     `json:"cost_threshold_alerts" db:"cost_threshold_alerts"`
	ReviewCycle         string   `json:"review_cycle,omitempty" db:"review_cycle"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	CreatedBy uuid.UUID `json:"created_by" db:"created_by"`
	UpdatedBy uuid.UUID `json:"updated_by" db:"updated_by"`
}

// NewGovernanceConfig creates a config for a scope with conservative
// defaults for the given tier
func NewGovernanceConfig(scope string, tier GovernanceTier, createdBy uuid.UUID) *GovernanceConfig {
	now := time.Now()
	cfg := &GovernanceConfig{
		ID:                     uuid.New(),
		Scope:                  scope,
		Tier:                   tier,
		RiskTolerance:          RiskMedium,
		RequireApproval:        tier.AtLeast(TierEnhanced),
		AutoApprovalLimit:      1000,
		DailyRequestLimit:      10_000,
		MonthlyCostLimit:       10_000,
		ConcurrentRequestLimit: 50,
		RateLimitRequests:      100,
		RateLimitWindowSeconds: 60,
		DataRetentionDays:      365,
		AuditLoggingEnabled:    true,
		CreatedAt:              now,
		UpdatedAt:              now,
		CreatedBy:              createdBy,
		UpdatedBy:              createdBy,
	}
	if tier.AtLeast(TierEnterprise) {
		cfg.ComplianceReportingEnabled = true
	}
	if tier == TierRestricted {
		cfg.RequireMFA = true
	}
	return cfg
}

// Validate checks the config's internal invariants. It returns the first
// violation found.
func (c *GovernanceConfig) Validate() error {
	if c.Scope == "" {
		return fmt.Errorf("scope is required")
	}
	if !c.Tier.IsValid() {
		return fmt.Errorf("invalid governance tier: %s", c.Tier)
	}
	if c.RiskTolerance != "" && !c.RiskTolerance.IsValid() {
		return fmt.Errorf("invalid risk tolerance: %s", c.RiskTolerance)
	}
	if c.AutoApprovalLimit < 0 {
		return fmt.Errorf("auto approval limit must not be negative")
	}
	if c.AutoApprovalLimit > MaxAutoApprovalLimit {
		return fmt.Errorf("auto approval limit must not exceed %.0f", MaxAutoApprovalLimit)
	}
	if c.MonthlyCostLimit < 0 {
		return fmt.Errorf("monthly cost limit must not be negative")
	}
	if c.MonthlyCostLimit > MaxMonthlyCostLimit {
		return fmt.Errorf("monthly cost limit must not exceed %.0f", MaxMonthlyCostLimit)
	}
	if c.DailyRequestLimit < 0 {
		return fmt.Errorf("daily request limit must not be negative")
	}
	if c.ConcurrentRequestLimit < 0 {
		return fmt.Errorf("concurrent request limit must not be negative")
	}
	if c.RateLimitRequests < 0 || c.RateLimitWindowSeconds < 0 {
		return fmt.Errorf("rate limit settings must not be negative")
	}
	if c.DataRetentionDays < 0 {
		return fmt.Errorf("data retention days must not be negative")
	}
	if c.Tier.AtLeast(TierEnterprise) {
		if !c.AuditLoggingEnabled {
			return fmt.Errorf("%s tier requires audit logging", c.Tier)
		}
		if !c.ComplianceReportingEnabled {
			return fmt.Errorf("%s tier requires compliance reporting", c.Tier)
		}
	}
	if c.Tier == TierRestricted && !c.RequireMFA {
		return fmt.Errorf("restricted tier requires MFA")
	}
	return nil
}

// IsProviderAllowed returns true if the provider may be used under this
// config. An empty allow-list permits all providers.
func (c *GovernanceConfig) IsProviderAllowed(provider string) bool {
	if len(c.AllowedProviders) == 0 {
		return true
	}
	for _, p := range c.AllowedProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// TableName returns the database table name
func (c *GovernanceConfig) TableName() string {
	return "governance_configs"
}
