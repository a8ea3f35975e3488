package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/repositories"
	"github.com/upb/governance-engine/services"
)

// ConfigRepository implements the repositories.ConfigRepository interface
type ConfigRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewConfigRepository creates a new governance config repository
func NewConfigRepository(db *DB, logger *zap.Logger) repositories.ConfigRepository {
	return &ConfigRepository{
		db:     db,
		logger: logger,
	}
}

const configColumns = `
	id, scope, name, description, tier, compliance_level, risk_tolerance,
	require_approval, auto_approval_limit, require_mfa,
	daily_request_limit, monthly_cost_limit, concurrent_request_limit,
	rate_limit_requests, rate_limit_window_seconds,
	data_retention_days, audit_logging_enabled, compliance_reporting_enabled,
	allowed_providers, self_hosted_allowed, cost_threshold_alerts, review_cycle,
	created_at, updated_at, created_by, updated_by
`

// GetActive retrieves the active config for a scope
func (r *ConfigRepository) GetActive(ctx context.Context, scope string) (*models.GovernanceConfig, error) {
	query := `SELECT ` + configColumns + ` FROM governance_configs WHERE scope = $1`

	executor := GetExecutor(ctx, r.db)
	row := executor.QueryRowContext(ctx, query, scope)

	config, err := scanConfig(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrConfigNotFound.WithDetail("scope", scope)
		}
		return nil, fmt.Errorf("failed to get governance config: %w", err)
	}

	return config, nil
}

// Upsert creates or replaces the config for its scope
func (r *ConfigRepository) Upsert(ctx context.Context, config *models.GovernanceConfig) error {
	query := `
		INSERT INTO governance_configs (` + configColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		ON CONFLICT (scope) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			tier = EXCLUDED.tier,
			compliance_level = EXCLUDED.compliance_level,
			risk_tolerance = EXCLUDED.risk_tolerance,
			require_approval = EXCLUDED.require_approval,
			auto_approval_limit = EXCLUDED.auto_approval_limit,
			require_mfa = EXCLUDED.require_mfa,
			daily_request_limit = EXCLUDED.daily_request_limit,
			monthly_cost_limit = EXCLUDED.monthly_cost_limit,
			concurrent_request_limit = EXCLUDED.concurrent_request_limit,
			rate_limit_requests = EXCLUDED.rate_limit_requests,
			rate_limit_window_seconds = EXCLUDED.rate_limit_window_seconds,
			data_retention_days = EXCLUDED.data_retention_days,
			audit_logging_enabled = EXCLUDED.audit_logging_enabled,
			compliance_reporting_enabled = EXCLUDED.compliance_reporting_enabled,
			allowed_providers = EXCLUDED.allowed_providers,
			self_hosted_allowed = EXCLUDED.self_hosted_allowed,
			cost_threshold_alerts = EXCLUDED.cost_threshold_alerts,
			review_cycle = EXCLUDED.review_cycle,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`

	providers, err := marshalJSON(config.AllowedProviders)
	if err != nil {
		return err
	}

	executor := GetExecutor(ctx, r.db)
	_, err = executor.ExecContext(ctx, query,
		config.ID,
		config.Scope,
		config.Name,
		config.Description,
		config.Tier,
		config.ComplianceLevel,
		config.RiskTolerance,
		config.RequireApproval,
		config.AutoApprovalLimit,
		config.RequireMFA,
		config.DailyRequestLimit,
		config.MonthlyCostLimit,
		config.ConcurrentRequestLimit,
		config.RateLimitRequests,
		config.RateLimitWindowSeconds,
		config.DataRetentionDays,
		config.AuditLoggingEnabled,
		config.ComplianceReportingEnabled,
		providers,
		config.SelfHostedAllowed,
		config.CostThresholdAlerts,
		config.ReviewCycle,
		config.CreatedAt,
		config.UpdatedAt,
		config.CreatedBy,
		config.UpdatedBy,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert governance config: %w", err)
	}

	r.logger.Debug("governance config upserted", zap.String("scope", config.Scope))
	return nil
}

// List retrieves all configs
func (r *ConfigRepository) List(ctx context.Context) ([]*models.GovernanceConfig, error) {
	query := `SELECT ` + configColumns + ` FROM governance_configs ORDER BY scope`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query governance configs: %w", err)
	}
	defer rows.Close()

	var configs []*models.GovernanceConfig
	for rows.Next() {
		config, err := scanConfig(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan governance config: %w", err)
		}
		configs = append(configs, config)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating governance config rows: %w", err)
	}

	return configs, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *ConfigRepository) WithTx(tx repositories.Transaction) repositories.ConfigRepository {
	return &ConfigRepository{
		db:     r.db,
		logger: r.logger,
	}
}

// scanConfig scans one governance config row
func scanConfig(scan func(dest ...interface{}) error) (*models.GovernanceConfig, error) {
	config := &models.GovernanceConfig{}
	var providers []byte

	err := scan(
		&config.ID,
		&config.Scope,
		&config.Name,
		&config.Description,
		&config.Tier,
		&config.ComplianceLevel,
		&config.RiskTolerance,
		&config.RequireApproval,
		&config.AutoApprovalLimit,
		&config.RequireMFA,
		&config.DailyRequestLimit,
		&config.MonthlyCostLimit,
		&config.ConcurrentRequestLimit,
		&config.RateLimitRequests,
		&config.RateLimitWindowSeconds,
		&config.DataRetentionDays,
		&config.AuditLoggingEnabled,
		&config.ComplianceReportingEnabled,
		&providers,
		&config.SelfHostedAllowed,
		&config.CostThresholdAlerts,
		&config.ReviewCycle,
		&config.CreatedAt,
		&config.UpdatedAt,
		&config.CreatedBy,
		&config.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSON(providers, &config.AllowedProviders); err != nil {
		return nil, err
	}

	return config, nil
}
