package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/services"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return &DB{DB: sqlDB, logger: zap.NewNop()}, mock
}

func configRows(config *models.GovernanceConfig) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "scope", "name", "description", "tier", "compliance_level", "risk_tolerance",
		"require_approval", "auto_approval_limit", "require_mfa",
		"daily_request_limit", "monthly_cost_limit", "concurrent_request_limit",
		"rate_limit_requests", "rate_limit_window_seconds",
		"data_retention_days", "audit_logging_enabled", "compliance_reporting_enabled",
		"allowed_providers", "self_hosted_allowed", "cost_threshold_alerts", "review_cycle",
		"created_at", "updated_at", "created_by", "updated_by",
	}).AddRow(
		config.ID, config.Scope, config.Name, config.Description, config.Tier,
		config.ComplianceLevel, config.RiskTolerance,
		config.RequireApproval, config.AutoApprovalLimit, config.RequireMFA,
		config.DailyRequestLimit, config.MonthlyCostLimit, config.ConcurrentRequestLimit,
		config.RateLimitRequests, config.RateLimitWindowSeconds,
		config.DataRetentionDays, config.AuditLoggingEnabled, config.ComplianceReportingEnabled,
		[]byte(`["openai","anthropic"]`), config.SelfHostedAllowed, config.CostThresholdAlerts,
		config.ReviewCycle, config.CreatedAt, config.UpdatedAt, config.CreatedBy, config.UpdatedBy,
	)
}

func TestConfigRepository_GetActive(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewConfigRepository(db, zap.NewNop())

		config := models.NewGovernanceConfig("team:platform", models.TierEnhanced, uuid.New())
		mock.ExpectQuery("SELECT (.+) FROM governance_configs WHERE scope").
			WithArgs("team:platform").
			WillReturnRows(configRows(config))

		got, err := repo.GetActive(context.Background(), "team:platform")
		require.NoError(t, err)
		assert.Equal(t, config.ID, got.ID)
		assert.Equal(t, models.TierEnhanced, got.Tier)
		assert.Equal(t, []string{"openai", "anthropic"}, got.AllowedProviders)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewConfigRepository(db, zap.NewNop())

		mock.ExpectQuery("SELECT (.+) FROM governance_configs WHERE scope").
			WithArgs("team:missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.GetActive(context.Background(), "team:missing")
		require.Error(t, err)
		assert.True(t, services.IsNotFoundError(err))
	})
}

func TestConfigRepository_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConfigRepository(db, zap.NewNop())

	config := models.NewGovernanceConfig("team:platform", models.TierStandard, uuid.New())
	config.AllowedProviders = []string{"openai"}

	mock.ExpectExec("INSERT INTO governance_configs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), config))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigRepository_Upsert_Failure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConfigRepository(db, zap.NewNop())

	mock.ExpectExec("INSERT INTO governance_configs").
		WillReturnError(assert.AnError)

	err := repo.Upsert(context.Background(), models.NewGovernanceConfig("team:platform", models.TierStandard, uuid.New()))
	require.Error(t, err)
}

func TestConfigRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConfigRepository(db, zap.NewNop())

	first := models.NewGovernanceConfig("default", models.TierBasic, uuid.New())
	second := models.NewGovernanceConfig("team:platform", models.TierEnterprise, uuid.New())

	rows := configRows(first)
	rows.AddRow(
		second.ID, second.Scope, second.Name, second.Description, second.Tier,
		second.ComplianceLevel, second.RiskTolerance,
		second.RequireApproval, second.AutoApprovalLimit, second.RequireMFA,
		second.DailyRequestLimit, second.MonthlyCostLimit, second.ConcurrentRequestLimit,
		second.RateLimitRequests, second.RateLimitWindowSeconds,
		second.DataRetentionDays, second.AuditLoggingEnabled, second.ComplianceReportingEnabled,
		[]byte(`[]`), second.SelfHostedAllowed, second.CostThresholdAlerts,
		second.ReviewCycle, second.CreatedAt, second.UpdatedAt, second.CreatedBy, second.UpdatedBy,
	)

	mock.ExpectQuery("SELECT (.+) FROM governance_configs ORDER BY scope").
		WillReturnRows(rows)

	configs, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "default", configs[0].Scope)
	assert.Equal(t, "team:platform", configs[1].Scope)
	assert.NoError(t, mock.ExpectationsWereMet())
}
