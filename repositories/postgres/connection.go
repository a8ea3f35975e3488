package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/upb/governance-engine/config"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	dsn := cfg.DSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	// Check if we can query
	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Governance configurations: one active config per scope
		CREATE TABLE IF NOT EXISTS governance_configs (
			id UUID PRIMARY KEY,
			scope VARCHAR(255) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			tier VARCHAR(20) NOT NULL,
			compliance_level VARCHAR(50) NOT NULL DEFAULT '',
			risk_tolerance VARCHAR(20) NOT NULL DEFAULT 'medium',
			require_approval BOOLEAN NOT NULL DEFAULT false,
			auto_approval_limit DECIMAL(12, 2) NOT NULL DEFAULT 0,
			require_mfa BOOLEAN NOT NULL DEFAULT false,
			daily_request_limit INTEGER NOT NULL DEFAULT 0,
			monthly_cost_limit DECIMAL(14, 2) NOT NULL DEFAULT 0,
			concurrent_request_limit INTEGER NOT NULL DEFAULT 0,
			rate_limit_requests INTEGER NOT NULL DEFAULT 0,
			rate_limit_window_seconds INTEGER NOT NULL DEFAULT 0,
			data_retention_days INTEGER NOT NULL DEFAULT 0,
			audit_logging_enabled BOOLEAN NOT NULL DEFAULT true,
			compliance_reporting_enabled BOOLEAN NOT NULL DEFAULT false,
			allowed_providers JSONB,
			self_hosted_allowed BOOLEAN NOT NULL DEFAULT false,
			cost_threshold_alerts BOOLEAN NOT NULL DEFAULT false,
			review_cycle VARCHAR(50) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by UUID NOT NULL,
			updated_by UUID NOT NULL
		);

		-- Access-control policies
		CREATE TABLE IF NOT EXISTS access_policies (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			resource_type VARCHAR(100) NOT NULL,
			resource_id VARCHAR(255) NOT NULL DEFAULT '',
			user_id UUID,
			team_id VARCHAR(255) NOT NULL DEFAULT '',
			department VARCHAR(255) NOT NULL DEFAULT '',
			permissions JSONB,
			denied_permissions JSONB,
			conditions JSONB,
			required_tier VARCHAR(20) NOT NULL DEFAULT '',
			min_compliance_score DECIMAL(5, 2),
			requires_approval BOOLEAN NOT NULL DEFAULT false,
			status VARCHAR(20) NOT NULL,
			effective_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by UUID NOT NULL
		);

		-- Approval cases
		CREATE TABLE IF NOT EXISTS approval_cases (
			id UUID PRIMARY KEY,
			request_type VARCHAR(100) NOT NULL,
			resource_type VARCHAR(100) NOT NULL,
			resource_id VARCHAR(255) NOT NULL DEFAULT '',
			requester_id UUID NOT NULL,
			approvers JSONB NOT NULL,
			current_index INTEGER NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL,
			justification TEXT NOT NULL DEFAULT '',
			impact_level VARCHAR(20) NOT NULL,
			risk_assessment VARCHAR(20) NOT NULL,
			tier VARCHAR(20) NOT NULL,
			estimated_cost DECIMAL(12, 2) NOT NULL DEFAULT 0,
			reservation_id VARCHAR(64) NOT NULL DEFAULT '',
			deadline TIMESTAMP NOT NULL,
			history JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Usage metrics: one row per entity, period granularity, and key
		CREATE TABLE IF NOT EXISTS usage_metrics (
			id UUID PRIMARY KEY,
			entity_id VARCHAR(255) NOT NULL,
			period VARCHAR(10) NOT NULL,
			period_key VARCHAR(10) NOT NULL,
			total_requests BIGINT NOT NULL DEFAULT 0,
			successful_requests BIGINT NOT NULL DEFAULT 0,
			failed_requests BIGINT NOT NULL DEFAULT 0,
			total_cost DECIMAL(14, 4) NOT NULL DEFAULT 0,
			governance_violations BIGINT NOT NULL DEFAULT 0,
			concurrent_peak INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(entity_id, period, period_key)
		);

		-- Compliance requirements
		CREATE TABLE IF NOT EXISTS compliance_requirements (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			framework VARCHAR(50) NOT NULL,
			requirement_id VARCHAR(100) NOT NULL,
			category VARCHAR(100) NOT NULL DEFAULT '',
			risk_level VARCHAR(20) NOT NULL,
			mandatory BOOLEAN NOT NULL DEFAULT false,
			review_cycle VARCHAR(50) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_by UUID NOT NULL,
			UNIQUE(framework, requirement_id)
		);

		-- Audit entries
		CREATE TABLE IF NOT EXISTS audit_entries (
			id UUID PRIMARY KEY,
			actor_id UUID NOT NULL,
			action VARCHAR(100) NOT NULL,
			resource_type VARCHAR(100) NOT NULL,
			resource_id VARCHAR(255) NOT NULL DEFAULT '',
			outcome VARCHAR(10) NOT NULL,
			reason VARCHAR(64) NOT NULL DEFAULT '',
			impact VARCHAR(20) NOT NULL,
			tier VARCHAR(20) NOT NULL DEFAULT '',
			request_id VARCHAR(255) NOT NULL DEFAULT '',
			ip_address VARCHAR(45) NOT NULL DEFAULT '',
			details JSONB,
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Rate limit events: one row per counted request, per scope
		CREATE TABLE IF NOT EXISTS rate_limit_events (
			id BIGSERIAL PRIMARY KEY,
			scope_key VARCHAR(255) NOT NULL,
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Indexes for performance
		CREATE INDEX IF NOT EXISTS idx_access_policies_resource_type ON access_policies(resource_type);
		CREATE INDEX IF NOT EXISTS idx_access_policies_status ON access_policies(status);
		CREATE INDEX IF NOT EXISTS idx_access_policies_user_id ON access_policies(user_id);
		CREATE INDEX IF NOT EXISTS idx_access_policies_team_id ON access_policies(team_id);

		CREATE INDEX IF NOT EXISTS idx_approval_cases_status ON approval_cases(status);
		CREATE INDEX IF NOT EXISTS idx_approval_cases_requester ON approval_cases(requester_id);
		CREATE INDEX IF NOT EXISTS idx_approval_cases_deadline ON approval_cases(deadline);

		CREATE INDEX IF NOT EXISTS idx_usage_metrics_entity ON usage_metrics(entity_id, period, period_key);

		CREATE INDEX IF NOT EXISTS idx_audit_entries_actor ON audit_entries(actor_id);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_timestamp ON audit_entries(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_outcome ON audit_entries(outcome);
		CREATE INDEX IF NOT EXISTS idx_audit_entries_impact ON audit_entries(impact);

		CREATE INDEX IF NOT EXISTS idx_rate_limit_events_scope_time ON rate_limit_events(scope_key, timestamp);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
