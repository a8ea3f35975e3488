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

// MetricsRepository implements the repositories.MetricsRepository interface
type MetricsRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMetricsRepository creates a new usage metrics repository
func NewMetricsRepository(db *DB, logger *zap.Logger) repositories.MetricsRepository {
	return &MetricsRepository{
		db:     db,
		logger: logger,
	}
}

const metricsColumns = `
	id, entity_id, period, period_key, total_requests, successful_requests,
	failed_requests, total_cost, governance_violations, concurrent_peak, updated_at
`

// Get retrieves metrics for an entity and period key
func (r *MetricsRepository) Get(ctx context.Context, entityID string, period models.UsagePeriod, periodKey string) (*models.UsageMetrics, error) {
	query := `
		SELECT ` + metricsColumns + `
		FROM usage_metrics
		WHERE entity_id = $1 AND period = $2 AND period_key = $3
	`

	executor := GetExecutor(ctx, r.db)
	row := executor.QueryRowContext(ctx, query, entityID, period, periodKey)

	metrics, err := scanMetrics(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrMetricsNotFound.
				WithDetail("entity_id", entityID).
				WithDetail("period_key", periodKey)
		}
		return nil, fmt.Errorf("failed to get usage metrics: %w", err)
	}

	return metrics, nil
}

// Upsert accumulates the deltas into the entity's period row
func (r *MetricsRepository) Upsert(ctx context.Context, metrics *models.UsageMetrics) error {
	query := `
		INSERT INTO usage_metrics (` + metricsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (entity_id, period, period_key) DO UPDATE SET
			total_requests = usage_metrics.total_requests + EXCLUDED.total_requests,
			successful_requests = usage_metrics.successful_requests + EXCLUDED.successful_requests,
			failed_requests = usage_metrics.failed_requests + EXCLUDED.failed_requests,
			total_cost = usage_metrics.total_cost + EXCLUDED.total_cost,
			governance_violations = usage_metrics.governance_violations + EXCLUDED.governance_violations,
			concurrent_peak = GREATEST(usage_metrics.concurrent_peak, EXCLUDED.concurrent_peak),
			updated_at = EXCLUDED.updated_at
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		metrics.ID,
		metrics.EntityID,
		metrics.Period,
		metrics.PeriodKey,
		metrics.TotalRequests,
		metrics.SuccessfulRequests,
		metrics.FailedRequests,
		metrics.TotalCost,
		metrics.GovernanceViolations,
		metrics.ConcurrentPeak,
		metrics.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert usage metrics: %w", err)
	}

	return nil
}

// ListForEntity retrieves an entity's rows for a period granularity,
// newest first
func (r *MetricsRepository) ListForEntity(ctx context.Context, entityID string, period models.UsagePeriod, limit int) ([]*models.UsageMetrics, error) {
	query := `
		SELECT ` + metricsColumns + `
		FROM usage_metrics
		WHERE entity_id = $1 AND period = $2
		ORDER BY period_key DESC
		LIMIT $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, entityID, period, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage metrics: %w", err)
	}
	defer rows.Close()

	var results []*models.UsageMetrics
	for rows.Next() {
		metrics, err := scanMetrics(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage metrics: %w", err)
		}
		results = append(results, metrics)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage metrics rows: %w", err)
	}

	return results, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *MetricsRepository) WithTx(tx repositories.Transaction) repositories.MetricsRepository {
	return &MetricsRepository{
		db:     r.db,
		logger: r.logger,
	}
}

// scanMetrics scans one usage metrics row
func scanMetrics(scan func(dest ...interface{}) error) (*models.UsageMetrics, error) {
	metrics := &models.UsageMetrics{}

	err := scan(
		&metrics.ID,
		&metrics.EntityID,
		&metrics.Period,
		&metrics.PeriodKey,
		&metrics.TotalRequests,
		&metrics.SuccessfulRequests,
		&metrics.FailedRequests,
		&metrics.TotalCost,
		&metrics.GovernanceViolations,
		&metrics.ConcurrentPeak,
		&metrics.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return metrics, nil
}
