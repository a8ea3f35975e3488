package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/repositories"
)

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit entry repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

const auditColumns = `
	id, actor_id, action, resource_type, resource_id, outcome, reason,
	impact, tier, request_id, ip_address, details, timestamp
`

// Create persists an audit entry
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	details, err := marshalJSON(entry.Details)
	if err != nil {
		return err
	}

	executor := GetExecutor(ctx, r.db)
	_, err = executor.ExecContext(ctx, query,
		entry.ID,
		entry.ActorID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.Outcome,
		entry.Reason,
		entry.Impact,
		entry.Tier,
		entry.RequestID,
		entry.IPAddress,
		details,
		entry.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves entries in a time window, newest first
func (r *AuditRepository) GetByTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]*models.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_entries
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY timestamp DESC
		LIMIT $3 OFFSET $4
	`

	return r.queryEntries(ctx, query, start, end, limit, offset)
}

// GetByActor retrieves an actor's entries in a time window, newest first
func (r *AuditRepository) GetByActor(ctx context.Context, actorID uuid.UUID, start, end time.Time, limit int) ([]*models.AuditEntry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_entries
		WHERE actor_id = $1 AND timestamp >= $2 AND timestamp < $3
		ORDER BY timestamp DESC
		LIMIT $4
	`

	return r.queryEntries(ctx, query, actorID, start, end, limit)
}

// DeleteOlderThan removes entries past the retention horizon and returns
// how many were removed
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM audit_entries WHERE timestamp < $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit entries: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if removed > 0 {
		r.logger.Debug("audit entries removed",
			zap.Int64("count", removed),
			zap.Time("cutoff", cutoff))
	}

	return removed, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *AuditRepository) WithTx(tx repositories.Transaction) repositories.AuditRepository {
	return &AuditRepository{
		db:     r.db,
		logger: r.logger,
	}
}

// queryEntries is a helper method to query multiple audit entries
func (r *AuditRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*models.AuditEntry, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		entry := &models.AuditEntry{}
		var details []byte

		err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.Action,
			&entry.ResourceType,
			&entry.ResourceID,
			&entry.Outcome,
			&entry.Reason,
			&entry.Impact,
			&entry.Tier,
			&entry.RequestID,
			&entry.IPAddress,
			&details,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if err := unmarshalJSON(details, &entry.Details); err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entry rows: %w", err)
	}

	return entries, nil
}
