package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/repositories"
	"github.com/upb/governance-engine/services"
)

// ApprovalRepository implements the repositories.ApprovalRepository interface
type ApprovalRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval case repository
func NewApprovalRepository(db *DB, logger *zap.Logger) repositories.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

const approvalColumns = `
	id, request_type, resource_type, resource_id, requester_id, approvers,
	current_index, status, justification, impact_level, risk_assessment, tier,
	estimated_cost, reservation_id, deadline, history, created_at, updated_at
`

// Create creates a new approval case
func (r *ApprovalRepository) Create(ctx context.Context, approvalCase *models.ApprovalCase) error {
	query := `
		INSERT INTO approval_cases (` + approvalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	approvers, err := marshalJSON(approvalCase.Approvers)
	if err != nil {
		return err
	}
	history, err := marshalJSON(approvalCase.History)
	if err != nil {
		return err
	}

	executor := GetExecutor(ctx, r.db)
	_, err = executor.ExecContext(ctx, query,
		approvalCase.ID,
		approvalCase.RequestType,
		approvalCase.ResourceType,
		approvalCase.ResourceID,
		approvalCase.RequesterID,
		approvers,
		approvalCase.CurrentIndex,
		approvalCase.Status,
		approvalCase.Justification,
		approvalCase.ImpactLevel,
		approvalCase.RiskAssessment,
		approvalCase.Tier,
		approvalCase.EstimatedCost,
		approvalCase.ReservationID,
		approvalCase.Deadline,
		history,
		approvalCase.CreatedAt,
		approvalCase.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create approval case: %w", err)
	}

	r.logger.Debug("approval case created", zap.String("id", approvalCase.ID.String()))
	return nil
}

// GetByID retrieves a case by ID
func (r *ApprovalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ApprovalCase, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_cases WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	row := executor.QueryRowContext(ctx, query, id)

	approvalCase, err := scanApprovalCase(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrApprovalNotFound.WithDetail("case_id", id.String())
		}
		return nil, fmt.Errorf("failed to get approval case: %w", err)
	}

	return approvalCase, nil
}

// Update persists the case's current state and history
func (r *ApprovalRepository) Update(ctx context.Context, approvalCase *models.ApprovalCase) error {
	query := `
		UPDATE approval_cases
		SET approvers = $2,
		    current_index = $3,
		    status = $4,
		    history = $5,
		    updated_at = $6
		WHERE id = $1
	`

	approvers, err := marshalJSON(approvalCase.Approvers)
	if err != nil {
		return err
	}
	history, err := marshalJSON(approvalCase.History)
	if err != nil {
		return err
	}

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		approvalCase.ID,
		approvers,
		approvalCase.CurrentIndex,
		approvalCase.Status,
		history,
		approvalCase.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update approval case: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return services.ErrApprovalNotFound.WithDetail("case_id", approvalCase.ID.String())
	}

	r.logger.Debug("approval case updated",
		zap.String("id", approvalCase.ID.String()),
		zap.String("status", string(approvalCase.Status)))
	return nil
}

// ListByStatus retrieves cases in a state, oldest first
func (r *ApprovalRepository) ListByStatus(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]*models.ApprovalCase, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_cases
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`

	return r.queryCases(ctx, query, status, limit, offset)
}

// ListByRequester retrieves a requester's cases, newest first
func (r *ApprovalRepository) ListByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]*models.ApprovalCase, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_cases
		WHERE requester_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	return r.queryCases(ctx, query, requesterID, limit, offset)
}

// ListOpenExpiredBefore retrieves non-terminal cases whose deadline has
// passed, oldest first
func (r *ApprovalRepository) ListOpenExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.ApprovalCase, error) {
	query := `
		SELECT ` + approvalColumns + `
		FROM approval_cases
		WHERE status IN ($1, $2)
			AND deadline < $3
		ORDER BY created_at ASC
		LIMIT $4
	`

	return r.queryCases(ctx, query,
		models.ApprovalStatusPending, models.ApprovalStatusUnderReview, cutoff, limit)
}

// WithTx returns a new repository instance bound to the transaction
func (r *ApprovalRepository) WithTx(tx repositories.Transaction) repositories.ApprovalRepository {
	return &ApprovalRepository{
		db:     r.db,
		logger: r.logger,
	}
}

// queryCases is a helper method to query multiple approval cases
func (r *ApprovalRepository) queryCases(ctx context.Context, query string, args ...interface{}) ([]*models.ApprovalCase, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval cases: %w", err)
	}
	defer rows.Close()

	var cases []*models.ApprovalCase
	for rows.Next() {
		approvalCase, err := scanApprovalCase(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval case: %w", err)
		}
		cases = append(cases, approvalCase)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval case rows: %w", err)
	}

	return cases, nil
}

// scanApprovalCase scans one approval case row
func scanApprovalCase(scan func(dest ...interface{}) error) (*models.ApprovalCase, error) {
	approvalCase := &models.ApprovalCase{}
	var approvers, history []byte

	err := scan(
		&approvalCase.ID,
		&approvalCase.RequestType,
		&approvalCase.ResourceType,
		&approvalCase.ResourceID,
		&approvalCase.RequesterID,
		&approvers,
		&approvalCase.CurrentIndex,
		&approvalCase.Status,
		&approvalCase.Justification,
		&approvalCase.ImpactLevel,
		&approvalCase.RiskAssessment,
		&approvalCase.Tier,
		&approvalCase.EstimatedCost,
		&approvalCase.ReservationID,
		&approvalCase.Deadline,
		&history,
		&approvalCase.CreatedAt,
		&approvalCase.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSON(approvers, &approvalCase.Approvers); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(history, &approvalCase.History); err != nil {
		return nil, err
	}

	return approvalCase, nil
}
