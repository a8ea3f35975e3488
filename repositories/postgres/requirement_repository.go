package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/repositories"
	"github.com/upb/governance-engine/services"
)

// RequirementRepository implements the repositories.RequirementRepository interface
type RequirementRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRequirementRepository creates a new compliance requirement repository
func NewRequirementRepository(db *DB, logger *zap.Logger) repositories.RequirementRepository {
	return &RequirementRepository{
		db:     db,
		logger: logger,
	}
}

const requirementColumns = `
	id, name, description, framework, requirement_id, category, risk_level,
	mandatory, review_cycle, created_at, created_by
`

// Create creates a new requirement
func (r *RequirementRepository) Create(ctx context.Context, requirement *models.ComplianceRequirement) error {
	query := `
		INSERT INTO compliance_requirements (` + requirementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		requirement.ID,
		requirement.Name,
		requirement.Description,
		requirement.Framework,
		requirement.RequirementID,
		requirement.Category,
		requirement.RiskLevel,
		requirement.Mandatory,
		requirement.ReviewCycle,
		requirement.CreatedAt,
		requirement.CreatedBy,
	)

	if err != nil {
		return fmt.Errorf("failed to create compliance requirement: %w", err)
	}

	r.logger.Debug("compliance requirement created", zap.String("id", requirement.ID.String()))
	return nil
}

// GetByID retrieves a requirement by ID
func (r *RequirementRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ComplianceRequirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM compliance_requirements WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	requirement := &models.ComplianceRequirement{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&requirement.ID,
		&requirement.Name,
		&requirement.Description,
		&requirement.Framework,
		&requirement.RequirementID,
		&requirement.Category,
		&requirement.RiskLevel,
		&requirement.Mandatory,
		&requirement.ReviewCycle,
		&requirement.CreatedAt,
		&requirement.CreatedBy,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrRequirementNotFound.WithDetail("requirement_id", id.String())
		}
		return nil, fmt.Errorf("failed to get compliance requirement: %w", err)
	}

	return requirement, nil
}

// List retrieves all requirements
func (r *RequirementRepository) List(ctx context.Context) ([]*models.ComplianceRequirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM compliance_requirements ORDER BY framework, requirement_id`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query compliance requirements: %w", err)
	}
	defer rows.Close()

	var requirements []*models.ComplianceRequirement
	for rows.Next() {
		requirement := &models.ComplianceRequirement{}
		err := rows.Scan(
			&requirement.ID,
			&requirement.Name,
			&requirement.Description,
			&requirement.Framework,
			&requirement.RequirementID,
			&requirement.Category,
			&requirement.RiskLevel,
			&requirement.Mandatory,
			&requirement.ReviewCycle,
			&requirement.CreatedAt,
			&requirement.CreatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan compliance requirement: %w", err)
		}
		requirements = append(requirements, requirement)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating compliance requirement rows: %w", err)
	}

	return requirements, nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *RequirementRepository) WithTx(tx repositories.Transaction) repositories.RequirementRepository {
	return &RequirementRepository{
		db:     r.db,
		logger: r.logger,
	}
}
