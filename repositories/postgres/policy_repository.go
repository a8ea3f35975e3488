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

// PolicyRepository implements the repositories.PolicyRepository interface
type PolicyRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *DB, logger *zap.Logger) repositories.PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

const policyColumns = `
	id, name, description, resource_type, resource_id, user_id, team_id, department,
	permissions, denied_permissions, conditions, required_tier, min_compliance_score,
	requires_approval, status, effective_at, expires_at, created_at, updated_at, created_by
`

// Create creates a new policy
func (r *PolicyRepository) Create(ctx context.Context, policy *models.AccessControlPolicy) error {
	query := `
		INSERT INTO access_policies (` + policyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	args, err := policyArgs(policy)
	if err != nil {
		return err
	}

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	r.logger.Debug("policy created", zap.String("id", policy.ID.String()))
	return nil
}

// GetByID retrieves a policy by ID
func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AccessControlPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM access_policies WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	row := executor.QueryRowContext(ctx, query, id)

	policy, err := scanPolicy(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, services.ErrPolicyNotFound.WithDetail("policy_id", id.String())
		}
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	return policy, nil
}

// FindActive retrieves active policies whose scope could match the query
// and whose effective/expiry window contains now
func (r *PolicyRepository) FindActive(ctx context.Context, q models.PolicyQuery, now time.Time) ([]*models.AccessControlPolicy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM access_policies
		WHERE status = $1
			AND resource_type = $2
			AND effective_at <= $3
			AND (expires_at IS NULL OR expires_at > $3)
			AND (resource_id = '' OR resource_id = $4)
			AND (team_id = '' OR team_id = $5)
			AND (department = '' OR department = $6)
	`

	args := []interface{}{models.PolicyStatusActive, q.ResourceType, now, q.ResourceID, q.TeamID, q.Department}

	if q.UserID != nil {
		query += ` AND (user_id IS NULL OR user_id = $7)`
		args = append(args, *q.UserID)
	} else {
		query += ` AND user_id IS NULL`
	}

	query += ` ORDER BY created_at DESC`

	return r.queryPolicies(ctx, query, args...)
}

// List retrieves policies with pagination
func (r *PolicyRepository) List(ctx context.Context, limit, offset int) ([]*models.AccessControlPolicy, error) {
	query := `
		SELECT ` + policyColumns + `
		FROM access_policies
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	return r.queryPolicies(ctx, query, limit, offset)
}

// Update updates a policy
func (r *PolicyRepository) Update(ctx context.Context, policy *models.AccessControlPolicy) error {
	query := `
		UPDATE access_policies
		SET name = $2,
		    description = $3,
		    resource_type = $4,
		    resource_id = $5,
		    user_id = $6,
		    team_id = $7,
		    department = $8,
		    permissions = $9,
		    denied_permissions = $10,
		    conditions = $11,
		    required_tier = $12,
		    min_compliance_score = $13,
		    requires_approval = $14,
		    status = $15,
		    effective_at = $16,
		    expires_at = $17,
		    updated_at = $18
		WHERE id = $1
	`

	permissions, err := marshalJSON(policy.Permissions)
	if err != nil {
		return err
	}
	denied, err := marshalJSON(policy.DeniedPermissions)
	if err != nil {
		return err
	}
	conditions, err := marshalJSON(policy.Conditions)
	if err != nil {
		return err
	}

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		policy.ID,
		policy.Name,
		policy.Description,
		policy.ResourceType,
		policy.ResourceID,
		policy.UserID,
		policy.TeamID,
		policy.Department,
		permissions,
		denied,
		conditions,
		policy.RequiredTier,
		policy.MinComplianceScore,
		policy.RequiresApproval,
		policy.Status,
		policy.EffectiveAt,
		policy.ExpiresAt,
		policy.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return services.ErrPolicyNotFound.WithDetail("policy_id", policy.ID.String())
	}

	r.logger.Debug("policy updated", zap.String("id", policy.ID.String()))
	return nil
}

// Delete deletes a policy
func (r *PolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM access_policies WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return services.ErrPolicyNotFound.WithDetail("policy_id", id.String())
	}

	r.logger.Debug("policy deleted", zap.String("id", id.String()))
	return nil
}

// WithTx returns a new repository instance bound to the transaction
func (r *PolicyRepository) WithTx(tx repositories.Transaction) repositories.PolicyRepository {
	return &PolicyRepository{
		db:     r.db,
		logger: r.logger,
	}
}

// queryPolicies is a helper method to query multiple policies
func (r *PolicyRepository) queryPolicies(ctx context.Context, query string, args ...interface{}) ([]*models.AccessControlPolicy, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []*models.AccessControlPolicy
	for rows.Next() {
		policy, err := scanPolicy(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, policy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy rows: %w", err)
	}

	return policies, nil
}

// policyArgs builds the insert argument list for a policy
func policyArgs(policy *models.AccessControlPolicy) ([]interface{}, error) {
	permissions, err := marshalJSON(policy.Permissions)
	if err != nil {
		return nil, err
	}
	denied, err := marshalJSON(policy.DeniedPermissions)
	if err != nil {
		return nil, err
	}
	conditions, err := marshalJSON(policy.Conditions)
	if err != nil {
		return nil, err
	}

	return []interface{}{
		policy.ID,
		policy.Name,
		policy.Description,
		policy.ResourceType,
		policy.ResourceID,
		policy.UserID,
		policy.TeamID,
		policy.Department,
		permissions,
		denied,
		conditions,
		policy.RequiredTier,
		policy.MinComplianceScore,
		policy.RequiresApproval,
		policy.Status,
		policy.EffectiveAt,
		policy.ExpiresAt,
		policy.CreatedAt,
		policy.UpdatedAt,
		policy.CreatedBy,
	}, nil
}

// scanPolicy scans one policy row
func scanPolicy(scan func(dest ...interface{}) error) (*models.AccessControlPolicy, error) {
	policy := &models.AccessControlPolicy{}
	var permissions, denied, conditions []byte
	var expiresAt sql.NullTime

	err := scan(
		&policy.ID,
		&policy.Name,
		&policy.Description,
		&policy.ResourceType,
		&policy.ResourceID,
		&policy.UserID,
		&policy.TeamID,
		&policy.Department,
		&permissions,
		&denied,
		&conditions,
		&policy.RequiredTier,
		&policy.MinComplianceScore,
		&policy.RequiresApproval,
		&policy.Status,
		&policy.EffectiveAt,
		&expiresAt,
		&policy.CreatedAt,
		&policy.UpdatedAt,
		&policy.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	policy.ExpiresAt = timePtr(expiresAt)

	if err := unmarshalJSON(permissions, &policy.Permissions); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(denied, &policy.DeniedPermissions); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(conditions, &policy.Conditions); err != nil {
		return nil, err
	}

	return policy, nil
}
