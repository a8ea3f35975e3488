package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/upb/governance-engine/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// ConfigRepository handles governance configuration data operations
type ConfigRepository interface {
	// GetActive retrieves the active config for a scope
	GetActive(ctx context.Context, scope string) (*models.GovernanceConfig, error)

	// Upsert creates or replaces the config for its scope
	Upsert(ctx context.Context, config *models.GovernanceConfig) error

	// List retrieves all configs
	List(ctx context.Context) ([]*models.GovernanceConfig, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) ConfigRepository
}

// PolicyRepository handles access-control policy data operations
type PolicyRepository interface {
	// Create creates a new policy
	Create(ctx context.Context, policy *models.AccessControlPolicy) error

	// GetByID retrieves a policy by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AccessControlPolicy, error)

	// FindActive retrieves active policies whose scope could match the query
	// and whose effective/expiry window contains now. Scope matching is
	// re-checked in memory; the query narrows the scan.
	FindActive(ctx context.Context, query models.PolicyQuery, now time.Time) ([]*models.AccessControlPolicy, error)

	// List retrieves policies with pagination
	List(ctx context.Context, limit, offset int) ([]*models.AccessControlPolicy, error)

	// Update updates a policy
	Update(ctx context.Context, policy *models.AccessControlPolicy) error

	// Delete deletes a policy
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) PolicyRepository
}

// ApprovalRepository handles approval case data operations
type ApprovalRepository interface {
	// Create creates a new approval case
	Create(ctx context.Context, approvalCase *models.ApprovalCase) error

	// GetByID retrieves a case by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.ApprovalCase, error)

	// Update persists the case's current state and history
	Update(ctx context.Context, approvalCase *models.ApprovalCase) error

	// ListByStatus retrieves cases in a state, oldest first
	ListByStatus(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]*models.ApprovalCase, error)

	// ListByRequester retrieves a requester's cases, newest first
	ListByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]*models.ApprovalCase, error)

	// ListOpenExpiredBefore retrieves non-terminal cases whose deadline has
	// passed, oldest first
	ListOpenExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.ApprovalCase, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) ApprovalRepository
}

// MetricsRepository handles persisted usage metrics
type MetricsRepository interface {
	// Get retrieves metrics for an entity and period key
	Get(ctx context.Context, entityID string, period models.UsagePeriod, periodKey string) (*models.UsageMetrics, error)

	// Upsert accumulates the deltas into the entity's period row
	Upsert(ctx context.Context, metrics *models.UsageMetrics) error

	// ListForEntity retrieves an entity's rows for a period granularity,
	// newest first
	ListForEntity(ctx context.Context, entityID string, period models.UsagePeriod, limit int) ([]*models.UsageMetrics, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) MetricsRepository
}

// RequirementRepository handles compliance requirement data operations
type RequirementRepository interface {
	// Create creates a new requirement
	Create(ctx context.Context, requirement *models.ComplianceRequirement) error

	// GetByID retrieves a requirement by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.ComplianceRequirement, error)

	// List retrieves all requirements
	List(ctx context.Context) ([]*models.ComplianceRequirement, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) RequirementRepository
}

// AuditRepository handles audit entry data operations
type AuditRepository interface {
	// Create persists an audit entry
	Create(ctx context.Context, entry *models.AuditEntry) error

	// GetByTimeRange retrieves entries in a time window, newest first
	GetByTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]*models.AuditEntry, error)

	// GetByActor retrieves an actor's entries in a time window, newest first
	GetByActor(ctx context.Context, actorID uuid.UUID, start, end time.Time, limit int) ([]*models.AuditEntry, error)

	// DeleteOlderThan removes entries past the retention horizon and returns
	// how many were removed
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) AuditRepository
}

// Repositories bundles all repository implementations
type Repositories struct {
	Configs      ConfigRepository
	Policies     PolicyRepository
	Approvals    ApprovalRepository
	Metrics      MetricsRepository
	Requirements RequirementRepository
	Audit        AuditRepository
}
