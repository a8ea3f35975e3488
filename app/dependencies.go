package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/governance-engine/auth"
	"github.com/upb/governance-engine/config"
	"github.com/upb/governance-engine/middleware"
	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/repositories"
	"github.com/upb/governance-engine/repositories/postgres"
	"github.com/upb/governance-engine/services/approval"
	"github.com/upb/governance-engine/services/audit"
	"github.com/upb/governance-engine/services/catalog"
	"github.com/upb/governance-engine/services/compliance"
	"github.com/upb/governance-engine/services/evaluator"
	"github.com/upb/governance-engine/services/governor"
	"github.com/upb/governance-engine/services/ratelimit"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository factory
	RepoFactory *postgres.RepositoryFactory
	Repos       *repositories.Repositories
	TxManager   repositories.TransactionManager

	// Services
	Audit      *audit.Service
	Catalog    *catalog.Service
	RateLimit  *ratelimit.Service
	Governor   *governor.Service
	Compliance *compliance.Service
	Approvals  *approval.Service
	Evaluator  *evaluator.Service

	// Auth
	AuthMiddleware *middleware.AuthMiddleware

	policyCache *catalog.PolicyCache

	// Background worker lifecycle. cacheStop stops the policy cache
	// cleanup worker; workersCancel stops the sweep and retention workers.
	cacheStop     chan struct{}
	workersCancel context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initServices(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	deps.initAuth(cfg)
	deps.startWorkers(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection, schema, and repositories
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := d.DB.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.Repos = factory.NewRepositories()
	d.TxManager = factory.GetTransactionManager()

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initServices wires the engine's service graph. Order matters: the audit
// pipeline must exist before the evaluator, and the governor before the
// approval service (rejected cases release their reservation).
func (d *Dependencies) initServices(cfg *config.Config) error {
	d.Audit = audit.NewService(d.Repos.Audit, d.Logger, audit.Config{
		BufferSize:  cfg.Engine.AuditBufferSize,
		WorkerCount: cfg.Engine.AuditWorkerCount,
	})
	if err := d.Audit.Start(); err != nil {
		return fmt.Errorf("failed to start audit pipeline: %w", err)
	}

	d.policyCache = catalog.NewPolicyCache(cfg.Engine.PolicyCacheSize, cfg.Engine.PolicyCacheTTL)
	d.Catalog = catalog.NewService(d.Repos.Configs, d.Repos.Policies, d.policyCache, d.Logger)

	d.RateLimit = ratelimit.NewService(d.DB.DB, d.Logger)
	d.Governor = governor.NewService(
		d.Catalog, d.Repos.Metrics, d.RateLimit, cfg.Engine.ReservationTTL, d.Logger)

	d.Compliance = compliance.NewService(
		d.Repos.Audit, d.Repos.Requirements, cfg.Engine.ComplianceWindowDays, d.Logger)

	directory := approval.NewStaticDirectory(
		cfg.Engine.StandardApprovers, cfg.Engine.PrivilegedApprovers)
	d.Approvals = approval.NewService(d.Repos.Approvals, directory, d.Governor, d.Logger)

	d.Evaluator = evaluator.NewService(
		d.Catalog,
		d.Governor,
		d.Approvals,
		d.Compliance,
		d.Audit,
		cfg.Engine.PublicOperations,
		d.Logger,
	)

	d.Logger.Info("services initialized")
	return nil
}

// initAuth wires the token validator into the auth middleware
func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("JWT secret not configured, protected routes will reject all tokens")
		d.AuthMiddleware = middleware.NewAuthMiddleware(&rejectAllValidator{}, d.Logger)
		return
	}

	validator := auth.NewValidator(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("auth middleware initialized")
}

// startWorkers launches the background maintenance workers
func (d *Dependencies) startWorkers(cfg *config.Config) {
	workersCtx, cancel := context.WithCancel(context.Background())
	d.workersCancel = cancel
	d.cacheStop = make(chan struct{})

	go d.policyCache.StartCleanupWorker(cfg.Engine.PolicyCacheTTL, d.cacheStop)
	go d.Governor.StartSweepWorker(workersCtx, cfg.Engine.ReservationSweepEvery)
	go d.Approvals.StartSweepWorker(workersCtx, cfg.Engine.ApprovalSweepEvery)
	go d.Audit.StartRetentionWorker(workersCtx, cfg.Engine.AuditRetentionDays)
	go d.RateLimit.StartCleanupWorker(workersCtx, time.Hour, 24*time.Hour)

	d.Logger.Info("background workers started",
		zap.Duration("reservation_sweep", cfg.Engine.ReservationSweepEvery),
		zap.Duration("approval_sweep", cfg.Engine.ApprovalSweepEvery),
		zap.Int("audit_retention_days", cfg.Engine.AuditRetentionDays))
}

// rejectAllValidator rejects all tokens (used when no JWT secret is configured)
type rejectAllValidator struct{}

func (*rejectAllValidator) ValidateToken(context.Context, string) (*models.Actor, error) {
	return nil, fmt.Errorf("authentication not configured")
}

// Close gracefully shuts down all dependencies. Workers stop first, then
// the audit pipeline drains, then the database closes.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.workersCancel != nil {
		d.workersCancel()
	}
	if d.cacheStop != nil {
		close(d.cacheStop)
	}

	if d.Audit != nil {
		if err := d.Audit.Stop(d.Config.Server.ShutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit pipeline: %w", err))
		} else {
			d.Logger.Info("audit pipeline drained")
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
