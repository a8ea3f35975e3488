package governor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/repositories"
	"github.com/upb/governance-engine/services"
)

// Reason codes for governor decisions
const (
	ReasonConcurrencyLimit = "CONCURRENCY_LIMIT"
	ReasonQuotaExceeded    = "QUOTA_EXCEEDED"
	ReasonRateLimited      = "RATE_LIMITED"
)

// ConfigSource resolves the governance config for a scope
type ConfigSource interface {
	ResolveConfig(ctx context.Context, scope string) (*models.GovernanceConfig, error)
}

// RateLimiter enforces a scope's request rate over a sliding window
type RateLimiter interface {
	Check(ctx context.Context, scopeKey string, limit int, window time.Duration) (bool, time.Time, error)
	Record(ctx context.Context, scopeKey string, at time.Time) error
}

// CheckResult is the outcome of a reservation attempt
type CheckResult struct {
	Allowed          bool    `json:"allowed"`
	RequiresApproval bool    `json:"requires_approval"`
	Reason           string  `json:"reason,omitempty"`
	ReservationID    string  `json:"reservation_id,omitempty"`
	EstimatedCost    float64 `json:"estimated_cost"`
}

// reservationState tracks a reservation through its lifecycle
type reservationState int

const (
	reservationHeld reservationState = iota
	reservationCommitted
	reservationReleased
)

// reservation is one in-flight hold against a scope's counters
type reservation struct {
	id        string
	scopeKey  string
	actorID   uuid.UUID
	cost      float64
	state     reservationState
	createdAt time.Time
}

// scopeCounters holds the live window counters for one scope.
// All fields are guarded by mu.
type scopeCounters struct {
	mu sync.Mutex

	dayKey        string
	dailyRequests int64

	monthKey    string
	monthlyCost float64

	inFlight int
	peak     int
}

// rollWindows resets counters whose period has ended (must hold mu)
func (sc *scopeCounters) rollWindows(now time.Time) {
	dayKey := models.PeriodDaily.Key(now)
	if sc.dayKey != dayKey {
		sc.dayKey = dayKey
		sc.dailyRequests = 0
	}
	monthKey := models.PeriodMonthly.Key(now)
	if sc.monthKey != monthKey {
		sc.monthKey = monthKey
		sc.monthlyCost = 0
	}
}

// Service enforces usage and cost limits through a two-phase reservation
// protocol: CheckAndReserve holds capacity, Commit reconciles it with the
// actual cost, Release rolls it back.
type Service struct {
	configs ConfigSource
	metrics repositories.MetricsRepository
	limiter RateLimiter
	logger  *zap.Logger

	mu           sync.Mutex
	scopes       map[string]*scopeCounters
	reservations map[string]*reservation

	reservationTTL time.Duration
	sweepRunning   sync.Mutex
}

// NewService creates a new governor. reservationTTL bounds how long a
// reservation may stay held before the sweep reclaims it.
func NewService(
	configs ConfigSource,
	metrics repositories.MetricsRepository,
	limiter RateLimiter,
	reservationTTL time.Duration,
	logger *zap.Logger,
) *Service {
	if reservationTTL <= 0 {
		reservationTTL = 15 * time.Minute
	}
	return &Service{
		configs:        configs,
		metrics:        metrics,
		limiter:        limiter,
		logger:         logger,
		scopes:         make(map[string]*scopeCounters),
		reservations:   make(map[string]*reservation),
		reservationTTL: reservationTTL,
	}
}

// scope returns the counters for a scope key, creating them on first use
func (s *Service) scope(key string) *scopeCounters {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scopes[key]
	if !ok {
		sc = &scopeCounters{}
		s.scopes[key] = sc
	}
	return sc
}

// CheckAndReserve checks the actor's scope against its governance limits
// and, when allowed, atomically reserves capacity for the action.
// A denied check reserves nothing.
func (s *Service) CheckAndReserve(ctx context.Context, actor *models.Actor, estimatedCost float64) (*CheckResult, error) {
	config, err := s.configs.ResolveConfig(ctx, actor.ScopeKey())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := &CheckResult{EstimatedCost: estimatedCost}

	// Rate limit check hits the database, so it runs before taking the
	// scope lock
	if s.limiter != nil && config.RateLimitRequests > 0 && config.RateLimitWindowSeconds > 0 {
		window := time.Duration(config.RateLimitWindowSeconds) * time.Second
		allowed, retryAt, err := s.limiter.Check(ctx, actor.ScopeKey(), config.RateLimitRequests, window)
		if err != nil {
			return nil, services.WrapInternal("rate limit check failed", err)
		}
		if !allowed {
			result.Reason = ReasonRateLimited
			s.logger.Warn("rate limit reached",
				zap.String("scope", actor.ScopeKey()),
				zap.Int("limit", config.RateLimitRequests),
				zap.Time("retry_at", retryAt))
			return result, nil
		}
	}

	sc := s.scope(actor.ScopeKey())

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.rollWindows(now)

	if config.ConcurrentRequestLimit > 0 && sc.inFlight+1 > config.ConcurrentRequestLimit {
		result.Reason = ReasonConcurrencyLimit
		s.logger.Warn("concurrency limit reached",
			zap.String("scope", actor.ScopeKey()),
			zap.Int("in_flight", sc.inFlight),
			zap.Int("limit", config.ConcurrentRequestLimit))
		return result, nil
	}

	if config.DailyRequestLimit > 0 && sc.dailyRequests+1 > int64(config.DailyRequestLimit) {
		result.Reason = ReasonQuotaExceeded
		s.logger.Warn("daily request limit reached",
			zap.String("scope", actor.ScopeKey()),
			zap.Int64("daily_requests", sc.dailyRequests),
			zap.Int("limit", config.DailyRequestLimit))
		return result, nil
	}

	if config.MonthlyCostLimit > 0 && sc.monthlyCost+estimatedCost > config.MonthlyCostLimit {
		result.Reason = ReasonQuotaExceeded
		s.logger.Warn("monthly cost limit reached",
			zap.String("scope", actor.ScopeKey()),
			zap.Float64("monthly_cost", sc.monthlyCost),
			zap.Float64("estimated_cost", estimatedCost),
			zap.Float64("limit", config.MonthlyCostLimit))
		return result, nil
	}

	// Above the auto-approval limit the action still reserves capacity but
	// must clear the approval workflow first. Admin and above skip that.
	if estimatedCost > config.AutoApprovalLimit && !actor.AccessLevel.BypassesPermissionChecks() {
		result.RequiresApproval = true
	}

	sc.dailyRequests++
	sc.monthlyCost += estimatedCost
	sc.inFlight++
	if sc.inFlight > sc.peak {
		sc.peak = sc.inFlight
	}

	res := &reservation{
		id:        uuid.New().String(),
		scopeKey:  actor.ScopeKey(),
		actorID:   actor.ID,
		cost:      estimatedCost,
		state:     reservationHeld,
		createdAt: now,
	}

	s.mu.Lock()
	s.reservations[res.id] = res
	s.mu.Unlock()

	result.Allowed = true
	result.ReservationID = res.id

	// Best effort: a lost event under-counts the window, which only makes
	// the limiter more permissive
	if s.limiter != nil && config.RateLimitRequests > 0 {
		if err := s.limiter.Record(ctx, actor.ScopeKey(), now); err != nil {
			s.logger.Error("failed to record rate limit event",
				zap.String("scope", actor.ScopeKey()),
				zap.Error(err))
		}
	}

	s.logger.Debug("capacity reserved",
		zap.String("reservation_id", res.id),
		zap.String("scope", res.scopeKey),
		zap.Float64("estimated_cost", estimatedCost),
		zap.Bool("requires_approval", result.RequiresApproval))

	return result, nil
}

// Commit finalizes a reservation with the action's actual cost.
// Committing twice is a no-op; committing a released reservation is a
// conflict.
func (s *Service) Commit(ctx context.Context, reservationID string, actualCost float64) error {
	s.mu.Lock()
	res, ok := s.reservations[reservationID]
	s.mu.Unlock()
	if !ok {
		return services.ErrReservationNotFound.WithDetail("reservation_id", reservationID)
	}

	sc := s.scope(res.scopeKey)
	sc.mu.Lock()
	defer sc.mu.Unlock()

	// Reservation state is guarded by s.mu, always taken after the scope
	// lock
	s.mu.Lock()
	state := res.state
	if state == reservationHeld {
		res.state = reservationCommitted
	}
	s.mu.Unlock()

	switch state {
	case reservationCommitted:
		return nil
	case reservationReleased:
		return services.ErrReservationReleased.WithDetail("reservation_id", reservationID)
	}

	sc.rollWindows(time.Now())
	sc.monthlyCost += actualCost - res.cost
	if sc.monthlyCost < 0 {
		sc.monthlyCost = 0
	}
	sc.inFlight--

	s.persistUsage(ctx, res.scopeKey, actualCost, true, sc.peak)

	s.logger.Debug("reservation committed",
		zap.String("reservation_id", reservationID),
		zap.Float64("actual_cost", actualCost))

	return nil
}

// Release rolls a reservation back, returning its capacity to the scope.
// Releasing twice is a no-op; releasing a committed reservation is a
// conflict.
func (s *Service) Release(ctx context.Context, reservationID string) error {
	s.mu.Lock()
	res, ok := s.reservations[reservationID]
	s.mu.Unlock()
	if !ok {
		return services.ErrReservationNotFound.WithDetail("reservation_id", reservationID)
	}

	sc := s.scope(res.scopeKey)
	sc.mu.Lock()
	defer sc.mu.Unlock()

	s.mu.Lock()
	state := res.state
	if state == reservationHeld {
		res.state = reservationReleased
	}
	s.mu.Unlock()

	switch state {
	case reservationReleased:
		return nil
	case reservationCommitted:
		return services.ErrReservationConsumed.WithDetail("reservation_id", reservationID)
	}

	sc.rollWindows(time.Now())
	sc.dailyRequests--
	if sc.dailyRequests < 0 {
		sc.dailyRequests = 0
	}
	sc.monthlyCost -= res.cost
	if sc.monthlyCost < 0 {
		sc.monthlyCost = 0
	}
	sc.inFlight--

	s.persistUsage(ctx, res.scopeKey, 0, false, sc.peak)

	s.logger.Debug("reservation released",
		zap.String("reservation_id", reservationID))

	return nil
}

// persistUsage accumulates a completed action into the durable metrics.
// Best effort: a metrics store failure must not fail the action.
func (s *Service) persistUsage(ctx context.Context, scopeKey string, cost float64, success bool, peak int) {
	now := time.Now()
	for _, period := range []models.UsagePeriod{models.PeriodDaily, models.PeriodMonthly} {
		delta := models.NewUsageMetrics(scopeKey, period, now)
		delta.TotalRequests = 1
		if success {
			delta.SuccessfulRequests = 1
			delta.TotalCost = cost
		} else {
			delta.FailedRequests = 1
		}
		delta.ConcurrentPeak = peak

		if err := s.metrics.Upsert(ctx, delta); err != nil {
			s.logger.Error("failed to persist usage metrics",
				zap.String("entity_id", scopeKey),
				zap.String("period", string(period)),
				zap.Error(err))
		}
	}
}

// RecordViolation counts a governance denial against the scope's metrics
func (s *Service) RecordViolation(ctx context.Context, scopeKey string) {
	now := time.Now()
	for _, period := range []models.UsagePeriod{models.PeriodDaily, models.PeriodMonthly} {
		delta := models.NewUsageMetrics(scopeKey, period, now)
		delta.GovernanceViolations = 1

		if err := s.metrics.Upsert(ctx, delta); err != nil {
			s.logger.Error("failed to record governance violation",
				zap.String("entity_id", scopeKey),
				zap.Error(err))
		}
	}
}

// Usage merges the persisted metrics for an entity and period with the
// scope's in-flight state
func (s *Service) Usage(ctx context.Context, entityID string, period models.UsagePeriod) (*models.UsageMetrics, error) {
	if !period.IsValid() {
		return nil, services.ErrInvalidInput.WithDetail("period", string(period))
	}

	now := time.Now()
	persisted, err := s.metrics.Get(ctx, entityID, period, period.Key(now))
	if err != nil {
		if !services.IsNotFoundError(err) {
			return nil, services.WrapInternal("failed to load usage metrics", err)
		}
		persisted = models.NewUsageMetrics(entityID, period, now)
	}

	s.mu.Lock()
	sc, ok := s.scopes[entityID]
	s.mu.Unlock()
	if ok {
		sc.mu.Lock()
		sc.rollWindows(now)
		if sc.inFlight > 0 {
			persisted.TotalRequests += int64(sc.inFlight)
		}
		if sc.peak > persisted.ConcurrentPeak {
			persisted.ConcurrentPeak = sc.peak
		}
		sc.mu.Unlock()
	}

	return persisted, nil
}

// SweepLeaked releases reservations that were held longer than the
// reservation TTL. Idempotent; safe to run concurrently with new
// reservations.
func (s *Service) SweepLeaked(ctx context.Context, now time.Time) int {
	if !s.sweepRunning.TryLock() {
		return 0
	}
	defer s.sweepRunning.Unlock()

	cutoff := now.Add(-s.reservationTTL)

	s.mu.Lock()
	var leaked []string
	for id, res := range s.reservations {
		if res.state == reservationHeld && res.createdAt.Before(cutoff) {
			leaked = append(leaked, id)
		}
	}
	s.mu.Unlock()

	released := 0
	for _, id := range leaked {
		if err := s.Release(ctx, id); err == nil {
			released++
		}
	}

	// Terminal reservations older than the TTL no longer serve idempotence
	// and can be dropped
	s.mu.Lock()
	for id, res := range s.reservations {
		if res.state != reservationHeld && res.createdAt.Before(cutoff) {
			delete(s.reservations, id)
		}
	}
	s.mu.Unlock()

	if released > 0 {
		s.logger.Warn("released leaked reservations", zap.Int("count", released))
	}

	return released
}

// StartSweepWorker runs the leak sweep on a ticker until the context is
// cancelled
func (s *Service) StartSweepWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepLeaked(ctx, time.Now())
		case <-ctx.Done():
			return
		}
	}
}
