package compliance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/governance-engine/models"
	"github.com/upb/governance-engine/repositories"
	"github.com/upb/governance-engine/services"
)

// Score penalties and advisory thresholds
const (
	highImpactPenalty   = 10.0
	criticalTierPenalty = 15.0

	reviewThreshold     = 90.0
	retrainingThreshold = 80.0

	userShareThreshold       = 0.20
	highImpactShareThreshold = 0.10
)

// analyzerPageSize bounds each audit store read during a window scan
const analyzerPageSize = 500

// UserActivity flags one actor's share of the window's actions
type UserActivity struct {
	ActorID uuid.UUID `json:"actor_id"`
	Actions int       `json:"actions"`
	Share   float64   `json:"share"`
}

// Report summarizes the compliance posture of an audit window
type Report struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	TotalActions        int     `json:"total_actions"`
	HighImpactActions   int     `json:"high_impact_actions"`
	CriticalTierActions int     `json:"critical_tier_actions"`
	Score               float64 `json:"score"`

	Violations        []*models.AuditEntry `json:"violations,omitempty"`
	Recommendations   []string             `json:"recommendations,omitempty"`
	HighActivityUsers []UserActivity       `json:"high_activity_users,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Service derives compliance scores and reports from the audit trail
type Service struct {
	audit        repositories.AuditRepository
	requirements repositories.RequirementRepository
	logger       *zap.Logger

	windowDays int
}

// NewService creates a new compliance analyzer. windowDays is the lookback
// window for scores and reports.
func NewService(
	audit repositories.AuditRepository,
	requirements repositories.RequirementRepository,
	windowDays int,
	logger *zap.Logger,
) *Service {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &Service{
		audit:        audit,
		requirements: requirements,
		windowDays:   windowDays,
		logger:       logger,
	}
}

// score computes the compliance score for a set of entries:
// 100 minus penalties proportional to the high-impact and critical-tier
// shares, floored at 0. An empty window scores 100.
func score(entries []*models.AuditEntry) (total, highImpact, criticalTier int, value float64) {
	total = len(entries)
	if total == 0 {
		return 0, 0, 0, 100
	}

	for _, entry := range entries {
		if entry.Impact.IsHigh() {
			highImpact++
		}
		if entry.Tier == models.TierRestricted {
			criticalTier++
		}
	}

	value = 100 -
		highImpactPenalty*(float64(highImpact)/float64(total)) -
		criticalTierPenalty*(float64(criticalTier)/float64(total))
	if value < 0 {
		value = 0
	}
	return total, highImpact, criticalTier, value
}

// collectWindow reads every audit entry in the time window
func (s *Service) collectWindow(ctx context.Context, start, end time.Time) ([]*models.AuditEntry, error) {
	var entries []*models.AuditEntry
	offset := 0
	for {
		page, err := s.audit.GetByTimeRange(ctx, start, end, analyzerPageSize, offset)
		if err != nil {
			return nil, services.WrapInternal("failed to read audit window", err)
		}
		entries = append(entries, page...)
		if len(page) < analyzerPageSize {
			return entries, nil
		}
		offset += analyzerPageSize
	}
}

// Report analyzes the audit window ending now and returns the full
// compliance report
func (s *Service) Report(ctx context.Context) (*Report, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -s.windowDays)
	return s.ReportForWindow(ctx, start, end)
}

// ReportForWindow analyzes an explicit audit window
func (s *Service) ReportForWindow(ctx context.Context, start, end time.Time) (*Report, error) {
	if !end.After(start) {
		return nil, services.ErrInvalidInput.WithDetail("window", "end must be after start")
	}

	entries, err := s.collectWindow(ctx, start, end)
	if err != nil {
		return nil, err
	}

	total, highImpact, criticalTier, value := score(entries)

	report := &Report{
		WindowStart:         start,
		WindowEnd:           end,
		TotalActions:        total,
		HighImpactActions:   highImpact,
		CriticalTierActions: criticalTier,
		Score:               value,
		GeneratedAt:         time.Now(),
	}

	actionsByActor := make(map[uuid.UUID]int)
	for _, entry := range entries {
		if entry.IsViolation() {
			report.Violations = append(report.Violations, entry)
		}
		actionsByActor[entry.ActorID]++
	}

	report.Recommendations = recommendations(report)
	report.HighActivityUsers = highActivityUsers(actionsByActor, total)

	s.logger.Debug("compliance report generated",
		zap.Int("total_actions", total),
		zap.Float64("score", value),
		zap.Int("violations", len(report.Violations)))

	return report, nil
}

// recommendations derives advisory actions from a report's numbers
func recommendations(report *Report) []string {
	var recs []string
	if report.Score < retrainingThreshold {
		recs = append(recs, "mandate governance retraining for active teams")
	} else if report.Score < reviewThreshold {
		recs = append(recs, "review approval workflows for high-impact actions")
	}
	if report.TotalActions > 0 {
		highShare := float64(report.HighImpactActions) / float64(report.TotalActions)
		if highShare > highImpactShareThreshold {
			recs = append(recs, fmt.Sprintf("high-impact actions are %.0f%% of activity; tighten policy scopes", highShare*100))
		}
	}
	return recs
}

// highActivityUsers flags actors above the activity-share threshold
func highActivityUsers(actionsByActor map[uuid.UUID]int, total int) []UserActivity {
	if total == 0 {
		return nil
	}
	var flagged []UserActivity
	for actorID, actions := range actionsByActor {
		share := float64(actions) / float64(total)
		if share > userShareThreshold {
			flagged = append(flagged, UserActivity{
				ActorID: actorID,
				Actions: actions,
				Share:   share,
			})
		}
	}
	sort.Slice(flagged, func(i, j int) bool {
		return flagged[i].Actions > flagged[j].Actions
	})
	return flagged
}

// ScoreForActor computes the compliance score over the actor's own audit
// window. The evaluator consults this for policies that set a minimum
// score.
func (s *Service) ScoreForActor(ctx context.Context, actorID uuid.UUID) (float64, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -s.windowDays)

	entries, err := s.audit.GetByActor(ctx, actorID, start, end, analyzerPageSize)
	if err != nil {
		return 0, services.WrapInternal("failed to read actor audit window", err)
	}

	_, _, _, value := score(entries)
	return value, nil
}

// Violations returns the window's violating entries
func (s *Service) Violations(ctx context.Context) ([]*models.AuditEntry, error) {
	report, err := s.Report(ctx)
	if err != nil {
		return nil, err
	}
	return report.Violations, nil
}

// ListRequirements retrieves the tracked compliance requirements
func (s *Service) ListRequirements(ctx context.Context) ([]*models.ComplianceRequirement, error) {
	requirements, err := s.requirements.List(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to list compliance requirements", err)
	}
	return requirements, nil
}

// CreateRequirement validates and persists a new requirement. Only actors
// that may manage governance may call this.
func (s *Service) CreateRequirement(ctx context.Context, requirement *models.ComplianceRequirement, actor *models.Actor) error {
	if actor == nil || !actor.CanManageGovernance() {
		return services.ErrNotAuthorized.WithDetail("operation", "create_requirement")
	}
	if requirement.Name == "" || requirement.RequirementID == "" {
		return services.ErrInvalidInput.WithDetail("field", "name")
	}
	if !requirement.RiskLevel.IsValid() {
		requirement.RiskLevel = models.RiskMedium
	}

	now := time.Now()
	if requirement.ID == uuid.Nil {
		requirement.ID = uuid.New()
	}
	requirement.CreatedAt = now
	requirement.CreatedBy = actor.ID

	if err := s.requirements.Create(ctx, requirement); err != nil {
		return services.WrapInternal("failed to create compliance requirement", err)
	}

	s.logger.Info("compliance requirement created",
		zap.String("requirement_id", requirement.RequirementID),
		zap.String("framework", string(requirement.Framework)))

	return nil
}
