package models

import (
	"time"

	"github.com/google/uuid"
)

// UsagePeriod is the accounting granularity for usage metrics
type UsagePeriod string

const (
	PeriodDaily   UsagePeriod = "daily"
	PeriodMonthly UsagePeriod = "monthly"
)

// IsValid returns true if the period is one of the known granularities
func (p UsagePeriod) IsValid() bool {
	return p == PeriodDaily || p == PeriodMonthly
}

// Key returns the period key for the instant: "2006-01-02" for daily,
// "2006-01" for monthly
func (p UsagePeriod) Key(t time.Time) string {
	if p == PeriodMonthly {
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

// UsageMetrics accumulates completed usage for one entity over one period
type UsageMetrics struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	EntityID  string      `json:"entity_id" db:"entity_id"`
	Period    UsagePeriod `json:"period" db:"period"`
	PeriodKey string      `json:"period_key" db:"period_key"`

	TotalRequests        int64   `json:"total_requests" db:"total_requests"`
	SuccessfulRequests   int64   `json:"successful_requests" db:"successful_requests"`
	FailedRequests       int64   `json:"failed_requests" db:"failed_requests"`
	TotalCost            float64 `json:"total_cost" db:"total_cost"`
	GovernanceViolations int64   `json:"governance_violations" db:"governance_violations"`
	ConcurrentPeak       int     `json:"concurrent_peak" db:"concurrent_peak"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewUsageMetrics creates an empty metrics row for an entity and period
func NewUsageMetrics(entityID string, period UsagePeriod, at time.Time) *UsageMetrics {
	return &UsageMetrics{
		ID:        uuid.New(),
		EntityID:  entityID,
		Period:    period,
		PeriodKey: period.Key(at),
		UpdatedAt: at,
	}
}

// SuccessRate returns the fraction of requests that succeeded, or 0 for an
// empty period
func (m *UsageMetrics) SuccessRate() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return float64(m.SuccessfulRequests) / float64(m.TotalRequests)
}

// TableName returns the database table name
func (m *UsageMetrics) TableName() string {
	return "usage_metrics"
}
