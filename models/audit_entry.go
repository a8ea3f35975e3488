package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditOutcome is the result recorded for an audited action
type AuditOutcome string

const (
	OutcomeAllow   AuditOutcome = "allow"
	OutcomeDeny    AuditOutcome = "deny"
	OutcomePending AuditOutcome = "pending"
	OutcomeError   AuditOutcome = "error"
)

// IsValid returns true if the outcome is one of the known values
func (o AuditOutcome) IsValid() bool {
	switch o {
	case OutcomeAllow, OutcomeDeny, OutcomePending, OutcomeError:
		return true
	}
	return false
}

// AuditEntry is one immutable record of a governed action and its outcome
type AuditEntry struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	ActorID      uuid.UUID        `json:"actor_id" db:"actor_id"`
	Action       string           `json:"action" db:"action"`
	ResourceType string           `json:"resource_type" db:"resource_type"`
	ResourceID   string           `json:"resource_id,omitempty" db:"resource_id"`
	Outcome      AuditOutcome     `json:"outcome" db:"outcome"`
	Reason       string           `json:"reason,omitempty" db:"reason"`
	Impact       ComplianceImpact `json:"impact" db:"impact"`
	Tier         GovernanceTier   `json:"tier" db:"tier"`

	RequestID string                 `json:"request_id,omitempty" db:"request_id"`
	IPAddress string                 `json:"ip_address,omitempty" db:"ip_address"`
	Details   map[string]interface{} `json:"details,omitempty" db:"details"`

	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// NewAuditEntry creates an entry for an action with defaults filled in
func NewAuditEntry(actorID uuid.UUID, action, resourceType string, outcome AuditOutcome) *AuditEntry {
	return &AuditEntry{
		ID:           uuid.New(),
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		Outcome:      outcome,
		Impact:       ImpactLow,
		Timestamp:    time.Now(),
	}
}

// WithResourceID sets the resource id
func (e *AuditEntry) WithResourceID(id string) *AuditEntry {
	e.ResourceID = id
	return e
}

// WithReason sets the decision reason code
func (e *AuditEntry) WithReason(reason string) *AuditEntry {
	e.Reason = reason
	return e
}

// WithImpact sets the compliance impact classification
func (e *AuditEntry) WithImpact(impact ComplianceImpact) *AuditEntry {
	e.Impact = impact
	return e
}

// WithTier records the governance tier in force at the time of the action
func (e *AuditEntry) WithTier(tier GovernanceTier) *AuditEntry {
	e.Tier = tier
	return e
}

// WithRequestID sets the request correlation id
func (e *AuditEntry) WithRequestID(requestID string) *AuditEntry {
	e.RequestID = requestID
	return e
}

// WithIPAddress sets the source IP address
func (e *AuditEntry) WithIPAddress(ip string) *AuditEntry {
	e.IPAddress = ip
	return e
}

// WithDetail adds a key/value pair to the entry's detail map
func (e *AuditEntry) WithDetail(key string, value interface{}) *AuditEntry {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsViolation returns true if the entry counts as a compliance violation:
// high or critical impact, or a denial at enterprise/restricted tier
func (e *AuditEntry) IsViolation() bool {
	if e.Impact.IsHigh() {
		return true
	}
	return e.Outcome == OutcomeDeny && e.Tier.AtLeast(TierEnterprise)
}

// TableName returns the database table name
func (e *AuditEntry) TableName() string {
	return "audit_entries"
}
