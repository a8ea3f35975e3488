package models

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus represents the state of an approval case
type ApprovalStatus string

const (
	ApprovalStatusPending     ApprovalStatus = "PENDING"
	ApprovalStatusUnderReview ApprovalStatus = "UNDER_REVIEW"
	ApprovalStatusApproved    ApprovalStatus = "APPROVED"
	ApprovalStatusRejected    ApprovalStatus = "REJECTED"
	ApprovalStatusCancelled   ApprovalStatus = "CANCELLED"
	ApprovalStatusExpired     ApprovalStatus = "EXPIRED"
)

// IsValid returns true if the status is one of the known states
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusUnderReview, ApprovalStatusApproved,
		ApprovalStatusRejected, ApprovalStatusCancelled, ApprovalStatusExpired:
		return true
	}
	return false
}

// IsTerminal returns true for states no transition leaves
func (s ApprovalStatus) IsTerminal() bool {
	switch s {
	case ApprovalStatusApproved, ApprovalStatusRejected, ApprovalStatusCancelled, ApprovalStatusExpired:
		return true
	}
	return false
}

// ApprovalDecision is a reviewer's verdict on a case
type ApprovalDecision string

const (
	DecisionApprove  ApprovalDecision = "APPROVE"
	DecisionReject   ApprovalDecision = "REJECT"
	DecisionReassign ApprovalDecision = "REASSIGN"
)

// IsValid returns true if the decision is one of the known verdicts
func (d ApprovalDecision) IsValid() bool {
	switch d {
	case DecisionApprove, DecisionReject, DecisionReassign:
		return true
	}
	return false
}

// ApprovalTransition records one state change in a case's history
type ApprovalTransition struct {
	From     ApprovalStatus   `json:"from"`
	To       ApprovalStatus   `json:"to"`
	ActorID  uuid.UUID        `json:"actor_id"`
	Decision ApprovalDecision `json:"decision,omitempty"`
	Notes    string           `json:"notes,omitempty"`
	At       time.Time        `json:"at"`
}

// ApprovalCase tracks a request that needs human sign-off before the
// governed action may proceed. Approvers decide in order; CurrentIndex
// points at the approver whose turn it is.
type ApprovalCase struct {
	ID           uuid.UUID `json:"id" db:"id"`
	RequestType  string    `json:"request_type" db:"request_type"`
	ResourceType string    `json:"resource_type" db:"resource_type"`
	ResourceID   string    `json:"resource_id,omitempty" db:"resource_id"`
	RequesterID  uuid.UUID `json:"requester_id" db:"requester_id"`

	Approvers    []uuid.UUID    `json:"approvers" db:"approvers"`
	CurrentIndex int            `json:"current_index" db:"current_index"`
	Status       ApprovalStatus `json:"status" db:"status"`

	Justification  string         `json:"justification,omitempty" db:"justification"`
	ImpactLevel    ComplianceImpact `json:"impact_level" db:"impact_level"`
	RiskAssessment RiskLevel      `json:"risk_assessment" db:"risk_assessment"`
	Tier           GovernanceTier `json:"tier" db:"tier"`
	EstimatedCost  float64        `json:"estimated_cost" db:"estimated_cost"`
	ReservationID  string         `json:"reservation_id,omitempty" db:"reservation_id"`

	Deadline time.Time            `json:"deadline" db:"deadline"`
	History  []ApprovalTransition `json:"history,omitempty" db:"history"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CurrentApprover returns the approver whose decision the case is waiting
// on, or uuid.Nil when the case is terminal or has no approvers
func (c *ApprovalCase) CurrentApprover() uuid.UUID {
	if c.Status.IsTerminal() {
		return uuid.Nil
	}
	if c.CurrentIndex < 0 || c.CurrentIndex >= len(c.Approvers) {
		return uuid.Nil
	}
	return c.Approvers[c.CurrentIndex]
}

// IsApprover returns true if the id appears anywhere in the approver chain
func (c *ApprovalCase) IsApprover(id uuid.UUID) bool {
	for _, a := range c.Approvers {
		if a == id {
			return true
		}
	}
	return false
}

// IsExpiredAt returns true if a non-terminal case has passed its deadline
func (c *ApprovalCase) IsExpiredAt(now time.Time) bool {
	return !c.Status.IsTerminal() && now.After(c.Deadline)
}

// Record appends a transition to the case history and moves the case to
// the target status
func (c *ApprovalCase) Record(to ApprovalStatus, actorID uuid.UUID, decision ApprovalDecision, notes string, at time.Time) {
	c.History = append(c.History, ApprovalTransition{
		From:     c.Status,
		To:       to,
		ActorID:  actorID,
		Decision: decision,
		Notes:    notes,
		At:       at,
	})
	c.Status = to
	c.UpdatedAt = at
}

// TableName returns the database table name
func (c *ApprovalCase) TableName() string {
	return "approval_cases"
}
