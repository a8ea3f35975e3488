package models

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

// PolicyStatus represents the lifecycle state of an access-control policy
type PolicyStatus string

const (
	PolicyStatusDraft      PolicyStatus = "draft"
	PolicyStatusActive     PolicyStatus = "active"
	PolicyStatusInactive   PolicyStatus = "inactive"
	PolicyStatusDeprecated PolicyStatus = "deprecated"
	PolicyStatusArchived   PolicyStatus = "archived"
)

// policyTransitions maps each status to the statuses it may move to
var policyTransitions = map[PolicyStatus][]PolicyStatus{
	PolicyStatusDraft:      {PolicyStatusActive, PolicyStatusArchived},
	PolicyStatusActive:     {PolicyStatusInactive, PolicyStatusDeprecated, PolicyStatusArchived},
	PolicyStatusInactive:   {PolicyStatusActive, PolicyStatusArchived},
	PolicyStatusDeprecated: {PolicyStatusArchived},
	PolicyStatusArchived:   {},
}

// IsValid returns true if the status is one of the known lifecycle states
func (s PolicyStatus) IsValid() bool {
	_, ok := policyTransitions[s]
	return ok
}

// CanTransitionTo returns true if the lifecycle allows moving to the target
func (s PolicyStatus) CanTransitionTo(target PolicyStatus) bool {
	for _, t := range policyTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// TimeWindowCondition restricts a policy to a daily time-of-day window.
// Start and End use "15:04" format; a window may wrap past midnight.
type TimeWindowCondition struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Contains returns true if the instant falls inside the window
func (w *TimeWindowCondition) Contains(now time.Time) bool {
	start, err := time.Parse("15:04", w.Start)
	if err != nil {
		return false
	}
	end, err := time.Parse("15:04", w.End)
	if err != nil {
		return false
	}
	minutes := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if startMin <= endMin {
		return minutes >= startMin && minutes < endMin
	}
	// window wraps past midnight
	return minutes >= startMin || minutes < endMin
}

// PolicyConditions are contextual requirements that must all hold for a
// policy's grants to apply
type PolicyConditions struct {
	TimeWindow       *TimeWindowCondition `json:"time_window,omitempty"`
	AllowedCIDRs     []string             `json:"allowed_cidrs,omitempty"`
	AllowedLocations []string             `json:"allowed_locations,omitempty"`
}

// EvaluationContext carries the request-time facts conditions are checked
// against
type EvaluationContext struct {
	Now       time.Time
	IPAddress string
	Location  string
}

// Met returns true when every configured condition holds for the context.
// Unparseable context values fail the condition rather than pass it.
func (c *PolicyConditions) Met(evalCtx EvaluationContext) bool {
	if c == nil {
		return true
	}
	if c.TimeWindow != nil && !c.TimeWindow.Contains(evalCtx.Now) {
		return false
	}
	if len(c.AllowedCIDRs) > 0 {
		ip := net.ParseIP(evalCtx.IPAddress)
		if ip == nil {
			return false
		}
		matched := false
		for _, cidr := range c.AllowedCIDRs {
			_, network, err := net.ParseCIDR(cidr)
			if err != nil {
				continue
			}
			if network.Contains(ip) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(c.AllowedLocations) > 0 {
		matched := false
		for _, loc := range c.AllowedLocations {
			if loc == evalCtx.Location {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// AccessControlPolicy grants or denies permissions on a resource scope.
// Scope dimensions combine additively: every set dimension must match the
// query for the policy to apply.
type AccessControlPolicy struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`

	ResourceType string     `json:"resource_type" db:"resource_type"`
	ResourceID   string     `json:"resource_id,omitempty" db:"resource_id"`
	UserID       *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	TeamID       string     `json:"team_id,omitempty" db:"team_id"`
	Department   string     `json:"department,omitempty" db:"department"`

	Permissions        []string          `json:"permissions,omitempty" db:"permissions"`
	DeniedPermissions  []string          `json:"denied_permissions,omitempty" db:"denied_permissions"`
	Conditions         *PolicyConditions `json:"conditions,omitempty" db:"conditions"`
	RequiredTier       GovernanceTier    `json:"required_tier,omitempty" db:"required_tier"`
	MinComplianceScore *float64          `json:"min_compliance_score,omitempty" db:"min_compliance_score"`
	RequiresApproval   bool              `json:"requires_approval" db:"requires_approval"`

	Status      PolicyStatus `json:"status" db:"status"`
	EffectiveAt time.Time    `json:"effective_at" db:"effective_at"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty" db:"expires_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	CreatedBy uuid.UUID `json:"created_by" db:"created_by"`
}

// PolicyQuery describes the scope a lookup wants matching policies for
type PolicyQuery struct {
	ResourceType string
	ResourceID   string
	UserID       *uuid.UUID
	TeamID       string
	Department   string
}

// Validate checks the policy's structural invariants
func (p *AccessControlPolicy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.ResourceType == "" {
		return fmt.Errorf("resource type is required")
	}
	if p.ResourceID == "" && p.UserID == nil && p.TeamID == "" && p.Department == "" {
		return fmt.Errorf("at least one of resource id, user, team, or department must be set")
	}
	if len(p.Permissions) == 0 && len(p.DeniedPermissions) == 0 {
		return fmt.Errorf("policy must grant or deny at least one permission")
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	if p.RequiredTier != "" && !p.RequiredTier.IsValid() {
		return fmt.Errorf("invalid required tier: %s", p.RequiredTier)
	}
	if p.MinComplianceScore != nil && (*p.MinComplianceScore < 0 || *p.MinComplianceScore > 100) {
		return fmt.Errorf("minimum compliance score must be between 0 and 100")
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(p.EffectiveAt) {
		return fmt.Errorf("expiry must be after effective date")
	}
	return nil
}

// MatchesScope returns true if every set scope dimension matches the query
func (p *AccessControlPolicy) MatchesScope(q PolicyQuery) bool {
	if p.ResourceType != q.ResourceType {
		return false
	}
	if p.ResourceID != "" && p.ResourceID != q.ResourceID {
		return false
	}
	if p.UserID != nil && (q.UserID == nil || *p.UserID != *q.UserID) {
		return false
	}
	if p.TeamID != "" && p.TeamID != q.TeamID {
		return false
	}
	if p.Department != "" && p.Department != q.Department {
		return false
	}
	return true
}

// IsActiveAt returns true if the policy is in the active lifecycle state
// and its effective/expiry window contains the instant
func (p *AccessControlPolicy) IsActiveAt(now time.Time) bool {
	if p.Status != PolicyStatusActive {
		return false
	}
	if now.Before(p.EffectiveAt) {
		return false
	}
	if p.ExpiresAt != nil && !now.Before(*p.ExpiresAt) {
		return false
	}
	return true
}

// Denies returns true if the policy explicitly denies any of the listed
// permissions
func (p *AccessControlPolicy) Denies(permissions []string) bool {
	for _, denied := range p.DeniedPermissions {
		for _, requested := range permissions {
			if denied == requested {
				return true
			}
		}
	}
	return false
}

// Grants returns true if the policy's allowed permissions cover all the
// listed permissions
func (p *AccessControlPolicy) Grants(permissions []string) bool {
	for _, requested := range permissions {
		found := false
		for _, granted := range p.Permissions {
			if granted == requested || granted == "*" {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// TableName returns the database table name
func (p *AccessControlPolicy) TableName() string {
	return "access_policies"
}
