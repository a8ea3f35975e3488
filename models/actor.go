package models

import (
	"time"

	"github.com/google/uuid"
)

// Actor represents an identity already resolved by the platform's identity
// provider. The engine never authenticates actors; it only evaluates them.
type Actor struct {
	ID             uuid.UUID      `json:"id"`
	Email          string         `json:"email"`
	TeamID         string         `json:"team_id,omitempty"`
	Department     string         `json:"department,omitempty"`
	AccessLevel    AccessLevel    `json:"access_level"`
	GovernanceTier GovernanceTier `json:"governance_tier"`
	Permissions    []string       `json:"permissions,omitempty"`
	MFAVerified    bool           `json:"mfa_verified"`
	Active         bool           `json:"active"`
	ResolvedAt     time.Time      `json:"resolved_at,omitempty"`
}

// HasPermission returns true if the actor holds the named fine-grained
// permission. It does not apply access-level bypass; callers that honor
// the bypass check AccessLevel.BypassesPermissionChecks first.
func (a *Actor) HasPermission(permission string) bool {
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// HasAllPermissions returns true if the actor holds every listed permission
func (a *Actor) HasAllPermissions(permissions []string) bool {
	for _, p := range permissions {
		if !a.HasPermission(p) {
			return false
		}
	}
	return true
}

// MissingPermissions returns the subset of required permissions the actor
// does not hold
func (a *Actor) MissingPermissions(required []string) []string {
	var missing []string
	for _, p := range required {
		if !a.HasPermission(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// CanManageGovernance returns true if the actor may mutate governance
// configurations and policies
func (a *Actor) CanManageGovernance() bool {
	if a.AccessLevel.BypassesPermissionChecks() {
		return true
	}
	return a.HasPermission("governance:write")
}

// IsAdmin returns true for admin-level actors and above
func (a *Actor) IsAdmin() bool {
	return a.AccessLevel.AtLeast(AccessLevelAdmin)
}

// ScopeKey returns the governance scope the actor's usage is accounted
// under. Team scope when the actor belongs to a team, otherwise the
// actor's own id.
func (a *Actor) ScopeKey() string {
	if a.TeamID != "" {
		return "team:" + a.TeamID
	}
	return "user:" + a.ID.String()
}
