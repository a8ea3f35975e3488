package models

import "time"

// AccessLevel represents an actor's privilege level. Levels are strictly
// ordered: read < write < admin < owner < super_admin.
type AccessLevel string

const (
	AccessLevelRead       AccessLevel = "read"
	AccessLevelWrite      AccessLevel = "write"
	AccessLevelAdmin      AccessLevel = "admin"
	AccessLevelOwner      AccessLevel = "owner"
	AccessLevelSuperAdmin AccessLevel = "super_admin"
)

// accessLevelRank defines the total ordering of access levels
var accessLevelRank = map[AccessLevel]int{
	AccessLevelRead:       0,
	AccessLevelWrite:      1,
	AccessLevelAdmin:      2,
	AccessLevelOwner:      3,
	AccessLevelSuperAdmin: 4,
}

// IsValid returns true if the access level is one of the known levels
func (l AccessLevel) IsValid() bool {
	_, ok := accessLevelRank[l]
	return ok
}

// Rank returns the position of the level in the ordering (read = 0).
// Unknown levels rank below read.
func (l AccessLevel) Rank() int {
	if rank, ok := accessLevelRank[l]; ok {
		return rank
	}
	return -1
}

// AtLeast returns true if the level is equal to or above the other level
func (l AccessLevel) AtLeast(other AccessLevel) bool {
	return l.Rank() >= other.Rank()
}

// BypassesPermissionChecks returns true for levels that skip fine-grained
// permission matching (admin and above). Denied permissions and tier
// requirements still apply to these levels.
func (l AccessLevel) BypassesPermissionChecks() bool {
	return l.AtLeast(AccessLevelAdmin)
}

// GovernanceTier represents the governance strictness tier applied to an
// actor or resource. Tiers are strictly ordered:
// basic < standard < enhanced < enterprise < restricted.
type GovernanceTier string

const (
	TierBasic      GovernanceTier = "basic"
	TierStandard   GovernanceTier = "standard"
	TierEnhanced   GovernanceTier = "enhanced"
	TierEnterprise GovernanceTier = "enterprise"
	TierRestricted GovernanceTier = "restricted"
)

// governanceTierRank defines the total ordering of governance tiers
var governanceTierRank = map[GovernanceTier]int{
	TierBasic:      0,
	TierStandard:   1,
	TierEnhanced:   2,
	TierEnterprise: 3,
	TierRestricted: 4,
}

// IsValid returns true if the tier is one of the known tiers
func (t GovernanceTier) IsValid() bool {
	_, ok := governanceTierRank[t]
	return ok
}

// Rank returns the position of the tier in the ordering (basic = 0).
// Unknown tiers rank below basic.
func (t GovernanceTier) Rank() int {
	if rank, ok := governanceTierRank[t]; ok {
		return rank
	}
	return -1
}

// AtLeast returns true if the tier is equal to or above the other tier
func (t GovernanceTier) AtLeast(other GovernanceTier) bool {
	return t.Rank() >= other.Rank()
}

// DefaultApprovalWindow returns how long an approval case opened at this
// tier stays open before it expires: 3 days for restricted, 5 days for
// enhanced and enterprise, 7 days otherwise.
func (t GovernanceTier) DefaultApprovalWindow() time.Duration {
	switch t {
	case TierRestricted:
		return 3 * 24 * time.Hour
	case TierEnhanced, TierEnterprise:
		return 5 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// RequiresPrivilegedApprovers returns true for tiers whose approval cases
// may only be decided by the privileged approver pool
func (t GovernanceTier) RequiresPrivilegedApprovers() bool {
	return t.AtLeast(TierEnterprise)
}

// ComplianceImpact classifies how strongly an audited action bears on
// compliance posture
type ComplianceImpact string

const (
	ImpactLow      ComplianceImpact = "low"
	ImpactMedium   ComplianceImpact = "medium"
	ImpactHigh     ComplianceImpact = "high"
	ImpactCritical ComplianceImpact = "critical"
)

// IsValid returns true if the impact is one of the known values
func (i ComplianceImpact) IsValid() bool {
	switch i {
	case ImpactLow, ImpactMedium, ImpactHigh, ImpactCritical:
		return true
	}
	return false
}

// IsHigh returns true for high and critical impact
func (i ComplianceImpact) IsHigh() bool {
	return i == ImpactHigh || i == ImpactCritical
}

// RiskLevel classifies the assessed risk of a requested action or the risk
// tolerance of a governance configuration
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// IsValid returns true if the risk level is one of the known values
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}
