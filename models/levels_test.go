package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessLevel_Ordering(t *testing.T) {
	ordered := []AccessLevel{
		AccessLevelRead,
		AccessLevelWrite,
		AccessLevelAdmin,
		AccessLevelOwner,
		AccessLevelSuperAdmin,
	}

	for i := 1; i < len(ordered); i++ {
		assert.True(t, ordered[i].AtLeast(ordered[i-1]),
			"%s should be at least %s", ordered[i], ordered[i-1])
		assert.False(t, ordered[i-1].AtLeast(ordered[i]),
			"%s should not be at least %s", ordered[i-1], ordered[i])
	}

	assert.True(t, AccessLevelAdmin.AtLeast(AccessLevelAdmin))
}

func TestAccessLevel_IsValid(t *testing.T) {
	assert.True(t, AccessLevelRead.IsValid())
	assert.True(t, AccessLevelSuperAdmin.IsValid())
	assert.False(t, AccessLevel("root").IsValid())
	assert.False(t, AccessLevel("").IsValid())
}

func TestAccessLevel_UnknownRanksBelowRead(t *testing.T) {
	unknown := AccessLevel("mystery")
	assert.Equal(t, -1, unknown.Rank())
	assert.False(t, unknown.AtLeast(AccessLevelRead))
	assert.True(t, AccessLevelRead.AtLeast(unknown))
}

func TestAccessLevel_BypassesPermissionChecks(t *testing.T) {
	tests := []struct {
		level AccessLevel
		want  bool
	}{
		{AccessLevelRead, false},
		{AccessLevelWrite, false},
		{AccessLevelAdmin, true},
		{AccessLevelOwner, true},
		{AccessLevelSuperAdmin, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.BypassesPermissionChecks())
		})
	}
}

func TestGovernanceTier_Ordering(t *testing.T) {
	ordered := []GovernanceTier{
		TierBasic,
		TierStandard,
		TierEnhanced,
		TierEnterprise,
		TierRestricted,
	}

	for i := 1; i < len(ordered); i++ {
		assert.True(t, ordered[i].AtLeast(ordered[i-1]),
			"%s should be at least %s", ordered[i], ordered[i-1])
		assert.False(t, ordered[i-1].AtLeast(ordered[i]),
			"%s should not be at least %s", ordered[i-1], ordered[i])
	}
}

func TestGovernanceTier_IsValid(t *testing.T) {
	assert.True(t, TierBasic.IsValid())
	assert.True(t, TierRestricted.IsValid())
	assert.False(t, GovernanceTier("platinum").IsValid())
}

func TestGovernanceTier_DefaultApprovalWindow(t *testing.T) {
	tests := []struct {
		tier GovernanceTier
		want time.Duration
	}{
		{TierBasic, 7 * 24 * time.Hour},
		{TierStandard, 7 * 24 * time.Hour},
		{TierEnhanced, 5 * 24 * time.Hour},
		{TierEnterprise, 5 * 24 * time.Hour},
		{TierRestricted, 3 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tier.DefaultApprovalWindow())
		})
	}
}

func TestGovernanceTier_RequiresPrivilegedApprovers(t *testing.T) {
	assert.False(t, TierBasic.RequiresPrivilegedApprovers())
	assert.False(t, TierEnhanced.RequiresPrivilegedApprovers())
	assert.True(t, TierEnterprise.RequiresPrivilegedApprovers())
	assert.True(t, TierRestricted.RequiresPrivilegedApprovers())
}

func TestComplianceImpact_IsHigh(t *testing.T) {
	assert.False(t, ImpactLow.IsHigh())
	assert.False(t, ImpactMedium.IsHigh())
	assert.True(t, ImpactHigh.IsHigh())
	assert.True(t, ImpactCritical.IsHigh())
}

func TestRiskLevel_IsValid(t *testing.T) {
	assert.True(t, RiskLow.IsValid())
	assert.True(t, RiskCritical.IsValid())
	assert.False(t, RiskLevel("extreme").IsValid())
}
