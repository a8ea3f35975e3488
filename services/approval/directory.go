package approval

import (
	"context"

	"github.com/google/uuid"

	"github.com/upb/governance-engine/models"
)

// StaticDirectory is an ApproverDirectory backed by two configured pools.
// The privileged pool reviews enterprise and restricted cases; everything
// else goes to the standard pool, falling back to the privileged pool when
// the standard pool is empty.
type StaticDirectory struct {
	standard   []uuid.UUID
	privileged []uuid.UUID
}

// NewStaticDirectory creates a directory from the two configured pools
func NewStaticDirectory(standard, privileged []uuid.UUID) *StaticDirectory {
	return &StaticDirectory{
		standard:   standard,
		privileged: privileged,
	}
}

// EligibleApprovers returns the ordered approver chain for a tier
func (d *StaticDirectory) EligibleApprovers(_ context.Context, tier models.GovernanceTier) ([]uuid.UUID, error) {
	if tier.RequiresPrivilegedApprovers() {
		return append([]uuid.UUID(nil), d.privileged...), nil
	}
	if len(d.standard) == 0 {
		return append([]uuid.UUID(nil), d.privileged...), nil
	}
	return append([]uuid.UUID(nil), d.standard...), nil
}
