package models

import (
	"time"

	"github.com/google/uuid"
)

// ComplianceFramework identifies the external framework a requirement
// belongs to
type ComplianceFramework string

const (
	FrameworkSOC2     ComplianceFramework = "soc2"
	FrameworkISO27001 ComplianceFramework = "iso27001"
	FrameworkGDPR     ComplianceFramework = "gdpr"
	FrameworkHIPAA    ComplianceFramework = "hipaa"
	FrameworkInternal ComplianceFramework = "internal"
)

// ComplianceRequirement is a governance obligation tracked by the engine.
// Requirements inform reporting; they do not gate decisions directly.
type ComplianceRequirement struct {
	ID            uuid.UUID           `json:"id" db:"id"`
	Name          string              `json:"name" db:"name"`
	Description   string              `json:"description,omitempty" db:"description"`
	Framework     ComplianceFramework `json:"framework" db:"framework"`
	RequirementID string              `json:"requirement_id" db:"requirement_id"`
	Category      string              `json:"category,omitempty" db:"category"`
	RiskLevel     RiskLevel           `json:"risk_level" db:"risk_level"`
	Mandatory     bool                `json:"mandatory" db:"mandatory"`
	ReviewCycle   string              `json:"review_cycle,omitempty" db:"review_cycle"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	CreatedBy uuid.UUID `json:"created_by" db:"created_by"`
}

// TableName returns the database table name
func (r *ComplianceRequirement) TableName() string {
	return "compliance_requirements"
}
