package casefile

import (
	"time"

	"caseflow/metadata"
)

// Stakeholder roles as stored in the users table.
const (
	RoleCustomer      = "customer"
	RoleProfessional  = "professional"
	RoleAdministrator = "administrator"
	RoleReferrer      = "referrer"
)

// Case mirrors the cases table columns touched by the engine. The engine
// holds a transient copy per run; the table owns the record.
type Case struct {
	ID              string
	CustomerID      string
	ProfessionalID  *string
	ReferrerID      *string
	Status          Status
	StepIndex       int
	ProgressPercent int
	FinalAmount     *float64
	Metadata        metadata.Tree
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Stakeholder is a party with visibility into case state changes.
type Stakeholder struct {
	ID       string
	Role     string
	FullName string
	Email    string
}

// StakeholderContext is resolved once per pipeline run and read-only for its
// duration. Professional and Referrer are nil until assigned.
type StakeholderContext struct {
	Customer       Stakeholder
	Professional   *Stakeholder
	Administrators []Stakeholder
	Referrer       *Stakeholder
}

// UpdatePatch enumerates the fields a stage write may change. FinalAmount is
// applied only when non-nil; the repository never clears an existing amount.
type UpdatePatch struct {
	Status          Status
	StepIndex       int
	ProgressPercent int
	FinalAmount     *float64
	Metadata        metadata.Tree
}
