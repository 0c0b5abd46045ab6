package domain

import (
	"fmt"
	"time"
)

// Status represents whether a school may use the platform.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	// StatusStopped is a legacy inactive value. It is still read and filtered
	// as inactive, but never written by this service.
	StatusStopped Status = "stop"
)

// IsActive reports whether the school has system access.
func (s Status) IsActive() bool {
	return s == StatusActive
}

// IsInactive reports whether the school is suspended under either spelling.
func (s Status) IsInactive() bool {
	return s == StatusSuspended || s == StatusStopped
}

// Toggled returns the status written when an operator flips system access.
// Both inactive spellings resume to active; active always becomes suspended.
func (s Status) Toggled() Status {
	if s.IsActive() {
		return StatusSuspended
	}
	return StatusActive
}

// Label is the operator-facing name of the status.
func (s Status) Label() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusSuspended:
		return "Suspended"
	case StatusStopped:
		return "Stopped"
	default:
		return "Inactive"
	}
}

// PaymentStatus represents the billing state of a school.
type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentUnpaid PaymentStatus = "unpaid"
)

// IsPaid reports whether the school is paid up. Anything else counts as unpaid.
func (p PaymentStatus) IsPaid() bool {
	return p == PaymentPaid
}

// Toggled returns the opposite payment state.
func (p PaymentStatus) Toggled() PaymentStatus {
	if p.IsPaid() {
		return PaymentUnpaid
	}
	return PaymentPaid
}

// CreationState marks whether the multi-step registration of a school finished.
type CreationState string

const (
	CreationPending  CreationState = "pending"
	CreationComplete CreationState = "complete"
)

// Event represents something that happened to a school, published for auditing.
type Event string

const (
	EventTenantCreated         Event = "tenant.created"
	EventTenantCreationPartial Event = "tenant.creation_partial"
	EventTenantUpdated         Event = "tenant.updated"
	EventPaymentToggled        Event = "tenant.payment_toggled"
	EventStatusToggled         Event = "tenant.status_toggled"
	EventTrialStarted          Event = "tenant.trial_started"
	EventPasswordReset         Event = "tenant.principal_password_reset"
	EventTenantDeleted         Event = "tenant.deleted"
	EventTenantDeletionPartial Event = "tenant.deletion_partial"
)

// IsPartial reports whether the event records a multi-record write that
// stopped halfway and may need manual remediation.
func (e Event) IsPartial() bool {
	return e == EventTenantCreationPartial || e == EventTenantDeletionPartial
}

// Tenant is a registered school and the root of all data scoped to it.
type Tenant struct {
	ID             string
	Name           string
	Address        string
	Contact        string
	Status         Status
	PaymentStatus  PaymentStatus
	PrincipalID    string
	TrialStartDate *time.Time
	CreationState  CreationState
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TenantFields holds the operator-editable attributes of a school.
type TenantFields struct {
	Name    string
	Address string
	Contact string
}

// NewTenant creates an active, unpaid school whose registration is still pending.
func NewTenant(code string, fields TenantFields, principalID string, now time.Time) Tenant {
	now = now.UTC()
	return Tenant{
		ID:            code,
		Name:          fields.Name,
		Address:       fields.Address,
		Contact:       fields.Contact,
		Status:        StatusActive,
		PaymentStatus: PaymentUnpaid,
		PrincipalID:   principalID,
		CreationState: CreationPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CodePrefix starts every school code.
const CodePrefix = "SCHOOL_"

// FormatCode renders the n-th school code. Codes are padded to three digits
// and grow naturally once the sequence passes 999.
func FormatCode(n int64) string {
	return fmt.Sprintf("%s%03d", CodePrefix, n)
}
