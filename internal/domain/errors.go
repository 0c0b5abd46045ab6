package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrPrincipalNotFound   = errors.New("principal not found")
	ErrAdminNotFound       = errors.New("super-admin not found")
	ErrWorkflowNotFound    = errors.New("deletion workflow not found")
	ErrAccountNotFound     = errors.New("identity account not found")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrSessionInvalid      = errors.New("session is missing, expired or revoked")
	ErrTrialAlreadyStarted = errors.New("trial already started")
	ErrEmailInUse          = errors.New("email address is already registered")
	ErrAccountInUse        = errors.New("identity account is still referenced by a tenant")
	ErrCodeTaken           = errors.New("school code already in use")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned when operator input fails validation before any
// write is attempted.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ConfirmationMismatchError is returned when the typed deletion phrase does not
// exactly match the expected one.
type ConfirmationMismatchError struct {
	Expected string
}

func (e *ConfirmationMismatchError) Error() string {
	return fmt.Sprintf("confirmation text must be exactly %q", e.Expected)
}

// StaleWriteError is returned when a conditional write finds a value other than
// the one the caller observed.
type StaleWriteError struct {
	TenantID string
	Field    string
	Expected string
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("tenant %s: %s changed since it was read (expected %q), reload and retry", e.TenantID, e.Field, e.Expected)
}

// Creation stages after the identity account exists.
const (
	StageTenantRecord    = "tenant_record"
	StagePrincipalRecord = "principal_record"
	StageFinalize        = "finalize"
)

// PartialCreationError reports a school registration that stopped after the
// principal's identity account was created. The account and any written
// records remain and need remediation.
type PartialCreationError struct {
	Stage        string
	PrincipalUID string
	TenantID     string
	Err          error
}

func (e *PartialCreationError) Error() string {
	return fmt.Sprintf("school creation stopped at %s (principal uid %s, tenant %q): %v", e.Stage, e.PrincipalUID, e.TenantID, e.Err)
}

func (e *PartialCreationError) Unwrap() error { return e.Err }

// PartialDeletionError reports a cascading delete that failed after some
// batches may already have been committed. The root tenant document is kept.
type PartialDeletionError struct {
	TenantID         string
	CommittedBatches int
	TotalBatches     int
	Err              error
}

func (e *PartialDeletionError) Error() string {
	return fmt.Sprintf("deleting tenant %s: %d of %d batches committed: %v", e.TenantID, e.CommittedBatches, e.TotalBatches, e.Err)
}

func (e *PartialDeletionError) Unwrap() error { return e.Err }

// AccessDeniedError is returned when an authenticated caller has no
// super-admin registry record.
type AccessDeniedError struct {
	UID string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("account %s is not registered as a super-admin; add a super-admin record for this uid to grant access", e.UID)
}

// TransitionError is returned when a workflow state transition is not allowed.
type TransitionError struct {
	Event   DeletionEvent
	Current DeletionState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}
