package domain_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

func TestTransitionError_Error(t *testing.T) {
	err := &domain.TransitionError{
		Event:   domain.DeletionConfirmed,
		Current: domain.DeletionConfirmWarning,
	}
	want := `event "confirmed" is not valid from state "confirm_warning"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestConfirmationMismatchError_Error(t *testing.T) {
	err := &domain.ConfirmationMismatchError{Expected: "DELETE SCHOOL_042"}
	want := `confirmation text must be exactly "DELETE SCHOOL_042"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAccessDeniedError_IncludesUID(t *testing.T) {
	err := &domain.AccessDeniedError{UID: "abc123"}
	if !strings.Contains(err.Error(), "abc123") {
		t.Errorf("Error() = %q, want it to name the uid", err.Error())
	}
}

func TestPartialErrors_Unwrap(t *testing.T) {
	cause := errors.New("disk full")

	creation := &domain.PartialCreationError{Stage: domain.StagePrincipalRecord, PrincipalUID: "u1", TenantID: "SCHOOL_001", Err: cause}
	if !errors.Is(creation, cause) {
		t.Error("PartialCreationError should unwrap to its cause")
	}

	deletion := &domain.PartialDeletionError{TenantID: "SCHOOL_001", CommittedBatches: 1, TotalBatches: 3, Err: cause}
	if !errors.Is(deletion, cause) {
		t.Error("PartialDeletionError should unwrap to its cause")
	}
	want := "deleting tenant SCHOOL_001: 1 of 3 batches committed: disk full"
	if got := deletion.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &domain.ValidationError{Fields: []domain.FieldError{
		{Field: "name", Message: "is required"},
		{Field: "email", Message: "must be a valid email"},
	}}
	want := "validation failed: name: is required; email: must be a valid email"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
