package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/neomorfeo/schooldesk/internal/app"
	"github.com/neomorfeo/schooldesk/internal/domain"
)

const operator = "op-1"

type deletionFixture struct {
	tenants  *mockTenants
	docs     *mockDocs
	identity *mockIdentity
	pub      *mockPublisher
	svc      *app.DeletionService
}

func newDeletionFixture(t *testing.T) *deletionFixture {
	t.Helper()
	f := &deletionFixture{
		tenants:  newMockTenants(),
		docs:     newMockDocs(),
		identity: newMockIdentity(),
		pub:      &mockPublisher{},
	}
	f.tenants.docs = f.docs
	f.identity.passwords[operator] = "operator-pw"
	f.tenants.put(domain.Tenant{ID: "SCHOOL_042", Name: "Riverside"})
	f.svc = app.NewDeletionService(f.tenants, f.docs, f.identity, tableValidator{}, f.pub, discardLogger())
	return f
}

// walk drives a workflow up to the typed confirmation step.
func (f *deletionFixture) walk(t *testing.T) domain.DeletionWorkflow {
	t.Helper()
	ctx := context.Background()
	wf, err := f.svc.Begin(ctx, operator, "SCHOOL_042")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if wf, err = f.svc.Acknowledge(ctx, operator, wf.ID); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if wf, err = f.svc.Reauthenticate(ctx, operator, wf.ID, "operator-pw"); err != nil {
		t.Fatalf("reauthenticate: %v", err)
	}
	if wf.State != domain.DeletionConfirmTyped {
		t.Fatalf("State = %q, want %q", wf.State, domain.DeletionConfirmTyped)
	}
	return wf
}

func TestDeletion_NineHundredStudentsTwoBatches(t *testing.T) {
	f := newDeletionFixture(t)
	f.docs.seed("SCHOOL_042", domain.CollectionStudents, 900)
	wf := f.walk(t)

	wf, err := f.svc.Confirm(context.Background(), operator, wf.ID, "DELETE SCHOOL_042")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.State != domain.DeletionDone {
		t.Errorf("State = %q, want done", wf.State)
	}
	if wf.TotalBatches != 2 || wf.CommittedBatches != 2 {
		t.Errorf("batches = %d/%d, want 2/2", wf.CommittedBatches, wf.TotalBatches)
	}
	for i, c := range f.docs.commits {
		if len(c) != 450 {
			t.Errorf("commit %d has %d ops, want 450", i, len(c))
		}
	}
	if len(f.tenants.deleted) != 1 || f.tenants.deletedAfter != 2 {
		t.Errorf("root deleted %v after %d commits, want once after 2", f.tenants.deleted, f.tenants.deletedAfter)
	}
	if got := f.pub.last().event; got != domain.EventTenantDeleted {
		t.Errorf("event = %q, want %q", got, domain.EventTenantDeleted)
	}
}

func TestDeletion_RootDeletedAfterEveryCollection(t *testing.T) {
	f := newDeletionFixture(t)
	for _, coll := range domain.OwnedCollections {
		f.docs.seed("SCHOOL_042", coll, 500)
	}
	wf := f.walk(t)

	wf, err := f.svc.Confirm(context.Background(), operator, wf.ID, "DELETE SCHOOL_042")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// users: 1000 ops in 450/450/100; the other five: 450/50 each.
	if wf.TotalBatches != 13 {
		t.Errorf("TotalBatches = %d, want 13", wf.TotalBatches)
	}
	if f.tenants.deletedAfter != wf.TotalBatches {
		t.Errorf("root deleted after %d of %d commits", f.tenants.deletedAfter, wf.TotalBatches)
	}

	registry := 0
	for _, c := range f.docs.commits {
		for _, ref := range c {
			if ref.Collection == domain.CollectionGlobalUsers {
				registry++
			}
		}
	}
	if registry != 500 {
		t.Errorf("registry deletes = %d, want 500", registry)
	}
}

func TestDeletion_ConfirmMismatch(t *testing.T) {
	f := newDeletionFixture(t)
	wf := f.walk(t)

	for _, phrase := range []string{"", "DELETE school_042", "DELETE SCHOOL_042 ", "delete SCHOOL_042"} {
		_, err := f.svc.Confirm(context.Background(), operator, wf.ID, phrase)
		var mismatch *domain.ConfirmationMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("phrase %q: expected ConfirmationMismatchError, got %v", phrase, err)
		}
		if mismatch.Expected != "DELETE SCHOOL_042" {
			t.Errorf("Expected = %q", mismatch.Expected)
		}
	}

	got, _ := f.svc.Workflow(context.Background(), operator, wf.ID)
	if got.State != domain.DeletionConfirmTyped {
		t.Errorf("State = %q, want unchanged", got.State)
	}
	if f.docs.attempts != 0 || len(f.tenants.deleted) != 0 {
		t.Error("a mismatch must not reach the store")
	}
}

func TestDeletion_ReauthFailureKeepsState(t *testing.T) {
	f := newDeletionFixture(t)
	ctx := context.Background()
	wf, _ := f.svc.Begin(ctx, operator, "SCHOOL_042")
	wf, _ = f.svc.Acknowledge(ctx, operator, wf.ID)

	_, err := f.svc.Reauthenticate(ctx, operator, wf.ID, "wrong")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	got, _ := f.svc.Workflow(ctx, operator, wf.ID)
	if got.State != domain.DeletionConfirmReauth {
		t.Errorf("State = %q, want %q", got.State, domain.DeletionConfirmReauth)
	}

	// Retrying with the right password proceeds.
	if _, err := f.svc.Reauthenticate(ctx, operator, wf.ID, "operator-pw"); err != nil {
		t.Errorf("retry failed: %v", err)
	}
}

func TestDeletion_StepsCannotBeSkipped(t *testing.T) {
	f := newDeletionFixture(t)
	ctx := context.Background()
	wf, _ := f.svc.Begin(ctx, operator, "SCHOOL_042")

	_, err := f.svc.Confirm(ctx, operator, wf.ID, "DELETE SCHOOL_042")
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if trErr.Current != domain.DeletionConfirmWarning {
		t.Errorf("Current = %q", trErr.Current)
	}

	_, err = f.svc.Reauthenticate(ctx, operator, wf.ID, "operator-pw")
	if !errors.As(err, &trErr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
}

func TestDeletion_PartialFailure(t *testing.T) {
	f := newDeletionFixture(t)
	f.docs.seed("SCHOOL_042", domain.CollectionStudents, 900)
	f.docs.failCommitAt = 2
	wf := f.walk(t)

	wf, err := f.svc.Confirm(context.Background(), operator, wf.ID, "DELETE SCHOOL_042")
	var perr *domain.PartialDeletionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PartialDeletionError, got %v", err)
	}
	if perr.TotalBatches != 2 || perr.CommittedBatches != 1 {
		t.Errorf("committed %d of %d, want 1 of 2", perr.CommittedBatches, perr.TotalBatches)
	}
	if wf.State != domain.DeletionFailed || wf.Error == "" {
		t.Errorf("workflow = %+v", wf)
	}
	if len(f.tenants.deleted) != 0 {
		t.Error("root record must survive a failed batch")
	}
	if got := f.pub.last().event; got != domain.EventTenantDeletionPartial {
		t.Errorf("event = %q", got)
	}

	// Failed is terminal.
	_, err = f.svc.Confirm(context.Background(), operator, wf.ID, "DELETE SCHOOL_042")
	var trErr *domain.TransitionError
	if !errors.As(err, &trErr) {
		t.Errorf("expected TransitionError, got %v", err)
	}
}

func TestDeletion_ListingFailureIsNotPartial(t *testing.T) {
	f := newDeletionFixture(t)
	f.docs.seed("SCHOOL_042", domain.CollectionStudents, 10)
	f.docs.listErr = errors.New("unavailable")
	wf := f.walk(t)

	wf, err := f.svc.Confirm(context.Background(), operator, wf.ID, "DELETE SCHOOL_042")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var perr *domain.PartialDeletionError
	if errors.As(err, &perr) {
		t.Fatalf("nothing was deleted, got PartialDeletionError: %v", err)
	}
	if wf.State != domain.DeletionFailed || wf.Error == "" {
		t.Errorf("workflow = %+v", wf)
	}
	if f.docs.attempts != 0 || len(f.tenants.deleted) != 0 {
		t.Error("a listing failure must not reach the delete path")
	}
	if len(f.pub.events) != 0 {
		t.Errorf("published %d events, want none", len(f.pub.events))
	}
}

func TestDeletion_OnlyBatchFailsIsNotPartial(t *testing.T) {
	f := newDeletionFixture(t)
	f.docs.seed("SCHOOL_042", domain.CollectionStudents, 10)
	f.docs.failCommitAt = 1
	wf := f.walk(t)

	wf, err := f.svc.Confirm(context.Background(), operator, wf.ID, "DELETE SCHOOL_042")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var perr *domain.PartialDeletionError
	if errors.As(err, &perr) {
		t.Fatalf("no batch committed, got PartialDeletionError: %v", err)
	}
	if wf.State != domain.DeletionFailed {
		t.Errorf("State = %q, want failed", wf.State)
	}
	if f.docs.commitCount() != 0 || len(f.tenants.deleted) != 0 {
		t.Error("nothing may be deleted")
	}
	if len(f.pub.events) != 0 {
		t.Errorf("published %d events, want none", len(f.pub.events))
	}
}

func TestDeletion_SurvivesCallerCancellation(t *testing.T) {
	f := newDeletionFixture(t)
	f.docs.seed("SCHOOL_042", domain.CollectionStudents, 900)
	wf := f.walk(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wf, err := f.svc.Confirm(ctx, operator, wf.ID, "DELETE SCHOOL_042")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.State != domain.DeletionDone || wf.CommittedBatches != 2 {
		t.Errorf("workflow = %+v, want done with 2 batches", wf)
	}
	if len(f.tenants.deleted) != 1 {
		t.Errorf("root deleted %d times, want 1", len(f.tenants.deleted))
	}
}

func TestDeletion_RootDeleteFailure(t *testing.T) {
	f := newDeletionFixture(t)
	f.docs.seed("SCHOOL_042", domain.CollectionClasses, 3)
	f.tenants.deleteErr = errors.New("permission denied")
	wf := f.walk(t)

	_, err := f.svc.Confirm(context.Background(), operator, wf.ID, "DELETE SCHOOL_042")
	var perr *domain.PartialDeletionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PartialDeletionError, got %v", err)
	}
	if perr.CommittedBatches != 1 || perr.TotalBatches != 1 {
		t.Errorf("partial = %+v", perr)
	}
}

func TestDeletion_WorkflowBelongsToOperator(t *testing.T) {
	f := newDeletionFixture(t)
	wf, _ := f.svc.Begin(context.Background(), operator, "SCHOOL_042")

	_, err := f.svc.Acknowledge(context.Background(), "someone-else", wf.ID)
	if !errors.Is(err, domain.ErrWorkflowNotFound) {
		t.Errorf("expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestDeletion_BeginUnknownSchool(t *testing.T) {
	f := newDeletionFixture(t)
	_, err := f.svc.Begin(context.Background(), operator, "SCHOOL_999")
	if !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("expected ErrTenantNotFound, got %v", err)
	}
}
