package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

const (
	// batchConcurrency bounds how many delete batches are in flight at once.
	batchConcurrency = 4

	// finishedWorkflowTTL is how long a done or failed workflow stays readable.
	finishedWorkflowTTL = time.Hour
)

// DeletionService drives the cascading delete of a school through its
// confirmation steps. Workflows live in memory and belong to the operator
// who started them.
type DeletionService struct {
	tenants   domain.TenantRepository
	docs      domain.DocumentStore
	identity  domain.IdentityProvider
	validator domain.TransitionValidator
	publisher domain.EventPublisher
	log       *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	workflows map[string]*domain.DeletionWorkflow
}

// NewDeletionService creates a service with the given adapters.
func NewDeletionService(
	tenants domain.TenantRepository,
	docs domain.DocumentStore,
	identity domain.IdentityProvider,
	validator domain.TransitionValidator,
	publisher domain.EventPublisher,
	log *slog.Logger,
) *DeletionService {
	return &DeletionService{
		tenants:   tenants,
		docs:      docs,
		identity:  identity,
		validator: validator,
		publisher: publisher,
		log:       log,
		now:       time.Now,
		workflows: make(map[string]*domain.DeletionWorkflow),
	}
}

// Begin opens a deletion workflow at the warning step.
func (s *DeletionService) Begin(ctx context.Context, operatorUID, tenantID string) (domain.DeletionWorkflow, error) {
	tenant, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return domain.DeletionWorkflow{}, err
	}

	now := s.now().UTC()
	wf := &domain.DeletionWorkflow{
		ID:          uuid.NewString(),
		TenantID:    tenant.ID,
		TenantName:  tenant.Name,
		OperatorUID: operatorUID,
		State:       domain.DeletionConfirmWarning,
		StartedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.prune(now)
	s.workflows[wf.ID] = wf
	s.mu.Unlock()

	s.log.InfoContext(ctx, "deletion workflow started", "workflow_id", wf.ID, "tenant_id", tenant.ID, "operator_uid", operatorUID)
	return *wf, nil
}

// prune drops finished workflows nobody looked at for a while. The caller
// holds s.mu.
func (s *DeletionService) prune(now time.Time) {
	for id, wf := range s.workflows {
		if wf.State.IsTerminal() && now.Sub(wf.UpdatedAt) > finishedWorkflowTTL {
			delete(s.workflows, id)
		}
	}
}

// Workflow returns a snapshot of one of the operator's workflows.
func (s *DeletionService) Workflow(_ context.Context, operatorUID, id string) (domain.DeletionWorkflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, err := s.get(operatorUID, id)
	if err != nil {
		return domain.DeletionWorkflow{}, err
	}
	return *wf, nil
}

func (s *DeletionService) get(operatorUID, id string) (*domain.DeletionWorkflow, error) {
	wf, ok := s.workflows[id]
	if !ok || wf.OperatorUID != operatorUID {
		return nil, domain.ErrWorkflowNotFound
	}
	return wf, nil
}

// advance applies event to the workflow if guard passes. guard runs without
// the lock held and sees the state the event will leave.
func (s *DeletionService) advance(ctx context.Context, operatorUID, id string, event domain.DeletionEvent, guard func(domain.DeletionWorkflow) error) (*domain.DeletionWorkflow, error) {
	s.mu.Lock()
	wf, err := s.get(operatorUID, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	snapshot := *wf
	s.mu.Unlock()

	next, err := s.validator.Apply(ctx, snapshot.State, event)
	if err != nil {
		return nil, err
	}
	if guard != nil {
		if err := guard(snapshot); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another request may have moved the workflow meanwhile.
	if wf.State != snapshot.State {
		return nil, &domain.TransitionError{Event: event, Current: wf.State}
	}
	wf.State = next
	wf.UpdatedAt = s.now().UTC()
	return wf, nil
}

// Acknowledge accepts the warning and asks for the operator's password.
func (s *DeletionService) Acknowledge(ctx context.Context, operatorUID, id string) (domain.DeletionWorkflow, error) {
	wf, err := s.advance(ctx, operatorUID, id, domain.DeletionAcknowledge, nil)
	if err != nil {
		return domain.DeletionWorkflow{}, err
	}
	return s.snapshot(wf), nil
}

// Reauthenticate checks the operator's own password. On failure the workflow
// stays where it is and domain.ErrInvalidCredentials is returned.
func (s *DeletionService) Reauthenticate(ctx context.Context, operatorUID, id, password string) (domain.DeletionWorkflow, error) {
	wf, err := s.advance(ctx, operatorUID, id, domain.DeletionReauthenticated, func(domain.DeletionWorkflow) error {
		if err := s.identity.Reauthenticate(ctx, operatorUID, password); err != nil {
			if errors.Is(err, domain.ErrInvalidCredentials) {
				s.log.WarnContext(ctx, "deletion reauthentication rejected", "workflow_id", id, "operator_uid", operatorUID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.DeletionWorkflow{}, err
	}
	return s.snapshot(wf), nil
}

// Confirm checks the typed phrase and, when it matches, deletes the school.
// It returns once the delete finished. A failure after the first commit is a
// *domain.PartialDeletionError: nothing is retried or rolled back. A failure
// before anything was committed is returned as a plain error.
//
// Once confirmed, the delete runs to completion even if the caller goes away.
func (s *DeletionService) Confirm(ctx context.Context, operatorUID, id, phrase string) (domain.DeletionWorkflow, error) {
	wf, err := s.advance(ctx, operatorUID, id, domain.DeletionConfirmed, func(cur domain.DeletionWorkflow) error {
		if expected := domain.ConfirmationPhrase(cur.TenantID); phrase != expected {
			return &domain.ConfirmationMismatchError{Expected: expected}
		}
		return nil
	})
	if err != nil {
		return domain.DeletionWorkflow{}, err
	}

	execErr := s.execute(context.WithoutCancel(ctx), wf)
	return s.snapshot(wf), execErr
}

func (s *DeletionService) snapshot(wf *domain.DeletionWorkflow) domain.DeletionWorkflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *wf
}

func (s *DeletionService) update(wf *domain.DeletionWorkflow, fn func(*domain.DeletionWorkflow)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(wf)
	wf.UpdatedAt = s.now().UTC()
}

// execute enumerates the school's documents, commits every batch and deletes
// the root record last.
func (s *DeletionService) execute(ctx context.Context, wf *domain.DeletionWorkflow) error {
	cur := s.snapshot(wf)
	tenantID := cur.TenantID
	tenant := domain.Tenant{ID: tenantID, Name: cur.TenantName}

	docs := make(map[string][]string, len(domain.OwnedCollections))
	for _, coll := range domain.OwnedCollections {
		ids, err := s.docs.ListIDs(ctx, tenantID, coll)
		if err != nil {
			return s.fail(ctx, wf, tenant, 0, 0, fmt.Errorf("listing %s: %w", coll, err))
		}
		docs[coll] = ids
	}

	batches := domain.PlanDeletion(tenantID, docs)
	s.update(wf, func(w *domain.DeletionWorkflow) { w.TotalBatches = len(batches) })
	s.log.InfoContext(ctx, "deleting school", "workflow_id", cur.ID, "tenant_id", tenantID, "batches", len(batches))

	var committed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, b := range batches {
		g.Go(func() error {
			if err := s.docs.CommitDeletes(gctx, b.Ops); err != nil {
				return fmt.Errorf("committing %s batch: %w", b.Collection, err)
			}
			n := committed.Add(1)
			s.update(wf, func(w *domain.DeletionWorkflow) { w.CommittedBatches = int(n) })
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return s.fail(ctx, wf, tenant, int(committed.Load()), len(batches), err)
	}

	if err := s.tenants.Delete(ctx, tenantID); err != nil {
		return s.fail(ctx, wf, tenant, len(batches), len(batches), fmt.Errorf("deleting school record: %w", err))
	}

	next, err := s.validator.Apply(ctx, domain.DeletionExecuting, domain.DeletionSucceeded)
	if err != nil {
		return err
	}
	s.update(wf, func(w *domain.DeletionWorkflow) { w.State = next })

	s.log.InfoContext(ctx, "school deleted", "workflow_id", cur.ID, "tenant_id", tenantID, "batches", len(batches))
	publish(ctx, s.publisher, s.log, domain.EventTenantDeleted, tenant)
	return nil
}

// fail moves the workflow to failed. Only a run that committed at least one
// batch is reported and published as partial; otherwise nothing was removed.
func (s *DeletionService) fail(ctx context.Context, wf *domain.DeletionWorkflow, tenant domain.Tenant, committed, total int, err error) error {
	var out error
	if committed > 0 {
		out = &domain.PartialDeletionError{
			TenantID:         tenant.ID,
			CommittedBatches: committed,
			TotalBatches:     total,
			Err:              err,
		}
	} else {
		out = fmt.Errorf("deleting school %s: %w", tenant.ID, err)
	}

	next, applyErr := s.validator.Apply(ctx, domain.DeletionExecuting, domain.DeletionFailedEvent)
	if applyErr != nil {
		next = domain.DeletionFailed
	}
	s.update(wf, func(w *domain.DeletionWorkflow) {
		w.State = next
		w.Error = out.Error()
	})

	if committed == 0 {
		s.log.ErrorContext(ctx, "school deletion failed, nothing was deleted",
			"workflow_id", wf.ID,
			"tenant_id", tenant.ID,
			"error", err,
		)
		return out
	}

	s.log.ErrorContext(ctx, "school deletion partially failed",
		"workflow_id", wf.ID,
		"tenant_id", tenant.ID,
		"committed_batches", committed,
		"total_batches", total,
		"error", err,
	)
	publish(ctx, s.publisher, s.log, domain.EventTenantDeletionPartial, tenant)
	return out
}
