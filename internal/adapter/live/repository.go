package live

import (
	"context"
	"time"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// Compile-time check: NotifyingRepository implements domain.TenantRepository.
var _ domain.TenantRepository = (*NotifyingRepository)(nil)

// NotifyingRepository wraps a TenantRepository and notifies the hub after
// every successful write.
type NotifyingRepository struct {
	next domain.TenantRepository
	hub  *Hub
}

// NewNotifyingRepository creates the decorator.
func NewNotifyingRepository(next domain.TenantRepository, hub *Hub) *NotifyingRepository {
	return &NotifyingRepository{next: next, hub: hub}
}

func (r *NotifyingRepository) notify(err error) error {
	if err == nil {
		r.hub.Notify()
	}
	return err
}

func (r *NotifyingRepository) Create(ctx context.Context, tenant domain.Tenant) error {
	return r.notify(r.next.Create(ctx, tenant))
}

func (r *NotifyingRepository) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	return r.next.GetByID(ctx, id)
}

func (r *NotifyingRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	return r.next.List(ctx)
}

func (r *NotifyingRepository) Update(ctx context.Context, tenant domain.Tenant) error {
	return r.notify(r.next.Update(ctx, tenant))
}

func (r *NotifyingRepository) SetPaymentStatus(ctx context.Context, id string, from, to domain.PaymentStatus) (domain.Tenant, error) {
	t, err := r.next.SetPaymentStatus(ctx, id, from, to)
	return t, r.notify(err)
}

func (r *NotifyingRepository) SetStatus(ctx context.Context, id string, from, to domain.Status) (domain.Tenant, error) {
	t, err := r.next.SetStatus(ctx, id, from, to)
	return t, r.notify(err)
}

func (r *NotifyingRepository) SetTrialStart(ctx context.Context, id string, start time.Time, restart bool) (domain.Tenant, error) {
	t, err := r.next.SetTrialStart(ctx, id, start, restart)
	return t, r.notify(err)
}

func (r *NotifyingRepository) MarkCreationComplete(ctx context.Context, id string) error {
	return r.notify(r.next.MarkCreationComplete(ctx, id))
}

func (r *NotifyingRepository) Delete(ctx context.Context, id string) error {
	return r.notify(r.next.Delete(ctx, id))
}

func (r *NotifyingRepository) NextCode(ctx context.Context) (string, error) {
	return r.next.NextCode(ctx)
}
