package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

const tracerName = "github.com/neomorfeo/schooldesk/internal/adapter/otel"

func recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// TracingRepository wraps a domain.TenantRepository with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingRepository struct {
	next   domain.TenantRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.TenantRepository.
var _ domain.TenantRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.TenantRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) Create(ctx context.Context, tenant domain.Tenant) error {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Create",
		trace.WithAttributes(
			attribute.String("tenant.id", tenant.ID),
			attribute.String("tenant.principal_id", tenant.PrincipalID),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, tenant)
	recordError(span, err)
	return err
}

func (r *TracingRepository) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.GetByID",
		trace.WithAttributes(attribute.String("tenant.id", id)),
	)
	defer span.End()

	tenant, err := r.next.GetByID(ctx, id)
	recordError(span, err)
	return tenant, err
}

func (r *TracingRepository) List(ctx context.Context) ([]domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.List")
	defer span.End()

	tenants, err := r.next.List(ctx)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int("result.count", len(tenants)))
	}
	return tenants, err
}

func (r *TracingRepository) Update(ctx context.Context, tenant domain.Tenant) error {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Update",
		trace.WithAttributes(
			attribute.String("tenant.id", tenant.ID),
			attribute.String("tenant.status", string(tenant.Status)),
			attribute.String("tenant.payment_status", string(tenant.PaymentStatus)),
		),
	)
	defer span.End()

	err := r.next.Update(ctx, tenant)
	recordError(span, err)
	return err
}

func (r *TracingRepository) SetPaymentStatus(ctx context.Context, id string, from, to domain.PaymentStatus) (domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.SetPaymentStatus",
		trace.WithAttributes(
			attribute.String("tenant.id", id),
			attribute.String("payment_status.from", string(from)),
			attribute.String("payment_status.to", string(to)),
		),
	)
	defer span.End()

	tenant, err := r.next.SetPaymentStatus(ctx, id, from, to)
	recordError(span, err)
	return tenant, err
}

func (r *TracingRepository) SetStatus(ctx context.Context, id string, from, to domain.Status) (domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.SetStatus",
		trace.WithAttributes(
			attribute.String("tenant.id", id),
			attribute.String("status.from", string(from)),
			attribute.String("status.to", string(to)),
		),
	)
	defer span.End()

	tenant, err := r.next.SetStatus(ctx, id, from, to)
	recordError(span, err)
	return tenant, err
}

func (r *TracingRepository) SetTrialStart(ctx context.Context, id string, start time.Time, restart bool) (domain.Tenant, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.SetTrialStart",
		trace.WithAttributes(
			attribute.String("tenant.id", id),
			attribute.Bool("trial.restart", restart),
		),
	)
	defer span.End()

	tenant, err := r.next.SetTrialStart(ctx, id, start, restart)
	recordError(span, err)
	return tenant, err
}

func (r *TracingRepository) MarkCreationComplete(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.MarkCreationComplete",
		trace.WithAttributes(attribute.String("tenant.id", id)),
	)
	defer span.End()

	err := r.next.MarkCreationComplete(ctx, id)
	recordError(span, err)
	return err
}

func (r *TracingRepository) Delete(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.Delete",
		trace.WithAttributes(attribute.String("tenant.id", id)),
	)
	defer span.End()

	err := r.next.Delete(ctx, id)
	recordError(span, err)
	return err
}

func (r *TracingRepository) NextCode(ctx context.Context) (string, error) {
	ctx, span := r.tracer.Start(ctx, "TenantRepository.NextCode")
	defer span.End()

	code, err := r.next.NextCode(ctx)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.String("tenant.code", code))
	}
	return code, err
}

// TracingDocuments wraps a domain.DocumentStore with OpenTelemetry tracing.
type TracingDocuments struct {
	next   domain.DocumentStore
	tracer trace.Tracer
}

// Compile-time check: TracingDocuments implements domain.DocumentStore.
var _ domain.DocumentStore = (*TracingDocuments)(nil)

// NewTracingDocuments creates a tracing decorator around the given document store.
func NewTracingDocuments(next domain.DocumentStore) *TracingDocuments {
	return &TracingDocuments{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (d *TracingDocuments) ListIDs(ctx context.Context, tenantID, collection string) ([]string, error) {
	ctx, span := d.tracer.Start(ctx, "DocumentStore.ListIDs",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("collection", collection),
		),
	)
	defer span.End()

	ids, err := d.next.ListIDs(ctx, tenantID, collection)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int("result.count", len(ids)))
	}
	return ids, err
}

func (d *TracingDocuments) Count(ctx context.Context, tenantID, collection string, since *time.Time) (int, error) {
	ctx, span := d.tracer.Start(ctx, "DocumentStore.Count",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("collection", collection),
			attribute.Bool("count.since", since != nil),
		),
	)
	defer span.End()

	n, err := d.next.Count(ctx, tenantID, collection, since)
	recordError(span, err)
	return n, err
}

func (d *TracingDocuments) CountAll(ctx context.Context, collection string) (int, error) {
	ctx, span := d.tracer.Start(ctx, "DocumentStore.CountAll",
		trace.WithAttributes(attribute.String("collection", collection)),
	)
	defer span.End()

	n, err := d.next.CountAll(ctx, collection)
	recordError(span, err)
	return n, err
}

func (d *TracingDocuments) CommitDeletes(ctx context.Context, refs []domain.DocRef) error {
	ctx, span := d.tracer.Start(ctx, "DocumentStore.CommitDeletes",
		trace.WithAttributes(attribute.Int("batch.size", len(refs))),
	)
	defer span.End()

	err := d.next.CommitDeletes(ctx, refs)
	recordError(span, err)
	return err
}

func (d *TracingDocuments) PutAnnouncements(ctx context.Context, tenantIDs []string, a domain.Announcement) error {
	ctx, span := d.tracer.Start(ctx, "DocumentStore.PutAnnouncements",
		trace.WithAttributes(
			attribute.Int("batch.size", len(tenantIDs)),
			attribute.String("announcement.type", string(a.Type)),
		),
	)
	defer span.End()

	err := d.next.PutAnnouncements(ctx, tenantIDs, a)
	recordError(span, err)
	return err
}
