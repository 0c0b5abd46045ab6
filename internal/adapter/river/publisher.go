package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// QueueAlerts carries partial-failure events ahead of routine audit jobs.
const QueueAlerts = "alerts"

// EventJobArgs carries the data needed to process a school event asynchronously.
// River serializes this as JSON into its job queue table. It includes a snapshot
// of the school at the time the event was published, so the worker never needs
// to query the database.
type EventJobArgs struct {
	Event         string    `json:"event"`
	TenantID      string    `json:"tenant_id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PrincipalID   string    `json:"principal_id"`
	CreationState string    `json:"creation_state"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (EventJobArgs) Kind() string { return "school.event" }

// Partial reports whether the event records a half-applied multi-record write.
func (a EventJobArgs) Partial() bool {
	return domain.Event(a.Event).IsPartial()
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
	now    func() time.Time
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client, now: time.Now}
}

// Publish enqueues a school event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.Event, tenant domain.Tenant) error {
	args := EventJobArgs{
		Event:         string(event),
		TenantID:      tenant.ID,
		Name:          tenant.Name,
		Status:        string(tenant.Status),
		PaymentStatus: string(tenant.PaymentStatus),
		PrincipalID:   tenant.PrincipalID,
		CreationState: string(tenant.CreationState),
		OccurredAt:    p.now().UTC(),
	}

	var opts *river.InsertOpts
	if args.Partial() {
		opts = &river.InsertOpts{Queue: QueueAlerts, Priority: 1}
	}

	if _, err := p.client.Insert(ctx, args, opts); err != nil {
		return fmt.Errorf("enqueuing event job: %w", err)
	}
	return nil
}
