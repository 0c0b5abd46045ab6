package river

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// EventWorker writes the audit trail of school events. Partial failures are
// logged at error level and, when an alert address is configured, mailed to
// the operators on call.
type EventWorker struct {
	river.WorkerDefaults[EventJobArgs]

	log     *slog.Logger
	mailer  domain.Mailer
	alertTo string
}

// NewEventWorker creates the worker. mailer may be nil when alertTo is empty.
func NewEventWorker(log *slog.Logger, mailer domain.Mailer, alertTo string) *EventWorker {
	return &EventWorker{log: log, mailer: mailer, alertTo: alertTo}
}

// Work processes a single event job.
func (w *EventWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	attrs := []any{
		"event", job.Args.Event,
		"tenant_id", job.Args.TenantID,
		"tenant_name", job.Args.Name,
		"principal_id", job.Args.PrincipalID,
		"occurred_at", job.Args.OccurredAt,
		"job_id", job.ID,
		"attempt", job.Attempt,
	}

	if !job.Args.Partial() {
		w.log.InfoContext(ctx, "school event", attrs...)
		return nil
	}

	w.log.ErrorContext(ctx, "partial failure, manual remediation may be needed", attrs...)
	if w.alertTo == "" || w.mailer == nil {
		return nil
	}

	// A failed send is retried by River with backoff.
	err := w.mailer.Send(ctx, domain.Message{
		To:      w.alertTo,
		Subject: fmt.Sprintf("Partial failure on %s", job.Args.TenantID),
		Text: fmt.Sprintf("Event %s left school %s (%s) half written at %s.\nPrincipal uid: %s\nCreation state: %s\n\nManual remediation may be needed.",
			job.Args.Event, job.Args.TenantID, job.Args.Name,
			job.Args.OccurredAt.Format("2006-01-02 15:04:05 MST"),
			job.Args.PrincipalID, job.Args.CreationState),
	})
	if err != nil {
		return fmt.Errorf("sending partial failure alert: %w", err)
	}
	return nil
}
