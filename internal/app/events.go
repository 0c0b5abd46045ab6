package app

import (
	"context"
	"log/slog"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// publish emits a lifecycle event. The write it describes is already committed
// by the time it runs, so a publishing failure is logged and never returned.
func publish(ctx context.Context, pub domain.EventPublisher, log *slog.Logger, event domain.Event, tenant domain.Tenant) {
	if err := pub.Publish(ctx, event, tenant); err != nil {
		log.ErrorContext(ctx, "publishing event failed",
			"event", string(event),
			"tenant_id", tenant.ID,
			"error", err,
		)
	}
}
