package mail

import (
	"context"
	"log/slog"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// Compile-time check: Console implements domain.Mailer.
var _ domain.Mailer = (*Console)(nil)

// Console logs messages instead of delivering them. It is the development
// default and keeps reset links visible in the service log.
type Console struct {
	log *slog.Logger
}

// NewConsole creates a logging mailer.
func NewConsole(log *slog.Logger) *Console {
	return &Console{log: log}
}

func (c *Console) Send(ctx context.Context, msg domain.Message) error {
	c.log.InfoContext(ctx, "email",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
