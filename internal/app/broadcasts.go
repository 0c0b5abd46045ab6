package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// BroadcastService pushes announcements to every school.
type BroadcastService struct {
	tenants domain.TenantRepository
	docs    domain.DocumentStore
	log     *slog.Logger
	now     func() time.Time
}

// NewBroadcastService creates a service with the given adapters.
func NewBroadcastService(tenants domain.TenantRepository, docs domain.DocumentStore, log *slog.Logger) *BroadcastService {
	return &BroadcastService{tenants: tenants, docs: docs, log: log, now: time.Now}
}

// BroadcastInput is the announcement an operator sends.
type BroadcastInput struct {
	Message string                  `json:"message" validate:"required,max=2000"`
	Type    domain.AnnouncementType `json:"type" validate:"required,oneof=info warning success"`
}

// Send replaces the broadcast slot of every school, in batches of at most
// domain.DeleteBatchSize schools. It returns the number of schools reached.
// Batches are committed one after another; a failure leaves the earlier ones
// in place.
func (s *BroadcastService) Send(ctx context.Context, in BroadcastInput) (int, error) {
	if err := check(in); err != nil {
		return 0, err
	}

	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return 0, err
	}

	a := domain.Announcement{
		Message:     in.Message,
		Type:        in.Type,
		SentAt:      s.now().UTC(),
		Active:      true,
		DismissedBy: []string{},
	}

	ids := make([]string, len(tenants))
	for i, t := range tenants {
		ids[i] = t.ID
	}

	sent := 0
	for start := 0; start < len(ids); start += domain.DeleteBatchSize {
		chunk := ids[start:min(start+domain.DeleteBatchSize, len(ids))]
		if err := s.docs.PutAnnouncements(ctx, chunk, a); err != nil {
			return sent, fmt.Errorf("broadcasting to %d of %d schools: %w", sent, len(ids), err)
		}
		sent += len(chunk)
	}

	s.log.InfoContext(ctx, "announcement broadcast", "type", string(in.Type), "schools", sent)
	return sent, nil
}
