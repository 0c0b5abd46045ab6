package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// dashboardRows is the size of the urgency queue on the dashboard.
const dashboardRows = 5

// StatsService computes platform-wide figures.
type StatsService struct {
	tenants domain.TenantRepository
	docs    domain.DocumentStore
	now     func() time.Time
}

// NewStatsService creates a service with the given adapters.
func NewStatsService(tenants domain.TenantRepository, docs domain.DocumentStore) *StatsService {
	return &StatsService{tenants: tenants, docs: docs, now: time.Now}
}

// Dashboard is the platform overview.
type Dashboard struct {
	Schools  int
	Paid     int
	Unpaid   int
	Students int
	Teachers int
	Parents  int
	Counts   domain.TabCounts
	// Urgent holds the first schools of the trial urgency queue.
	Urgent []domain.TenantView
}

// Dashboard gathers the overview. The cross-school counts are issued
// concurrently and joined before anything is returned.
func (s *StatsService) Dashboard(ctx context.Context, loc *time.Location) (Dashboard, error) {
	var d Dashboard
	var tenants []domain.Tenant

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tenants, err = s.tenants.List(gctx)
		return err
	})
	for coll, dst := range map[string]*int{
		domain.CollectionStudents: &d.Students,
		domain.CollectionTeachers: &d.Teachers,
		domain.CollectionParents:  &d.Parents,
	} {
		g.Go(func() error {
			n, err := s.docs.CountAll(gctx, coll)
			if err != nil {
				return fmt.Errorf("counting %s: %w", coll, err)
			}
			*dst = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	now := s.now().UTC()
	if loc != nil {
		now = now.In(loc)
	}
	sorted := domain.SortTenants(domain.Annotate(tenants, now))

	d.Schools = len(sorted)
	d.Counts = domain.CountTabs(sorted)
	d.Unpaid = d.Counts.Unpaid
	d.Paid = d.Schools - d.Unpaid
	d.Urgent = sorted[:min(dashboardRows, len(sorted))]
	return d, nil
}
