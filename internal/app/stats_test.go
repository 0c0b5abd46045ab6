package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/neomorfeo/schooldesk/internal/app"
	"github.com/neomorfeo/schooldesk/internal/domain"
)

func TestDashboard(t *testing.T) {
	tenants := newMockTenants()
	now := time.Now()
	for i := 1; i <= 7; i++ {
		start := now.Add(-time.Duration(i) * 24 * time.Hour)
		payment := domain.PaymentUnpaid
		if i%2 == 0 {
			payment = domain.PaymentPaid
		}
		tenants.put(domain.Tenant{
			ID:             fmt.Sprintf("SCHOOL_%03d", i),
			Status:         domain.StatusActive,
			PaymentStatus:  payment,
			TrialStartDate: &start,
		})
	}
	docs := newMockDocs()
	docs.counts["*/students"] = 300
	docs.counts["*/teachers"] = 20
	docs.counts["*/parents"] = 250

	d, err := app.NewStatsService(tenants, docs).Dashboard(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.Schools != 7 || d.Paid != 3 || d.Unpaid != 4 {
		t.Errorf("schools = %d paid = %d unpaid = %d", d.Schools, d.Paid, d.Unpaid)
	}
	if d.Students != 300 || d.Teachers != 20 || d.Parents != 250 {
		t.Errorf("counts = %d/%d/%d", d.Students, d.Teachers, d.Parents)
	}
	if len(d.Urgent) != 5 {
		t.Fatalf("urgent = %d rows, want 5", len(d.Urgent))
	}
	// Oldest trial has the fewest days left.
	if d.Urgent[0].ID != "SCHOOL_007" {
		t.Errorf("first urgent = %q, want SCHOOL_007", d.Urgent[0].ID)
	}
}
