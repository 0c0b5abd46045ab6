package domain_test

import (
	"testing"
	"time"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

func ptr(t time.Time) *time.Time { return &t }

func TestComputeTrialInfo_NotStarted(t *testing.T) {
	got := domain.ComputeTrialInfo(nil, time.Now())
	want := domain.TrialInfo{
		NotStarted:         true,
		DaysLeft:           14,
		StartDateFormatted: "--",
		EndDateFormatted:   "--",
	}
	if got != want {
		t.Errorf("ComputeTrialInfo(nil) = %+v, want %+v", got, want)
	}
}

func TestComputeTrialInfo_Boundaries(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	cases := []struct {
		name     string
		start    time.Time
		daysLeft int
		expired  bool
	}{
		{"just started", now, 14, false},
		{"one hour in", now.Add(-time.Hour), 14, false},
		{"exactly one day in", now.Add(-day), 13, false},
		{"last hour", now.Add(-14*day + time.Hour), 1, false},
		{"ends exactly now", now.Add(-14 * day), 0, true},
		{"one hour past", now.Add(-14*day - time.Hour), 0, true},
		{"long expired", now.Add(-40 * day), 0, true},
		{"starts in the future", now.Add(2 * day), 16, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := domain.ComputeTrialInfo(ptr(tc.start), now)
			if got.NotStarted {
				t.Fatal("NotStarted = true for a started trial")
			}
			if got.DaysLeft != tc.daysLeft {
				t.Errorf("DaysLeft = %d, want %d", got.DaysLeft, tc.daysLeft)
			}
			if got.IsExpired != tc.expired {
				t.Errorf("IsExpired = %v, want %v", got.IsExpired, tc.expired)
			}
		})
	}
}

func TestComputeTrialInfo_DaysLeftNeverNegative(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for h := -2000; h <= 2000; h += 7 {
		got := domain.ComputeTrialInfo(ptr(now.Add(time.Duration(h)*time.Hour)), now)
		if got.DaysLeft < 0 {
			t.Fatalf("start offset %dh: DaysLeft = %d", h, got.DaysLeft)
		}
		if got.IsExpired != (got.DaysLeft == 0) {
			t.Fatalf("start offset %dh: IsExpired = %v with DaysLeft = %d", h, got.IsExpired, got.DaysLeft)
		}
	}
}

func TestComputeTrialInfo_FormatsInCallerLocation(t *testing.T) {
	start := time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC)

	utc := domain.ComputeTrialInfo(&start, start)
	if utc.StartDateFormatted != "3/5/2024" || utc.EndDateFormatted != "3/19/2024" {
		t.Errorf("UTC dates = %q, %q", utc.StartDateFormatted, utc.EndDateFormatted)
	}

	nairobi := time.FixedZone("EAT", 3*3600)
	local := domain.ComputeTrialInfo(&start, start.In(nairobi))
	if local.StartDateFormatted != "3/6/2024" || local.EndDateFormatted != "3/20/2024" {
		t.Errorf("EAT dates = %q, %q", local.StartDateFormatted, local.EndDateFormatted)
	}
}

// Starting a trial at now and evaluating it at the same now yields a full window.
func TestComputeTrialInfo_FreshStartHasFullWindow(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

	before := domain.ComputeTrialInfo(nil, now)
	if !before.NotStarted {
		t.Fatal("unset trial should report NotStarted")
	}

	after := domain.ComputeTrialInfo(&now, now)
	if after.NotStarted || after.DaysLeft != 14 || after.IsExpired {
		t.Errorf("after start = %+v, want 14 days left and not expired", after)
	}
}

func TestAnnotate(t *testing.T) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	tenants := []domain.Tenant{
		{ID: "SCHOOL_001"},
		{ID: "SCHOOL_002", TrialStartDate: ptr(now.Add(-10 * 24 * time.Hour))},
	}

	views := domain.Annotate(tenants, now)
	if len(views) != 2 {
		t.Fatalf("len = %d, want 2", len(views))
	}
	if !views[0].Trial.NotStarted {
		t.Error("first school should not have started its trial")
	}
	if views[1].Trial.DaysLeft != 4 {
		t.Errorf("second school DaysLeft = %d, want 4", views[1].Trial.DaysLeft)
	}
	if views[1].ID != "SCHOOL_002" {
		t.Errorf("ID = %q, want SCHOOL_002", views[1].ID)
	}
}
