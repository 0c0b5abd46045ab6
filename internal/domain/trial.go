package domain

import "time"

const (
	// TrialDays is the length of the free trial window.
	TrialDays = 14

	day = 24 * time.Hour

	// TrialDuration is plain 24h arithmetic; DST shifts are not corrected.
	TrialDuration = TrialDays * day

	trialDateLayout = "1/2/2006"
	noDate          = "--"
)

// TrialInfo is the derived state of a school's trial window.
type TrialInfo struct {
	NotStarted         bool
	DaysLeft           int
	IsExpired          bool
	StartDateFormatted string
	EndDateFormatted   string
}

// ComputeTrialInfo evaluates a trial window at the instant now. A nil start
// means the trial was never started. Dates are formatted in now's location.
func ComputeTrialInfo(start *time.Time, now time.Time) TrialInfo {
	if start == nil {
		return TrialInfo{
			NotStarted:         true,
			DaysLeft:           TrialDays,
			StartDateFormatted: noDate,
			EndDateFormatted:   noDate,
		}
	}

	end := start.Add(TrialDuration)
	daysLeft := ceilDays(end.Sub(now))
	expired := daysLeft <= 0
	if expired {
		daysLeft = 0
	}

	loc := now.Location()
	return TrialInfo{
		DaysLeft:           daysLeft,
		IsExpired:          expired,
		StartDateFormatted: start.In(loc).Format(trialDateLayout),
		EndDateFormatted:   end.In(loc).Format(trialDateLayout),
	}
}

// ceilDays rounds d up to whole days. Integer division truncates toward zero,
// which is already the ceiling for negative durations.
func ceilDays(d time.Duration) int {
	days := int(d / day)
	if d > 0 && d%day != 0 {
		days++
	}
	return days
}

// TenantView is a school annotated with its trial state, as shown in listings.
type TenantView struct {
	Tenant
	Trial TrialInfo
}

// Annotate computes the trial state of every school at the instant now.
func Annotate(tenants []Tenant, now time.Time) []TenantView {
	out := make([]TenantView, len(tenants))
	for i, t := range tenants {
		out[i] = TenantView{Tenant: t, Trial: ComputeTrialInfo(t.TrialStartDate, now)}
	}
	return out
}
