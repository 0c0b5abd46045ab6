package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// CompareTrial orders two trial states for the dashboard urgency queue:
// not-started trials sink to the bottom, expired trials float to the top of the
// started group, and running trials with fewer days left come first. Any other
// pair compares equal so that a stable sort keeps the store's order.
func CompareTrial(a, b TrialInfo) int {
	if a.NotStarted != b.NotStarted {
		if a.NotStarted {
			return 1
		}
		return -1
	}
	if a.NotStarted {
		return 0
	}

	if a.IsExpired != b.IsExpired {
		if a.IsExpired {
			return -1
		}
		return 1
	}
	if a.IsExpired {
		return 0
	}

	return cmp.Compare(a.DaysLeft, b.DaysLeft)
}

// SortTenants returns a stably sorted copy of views. The input is not modified.
func SortTenants(views []TenantView) []TenantView {
	out := slices.Clone(views)
	slices.SortStableFunc(out, func(a, b TenantView) int {
		return CompareTrial(a.Trial, b.Trial)
	})
	return out
}

// Tab is a category of the school directory.
type Tab string

const (
	TabRecent    Tab = "recent"
	TabActive    Tab = "active"
	TabUnpaid    Tab = "unpaid"
	TabSuspended Tab = "suspended"
)

// Tabs lists every directory tab in display order.
var Tabs = []Tab{TabRecent, TabActive, TabUnpaid, TabSuspended}

// ParseTab validates a tab name.
func ParseTab(s string) (Tab, error) {
	for _, t := range Tabs {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tab %q", s)
}

// Matches reports whether a school belongs to the tab.
func (t Tab) Matches(tenant Tenant) bool {
	switch t {
	case TabRecent:
		return true
	case TabActive:
		return tenant.Status.IsActive()
	case TabUnpaid:
		return !tenant.PaymentStatus.IsPaid()
	case TabSuspended:
		return tenant.Status.IsInactive()
	default:
		return false
	}
}

// FilterTenants keeps the schools matching tab, preserving their order.
func FilterTenants(views []TenantView, tab Tab) []TenantView {
	out := make([]TenantView, 0, len(views))
	for _, v := range views {
		if tab.Matches(v.Tenant) {
			out = append(out, v)
		}
	}
	return out
}

// TabCounts holds the badge numbers of the directory tabs.
type TabCounts struct {
	Recent    int
	Active    int
	Unpaid    int
	Suspended int
}

// CountTabs counts every tab over the full, untruncated set.
func CountTabs(views []TenantView) TabCounts {
	var c TabCounts
	for _, v := range views {
		c.Recent++
		if TabActive.Matches(v.Tenant) {
			c.Active++
		}
		if TabUnpaid.Matches(v.Tenant) {
			c.Unpaid++
		}
		if TabSuspended.Matches(v.Tenant) {
			c.Suspended++
		}
	}
	return c
}

// SearchTenants keeps schools whose name or code contains term, ignoring case.
// An empty term matches everything.
func SearchTenants(views []TenantView, term string) []TenantView {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return views
	}
	out := make([]TenantView, 0, len(views))
	for _, v := range views {
		if strings.Contains(strings.ToLower(v.Name), term) || strings.Contains(strings.ToLower(v.ID), term) {
			out = append(out, v)
		}
	}
	return out
}
