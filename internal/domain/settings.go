package domain

import (
	"fmt"
	"maps"
	"time"
)

// Settings groups.
const (
	SettingsGeneral       = "general"
	SettingsBilling       = "billing"
	SettingsSystem        = "system"
	SettingsNotifications = "notifications"
	SettingsAppearance    = "appearance"
)

// SettingsGroups lists the known groups.
var SettingsGroups = []string{SettingsGeneral, SettingsBilling, SettingsSystem, SettingsNotifications, SettingsAppearance}

// Settings is the global configuration blob: named groups of scalar values.
// It is read and written wholesale.
type Settings map[string]map[string]any

// DefaultSettings returns the values used before anything was saved.
func DefaultSettings() Settings {
	return Settings{
		SettingsGeneral: {
			"platformName": "School Management SaaS",
			"supportEmail": "support@schoolsaas.com",
			"supportPhone": "+1 (555) 000-0000",
			"timezone":     "UTC",
		},
		SettingsBilling: {
			"currency":           "USD",
			"standardMonthlyFee": "99",
			"trialPeriodDays":    fmt.Sprint(TrialDays),
		},
		SettingsSystem: {
			"maintenanceMode":           false,
			"allowNewRegistrations":     true,
			"enforcePasswordComplexity": true,
		},
		SettingsNotifications: {
			"emailOnNewSchool":      true,
			"emailOnPaymentFailure": true,
			"systemAlerts":          true,
		},
		SettingsAppearance: {
			"theme": "dark",
		},
	}
}

// Merge overlays patch onto s group by group and returns the result.
// Neither input is modified.
func (s Settings) Merge(patch Settings) Settings {
	out := make(Settings, len(s))
	for group, values := range s {
		out[group] = maps.Clone(values)
	}
	for group, values := range patch {
		if out[group] == nil {
			out[group] = make(map[string]any, len(values))
		}
		maps.Copy(out[group], values)
	}
	return out
}

// Validate rejects nested values; every group must be a flat map of scalars.
func (s Settings) Validate() error {
	for group, values := range s {
		for key, v := range values {
			switch v.(type) {
			case nil, string, bool, float64, float32, int, int64:
			default:
				return &ValidationError{Fields: []FieldError{{
					Field:   group + "." + key,
					Message: fmt.Sprintf("unsupported value type %T", v),
				}}}
			}
		}
	}
	return nil
}

// AnnouncementType is the visual severity of a broadcast.
type AnnouncementType string

const (
	AnnouncementInfo    AnnouncementType = "info"
	AnnouncementWarning AnnouncementType = "warning"
	AnnouncementSuccess AnnouncementType = "success"
)

// BroadcastDocumentID is the single announcement slot each school holds.
const BroadcastDocumentID = "global_broadcast"

// Announcement is a message pushed to every school's portal.
type Announcement struct {
	Message     string
	Type        AnnouncementType
	SentAt      time.Time
	Active      bool
	DismissedBy []string
}
