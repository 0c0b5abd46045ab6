package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/schooldesk/internal/app"
	"github.com/neomorfeo/schooldesk/internal/domain"
)

// --- Dashboard ---

type DashboardInput struct {
	TZ string `query:"tz" required:"false" doc:"IANA time zone used for trial dates"`
}

type DashboardOutput struct {
	Body struct {
		Schools  int               `json:"schools"`
		Paid     int               `json:"paid"`
		Unpaid   int               `json:"unpaid"`
		Students int               `json:"students"`
		Teachers int               `json:"teachers"`
		Parents  int               `json:"parents"`
		Counts   TabCountsResponse `json:"counts"`
		Urgent   []TenantResponse  `json:"urgent" doc:"Schools whose trial needs attention first"`
	}
}

// --- Broadcasts ---

type BroadcastInput struct {
	Body struct {
		Message string `json:"message" minLength:"1" maxLength:"2000"`
		Type    string `json:"type" enum:"info,warning,success" default:"info"`
	}
}

type BroadcastOutput struct {
	Body struct {
		Sent int `json:"sent" doc:"Number of schools that received the announcement"`
	}
}

// --- Settings ---

type SettingsBody = map[string]map[string]any

type SettingsOutput struct {
	Body SettingsBody
}

type SaveSettingsInput struct {
	Body SettingsBody
}

func (h *handler) registerConsole() {
	huma.Register(h.api, secured(huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/dashboard",
		Summary:     "Platform overview",
		Tags:        []string{"Dashboard"},
	}), func(ctx context.Context, input *DashboardInput) (*DashboardOutput, error) {
		loc, err := location(input.TZ)
		if err != nil {
			return nil, err
		}
		d, err := h.Stats.Dashboard(ctx, loc)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}

		out := &DashboardOutput{}
		out.Body.Schools = d.Schools
		out.Body.Paid = d.Paid
		out.Body.Unpaid = d.Unpaid
		out.Body.Students = d.Students
		out.Body.Teachers = d.Teachers
		out.Body.Parents = d.Parents
		out.Body.Counts = toTabCounts(d.Counts)
		out.Body.Urgent = make([]TenantResponse, len(d.Urgent))
		for i, v := range d.Urgent {
			out.Body.Urgent[i] = toTenantResponse(v)
		}
		return out, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "send-broadcast",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/broadcasts",
		Summary:     "Announce a message to every school",
		Description: "Replaces the current announcement of every school.",
		Tags:        []string{"Broadcasts"},
	}), func(ctx context.Context, input *BroadcastInput) (*BroadcastOutput, error) {
		n, err := h.Broadcasts.Send(ctx, app.BroadcastInput{
			Message: input.Body.Message,
			Type:    domain.AnnouncementType(input.Body.Type),
		})
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		out := &BroadcastOutput{}
		out.Body.Sent = n
		return out, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "get-settings",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/settings",
		Summary:     "Get global settings",
		Tags:        []string{"Settings"},
	}), func(ctx context.Context, _ *struct{}) (*SettingsOutput, error) {
		s, err := h.Settings.Get(ctx)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &SettingsOutput{Body: s}, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "save-settings",
		Method:      http.MethodPut,
		Path:        apiPrefix + "/settings",
		Summary:     "Merge settings groups",
		Description: "Keys of each group are merged into the stored settings; absent groups are kept.",
		Tags:        []string{"Settings"},
	}), func(ctx context.Context, input *SaveSettingsInput) (*SettingsOutput, error) {
		s, err := h.Settings.Save(ctx, input.Body)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &SettingsOutput{Body: s}, nil
	})
}
