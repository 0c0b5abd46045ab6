package http

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/neomorfeo/schooldesk/internal/app"
	"github.com/neomorfeo/schooldesk/internal/domain"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// TrialResponse is the trial state of a school at request time.
type TrialResponse struct {
	NotStarted bool   `json:"notStarted"`
	DaysLeft   int    `json:"daysLeft"`
	IsExpired  bool   `json:"isExpired"`
	StartDate  string `json:"startDate" doc:"Formatted start date, or N/A"`
	EndDate    string `json:"endDate" doc:"Formatted end date, or N/A"`
}

// TenantResponse is the API representation of a school.
type TenantResponse struct {
	ID            string        `json:"id" doc:"School code"`
	Name          string        `json:"name"`
	Address       string        `json:"address"`
	Contact       string        `json:"contact"`
	Status        string        `json:"status" doc:"active, suspended or stop"`
	StatusLabel   string        `json:"statusLabel"`
	PaymentStatus string        `json:"paymentStatus" doc:"paid or unpaid"`
	PrincipalID   string        `json:"principalId"`
	CreationState string        `json:"creationState" doc:"pending until the principal records are written"`
	Trial         TrialResponse `json:"trial"`
	CreatedAt     string        `json:"createdAt" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt     string        `json:"updatedAt" doc:"Last update timestamp (ISO 8601)"`
	Students      *int          `json:"students,omitempty"`
}

func toTenantResponse(v domain.TenantView) TenantResponse {
	t := v.Tenant
	return TenantResponse{
		ID:            t.ID,
		Name:          t.Name,
		Address:       t.Address,
		Contact:       t.Contact,
		Status:        string(t.Status),
		StatusLabel:   t.Status.Label(),
		PaymentStatus: string(t.PaymentStatus),
		PrincipalID:   t.PrincipalID,
		CreationState: string(t.CreationState),
		Trial: TrialResponse{
			NotStarted: v.Trial.NotStarted,
			DaysLeft:   v.Trial.DaysLeft,
			IsExpired:  v.Trial.IsExpired,
			StartDate:  v.Trial.StartDateFormatted,
			EndDate:    v.Trial.EndDateFormatted,
		},
		CreatedAt: t.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt: t.UpdatedAt.UTC().Format(timestampLayout),
	}
}

// bare annotates a freshly written school. Trial fields are recomputed by
// the next read.
func bare(t domain.Tenant) TenantResponse {
	return toTenantResponse(domain.TenantView{Tenant: t, Trial: domain.ComputeTrialInfo(t.TrialStartDate, time.Now())})
}

// PrincipalResponse is the principal shown on a school's detail page.
type PrincipalResponse struct {
	UID     string `json:"uid"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// TabCountsResponse holds the size of every directory tab.
type TabCountsResponse struct {
	Recent    int `json:"recent"`
	Active    int `json:"active"`
	Unpaid    int `json:"unpaid"`
	Suspended int `json:"suspended"`
}

func toTabCounts(c domain.TabCounts) TabCountsResponse {
	return TabCountsResponse(c)
}

// --- List / stream ---

type ListTenantsInput struct {
	Tab    string `query:"tab" enum:"recent,active,unpaid,suspended" default:"recent" doc:"Directory tab"`
	Search string `query:"search" required:"false" doc:"Case-insensitive name or code search"`
	Limit  int    `query:"limit" required:"false" minimum:"0" default:"0" doc:"Max results after filtering, 0 for all"`
	Stats  bool   `query:"stats" required:"false" doc:"Include student counts"`
	TZ     string `query:"tz" required:"false" doc:"IANA time zone used for trial dates"`
}

type ListingResponse struct {
	Tenants []TenantResponse  `json:"tenants"`
	Counts  TabCountsResponse `json:"counts"`
	Matched int               `json:"matched" doc:"Schools in the tab before the limit"`
}

type ListTenantsOutput struct {
	Body ListingResponse
}

func (in *ListTenantsInput) query() (app.ListingQuery, error) {
	q := app.ListingQuery{Search: in.Search, Limit: in.Limit, IncludeStats: in.Stats}
	if in.Tab != "" {
		tab, err := domain.ParseTab(in.Tab)
		if err != nil {
			return q, huma.Error422UnprocessableEntity(err.Error())
		}
		q.Tab = tab
	}
	loc, err := location(in.TZ)
	if err != nil {
		return q, err
	}
	q.Location = loc
	return q, nil
}

// Resolve rejects an unknown time zone before the handler runs, so the
// stream answers 422 like the plain listing instead of an empty stream.
func (in *ListTenantsInput) Resolve(huma.Context) []error {
	if in.TZ == "" {
		return nil
	}
	if _, err := time.LoadLocation(in.TZ); err != nil {
		return []error{&huma.ErrorDetail{Location: "query.tz", Message: "unknown time zone", Value: in.TZ}}
	}
	return nil
}

func location(tz string) (*time.Location, error) {
	if tz == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("unknown time zone " + tz)
	}
	return loc, nil
}

func toListingResponse(l app.Listing) ListingResponse {
	resp := ListingResponse{
		Tenants: make([]TenantResponse, len(l.Tenants)),
		Counts:  toTabCounts(l.Counts),
		Matched: l.Matched,
	}
	for i, v := range l.Tenants {
		resp.Tenants[i] = toTenantResponse(v)
		if n, ok := l.Students[v.ID]; ok {
			resp.Tenants[i].Students = &n
		}
	}
	return resp
}

// --- Create ---

type CreateTenantInput struct {
	Body struct {
		Name              string `json:"name" minLength:"1" maxLength:"200" doc:"School name"`
		Address           string `json:"address,omitempty" maxLength:"500"`
		Contact           string `json:"contact,omitempty" maxLength:"100"`
		PrincipalName     string `json:"principalName" minLength:"1" maxLength:"200"`
		PrincipalEmail    string `json:"principalEmail" format:"email"`
		PrincipalContact  string `json:"principalContact,omitempty" maxLength:"100"`
		PrincipalPassword string `json:"principalPassword" minLength:"6"`
	}
}

type TenantOutput struct {
	Body TenantResponse
}

// --- Detail ---

type TenantPathInput struct {
	ID string `path:"id" doc:"School code"`
}

type TenantDetailResponse struct {
	TenantResponse
	Principal   *PrincipalResponse `json:"principal"`
	Students    int                `json:"students"`
	NewStudents int                `json:"newStudents" doc:"Students added in the last 30 days"`
}

type TenantDetailOutput struct {
	Body TenantDetailResponse
}

// --- Update ---

type UpdateTenantInput struct {
	ID   string `path:"id" doc:"School code"`
	Body struct {
		Name             string  `json:"name" minLength:"1" maxLength:"200"`
		Address          string  `json:"address,omitempty" maxLength:"500"`
		Contact          string  `json:"contact,omitempty" maxLength:"100"`
		PaymentStatus    string  `json:"paymentStatus,omitempty" enum:"paid,unpaid"`
		Status           string  `json:"status,omitempty" enum:"active,suspended,stop"`
		PrincipalEmail   *string `json:"principalEmail,omitempty"`
		PrincipalContact *string `json:"principalContact,omitempty"`
		NewPassword      string  `json:"newPassword,omitempty" doc:"Sets the principal's password when not empty"`
	}
}

// --- Lifecycle actions ---

type ToggleInput struct {
	ID   string `path:"id" doc:"School code"`
	Body struct {
		Current string `json:"current" doc:"Value the operator saw; the write is refused if it changed"`
	}
}

type StartTrialInput struct {
	ID   string `path:"id" doc:"School code"`
	Body *struct {
		Restart bool `json:"restart,omitempty" doc:"Overwrite an existing start date"`
	}
}

type ResetPasswordInput struct {
	ID   string `path:"id" doc:"School code"`
	Body struct {
		Mode string `json:"mode" enum:"email,generate" doc:"Mail a reset link or set a generated credential"`
	}
}

type ResetPasswordOutput struct {
	Body struct {
		Mode     string `json:"mode"`
		Email    string `json:"email,omitempty"`
		Password string `json:"password,omitempty" doc:"Generated credential, shown once"`
	}
}

type ResumeCreationInput struct {
	ID   string `path:"id" doc:"School code"`
	Body struct {
		PrincipalName    string `json:"principalName" minLength:"1"`
		PrincipalEmail   string `json:"principalEmail" format:"email"`
		PrincipalContact string `json:"principalContact,omitempty"`
	}
}

type DiscardAccountInput struct {
	UID string `path:"uid" doc:"Identity account uid left behind by a failed creation"`
}

func (h *handler) registerTenants() {
	tags := []string{"Schools"}

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/tenants",
		Summary:     "List schools",
		Description: "Schools are ordered by trial urgency. Tab counts cover every school.",
		Tags:        tags,
	}), func(ctx context.Context, input *ListTenantsInput) (*ListTenantsOutput, error) {
		q, err := input.query()
		if err != nil {
			return nil, err
		}
		l, err := h.Tenants.Listing(ctx, q)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &ListTenantsOutput{Body: toListingResponse(l)}, nil
	})

	sse.Register(h.api, secured(huma.Operation{
		OperationID: "stream-tenants",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/tenants/stream",
		Summary:     "Stream directory snapshots",
		Description: "Sends a full listing snapshot on connect and after every change.",
		Tags:        tags,
	}), map[string]any{
		"snapshot": ListingResponse{},
	}, func(ctx context.Context, input *ListTenantsInput, send sse.Sender) {
		h.stream(ctx, input, send)
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID:   "create-tenant",
		Method:        http.MethodPost,
		Path:          apiPrefix + "/tenants",
		Summary:       "Register a school and its principal",
		Tags:          tags,
		DefaultStatus: http.StatusCreated,
	}), func(ctx context.Context, input *CreateTenantInput) (*TenantOutput, error) {
		tenant, err := h.Tenants.Create(ctx, app.CreateTenantInput{
			Name:              input.Body.Name,
			Address:           input.Body.Address,
			Contact:           input.Body.Contact,
			PrincipalName:     input.Body.PrincipalName,
			PrincipalEmail:    input.Body.PrincipalEmail,
			PrincipalContact:  input.Body.PrincipalContact,
			PrincipalPassword: input.Body.PrincipalPassword,
		})
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &TenantOutput{Body: bare(tenant)}, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/tenants/{id}",
		Summary:     "Get a school with its principal and student counts",
		Tags:        tags,
	}), func(ctx context.Context, input *TenantPathInput) (*TenantDetailOutput, error) {
		d, err := h.Tenants.Detail(ctx, input.ID)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		out := &TenantDetailOutput{Body: TenantDetailResponse{
			TenantResponse: toTenantResponse(d.TenantView),
			Students:       d.Students,
			NewStudents:    d.NewStudents,
		}}
		if d.HasPrincipal {
			out.Body.Principal = &PrincipalResponse{
				UID:     d.Principal.UID,
				Name:    d.Principal.Name,
				Email:   d.Principal.Email,
				Contact: d.Principal.Contact,
			}
		}
		return out, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "update-tenant",
		Method:      http.MethodPut,
		Path:        apiPrefix + "/tenants/{id}",
		Summary:     "Edit a school and its principal",
		Tags:        tags,
	}), func(ctx context.Context, input *UpdateTenantInput) (*TenantOutput, error) {
		tenant, err := h.Tenants.Update(ctx, input.ID, app.TenantEdit{
			Name:             input.Body.Name,
			Address:          input.Body.Address,
			Contact:          input.Body.Contact,
			PaymentStatus:    domain.PaymentStatus(input.Body.PaymentStatus),
			Status:           domain.Status(input.Body.Status),
			PrincipalEmail:   input.Body.PrincipalEmail,
			PrincipalContact: input.Body.PrincipalContact,
			NewPassword:      input.Body.NewPassword,
		})
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &TenantOutput{Body: bare(tenant)}, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "toggle-payment-status",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/tenants/{id}/payment-status/toggle",
		Summary:     "Flip a school between paid and unpaid",
		Tags:        tags,
	}), func(ctx context.Context, input *ToggleInput) (*TenantOutput, error) {
		tenant, err := h.Tenants.TogglePayment(ctx, input.ID, domain.PaymentStatus(input.Body.Current))
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &TenantOutput{Body: bare(tenant)}, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "toggle-system-status",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/tenants/{id}/status/toggle",
		Summary:     "Suspend or reactivate a school",
		Tags:        tags,
	}), func(ctx context.Context, input *ToggleInput) (*TenantOutput, error) {
		tenant, err := h.Tenants.ToggleSystemStatus(ctx, input.ID, domain.Status(input.Body.Current))
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &TenantOutput{Body: bare(tenant)}, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "start-trial",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/tenants/{id}/trial",
		Summary:     "Start the 30-day trial",
		Tags:        tags,
	}), func(ctx context.Context, input *StartTrialInput) (*TenantOutput, error) {
		restart := input.Body != nil && input.Body.Restart
		view, err := h.Tenants.StartTrial(ctx, input.ID, restart)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &TenantOutput{Body: toTenantResponse(view)}, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "reset-principal-password",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/tenants/{id}/principal/password-reset",
		Summary:     "Reset the principal's password",
		Tags:        tags,
	}), func(ctx context.Context, input *ResetPasswordInput) (*ResetPasswordOutput, error) {
		res, err := h.Tenants.ResetPrincipalPassword(ctx, input.ID, app.ResetMode(input.Body.Mode))
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		out := &ResetPasswordOutput{}
		out.Body.Mode = string(res.Mode)
		out.Body.Email = res.Email
		out.Body.Password = res.Password
		return out, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "resume-tenant-creation",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/tenants/{id}/resume",
		Summary:     "Finish a school whose principal records were not written",
		Tags:        tags,
	}), func(ctx context.Context, input *ResumeCreationInput) (*TenantOutput, error) {
		tenant, err := h.Tenants.ResumeCreation(ctx, input.ID, domain.PrincipalFields{
			Name:    input.Body.PrincipalName,
			Email:   input.Body.PrincipalEmail,
			Contact: input.Body.PrincipalContact,
		})
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &TenantOutput{Body: bare(tenant)}, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID:   "discard-orphan-account",
		Method:        http.MethodDelete,
		Path:          apiPrefix + "/orphan-accounts/{uid}",
		Summary:       "Delete an identity account no school references",
		Tags:          tags,
		DefaultStatus: http.StatusNoContent,
	}), func(ctx context.Context, input *DiscardAccountInput) (*struct{}, error) {
		if err := h.Tenants.DiscardOrphanAccount(ctx, input.UID); err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return nil, nil
	})
}

// stream pushes a fresh snapshot on connect, after each change and every
// StreamRefresh so trial days stay current, until the client goes away.
func (h *handler) stream(ctx context.Context, input *ListTenantsInput, send sse.Sender) {
	q, err := input.query()
	if err != nil {
		h.Log.WarnContext(ctx, "rejecting listing stream", "error", err)
		return
	}

	var changes <-chan struct{}
	if h.Hub != nil {
		ch, cancel := h.Hub.Subscribe()
		defer cancel()
		changes = ch
	}

	refresh := time.NewTicker(h.streamRefresh())
	defer refresh.Stop()

	for {
		l, err := h.Tenants.Listing(ctx, q)
		if err != nil {
			h.Log.ErrorContext(ctx, "building listing snapshot", "error", err)
			return
		}
		if err := send.Data(toListingResponse(l)); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-changes:
		case <-refresh.C:
		}
	}
}
