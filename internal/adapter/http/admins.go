package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/schooldesk/internal/app"
	"github.com/neomorfeo/schooldesk/internal/domain"
)

// PermissionsBody mirrors domain.Permissions on the wire.
type PermissionsBody struct {
	ManageSchools bool `json:"manageSchools"`
	ManageBilling bool `json:"manageBilling"`
	SystemControl bool `json:"systemControl"`
	ManageAdmins  bool `json:"manageAdmins"`
}

// AdminResponse is the API representation of a super-admin.
type AdminResponse struct {
	UID         string          `json:"uid"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Role        string          `json:"role"`
	Status      string          `json:"status"`
	Permissions PermissionsBody `json:"permissions"`
	CreatedAt   string          `json:"createdAt"`
}

func toAdminResponse(a domain.SuperAdmin) AdminResponse {
	return AdminResponse{
		UID:         a.UID,
		Name:        a.Name,
		Email:       a.Email,
		Role:        a.Role,
		Status:      a.Status,
		Permissions: PermissionsBody(a.Permissions),
		CreatedAt:   a.CreatedAt.UTC().Format(timestampLayout),
	}
}

// --- Auth ---

type LoginInput struct {
	Body struct {
		Email    string `json:"email" format:"email"`
		Password string `json:"password" minLength:"1"`
	}
}

type LoginOutput struct {
	Body struct {
		Token     string        `json:"token" doc:"Bearer token for later requests"`
		ExpiresAt string        `json:"expiresAt"`
		Admin     AdminResponse `json:"admin"`
	}
}

type AdminOutput struct {
	Body AdminResponse
}

// --- Admins ---

type ListAdminsOutput struct {
	Body []AdminResponse
}

type AddAdminInput struct {
	Body struct {
		Name        string           `json:"name" minLength:"1" maxLength:"200"`
		Email       string           `json:"email" format:"email"`
		Password    string           `json:"password" minLength:"6"`
		Permissions *PermissionsBody `json:"permissions,omitempty" doc:"Defaults to manageSchools only"`
	}
}

type UpdatePermissionsInput struct {
	UID  string `path:"uid"`
	Body PermissionsBody
}

type AdminPathInput struct {
	UID string `path:"uid"`
}

func (h *handler) registerAuth() {
	tags := []string{"Auth"}

	huma.Register(h.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/auth/login",
		Summary:     "Sign in as a super-admin",
		Tags:        tags,
	}, func(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
		sess, admin, err := h.Auth.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		out := &LoginOutput{}
		out.Body.Token = sess.Token
		out.Body.ExpiresAt = sess.ExpiresAt.UTC().Format(timestampLayout)
		out.Body.Admin = toAdminResponse(admin)
		return out, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          apiPrefix + "/auth/logout",
		Summary:       "Revoke the current session",
		Tags:          tags,
		DefaultStatus: http.StatusNoContent,
	}), func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		op, _ := OperatorFrom(ctx)
		if err := h.Auth.Logout(ctx, op.Session.Token); err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return nil, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/auth/me",
		Summary:     "Get the signed-in super-admin",
		Tags:        tags,
	}), func(ctx context.Context, _ *struct{}) (*AdminOutput, error) {
		op, _ := OperatorFrom(ctx)
		return &AdminOutput{Body: toAdminResponse(op.Admin)}, nil
	})
}

func (h *handler) registerAdmins() {
	tags := []string{"Super-admins"}

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "list-admins",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/admins",
		Summary:     "List super-admins",
		Tags:        tags,
	}), func(ctx context.Context, _ *struct{}) (*ListAdminsOutput, error) {
		admins, err := h.Admins.List(ctx)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		resp := make([]AdminResponse, len(admins))
		for i, a := range admins {
			resp[i] = toAdminResponse(a)
		}
		return &ListAdminsOutput{Body: resp}, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID:   "add-admin",
		Method:        http.MethodPost,
		Path:          apiPrefix + "/admins",
		Summary:       "Add a super-admin",
		Tags:          tags,
		DefaultStatus: http.StatusCreated,
	}), func(ctx context.Context, input *AddAdminInput) (*AdminOutput, error) {
		in := app.AddAdminInput{
			Name:     input.Body.Name,
			Email:    input.Body.Email,
			Password: input.Body.Password,
		}
		if input.Body.Permissions != nil {
			perms := domain.Permissions(*input.Body.Permissions)
			in.Permissions = &perms
		}
		admin, err := h.Admins.Add(ctx, in)
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &AdminOutput{Body: toAdminResponse(admin)}, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID: "update-admin-permissions",
		Method:      http.MethodPut,
		Path:        apiPrefix + "/admins/{uid}/permissions",
		Summary:     "Replace a super-admin's permissions",
		Tags:        tags,
	}), func(ctx context.Context, input *UpdatePermissionsInput) (*AdminOutput, error) {
		admin, err := h.Admins.UpdatePermissions(ctx, input.UID, domain.Permissions(input.Body))
		if err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return &AdminOutput{Body: toAdminResponse(admin)}, nil
	})

	huma.Register(h.api, secured(huma.Operation{
		OperationID:   "remove-admin",
		Method:        http.MethodDelete,
		Path:          apiPrefix + "/admins/{uid}",
		Summary:       "Revoke a super-admin's access",
		Tags:          tags,
		DefaultStatus: http.StatusNoContent,
	}), func(ctx context.Context, input *AdminPathInput) (*struct{}, error) {
		if err := h.Admins.Remove(ctx, operatorUID(ctx), input.UID); err != nil {
			return nil, h.toHumaError(ctx, err)
		}
		return nil, nil
	})
}
