package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/schooldesk/internal/adapter/live"
	"github.com/neomorfeo/schooldesk/internal/app"
	"github.com/neomorfeo/schooldesk/internal/domain"
)

const (
	apiPrefix = "/api/v1"

	// bearerScheme names the security scheme of every operation that needs
	// a signed-in operator.
	bearerScheme = "bearer"
)

// Deps are the application services exposed over HTTP.
type Deps struct {
	Auth       *app.AuthService
	Tenants    *app.TenantService
	Deletions  *app.DeletionService
	Admins     *app.AdminService
	Broadcasts *app.BroadcastService
	Settings   *app.SettingsService
	Stats      *app.StatsService
	// Hub wakes the listing stream. Nil disables live updates.
	Hub *live.Hub
	// StreamRefresh is how often an idle listing stream is re-sent.
	// Zero means DefaultStreamRefresh.
	StreamRefresh time.Duration
	Log           *slog.Logger
}

// DefaultStreamRefresh keeps trial countdowns on open streams current.
const DefaultStreamRefresh = time.Minute

func (h *handler) streamRefresh() time.Duration {
	if h.StreamRefresh > 0 {
		return h.StreamRefresh
	}
	return DefaultStreamRefresh
}

type handler struct {
	Deps
	api huma.API
}

// Config returns the Huma configuration of the console API, with the bearer
// security scheme declared.
func Config(title, version string) huma.Config {
	cfg := huma.DefaultConfig(title, version)
	if cfg.Components.SecuritySchemes == nil {
		cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	cfg.Components.SecuritySchemes[bearerScheme] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	return cfg
}

// Register adds all console API routes to the Huma API.
func Register(api huma.API, deps Deps) {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	h := &handler{Deps: deps, api: api}

	api.UseMiddleware(h.authenticate)

	h.registerAuth()
	h.registerTenants()
	h.registerDeletions()
	h.registerAdmins()
	h.registerConsole()
}

// secured marks an operation as requiring a signed-in operator.
func secured(op huma.Operation) huma.Operation {
	op.Security = []map[string][]string{{bearerScheme: {}}}
	return op
}

// --- Authentication ---

type operatorKey struct{}

// Operator is the signed-in super-admin of a request.
type Operator struct {
	Session domain.Session
	Admin   domain.SuperAdmin
}

// OperatorFrom returns the operator attached by the auth middleware.
func OperatorFrom(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(operatorKey{}).(Operator)
	return op, ok
}

func operatorUID(ctx context.Context) string {
	op, _ := OperatorFrom(ctx)
	return op.Admin.UID
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// an EventSource, so the access_token query parameter is accepted as well.
func bearerToken(ctx huma.Context) string {
	if h := ctx.Header("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return ctx.Query("access_token")
}

func (h *handler) authenticate(ctx huma.Context, next func(huma.Context)) {
	op := ctx.Operation()
	if op == nil || len(op.Security) == 0 {
		next(ctx)
		return
	}

	token := bearerToken(ctx)
	if token == "" {
		_ = huma.WriteErr(h.api, ctx, http.StatusUnauthorized, "missing bearer token")
		return
	}

	sess, admin, err := h.Auth.Authorize(ctx.Context(), token)
	if err != nil {
		h.writeErr(ctx, err)
		return
	}

	next(huma.WithValue(ctx, operatorKey{}, Operator{Session: sess, Admin: admin}))
}

func (h *handler) writeErr(ctx huma.Context, err error) {
	var se huma.StatusError
	if !errors.As(h.toHumaError(ctx.Context(), err), &se) {
		_ = huma.WriteErr(h.api, ctx, http.StatusInternalServerError, "internal server error")
		return
	}
	_ = huma.WriteErr(h.api, ctx, se.GetStatus(), se.Error())
}

// --- Errors ---

// PartialFailurePrefix starts the message of every half-applied write so that
// operators can tell it apart from a clean failure.
const PartialFailurePrefix = "partial failure, manual remediation may be needed: "

// toHumaError translates domain errors to Huma HTTP errors.
func (h *handler) toHumaError(ctx context.Context, err error) error {
	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		details := make([]error, len(valErr.Fields))
		for i, f := range valErr.Fields {
			details[i] = &huma.ErrorDetail{Location: "body." + f.Field, Message: f.Message}
		}
		return huma.Error422UnprocessableEntity("validation failed", details...)
	}

	var confirmErr *domain.ConfirmationMismatchError
	if errors.As(err, &confirmErr) {
		return huma.Error422UnprocessableEntity(confirmErr.Error())
	}

	if errors.Is(err, domain.ErrInvalidCredentials) {
		return huma.Error401Unauthorized("invalid email or password")
	}
	if errors.Is(err, domain.ErrSessionInvalid) {
		return huma.Error401Unauthorized("session expired or invalid, sign in again")
	}

	var deniedErr *domain.AccessDeniedError
	if errors.As(err, &deniedErr) {
		return huma.Error403Forbidden(deniedErr.Error())
	}

	var creationErr *domain.PartialCreationError
	var deletionErr *domain.PartialDeletionError
	if errors.As(err, &creationErr) || errors.As(err, &deletionErr) {
		return huma.NewError(http.StatusBadGateway, PartialFailurePrefix+err.Error())
	}

	switch {
	case errors.Is(err, domain.ErrTenantNotFound):
		return huma.Error404NotFound("school not found")
	case errors.Is(err, domain.ErrPrincipalNotFound):
		return huma.Error404NotFound("principal not found")
	case errors.Is(err, domain.ErrAdminNotFound):
		return huma.Error404NotFound("super-admin not found")
	case errors.Is(err, domain.ErrWorkflowNotFound):
		return huma.Error404NotFound("deletion workflow not found")
	case errors.Is(err, domain.ErrAccountNotFound):
		return huma.Error404NotFound("account not found")
	}

	var staleErr *domain.StaleWriteError
	if errors.As(err, &staleErr) {
		return huma.Error409Conflict(staleErr.Error())
	}
	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error409Conflict(trErr.Error())
	}
	for _, conflict := range []error{domain.ErrTrialAlreadyStarted, domain.ErrEmailInUse, domain.ErrAccountInUse, domain.ErrCodeTaken} {
		if errors.Is(err, conflict) {
			return huma.Error409Conflict(conflict.Error())
		}
	}

	h.Log.ErrorContext(ctx, "request failed", "error", err)
	return huma.Error500InternalServerError("internal server error")
}
