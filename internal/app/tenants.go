package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

const (
	// maxCodeAttempts bounds how often a taken school code is skipped.
	maxCodeAttempts = 5

	// recentWindow is how far back the detail view counts new students.
	recentWindow = 30 * 24 * time.Hour

	statsConcurrency = 4
)

// TenantService orchestrates school lifecycle operations.
type TenantService struct {
	tenants    domain.TenantRepository
	docs       domain.DocumentStore
	principals domain.PrincipalRepository
	identity   domain.IdentityProvider
	publisher  domain.EventPublisher
	log        *slog.Logger
	now        func() time.Time
}

// NewTenantService creates a service with the given adapters.
func NewTenantService(
	tenants domain.TenantRepository,
	docs domain.DocumentStore,
	principals domain.PrincipalRepository,
	identity domain.IdentityProvider,
	publisher domain.EventPublisher,
	log *slog.Logger,
) *TenantService {
	return &TenantService{
		tenants:    tenants,
		docs:       docs,
		principals: principals,
		identity:   identity,
		publisher:  publisher,
		log:        log,
		now:        time.Now,
	}
}

// CreateTenantInput is what an operator submits to register a school.
type CreateTenantInput struct {
	Name              string `json:"name" validate:"required,max=200"`
	Address           string `json:"address" validate:"max=500"`
	Contact           string `json:"contact" validate:"max=100"`
	PrincipalName     string `json:"principalName" validate:"required,max=200"`
	PrincipalEmail    string `json:"principalEmail" validate:"required,email"`
	PrincipalContact  string `json:"principalContact" validate:"max=100"`
	PrincipalPassword string `json:"principalPassword" validate:"required,min=6"`
}

// Create registers a school together with its principal. The steps are not
// atomic: once the identity account exists, any later failure is reported as
// a *domain.PartialCreationError and the school stays in the pending state.
func (s *TenantService) Create(ctx context.Context, in CreateTenantInput) (domain.Tenant, error) {
	if err := check(in); err != nil {
		return domain.Tenant{}, err
	}

	uid, err := s.identity.CreateAccount(ctx, in.PrincipalEmail, in.PrincipalPassword)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("creating principal account: %w", err)
	}

	fields := domain.TenantFields{Name: in.Name, Address: in.Address, Contact: in.Contact}
	tenant, err := s.insertTenant(ctx, fields, uid)
	if err != nil {
		return domain.Tenant{}, s.partial(ctx, domain.StageTenantRecord, uid, domain.Tenant{PrincipalID: uid}, err)
	}

	principal := domain.Principal{
		UID:      uid,
		Name:     in.PrincipalName,
		Email:    domain.NormalizeEmail(in.PrincipalEmail),
		Contact:  in.PrincipalContact,
		Role:     domain.RolePrincipal,
		TenantID: tenant.ID,
	}
	if err := s.writePrincipal(ctx, principal); err != nil {
		return domain.Tenant{}, s.partial(ctx, domain.StagePrincipalRecord, uid, tenant, err)
	}

	if err := s.tenants.MarkCreationComplete(ctx, tenant.ID); err != nil {
		return domain.Tenant{}, s.partial(ctx, domain.StageFinalize, uid, tenant, err)
	}
	tenant.CreationState = domain.CreationComplete

	s.log.InfoContext(ctx, "school created", "tenant_id", tenant.ID, "principal_uid", uid)
	publish(ctx, s.publisher, s.log, domain.EventTenantCreated, tenant)
	return tenant, nil
}

func (s *TenantService) insertTenant(ctx context.Context, fields domain.TenantFields, principalID string) (domain.Tenant, error) {
	for range maxCodeAttempts {
		code, err := s.tenants.NextCode(ctx)
		if err != nil {
			return domain.Tenant{}, fmt.Errorf("allocating school code: %w", err)
		}

		tenant := domain.NewTenant(code, fields, principalID, s.now())
		err = s.tenants.Create(ctx, tenant)
		if errors.Is(err, domain.ErrCodeTaken) {
			s.log.WarnContext(ctx, "school code taken, allocating another", "code", code)
			continue
		}
		if err != nil {
			return domain.Tenant{}, fmt.Errorf("creating tenant: %w", err)
		}
		return tenant, nil
	}
	return domain.Tenant{}, fmt.Errorf("allocating school code: %w after %d attempts", domain.ErrCodeTaken, maxCodeAttempts)
}

// writePrincipal stores the global record first and then rebuilds the
// school's copy from it.
func (s *TenantService) writePrincipal(ctx context.Context, p domain.Principal) error {
	if err := s.principals.PutGlobal(ctx, p); err != nil {
		return fmt.Errorf("writing global principal: %w", err)
	}
	if err := s.principals.PutScoped(ctx, p.ScopedCopy()); err != nil {
		return fmt.Errorf("writing school principal: %w", err)
	}
	return nil
}

func (s *TenantService) partial(ctx context.Context, stage, uid string, tenant domain.Tenant, err error) error {
	perr := &domain.PartialCreationError{
		Stage:        stage,
		PrincipalUID: uid,
		TenantID:     tenant.ID,
		Err:          err,
	}
	s.log.ErrorContext(ctx, "school creation partially failed",
		"stage", stage,
		"principal_uid", uid,
		"tenant_id", tenant.ID,
		"error", err,
	)
	publish(ctx, s.publisher, s.log, domain.EventTenantCreationPartial, tenant)
	return perr
}

// ResumeCreation finishes a registration that stopped after the school record
// was written. Calling it on a completed school is a no-op.
func (s *TenantService) ResumeCreation(ctx context.Context, id string, fields domain.PrincipalFields) (domain.Tenant, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}
	if tenant.CreationState != domain.CreationPending {
		return tenant, nil
	}

	in := struct {
		Name  string `json:"principalName" validate:"required"`
		Email string `json:"principalEmail" validate:"required,email"`
	}{fields.Name, fields.Email}
	if err := check(in); err != nil {
		return domain.Tenant{}, err
	}

	principal := domain.Principal{
		UID:      tenant.PrincipalID,
		Name:     fields.Name,
		Email:    domain.NormalizeEmail(fields.Email),
		Contact:  fields.Contact,
		Role:     domain.RolePrincipal,
		TenantID: tenant.ID,
	}
	if err := s.writePrincipal(ctx, principal); err != nil {
		return domain.Tenant{}, err
	}
	if err := s.tenants.MarkCreationComplete(ctx, tenant.ID); err != nil {
		return domain.Tenant{}, err
	}
	tenant.CreationState = domain.CreationComplete

	s.log.InfoContext(ctx, "school creation resumed", "tenant_id", tenant.ID)
	publish(ctx, s.publisher, s.log, domain.EventTenantCreated, tenant)
	return tenant, nil
}

// DiscardOrphanAccount removes an identity account left behind by a creation
// that never got as far as writing the school record.
func (s *TenantService) DiscardOrphanAccount(ctx context.Context, uid string) error {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return err
	}
	for _, t := range tenants {
		if t.PrincipalID == uid {
			return fmt.Errorf("account %s belongs to %s: %w", uid, t.ID, domain.ErrAccountInUse)
		}
	}

	if err := s.identity.DeleteAccount(ctx, uid); err != nil {
		return fmt.Errorf("deleting orphan account: %w", err)
	}
	if err := s.principals.DeleteGlobal(ctx, uid); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "orphan principal account discarded", "uid", uid)
	return nil
}

// Get returns a school annotated with its trial state.
func (s *TenantService) Get(ctx context.Context, id string) (domain.TenantView, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return domain.TenantView{}, err
	}
	return domain.TenantView{Tenant: tenant, Trial: domain.ComputeTrialInfo(tenant.TrialStartDate, s.now())}, nil
}

// TenantDetail is everything the school detail page shows.
type TenantDetail struct {
	domain.TenantView
	Principal    domain.Principal
	HasPrincipal bool
	Students     int
	NewStudents  int
}

// Detail loads a school with its principal and student statistics. The three
// reads run concurrently and all must succeed.
func (s *TenantService) Detail(ctx context.Context, id string) (TenantDetail, error) {
	view, err := s.Get(ctx, id)
	if err != nil {
		return TenantDetail{}, err
	}

	detail := TenantDetail{TenantView: view}
	since := s.now().Add(-recentWindow)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, ok, err := s.resolvePrincipal(gctx, view.Tenant)
		detail.Principal, detail.HasPrincipal = p, ok
		return err
	})
	g.Go(func() error {
		n, err := s.docs.Count(gctx, id, domain.CollectionStudents, nil)
		detail.Students = n
		return err
	})
	g.Go(func() error {
		n, err := s.docs.Count(gctx, id, domain.CollectionStudents, &since)
		detail.NewStudents = n
		return err
	})
	if err := g.Wait(); err != nil {
		return TenantDetail{}, fmt.Errorf("loading school detail: %w", err)
	}
	return detail, nil
}

// resolvePrincipal reads both principal records and picks one. When the
// global record is complete the school's copy is rebuilt from it.
func (s *TenantService) resolvePrincipal(ctx context.Context, tenant domain.Tenant) (domain.Principal, bool, error) {
	if tenant.PrincipalID == "" {
		return domain.Principal{}, false, nil
	}

	global, err := s.lookup(s.principals.GetGlobal(ctx, tenant.PrincipalID))
	if err != nil {
		return domain.Principal{}, false, err
	}
	scoped, err := s.lookup(s.principals.GetScoped(ctx, tenant.ID, tenant.PrincipalID))
	if err != nil {
		return domain.Principal{}, false, err
	}

	p, ok := domain.ResolvePrincipal(global, scoped)
	if ok && global != nil && global.Email != "" {
		fresh := p.ScopedCopy()
		fresh.TenantID = tenant.ID
		if scoped == nil || *scoped != fresh {
			if err := s.principals.PutScoped(ctx, fresh); err != nil {
				s.log.WarnContext(ctx, "rebuilding school principal copy failed",
					"tenant_id", tenant.ID, "uid", p.UID, "error", err)
			}
		}
	}
	return p, ok, nil
}

func (s *TenantService) lookup(p domain.Principal, err error) (*domain.Principal, error) {
	if errors.Is(err, domain.ErrPrincipalNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListingQuery selects a page of the school directory.
type ListingQuery struct {
	Tab    domain.Tab
	Search string
	// Limit truncates the result after filtering; zero means no limit.
	Limit int
	// IncludeStats adds per-school student counts.
	IncludeStats bool
	// Location is used to format trial dates. Nil means UTC.
	Location *time.Location
}

// Listing is a filtered, ordered directory page.
type Listing struct {
	Tenants []domain.TenantView
	Counts  domain.TabCounts
	// Matched is the number of schools that passed the filters before Limit.
	Matched  int
	Students map[string]int
}

// Listing annotates every school, orders them by trial urgency, counts every
// tab over the full set and then narrows the result to the requested tab.
func (s *TenantService) Listing(ctx context.Context, q ListingQuery) (Listing, error) {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return Listing{}, err
	}

	tab := q.Tab
	if tab == "" {
		tab = domain.TabRecent
	}
	now := s.now().UTC()
	if q.Location != nil {
		now = now.In(q.Location)
	}

	sorted := domain.SortTenants(domain.Annotate(tenants, now))
	out := Listing{Counts: domain.CountTabs(sorted)}

	views := domain.SearchTenants(domain.FilterTenants(sorted, tab), q.Search)
	out.Matched = len(views)
	if q.Limit > 0 && len(views) > q.Limit {
		views = views[:q.Limit]
	}
	out.Tenants = views

	if q.IncludeStats {
		students, err := s.studentCounts(ctx, views)
		if err != nil {
			return Listing{}, err
		}
		out.Students = students
	}
	return out, nil
}

func (s *TenantService) studentCounts(ctx context.Context, views []domain.TenantView) (map[string]int, error) {
	var mu sync.Mutex
	counts := make(map[string]int, len(views))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statsConcurrency)
	for _, v := range views {
		g.Go(func() error {
			n, err := s.docs.Count(gctx, v.ID, domain.CollectionStudents, nil)
			if err != nil {
				return fmt.Errorf("counting students of %s: %w", v.ID, err)
			}
			mu.Lock()
			counts[v.ID] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// TenantEdit is an operator's change to a school and its principal. Nil
// principal fields are left untouched.
type TenantEdit struct {
	Name             string               `json:"name" validate:"required,max=200"`
	Address          string               `json:"address" validate:"max=500"`
	Contact          string               `json:"contact" validate:"max=100"`
	PaymentStatus    domain.PaymentStatus `json:"paymentStatus" validate:"omitempty,oneof=paid unpaid"`
	Status           domain.Status        `json:"status" validate:"omitempty,oneof=active suspended stop"`
	PrincipalEmail   *string              `json:"principalEmail" validate:"omitempty,email"`
	PrincipalContact *string              `json:"principalContact" validate:"omitempty,max=100"`
	NewPassword      string               `json:"newPassword" validate:"omitempty,min=6"`
}

// Update applies an edit. The global principal record is merged first and
// the school's copy rebuilt from it; a new password goes through the identity
// provider and is never stored here.
func (s *TenantService) Update(ctx context.Context, id string, edit TenantEdit) (domain.Tenant, error) {
	if err := check(edit); err != nil {
		return domain.Tenant{}, err
	}

	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}

	principal, hasPrincipal, err := s.resolvePrincipal(ctx, tenant)
	if err != nil {
		return domain.Tenant{}, err
	}
	touchesPrincipal := edit.PrincipalEmail != nil || edit.PrincipalContact != nil || edit.NewPassword != ""
	if touchesPrincipal && tenant.PrincipalID == "" {
		return domain.Tenant{}, fmt.Errorf("school %s: %w", id, domain.ErrPrincipalNotFound)
	}
	if !hasPrincipal {
		principal = domain.Principal{UID: tenant.PrincipalID, Role: domain.RolePrincipal, TenantID: tenant.ID}
	}

	if edit.PrincipalEmail != nil {
		email := domain.NormalizeEmail(*edit.PrincipalEmail)
		if email != principal.Email {
			if err := s.identity.ChangeEmail(ctx, principal.UID, email); err != nil {
				return domain.Tenant{}, fmt.Errorf("changing principal email: %w", err)
			}
			principal.Email = email
		}
	}
	if edit.PrincipalContact != nil {
		principal.Contact = *edit.PrincipalContact
	}

	tenant.Name = edit.Name
	tenant.Address = edit.Address
	tenant.Contact = edit.Contact
	if edit.PaymentStatus != "" {
		tenant.PaymentStatus = edit.PaymentStatus
	}
	if edit.Status != "" {
		tenant.Status = edit.Status
		if tenant.Status.IsInactive() {
			tenant.Status = domain.StatusSuspended
		}
	}
	tenant.UpdatedAt = s.now().UTC()
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return domain.Tenant{}, err
	}

	if edit.PrincipalEmail != nil || edit.PrincipalContact != nil {
		principal.Role = domain.RolePrincipal
		principal.TenantID = tenant.ID
		if err := s.writePrincipal(ctx, principal); err != nil {
			return domain.Tenant{}, err
		}
	}

	if edit.NewPassword != "" {
		err := s.identity.UpdateUserPassword(ctx, domain.PasswordUpdate{
			TargetUID:   principal.UID,
			NewPassword: edit.NewPassword,
			TenantID:    tenant.ID,
		})
		if err != nil {
			return domain.Tenant{}, fmt.Errorf("updating principal password: %w", err)
		}
	}

	publish(ctx, s.publisher, s.log, domain.EventTenantUpdated, tenant)
	return tenant, nil
}

// TogglePayment writes the opposite of current. The write only lands while
// the stored value still is current; otherwise a *domain.StaleWriteError is
// returned and nothing changes.
func (s *TenantService) TogglePayment(ctx context.Context, id string, current domain.PaymentStatus) (domain.Tenant, error) {
	tenant, err := s.tenants.SetPaymentStatus(ctx, id, current, current.Toggled())
	if err != nil {
		return domain.Tenant{}, err
	}
	publish(ctx, s.publisher, s.log, domain.EventPaymentToggled, tenant)
	return tenant, nil
}

// ToggleSystemStatus suspends an active school or resumes an inactive one,
// with the same stale-write guard as TogglePayment.
func (s *TenantService) ToggleSystemStatus(ctx context.Context, id string, current domain.Status) (domain.Tenant, error) {
	tenant, err := s.tenants.SetStatus(ctx, id, current, current.Toggled())
	if err != nil {
		return domain.Tenant{}, err
	}
	publish(ctx, s.publisher, s.log, domain.EventStatusToggled, tenant)
	return tenant, nil
}

// StartTrial starts the trial window now. A started trial is only reset when
// restart is set; otherwise domain.ErrTrialAlreadyStarted is returned.
func (s *TenantService) StartTrial(ctx context.Context, id string, restart bool) (domain.TenantView, error) {
	now := s.now()
	tenant, err := s.tenants.SetTrialStart(ctx, id, now.UTC(), restart)
	if err != nil {
		return domain.TenantView{}, err
	}
	publish(ctx, s.publisher, s.log, domain.EventTrialStarted, tenant)
	return domain.TenantView{Tenant: tenant, Trial: domain.ComputeTrialInfo(tenant.TrialStartDate, now)}, nil
}

// ResetMode selects how a principal's password is reset.
type ResetMode string

const (
	// ResetByEmail mails the principal a reset link.
	ResetByEmail ResetMode = "email"
	// ResetGenerate sets a generated credential that the operator hands over.
	ResetGenerate ResetMode = "generate"
)

// PasswordReset is the outcome of a reset. Password is only set for
// ResetGenerate and is not retrievable later.
type PasswordReset struct {
	Mode     ResetMode
	Email    string
	Password string
}

// ResetPrincipalPassword resets the password of a school's principal.
func (s *TenantService) ResetPrincipalPassword(ctx context.Context, id string, mode ResetMode) (PasswordReset, error) {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return PasswordReset{}, err
	}
	principal, ok, err := s.resolvePrincipal(ctx, tenant)
	if err != nil {
		return PasswordReset{}, err
	}
	if !ok {
		return PasswordReset{}, fmt.Errorf("school %s: %w", id, domain.ErrPrincipalNotFound)
	}

	out := PasswordReset{Mode: mode, Email: principal.Email}
	switch mode {
	case ResetByEmail:
		if principal.Email == "" {
			return PasswordReset{}, &domain.ValidationError{Fields: []domain.FieldError{{
				Field: "principalEmail", Message: "no email on file for this principal",
			}}}
		}
		if err := s.identity.SendPasswordReset(ctx, principal.Email); err != nil {
			return PasswordReset{}, fmt.Errorf("sending reset email: %w", err)
		}

	case ResetGenerate:
		password, err := generateCredential()
		if err != nil {
			return PasswordReset{}, fmt.Errorf("generating credential: %w", err)
		}
		err = s.identity.UpdateUserPassword(ctx, domain.PasswordUpdate{
			TargetUID:   principal.UID,
			NewPassword: password,
			TenantID:    tenant.ID,
		})
		if err != nil {
			return PasswordReset{}, fmt.Errorf("updating principal password: %w", err)
		}
		out.Password = password

	default:
		return PasswordReset{}, &domain.ValidationError{Fields: []domain.FieldError{{
			Field: "mode", Message: "must be one of: email generate",
		}}}
	}

	s.log.InfoContext(ctx, "principal password reset", "tenant_id", tenant.ID, "mode", string(mode))
	publish(ctx, s.publisher, s.log, domain.EventPasswordReset, tenant)
	return out, nil
}
