package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// AdminService manages the operators of the console.
type AdminService struct {
	admins   domain.AdminRepository
	identity domain.IdentityProvider
	log      *slog.Logger
	now      func() time.Time
}

// NewAdminService creates a service with the given adapters.
func NewAdminService(admins domain.AdminRepository, identity domain.IdentityProvider, log *slog.Logger) *AdminService {
	return &AdminService{admins: admins, identity: identity, log: log, now: time.Now}
}

// List returns every super-admin, oldest first.
func (s *AdminService) List(ctx context.Context) ([]domain.SuperAdmin, error) {
	return s.admins.ListAdmins(ctx)
}

// AddAdminInput describes a new operator. Nil permissions mean
// domain.DefaultPermissions.
type AddAdminInput struct {
	Name        string              `json:"name" validate:"required,max=200"`
	Email       string              `json:"email" validate:"required,email"`
	Password    string              `json:"password" validate:"required,min=6"`
	Permissions *domain.Permissions `json:"permissions"`
}

// Add creates the operator's login account and registry record. If the
// record cannot be written the fresh account is removed again.
func (s *AdminService) Add(ctx context.Context, in AddAdminInput) (domain.SuperAdmin, error) {
	if err := check(in); err != nil {
		return domain.SuperAdmin{}, err
	}

	uid, err := s.identity.CreateAccount(ctx, in.Email, in.Password)
	if err != nil {
		return domain.SuperAdmin{}, fmt.Errorf("creating admin account: %w", err)
	}

	perms := domain.DefaultPermissions
	if in.Permissions != nil {
		perms = *in.Permissions
	}
	admin := domain.NewSuperAdmin(uid, in.Name, in.Email, perms, s.now())

	if err := s.admins.PutAdmin(ctx, admin); err != nil {
		if derr := s.identity.DeleteAccount(ctx, uid); derr != nil {
			s.log.ErrorContext(ctx, "removing admin account after failed registration", "uid", uid, "error", derr)
		}
		return domain.SuperAdmin{}, fmt.Errorf("registering admin: %w", err)
	}

	s.log.InfoContext(ctx, "super-admin added", "uid", uid)
	return admin, nil
}

// UpdatePermissions replaces an operator's permission flags.
func (s *AdminService) UpdatePermissions(ctx context.Context, uid string, perms domain.Permissions) (domain.SuperAdmin, error) {
	if err := s.admins.UpdatePermissions(ctx, uid, perms); err != nil {
		return domain.SuperAdmin{}, err
	}
	return s.admins.GetAdmin(ctx, uid)
}

// Remove revokes console access by deleting the registry record. The login
// account itself is kept. Operators cannot remove themselves.
func (s *AdminService) Remove(ctx context.Context, operatorUID, uid string) error {
	if uid == operatorUID {
		return &domain.ValidationError{Fields: []domain.FieldError{{
			Field: "uid", Message: "you cannot remove your own access",
		}}}
	}
	if err := s.admins.DeleteAdmin(ctx, uid); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "super-admin removed", "uid", uid, "operator_uid", operatorUID)
	return nil
}

// Bootstrap seeds the first operator when the registry is empty. It does
// nothing once any super-admin exists.
func (s *AdminService) Bootstrap(ctx context.Context, name, email, password string) error {
	existing, err := s.admins.ListAdmins(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	all := domain.Permissions{ManageSchools: true, ManageBilling: true, SystemControl: true, ManageAdmins: true}
	admin, err := s.Add(ctx, AddAdminInput{Name: name, Email: email, Password: password, Permissions: &all})
	if err != nil {
		return fmt.Errorf("bootstrapping admin: %w", err)
	}
	s.log.InfoContext(ctx, "bootstrap super-admin created", "uid", admin.UID, "email", admin.Email)
	return nil
}
