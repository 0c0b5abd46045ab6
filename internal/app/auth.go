package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// AuthService signs operators in and checks their access on every request.
type AuthService struct {
	identity domain.IdentityProvider
	admins   domain.AdminRepository
	log      *slog.Logger
}

// NewAuthService creates a service with the given adapters.
func NewAuthService(identity domain.IdentityProvider, admins domain.AdminRepository, log *slog.Logger) *AuthService {
	return &AuthService{identity: identity, admins: admins, log: log}
}

// Login signs in and requires a super-admin record for the account. A valid
// login without one is signed out again and reported as
// *domain.AccessDeniedError.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.Session, domain.SuperAdmin, error) {
	sess, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		return domain.Session{}, domain.SuperAdmin{}, err
	}

	admin, err := s.admin(ctx, sess.UID)
	if err != nil {
		if serr := s.identity.SignOut(ctx, sess.Token); serr != nil {
			s.log.WarnContext(ctx, "signing out denied session", "uid", sess.UID, "error", serr)
		}
		return domain.Session{}, domain.SuperAdmin{}, err
	}
	return sess, admin, nil
}

// Logout revokes the session behind token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.identity.SignOut(ctx, token)
}

// Authorize resolves a bearer token to its operator.
func (s *AuthService) Authorize(ctx context.Context, token string) (domain.Session, domain.SuperAdmin, error) {
	sess, err := s.identity.Verify(ctx, token)
	if err != nil {
		return domain.Session{}, domain.SuperAdmin{}, err
	}
	admin, err := s.admin(ctx, sess.UID)
	if err != nil {
		return domain.Session{}, domain.SuperAdmin{}, err
	}
	return sess, admin, nil
}

func (s *AuthService) admin(ctx context.Context, uid string) (domain.SuperAdmin, error) {
	admin, err := s.admins.GetAdmin(ctx, uid)
	if errors.Is(err, domain.ErrAdminNotFound) {
		s.log.WarnContext(ctx, "access denied: no super-admin record", "uid", uid)
		return domain.SuperAdmin{}, &domain.AccessDeniedError{UID: uid}
	}
	return admin, err
}
