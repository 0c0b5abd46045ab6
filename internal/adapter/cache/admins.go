package cache

import (
	"context"
	"log/slog"

	"github.com/viccon/sturdyc"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// AdminRepository caches super-admin lookups. The auth middleware resolves the
// caller's registry record on every request, which makes this the hottest read.
type AdminRepository struct {
	log   *slog.Logger
	next  domain.AdminRepository
	cache *sturdyc.Client[domain.SuperAdmin]
}

// NewAdminRepository constructs the cached repository.
func NewAdminRepository(log *slog.Logger, next domain.AdminRepository, o Options) *AdminRepository {
	return &AdminRepository{log: log, next: next, cache: newClient[domain.SuperAdmin](o)}
}

func (r *AdminRepository) ListAdmins(ctx context.Context) ([]domain.SuperAdmin, error) {
	return r.next.ListAdmins(ctx)
}

func (r *AdminRepository) GetAdmin(ctx context.Context, uid string) (domain.SuperAdmin, error) {
	return r.cache.GetOrFetch(ctx, "admin:"+uid, func(ctx context.Context) (domain.SuperAdmin, error) {
		r.log.DebugContext(ctx, "admin cache miss", "uid", uid)
		return r.next.GetAdmin(ctx, uid)
	})
}

func (r *AdminRepository) PutAdmin(ctx context.Context, a domain.SuperAdmin) error {
	if err := r.next.PutAdmin(ctx, a); err != nil {
		return err
	}
	r.cache.Delete("admin:" + a.UID)
	return nil
}

func (r *AdminRepository) UpdatePermissions(ctx context.Context, uid string, perms domain.Permissions) error {
	if err := r.next.UpdatePermissions(ctx, uid, perms); err != nil {
		return err
	}
	r.cache.Delete("admin:" + uid)
	return nil
}

func (r *AdminRepository) DeleteAdmin(ctx context.Context, uid string) error {
	if err := r.next.DeleteAdmin(ctx, uid); err != nil {
		return err
	}
	r.cache.Delete("admin:" + uid)
	return nil
}
