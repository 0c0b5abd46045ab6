package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// Compile-time checks.
var (
	_ domain.PrincipalRepository = (*PrincipalRepository)(nil)
	_ domain.AdminRepository     = (*AdminRepository)(nil)
)

// Options tune the in-memory caches.
type Options struct {
	Capacity int
	Shards   int
	TTL      time.Duration
	// EvictionPercentage is the share of a full shard dropped at once.
	EvictionPercentage int
}

// DefaultOptions suit a single console instance.
var DefaultOptions = Options{Capacity: 10_000, Shards: 10, TTL: 5 * time.Minute, EvictionPercentage: 10}

func newClient[T any](o Options) *sturdyc.Client[T] {
	return sturdyc.New[T](o.Capacity, o.Shards, o.TTL, o.EvictionPercentage)
}

// PrincipalRepository implements domain.PrincipalRepository with a
// write-through cache in front of the real store. Only global records are
// cached; scoped reads always hit the store.
type PrincipalRepository struct {
	log   *slog.Logger
	next  domain.PrincipalRepository
	cache *sturdyc.Client[domain.Principal]
}

// NewPrincipalRepository constructs the cached repository.
func NewPrincipalRepository(log *slog.Logger, next domain.PrincipalRepository, o Options) *PrincipalRepository {
	return &PrincipalRepository{log: log, next: next, cache: newClient[domain.Principal](o)}
}

func (r *PrincipalRepository) GetGlobal(ctx context.Context, uid string) (domain.Principal, error) {
	return r.cache.GetOrFetch(ctx, "principal:"+uid, func(ctx context.Context) (domain.Principal, error) {
		r.log.DebugContext(ctx, "principal cache miss", "uid", uid)
		return r.next.GetGlobal(ctx, uid)
	})
}

func (r *PrincipalRepository) GetScoped(ctx context.Context, tenantID, uid string) (domain.Principal, error) {
	return r.next.GetScoped(ctx, tenantID, uid)
}

func (r *PrincipalRepository) PutGlobal(ctx context.Context, p domain.Principal) error {
	if err := r.next.PutGlobal(ctx, p); err != nil {
		return err
	}
	r.cache.Set("principal:"+p.UID, p)
	return nil
}

func (r *PrincipalRepository) PutScoped(ctx context.Context, p domain.Principal) error {
	return r.next.PutScoped(ctx, p)
}

func (r *PrincipalRepository) DeleteGlobal(ctx context.Context, uid string) error {
	if err := r.next.DeleteGlobal(ctx, uid); err != nil {
		return err
	}
	r.cache.Delete("principal:" + uid)
	return nil
}

// Forget drops cached registry entries.
func (r *PrincipalRepository) Forget(uids ...string) {
	for _, uid := range uids {
		r.cache.Delete("principal:" + uid)
	}
}

// Documents wraps a document store so that registry records removed by
// batched deletes are also dropped from this cache.
func (r *PrincipalRepository) Documents(next domain.DocumentStore) domain.DocumentStore {
	return &invalidatingDocuments{DocumentStore: next, principals: r}
}

type invalidatingDocuments struct {
	domain.DocumentStore
	principals *PrincipalRepository
}

func (d *invalidatingDocuments) CommitDeletes(ctx context.Context, refs []domain.DocRef) error {
	err := d.DocumentStore.CommitDeletes(ctx, refs)
	for _, ref := range refs {
		if ref.Collection == domain.CollectionGlobalUsers {
			d.principals.Forget(ref.ID)
		}
	}
	return err
}
