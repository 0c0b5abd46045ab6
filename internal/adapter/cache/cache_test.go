package cache_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/neomorfeo/schooldesk/internal/adapter/cache"
	"github.com/neomorfeo/schooldesk/internal/domain"
)

var testOptions = cache.Options{Capacity: 100, Shards: 2, TTL: time.Minute, EvictionPercentage: 10}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type countingPrincipals struct {
	global map[string]domain.Principal
	reads  int
}

func (c *countingPrincipals) GetGlobal(_ context.Context, uid string) (domain.Principal, error) {
	c.reads++
	p, ok := c.global[uid]
	if !ok {
		return domain.Principal{}, domain.ErrPrincipalNotFound
	}
	return p, nil
}

func (c *countingPrincipals) GetScoped(_ context.Context, _, _ string) (domain.Principal, error) {
	return domain.Principal{}, domain.ErrPrincipalNotFound
}

func (c *countingPrincipals) PutGlobal(_ context.Context, p domain.Principal) error {
	c.global[p.UID] = p
	return nil
}

func (c *countingPrincipals) PutScoped(_ context.Context, _ domain.Principal) error { return nil }

func (c *countingPrincipals) DeleteGlobal(_ context.Context, uid string) error {
	delete(c.global, uid)
	return nil
}

type nopDocuments struct {
	domain.DocumentStore
	commits int
}

func (n *nopDocuments) CommitDeletes(_ context.Context, _ []domain.DocRef) error {
	n.commits++
	return nil
}

func TestPrincipalRepository_ReadThrough(t *testing.T) {
	next := &countingPrincipals{global: map[string]domain.Principal{
		"u1": {UID: "u1", Email: "ada@example.com"},
	}}
	repo := cache.NewPrincipalRepository(discard(), next, testOptions)
	ctx := context.Background()

	for range 3 {
		p, err := repo.GetGlobal(ctx, "u1")
		if err != nil {
			t.Fatalf("GetGlobal failed: %v", err)
		}
		if p.Email != "ada@example.com" {
			t.Errorf("Email = %q", p.Email)
		}
	}
	if next.reads != 1 {
		t.Errorf("store reads = %d, want 1", next.reads)
	}

	// Writes go through and refresh the cached value.
	if err := repo.PutGlobal(ctx, domain.Principal{UID: "u1", Email: "head@example.com"}); err != nil {
		t.Fatalf("PutGlobal failed: %v", err)
	}
	p, _ := repo.GetGlobal(ctx, "u1")
	if p.Email != "head@example.com" {
		t.Errorf("Email = %q after write", p.Email)
	}
}

func TestPrincipalRepository_NotFoundPassesThrough(t *testing.T) {
	next := &countingPrincipals{global: map[string]domain.Principal{}}
	repo := cache.NewPrincipalRepository(discard(), next, testOptions)

	_, err := repo.GetGlobal(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrPrincipalNotFound) {
		t.Errorf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestPrincipalRepository_BatchDeleteInvalidates(t *testing.T) {
	next := &countingPrincipals{global: map[string]domain.Principal{
		"u1": {UID: "u1", Email: "ada@example.com"},
	}}
	repo := cache.NewPrincipalRepository(discard(), next, testOptions)
	docs := &nopDocuments{}
	wrapped := repo.Documents(docs)
	ctx := context.Background()

	if _, err := repo.GetGlobal(ctx, "u1"); err != nil {
		t.Fatalf("GetGlobal failed: %v", err)
	}

	// The batch removes the registry record behind the cache's back.
	delete(next.global, "u1")
	refs := []domain.DocRef{
		{TenantID: "SCHOOL_001", Collection: domain.CollectionUsers, ID: "u1"},
		{Collection: domain.CollectionGlobalUsers, ID: "u1"},
	}
	if err := wrapped.CommitDeletes(ctx, refs); err != nil {
		t.Fatalf("CommitDeletes failed: %v", err)
	}
	if docs.commits != 1 {
		t.Errorf("commits = %d, want 1", docs.commits)
	}

	if _, err := repo.GetGlobal(ctx, "u1"); !errors.Is(err, domain.ErrPrincipalNotFound) {
		t.Errorf("expected ErrPrincipalNotFound after batch delete, got %v", err)
	}
}

type countingAdmins struct {
	admins map[string]domain.SuperAdmin
	reads  int
}

func (c *countingAdmins) ListAdmins(_ context.Context) ([]domain.SuperAdmin, error) {
	return nil, nil
}

func (c *countingAdmins) GetAdmin(_ context.Context, uid string) (domain.SuperAdmin, error) {
	c.reads++
	a, ok := c.admins[uid]
	if !ok {
		return domain.SuperAdmin{}, domain.ErrAdminNotFound
	}
	return a, nil
}

func (c *countingAdmins) PutAdmin(_ context.Context, a domain.SuperAdmin) error {
	c.admins[a.UID] = a
	return nil
}

func (c *countingAdmins) UpdatePermissions(_ context.Context, uid string, perms domain.Permissions) error {
	a := c.admins[uid]
	a.Permissions = perms
	c.admins[uid] = a
	return nil
}

func (c *countingAdmins) DeleteAdmin(_ context.Context, uid string) error {
	delete(c.admins, uid)
	return nil
}

func TestAdminRepository_InvalidatesOnWrite(t *testing.T) {
	next := &countingAdmins{admins: map[string]domain.SuperAdmin{
		"a1": {UID: "a1", Permissions: domain.DefaultPermissions},
	}}
	repo := cache.NewAdminRepository(discard(), next, testOptions)
	ctx := context.Background()

	_, _ = repo.GetAdmin(ctx, "a1")
	_, _ = repo.GetAdmin(ctx, "a1")
	if next.reads != 1 {
		t.Fatalf("store reads = %d, want 1", next.reads)
	}

	perms := domain.Permissions{ManageAdmins: true}
	if err := repo.UpdatePermissions(ctx, "a1", perms); err != nil {
		t.Fatalf("UpdatePermissions failed: %v", err)
	}
	a, _ := repo.GetAdmin(ctx, "a1")
	if a.Permissions != perms {
		t.Errorf("Permissions = %+v, want fresh value", a.Permissions)
	}

	if err := repo.DeleteAdmin(ctx, "a1"); err != nil {
		t.Fatalf("DeleteAdmin failed: %v", err)
	}
	if _, err := repo.GetAdmin(ctx, "a1"); !errors.Is(err, domain.ErrAdminNotFound) {
		t.Errorf("removed admin still readable: %v", err)
	}
}
