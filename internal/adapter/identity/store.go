package identity

import (
	"context"
	"time"
)

// Account is a login identity: an email and a password hash.
type Account struct {
	UID          string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionRecord is the server-side half of a session token. A token is only
// honored while its record exists, is unrevoked and has not expired.
type SessionRecord struct {
	ID        string
	UID       string
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session may still be used at now.
func (r SessionRecord) Active(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

// Store persists accounts and sessions.
type Store interface {
	CreateAccount(ctx context.Context, a Account) error
	AccountByEmail(ctx context.Context, email string) (Account, error)
	AccountByUID(ctx context.Context, uid string) (Account, error)
	SetPasswordHash(ctx context.Context, uid, hash string) error
	SetEmail(ctx context.Context, uid, email string) error
	DeleteAccount(ctx context.Context, uid string) error
	CreateSession(ctx context.Context, r SessionRecord) error
	GetSession(ctx context.Context, id string) (SessionRecord, error)
	RevokeSession(ctx context.Context, id string) error
	RevokeSessionsOf(ctx context.Context, uid string) error
}
