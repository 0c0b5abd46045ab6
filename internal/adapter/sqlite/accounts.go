package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/neomorfeo/schooldesk/internal/adapter/identity"
	"github.com/neomorfeo/schooldesk/internal/domain"
)

// Compile-time check: Store implements identity.Store.
var _ identity.Store = (*Store)(nil)

func (s *Store) CreateAccount(ctx context.Context, a identity.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identity_accounts (uid, email, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.UID, a.Email, a.PasswordHash, formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailInUse
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (identity.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`SELECT uid, email, password_hash, created_at, updated_at FROM identity_accounts WHERE email = ?`, email))
}

func (s *Store) AccountByUID(ctx context.Context, uid string) (identity.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		`SELECT uid, email, password_hash, created_at, updated_at FROM identity_accounts WHERE uid = ?`, uid))
}

func (s *Store) SetPasswordHash(ctx context.Context, uid, hash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE identity_accounts SET password_hash = ?, updated_at = ? WHERE uid = ?`,
		hash, s.timestamp(), uid,
	)
	if err != nil {
		return fmt.Errorf("updating password of %s: %w", uid, err)
	}
	return requireRow(result, domain.ErrAccountNotFound)
}

func (s *Store) SetEmail(ctx context.Context, uid, email string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE identity_accounts SET email = ?, updated_at = ? WHERE uid = ?`,
		email, s.timestamp(), uid,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailInUse
		}
		return fmt.Errorf("updating email of %s: %w", uid, err)
	}
	return requireRow(result, domain.ErrAccountNotFound)
}

func (s *Store) DeleteAccount(ctx context.Context, uid string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM identity_accounts WHERE uid = ?`, uid)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", uid, err)
	}
	return requireRow(result, domain.ErrAccountNotFound)
}

func (s *Store) CreateSession(ctx context.Context, r identity.SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, uid, expires_at) VALUES (?, ?, ?)`,
		r.ID, r.UID, formatTime(r.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (identity.SessionRecord, error) {
	var r identity.SessionRecord
	var expiresAt string
	var revokedAt sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, uid, expires_at, revoked_at FROM sessions WHERE id = ?`, id,
	).Scan(&r.ID, &r.UID, &expiresAt, &revokedAt)
	if err != nil {
		if isNoRows(err) {
			return identity.SessionRecord{}, domain.ErrSessionInvalid
		}
		return identity.SessionRecord{}, fmt.Errorf("reading session: %w", err)
	}
	r.ExpiresAt = parseTime(expiresAt)
	r.RevokedAt = parseNullTime(revokedAt)
	return r, nil
}

func (s *Store) RevokeSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

func (s *Store) RevokeSessionsOf(ctx context.Context, uid string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE uid = ? AND revoked_at IS NULL`, s.timestamp(), uid)
	if err != nil {
		return fmt.Errorf("revoking sessions of %s: %w", uid, err)
	}
	return nil
}

func scanAccount(row rowScanner) (identity.Account, error) {
	var a identity.Account
	var createdAt, updatedAt string
	if err := row.Scan(&a.UID, &a.Email, &a.PasswordHash, &createdAt, &updatedAt); err != nil {
		if isNoRows(err) {
			return identity.Account{}, domain.ErrAccountNotFound
		}
		return identity.Account{}, fmt.Errorf("scanning account: %w", err)
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}
