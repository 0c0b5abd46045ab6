package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// Compile-time check: Store implements domain.PrincipalRepository.
var _ domain.PrincipalRepository = (*Store)(nil)

func (s *Store) GetGlobal(ctx context.Context, uid string) (domain.Principal, error) {
	var p domain.Principal
	err := s.db.QueryRowContext(ctx,
		`SELECT uid, name, email, contact, role, tenant_id FROM global_users WHERE uid = ?`, uid,
	).Scan(&p.UID, &p.Name, &p.Email, &p.Contact, &p.Role, &p.TenantID)
	if err != nil {
		if isNoRows(err) {
			return domain.Principal{}, domain.ErrPrincipalNotFound
		}
		return domain.Principal{}, fmt.Errorf("reading global user %s: %w", uid, err)
	}
	return p, nil
}

func (s *Store) PutGlobal(ctx context.Context, p domain.Principal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO global_users (uid, name, email, contact, role, tenant_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (uid) DO UPDATE SET
		     name = excluded.name, email = excluded.email, contact = excluded.contact,
		     role = excluded.role, tenant_id = excluded.tenant_id`,
		p.UID, p.Name, p.Email, p.Contact, p.Role, p.TenantID, s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("writing global user %s: %w", p.UID, err)
	}
	return nil
}

func (s *Store) DeleteGlobal(ctx context.Context, uid string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM global_users WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("deleting global user %s: %w", uid, err)
	}
	return nil
}

// scopedUser is the JSON body of a document in a school's users collection.
type scopedUser struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
	Role    string `json:"role"`
}

func (s *Store) GetScoped(ctx context.Context, tenantID, uid string) (domain.Principal, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM tenant_documents WHERE tenant_id = ? AND collection = ? AND id = ?`,
		tenantID, domain.CollectionUsers, uid,
	).Scan(&raw)
	if err != nil {
		if isNoRows(err) {
			return domain.Principal{}, domain.ErrPrincipalNotFound
		}
		return domain.Principal{}, fmt.Errorf("reading user %s of %s: %w", uid, tenantID, err)
	}

	var doc scopedUser
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return domain.Principal{}, fmt.Errorf("decoding user %s: %w", uid, err)
	}
	return domain.Principal{
		UID:      uid,
		Name:     doc.Name,
		Email:    doc.Email,
		Contact:  doc.Contact,
		Role:     doc.Role,
		TenantID: tenantID,
	}, nil
}

func (s *Store) PutScoped(ctx context.Context, p domain.Principal) error {
	data, err := json.Marshal(scopedUser{Name: p.Name, Email: p.Email, Contact: p.Contact, Role: p.Role})
	if err != nil {
		return fmt.Errorf("encoding user %s: %w", p.UID, err)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertDocument(ctx, tx, p.TenantID, domain.CollectionUsers, p.UID, data, s.timestamp())
	})
}
