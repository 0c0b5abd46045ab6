package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// Compile-time check: Store implements domain.AdminRepository.
var _ domain.AdminRepository = (*Store)(nil)

const adminColumns = `uid, name, email, role, permissions, status, created_at`

func (s *Store) ListAdmins(ctx context.Context) ([]domain.SuperAdmin, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+adminColumns+` FROM global_users WHERE role = ? ORDER BY created_at`,
		domain.RoleSuperAdmin,
	)
	if err != nil {
		return nil, fmt.Errorf("listing super-admins: %w", err)
	}
	defer rows.Close()

	var out []domain.SuperAdmin
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAdmin(ctx context.Context, uid string) (domain.SuperAdmin, error) {
	a, err := scanAdmin(s.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM global_users WHERE uid = ? AND role = ?`,
		uid, domain.RoleSuperAdmin,
	))
	if isNoRows(err) {
		return domain.SuperAdmin{}, domain.ErrAdminNotFound
	}
	return a, err
}

func (s *Store) PutAdmin(ctx context.Context, a domain.SuperAdmin) error {
	perms, err := json.Marshal(a.Permissions)
	if err != nil {
		return fmt.Errorf("encoding permissions: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO global_users (uid, name, email, role, permissions, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (uid) DO UPDATE SET
		     name = excluded.name, email = excluded.email, role = excluded.role,
		     permissions = excluded.permissions, status = excluded.status`,
		a.UID, a.Name, a.Email, domain.RoleSuperAdmin, string(perms), a.Status, formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("writing super-admin %s: %w", a.UID, err)
	}
	return nil
}

func (s *Store) UpdatePermissions(ctx context.Context, uid string, perms domain.Permissions) error {
	raw, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("encoding permissions: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE global_users SET permissions = ? WHERE uid = ? AND role = ?`,
		string(raw), uid, domain.RoleSuperAdmin,
	)
	if err != nil {
		return fmt.Errorf("updating permissions of %s: %w", uid, err)
	}
	return requireRow(result, domain.ErrAdminNotFound)
}

func (s *Store) DeleteAdmin(ctx context.Context, uid string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM global_users WHERE uid = ? AND role = ?`, uid, domain.RoleSuperAdmin)
	if err != nil {
		return fmt.Errorf("deleting super-admin %s: %w", uid, err)
	}
	return requireRow(result, domain.ErrAdminNotFound)
}

func scanAdmin(row rowScanner) (domain.SuperAdmin, error) {
	var a domain.SuperAdmin
	var perms, createdAt string
	if err := row.Scan(&a.UID, &a.Name, &a.Email, &a.Role, &perms, &a.Status, &createdAt); err != nil {
		if isNoRows(err) {
			return domain.SuperAdmin{}, err
		}
		return domain.SuperAdmin{}, fmt.Errorf("scanning super-admin: %w", err)
	}
	if err := json.Unmarshal([]byte(perms), &a.Permissions); err != nil {
		return domain.SuperAdmin{}, fmt.Errorf("decoding permissions of %s: %w", a.UID, err)
	}
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}
