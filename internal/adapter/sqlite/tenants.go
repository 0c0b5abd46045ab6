package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// Compile-time check: Store implements domain.TenantRepository.
var _ domain.TenantRepository = (*Store)(nil)

const tenantColumns = `id, name, address, contact, status, payment_status, principal_id,
	trial_start_date, creation_state, created_at, updated_at`

func (s *Store) Create(ctx context.Context, t domain.Tenant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (`+tenantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Address, t.Contact,
		string(t.Status), string(t.PaymentStatus), t.PrincipalID,
		formatNullTime(t.TrialStartDate), string(t.CreationState),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCodeTaken
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.Tenant, error) {
	t, err := scanTenant(s.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id,
	))
	if isNoRows(err) {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	return t, err
}

func (s *Store) List(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}

	return tenants, rows.Err()
}

func (s *Store) Update(ctx context.Context, t domain.Tenant) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET name = ?, address = ?, contact = ?, status = ?,
		        payment_status = ?, principal_id = ?, updated_at = ?
		 WHERE id = ?`,
		t.Name, t.Address, t.Contact, string(t.Status),
		string(t.PaymentStatus), t.PrincipalID, s.timestamp(), t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating tenant: %w", err)
	}
	return requireRow(result, domain.ErrTenantNotFound)
}

func (s *Store) SetPaymentStatus(ctx context.Context, id string, from, to domain.PaymentStatus) (domain.Tenant, error) {
	// Anything not paid reads as unpaid, so the guard matches on that.
	guard := `payment_status <> 'paid'`
	if from.IsPaid() {
		guard = `payment_status = 'paid'`
	}
	return s.conditionalUpdate(ctx, id, "payment_status", string(from),
		`UPDATE tenants SET payment_status = ?, updated_at = ? WHERE id = ? AND `+guard,
		string(to), s.timestamp(), id,
	)
}

func (s *Store) SetStatus(ctx context.Context, id string, from, to domain.Status) (domain.Tenant, error) {
	guard := `status <> 'active'`
	if from.IsActive() {
		guard = `status = 'active'`
	}
	return s.conditionalUpdate(ctx, id, "status", string(from),
		`UPDATE tenants SET status = ?, updated_at = ? WHERE id = ? AND `+guard,
		string(to), s.timestamp(), id,
	)
}

func (s *Store) SetTrialStart(ctx context.Context, id string, start time.Time, restart bool) (domain.Tenant, error) {
	query := `UPDATE tenants SET trial_start_date = ?, updated_at = ? WHERE id = ?`
	if !restart {
		query += ` AND trial_start_date IS NULL`
	}

	result, err := s.db.ExecContext(ctx, query, formatTime(start), s.timestamp(), id)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("setting trial start: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("checking rows affected: %w", err)
	}

	t, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}
	if n == 0 {
		return t, domain.ErrTrialAlreadyStarted
	}
	return t, nil
}

func (s *Store) MarkCreationComplete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET creation_state = ?, updated_at = ? WHERE id = ?`,
		string(domain.CreationComplete), s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("marking creation complete: %w", err)
	}
	return requireRow(result, domain.ErrTenantNotFound)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}
	return requireRow(result, domain.ErrTenantNotFound)
}

func (s *Store) NextCode(ctx context.Context) (string, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE code_sequence SET value = value + 1 WHERE name = 'school' RETURNING value`,
	).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("advancing school code sequence: %w", err)
	}
	return domain.FormatCode(n), nil
}

// conditionalUpdate runs a guarded UPDATE and tells a lost race apart from a
// missing row.
func (s *Store) conditionalUpdate(ctx context.Context, id, field, expected, query string, args ...any) (domain.Tenant, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("updating tenant %s: %w", field, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("checking rows affected: %w", err)
	}

	t, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}
	if n == 0 {
		return t, &domain.StaleWriteError{TenantID: id, Field: field, Expected: expected}
	}
	return t, nil
}

func requireRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func scanTenant(row rowScanner) (domain.Tenant, error) {
	var t domain.Tenant
	var status, payment, creation, createdAt, updatedAt string
	var trial sql.NullString

	err := row.Scan(&t.ID, &t.Name, &t.Address, &t.Contact, &status, &payment,
		&t.PrincipalID, &trial, &creation, &createdAt, &updatedAt)
	if err != nil {
		if isNoRows(err) {
			return domain.Tenant{}, err
		}
		return domain.Tenant{}, fmt.Errorf("scanning tenant: %w", err)
	}

	t.Status = domain.Status(status)
	t.PaymentStatus = domain.PaymentStatus(payment)
	t.CreationState = domain.CreationState(creation)
	t.TrialStartDate = parseNullTime(trial)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)

	return t, nil
}
