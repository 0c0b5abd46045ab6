package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// Compile-time check: Store implements domain.DocumentStore.
var _ domain.DocumentStore = (*Store)(nil)

func (s *Store) ListIDs(ctx context.Context, tenantID, collection string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM tenant_documents WHERE tenant_id = ? AND collection = ? ORDER BY id`,
		tenantID, collection,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s of %s: %w", collection, tenantID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Count(ctx context.Context, tenantID, collection string, since *time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM tenant_documents WHERE tenant_id = ? AND collection = ?`
	args := []any{tenantID, collection}
	if since != nil {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(*since))
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s of %s: %w", collection, tenantID, err)
	}
	return n, nil
}

func (s *Store) CountAll(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tenant_documents WHERE collection = ?`, collection,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting all %s: %w", collection, err)
	}
	return n, nil
}

func (s *Store) CommitDeletes(ctx context.Context, refs []domain.DocRef) error {
	if len(refs) > domain.MaxBatchOps {
		return fmt.Errorf("batch of %d operations exceeds the limit of %d", len(refs), domain.MaxBatchOps)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, ref := range refs {
			var err error
			if ref.Collection == domain.CollectionGlobalUsers {
				_, err = tx.ExecContext(ctx, `DELETE FROM global_users WHERE uid = ?`, ref.ID)
			} else {
				_, err = tx.ExecContext(ctx,
					`DELETE FROM tenant_documents WHERE tenant_id = ? AND collection = ? AND id = ?`,
					ref.TenantID, ref.Collection, ref.ID,
				)
			}
			if err != nil {
				return fmt.Errorf("deleting %s/%s: %w", ref.Collection, ref.ID, err)
			}
		}
		return nil
	})
}

type announcementDoc struct {
	Message     string    `json:"message"`
	Type        string    `json:"type"`
	SentAt      time.Time `json:"sentAt"`
	Active      bool      `json:"active"`
	DismissedBy []string  `json:"dismissedBy"`
}

func (s *Store) PutAnnouncements(ctx context.Context, tenantIDs []string, a domain.Announcement) error {
	if len(tenantIDs) > domain.MaxBatchOps {
		return fmt.Errorf("batch of %d operations exceeds the limit of %d", len(tenantIDs), domain.MaxBatchOps)
	}

	dismissed := a.DismissedBy
	if dismissed == nil {
		dismissed = []string{}
	}
	data, err := json.Marshal(announcementDoc{
		Message:     a.Message,
		Type:        string(a.Type),
		SentAt:      a.SentAt.UTC(),
		Active:      a.Active,
		DismissedBy: dismissed,
	})
	if err != nil {
		return fmt.Errorf("encoding announcement: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range tenantIDs {
			if err := upsertDocument(ctx, tx, id, domain.CollectionAnnouncements, domain.BroadcastDocumentID, data, formatTime(a.SentAt)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetAnnouncement reads the broadcast slot of a school.
func (s *Store) GetAnnouncement(ctx context.Context, tenantID string) (domain.Announcement, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM tenant_documents WHERE tenant_id = ? AND collection = ? AND id = ?`,
		tenantID, domain.CollectionAnnouncements, domain.BroadcastDocumentID,
	).Scan(&raw)
	if err != nil {
		if isNoRows(err) {
			return domain.Announcement{}, fmt.Errorf("no announcement for %s: %w", tenantID, err)
		}
		return domain.Announcement{}, fmt.Errorf("reading announcement: %w", err)
	}

	var doc announcementDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return domain.Announcement{}, fmt.Errorf("decoding announcement: %w", err)
	}
	return domain.Announcement{
		Message:     doc.Message,
		Type:        domain.AnnouncementType(doc.Type),
		SentAt:      doc.SentAt,
		Active:      doc.Active,
		DismissedBy: doc.DismissedBy,
	}, nil
}

// PutDocument writes an arbitrary document owned by a school. Records created
// by the school portals land here.
func (s *Store) PutDocument(ctx context.Context, tenantID, collection, id string, body any, createdAt time.Time) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", collection, id, err)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertDocument(ctx, tx, tenantID, collection, id, data, formatTime(createdAt))
	})
}

func upsertDocument(ctx context.Context, tx *sql.Tx, tenantID, collection, id string, data []byte, createdAt string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO tenant_documents (tenant_id, collection, id, data, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, collection, id) DO UPDATE SET data = excluded.data`,
		tenantID, collection, id, string(data), createdAt,
	)
	if err != nil {
		return fmt.Errorf("writing %s/%s of %s: %w", collection, id, tenantID, err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
