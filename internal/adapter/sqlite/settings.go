package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// Compile-time check: Store implements domain.SettingsRepository.
var _ domain.SettingsRepository = (*Store)(nil)

const settingsID = "global"

func (s *Store) LoadSettings(ctx context.Context) (domain.Settings, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT configs FROM settings WHERE id = ?`, settingsID).Scan(&raw)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	var out domain.Settings
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return out, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (id, configs, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET configs = excluded.configs, updated_at = excluded.updated_at`,
		settingsID, string(raw), s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}
