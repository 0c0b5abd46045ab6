package app

import (
	"context"
	"log/slog"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

// SettingsService reads and writes the global settings blob.
type SettingsService struct {
	repo domain.SettingsRepository
	log  *slog.Logger
}

// NewSettingsService creates a service with the given repository.
func NewSettingsService(repo domain.SettingsRepository, log *slog.Logger) *SettingsService {
	return &SettingsService{repo: repo, log: log}
}

// Get returns the defaults overlaid with whatever was saved.
func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	stored, err := s.repo.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	return domain.DefaultSettings().Merge(stored), nil
}

// Save merges patch into the current settings group by group.
func (s *SettingsService) Save(ctx context.Context, patch domain.Settings) (domain.Settings, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	merged := current.Merge(patch)
	if err := s.repo.SaveSettings(ctx, merged); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "settings saved", "groups", len(patch))
	return merged, nil
}
