package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/nexbit/tradecore/internal/domain"
	"github.com/nexbit/tradecore/internal/repository"
)

// SettingsService holds an in-memory snapshot of the platform settings row.
// Services read the snapshot, never the database, so one operation sees one
// consistent set of values. The scheduler refreshes the snapshot on a cadence;
// back-office updates refresh it immediately.
type SettingsService struct {
	repo *repository.SettingsRepository

	mu       sync.RWMutex
	snapshot domain.Settings
}

// NewSettingsService builds a SettingsService seeded with defaults. Call
// Refresh at startup to load the persisted row.
func NewSettingsService(repo *repository.SettingsRepository) *SettingsService {
	return &SettingsService{
		repo:     repo,
		snapshot: domain.DefaultSettings(),
	}
}

// Snapshot returns the current settings snapshot by value.
func (s *SettingsService) Snapshot() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Refresh reloads the snapshot from the database. On failure the previous
// snapshot stays in place — a transient DB error must not zero out live
// settings.
func (s *SettingsService) Refresh(ctx context.Context) error {
	loaded, err := s.repo.Get(ctx)
	if err != nil {
		log.Printf("[settings] WARN refresh failed, keeping previous snapshot: %v", err)
		return fmt.Errorf("settings_service.Refresh: %w", err)
	}
	s.mu.Lock()
	s.snapshot = *loaded
	s.mu.Unlock()
	return nil
}

// Update persists new settings and refreshes the snapshot in one step
// (back-office operation).
func (s *SettingsService) Update(ctx context.Context, settings *domain.Settings) error {
	if err := s.repo.Update(ctx, settings); err != nil {
		return fmt.Errorf("settings_service.Update: %w", err)
	}
	return s.Refresh(ctx)
}
