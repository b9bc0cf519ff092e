package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/nexbit/tradecore/internal/domain"
)

// SettingsRepository reads and writes the single platform settings row.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get fetches the settings row, seeding it with defaults when missing so a
// fresh database is immediately usable.
func (r *SettingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	var s domain.Settings
	err := r.db.GetContext(ctx, &s, `SELECT * FROM platform_settings WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.seedDefaults(ctx)
		}
		return nil, fmt.Errorf("settings_repo.Get: %w", err)
	}
	return &s, nil
}

// Update overwrites the editable settings fields.
func (r *SettingsRepository) Update(ctx context.Context, s *domain.Settings) error {
	_, err := r.db.NamedExecContext(ctx, `
		UPDATE platform_settings
		SET payout_pct            = :payout_pct,
		    demo_balance_default  = :demo_balance_default,
		    withdraw_min_usd      = :withdraw_min_usd,
		    withdraw_fee_pct      = :withdraw_fee_pct,
		    withdraw_flat_fee_usd = :withdraw_flat_fee_usd,
		    withdraw_daily_max    = :withdraw_daily_max,
		    updated_at            = now()
		WHERE id = 1`,
		s)
	if err != nil {
		return fmt.Errorf("settings_repo.Update: %w", err)
	}
	return nil
}

// seedDefaults inserts the default row. ON CONFLICT covers a concurrent seed.
func (r *SettingsRepository) seedDefaults(ctx context.Context) (*domain.Settings, error) {
	defaults := domain.DefaultSettings()
	var s domain.Settings
	err := r.db.GetContext(ctx, &s, `
		INSERT INTO platform_settings
			(id, payout_pct, demo_balance_default, withdraw_min_usd, withdraw_fee_pct, withdraw_flat_fee_usd, withdraw_daily_max, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING *`,
		defaults.ID, defaults.PayoutPct, defaults.DemoBalanceDefault,
		defaults.WithdrawMinUsd, defaults.WithdrawFeePct, defaults.WithdrawFlatFeeUsd,
			defaults.WithdrawDailyMax)
	if err != nil {
		return nil, fmt.Errorf("settings_repo.seedDefaults: %w", err)
	}
	return &s, nil
}
