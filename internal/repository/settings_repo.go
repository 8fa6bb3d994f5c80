package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"attention-engine/internal/service/ratelimit"
)

// SettingsRepository persists the mutable rate limiter settings as a
// single row. When no row exists yet the configured defaults apply.
type SettingsRepository struct {
	db       *pgxpool.Pool
	defaults ratelimit.Settings
}

func NewSettingsRepository(db *pgxpool.Pool, defaults ratelimit.Settings) *SettingsRepository {
	return &SettingsRepository{db: db, defaults: defaults}
}

func (r *SettingsRepository) Get(ctx context.Context) (ratelimit.Settings, error) {
	query := `SELECT enabled, daily_limit, weekly_limit FROM limiter_settings WHERE id = 1`
	var s ratelimit.Settings
	err := r.db.QueryRow(ctx, query).Scan(&s.Enabled, &s.DailyLimit, &s.WeeklyLimit)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.defaults, nil
	}
	if err != nil {
		return ratelimit.Settings{}, err
	}
	return s, nil
}

func (r *SettingsRepository) Put(ctx context.Context, s ratelimit.Settings) error {
	query := `
        INSERT INTO limiter_settings (id, enabled, daily_limit, weekly_limit)
        VALUES (1, $1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET
            enabled      = EXCLUDED.enabled,
            daily_limit  = EXCLUDED.daily_limit,
            weekly_limit = EXCLUDED.weekly_limit
    `
	_, err := r.db.Exec(ctx, query, s.Enabled, s.DailyLimit, s.WeeklyLimit)
	return err
}
