package repository

import (
	"context"
	"errors"

	"github.com/hray3182/PingMe/internal/database"
	"github.com/hray3182/PingMe/internal/models"
	"github.com/jackc/pgx/v5"
)

const settingsColumns = `id, user_id, snooze_minutes, timezone, created_at, updated_at`

type UserSettingsRepository struct {
	db *database.DB
}

func NewUserSettingsRepository(db *database.DB) *UserSettingsRepository {
	return &UserSettingsRepository{db: db}
}

func scanSettings(row scanner) (*models.UserSettings, error) {
	settings := &models.UserSettings{}
	err := row.Scan(&settings.ID, &settings.UserID, &settings.SnoozeMinutes, &settings.Timezone,
		&settings.CreatedAt, &settings.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// GetOrCreate retrieves user settings, creating default settings if none exist
func (r *UserSettingsRepository) GetOrCreate(ctx context.Context, userID int64) (*models.UserSettings, error) {
	return scanSettings(r.db.Pool.QueryRow(ctx,
		`INSERT INTO user_settings (user_id, snooze_minutes, timezone) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING `+settingsColumns,
		userID, models.DefaultSnoozeMinutes, models.DefaultTimezone,
	))
}

// GetByUserID returns models.ErrNotFound when the owner has no row yet
func (r *UserSettingsRepository) GetByUserID(ctx context.Context, userID int64) (*models.UserSettings, error) {
	return scanSettings(r.db.Pool.QueryRow(ctx,
		`SELECT `+settingsColumns+` FROM user_settings WHERE user_id = $1`, userID))
}

func (r *UserSettingsRepository) UpdateSnoozeMinutes(ctx context.Context, userID int64, minutes int) (*models.UserSettings, error) {
	return scanSettings(r.db.Pool.QueryRow(ctx,
		`INSERT INTO user_settings (user_id, snooze_minutes, timezone) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET snooze_minutes = EXCLUDED.snooze_minutes, updated_at = CURRENT_TIMESTAMP
		 RETURNING `+settingsColumns,
		userID, minutes, models.DefaultTimezone,
	))
}

func (r *UserSettingsRepository) UpdateTimezone(ctx context.Context, userID int64, timezone string) (*models.UserSettings, error) {
	return scanSettings(r.db.Pool.QueryRow(ctx,
		`INSERT INTO user_settings (user_id, snooze_minutes, timezone) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET timezone = EXCLUDED.timezone, updated_at = CURRENT_TIMESTAMP
		 RETURNING `+settingsColumns,
		userID, models.DefaultSnoozeMinutes, timezone,
	))
}
