package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"license_notifier/internal/domain/notification"
)

var ErrSettingsNotFound = fmt.Errorf("notification settings not found")
var ErrDuplicateSettings = fmt.Errorf("notification settings already exist for this user")

const settingsColumns = `id, user_id, email_enabled,
               notify_45_days, notify_30_days, notify_15_days, notify_7_days, notify_5_days, notify_1_day, notify_0_days,
               notification_time, timezone, created_at, updated_at`

type PostgresSettingsRepository struct {
	db *sql.DB
}

func NewPostgresSettingsRepository(db *sql.DB) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

// thresholdFlags expands a set into the per-column booleans, in column order.
func thresholdFlags(set notification.ThresholdSet) []bool {
	flags := make([]bool, len(notification.Thresholds))
	for i, d := range notification.Thresholds {
		flags[i] = set.ContainsDays(d)
	}
	return flags
}

func thresholdsFromFlags(flags []bool) notification.ThresholdSet {
	var set notification.ThresholdSet
	for i, d := range notification.Thresholds {
		set = set.With(d, flags[i])
	}
	return set
}

func (r *PostgresSettingsRepository) GetByUserID(ctx context.Context, userID int64) (*notification.Settings, error) {
	query := `SELECT ` + settingsColumns + ` FROM notification_settings WHERE user_id = $1`

	s := &notification.Settings{}
	flags := make([]bool, len(notification.Thresholds))
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&s.ID, &s.UserID, &s.Enabled,
		&flags[0], &flags[1], &flags[2], &flags[3], &flags[4], &flags[5], &flags[6],
		&s.NotificationTime, &s.Timezone, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("error getting notification settings for user %d: %w", userID, err)
	}
	s.Thresholds = thresholdsFromFlags(flags)
	return s, nil
}

func (r *PostgresSettingsRepository) Create(ctx context.Context, s *notification.Settings) error {
	query := `INSERT INTO notification_settings (user_id, email_enabled,
                 notify_45_days, notify_30_days, notify_15_days, notify_7_days, notify_5_days, notify_1_day, notify_0_days,
                 notification_time, timezone)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
               RETURNING id, created_at, updated_at`

	f := thresholdFlags(s.Thresholds)
	err := r.db.QueryRowContext(ctx, query,
		s.UserID, s.Enabled, f[0], f[1], f[2], f[3], f[4], f[5], f[6], s.NotificationTime, s.Timezone,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "notification_settings_user_id_key") {
			return ErrDuplicateSettings
		}
		return fmt.Errorf("error creating notification settings: %w", err)
	}
	return nil
}

func (r *PostgresSettingsRepository) Update(ctx context.Context, s *notification.Settings) error {
	query := `UPDATE notification_settings
               SET email_enabled = $1,
                   notify_45_days = $2, notify_30_days = $3, notify_15_days = $4, notify_7_days = $5,
                   notify_5_days = $6, notify_1_day = $7, notify_0_days = $8,
                   notification_time = $9, timezone = $10, updated_at = NOW()
               WHERE user_id = $11
               RETURNING id, created_at, updated_at`

	f := thresholdFlags(s.Thresholds)
	err := r.db.QueryRowContext(ctx, query,
		s.Enabled, f[0], f[1], f[2], f[3], f[4], f[5], f[6], s.NotificationTime, s.Timezone, s.UserID,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSettingsNotFound
		}
		return fmt.Errorf("error updating notification settings: %w", err)
	}
	return nil
}
