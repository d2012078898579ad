package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements bootstraps the tables owned by the reminder service. Licenses, clients,
// vendors and users belong to the bookkeeping schema and must already exist.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS notification_settings (
		id                BIGSERIAL PRIMARY KEY,
		user_id           BIGINT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		email_enabled     BOOLEAN NOT NULL DEFAULT TRUE,
		notify_30_days    BOOLEAN NOT NULL DEFAULT TRUE,
		notify_15_days    BOOLEAN NOT NULL DEFAULT TRUE,
		notify_7_days     BOOLEAN NOT NULL DEFAULT TRUE,
		notify_1_day      BOOLEAN NOT NULL DEFAULT TRUE,
		notify_0_days     BOOLEAN NOT NULL DEFAULT TRUE,
		notification_time VARCHAR(5) NOT NULL DEFAULT '09:00',
		timezone          VARCHAR(64) NOT NULL DEFAULT 'UTC',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	// Older deployments were created without the 45- and 5-day columns.
	`ALTER TABLE notification_settings ADD COLUMN IF NOT EXISTS notify_45_days BOOLEAN NOT NULL DEFAULT TRUE`,
	`ALTER TABLE notification_settings ADD COLUMN IF NOT EXISTS notify_5_days BOOLEAN NOT NULL DEFAULT TRUE`,
	`CREATE TABLE IF NOT EXISTS notification_history (
		id                 BIGSERIAL PRIMARY KEY,
		license_id         BIGINT NOT NULL REFERENCES licenses(id) ON DELETE CASCADE,
		notification_type  VARCHAR(20) NOT NULL,
		status             VARCHAR(10) NOT NULL CHECK (status IN ('sent', 'failed')),
		subject            TEXT NOT NULL DEFAULT '',
		recipient_category VARCHAR(10) NOT NULL DEFAULT '',
		recipient_email    TEXT NOT NULL DEFAULT '',
		error_message      TEXT NOT NULL DEFAULT '',
		sent_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS notification_history_dedup_idx
		ON notification_history (license_id, notification_type, sent_at)`,
}

// EnsureSchema creates the notification tables if needed and applies additive migrations.
// Every statement is idempotent, so it is safe to run on each start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Rollback if not committed

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}
	return tx.Commit()
}
