// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"license_notifier/internal/domain/notification"

	"github.com/lib/pq" // For pq.Array
)

// PostgresNotificationRepository is the dedup ledger backed by 'notification_history'.
type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func statusStrings(statuses []notification.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *PostgresNotificationRepository) ExistsInWindow(ctx context.Context, licenseID int64, notifType notification.Type, statuses []notification.Status, from, to time.Time) (bool, error) {
	query := `SELECT EXISTS (
                 SELECT 1 FROM notification_history
                 WHERE license_id = $1
                   AND notification_type = $2
                   AND status = ANY($3::varchar[])
                   AND sent_at >= $4 AND sent_at < $5
               )`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, licenseID, notifType, pq.Array(statusStrings(statuses)), from, to).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking notification history for license %d (%s): %w", licenseID, notifType, err)
	}
	return exists, nil
}

func (r *PostgresNotificationRepository) Append(ctx context.Context, rec *notification.Record) error {
	query := `INSERT INTO notification_history
                 (license_id, notification_type, status, subject, recipient_category, recipient_email, error_message, sent_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
               RETURNING id`

	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}
	err := r.db.QueryRowContext(ctx, query,
		rec.LicenseID, rec.Type, rec.Status, rec.Subject, rec.RecipientCategory, rec.RecipientEmail, rec.ErrorMessage, rec.SentAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("error appending notification record for license %d: %w", rec.LicenseID, err)
	}
	return nil
}

func (r *PostgresNotificationRepository) ListHistory(ctx context.Context, filter notification.HistoryFilter) ([]*notification.Record, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.LicenseID != 0 {
		args = append(args, filter.LicenseID)
		conditions = append(conditions, fmt.Sprintf("license_id = $%d", len(args)))
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		conditions = append(conditions, fmt.Sprintf("notification_type = ANY($%d::varchar[])", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, pq.Array(statusStrings(filter.Statuses)))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d::varchar[])", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = notification.DefaultHistoryLimit
	}
	args = append(args, limit)

	var query strings.Builder
	query.WriteString(`SELECT id, license_id, notification_type, status, subject, recipient_category, recipient_email, error_message, sent_at
               FROM notification_history`)
	if len(conditions) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(conditions, " AND "))
	}
	query.WriteString(fmt.Sprintf(" ORDER BY sent_at DESC, id DESC LIMIT $%d", len(args)))

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("error querying notification history: %w", err)
	}
	defer rows.Close()

	records := make([]*notification.Record, 0)
	for rows.Next() {
		rec := &notification.Record{}
		if err := rows.Scan(
			&rec.ID, &rec.LicenseID, &rec.Type, &rec.Status, &rec.Subject,
			&rec.RecipientCategory, &rec.RecipientEmail, &rec.ErrorMessage, &rec.SentAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning notification record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification history: %w", err)
	}
	return records, nil
}
