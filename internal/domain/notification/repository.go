// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"
)

// Repository defines the ledger operations. The ledger is append-only; records are
// never updated or deleted.
type Repository interface {
	// ExistsInWindow reports whether any record with one of the given statuses exists for
	// the license and type with sent_at in [from, to).
	ExistsInWindow(ctx context.Context, licenseID int64, notifType Type, statuses []Status, from, to time.Time) (bool, error)
	Append(ctx context.Context, r *Record) error
	ListHistory(ctx context.Context, filter HistoryFilter) ([]*Record, error)
}

// SettingsRepository persists the notification settings record.
type SettingsRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*Settings, error)
	Create(ctx context.Context, s *Settings) error
	// Update replaces every mutable field of the record owned by s.UserID.
	Update(ctx context.Context, s *Settings) error
}
