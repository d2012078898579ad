// internal/domain/notification/record.go
package notification

import "time"

// Record is one row of the append-only dedup ledger: a single send attempt for one
// license, notification type and recipient category.
// Corresponds to the 'notification_history' table.
type Record struct {
	ID                int64
	LicenseID         int64
	Type              Type
	Status            Status
	Subject           string
	RecipientCategory RecipientCategory
	RecipientEmail    string
	ErrorMessage      string // empty for sent records
	SentAt            time.Time
}

// HistoryFilter narrows a ledger listing. Zero values mean "no filter".
type HistoryFilter struct {
	LicenseID int64
	Types     []Type
	Statuses  []Status
	Limit     int
}

const DefaultHistoryLimit = 100
