// internal/domain/notification/types.go
package notification

import "fmt"

// Type labels which threshold a reminder corresponds to, e.g. "30_days", "1_day", "0_days".
type Type string

// TypeForDays maps a days-until-expiry value to its notification type label.
// Negative values produce labels like "-3_days"; they never match an enabled threshold.
func TypeForDays(days int) Type {
	switch days {
	case 0:
		return "0_days"
	case 1:
		return "1_day"
	default:
		return Type(fmt.Sprintf("%d_days", days))
	}
}

// Status is the outcome of a single send attempt in the ledger.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// RecipientCategory identifies the logical recipient of a reminder.
// The ledger records one row per category per invocation.
type RecipientCategory string

const (
	RecipientAdmin  RecipientCategory = "admin"
	RecipientClient RecipientCategory = "client"
	RecipientVendor RecipientCategory = "vendor"
)

// Tier is a coarse urgency bucket used only to shape e-mail wording and styling.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// TierForDays buckets days-until-expiry: <=0 critical, 1..5 high, 6..15 medium, >15 low.
func TierForDays(days int) Tier {
	switch {
	case days <= 0:
		return TierCritical
	case days <= 5:
		return TierHigh
	case days <= 15:
		return TierMedium
	default:
		return TierLow
	}
}
