// internal/domain/notification/settings.go
package notification

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidTimeOfDay = fmt.Errorf("invalid time of day, expected HH:MM")

const (
	DefaultNotificationTime = "09:00"
	DefaultTimezone         = "UTC"
)

// Settings is the single logical notification-settings record, keyed by the owning user.
// Corresponds to the 'notification_settings' table.
type Settings struct {
	ID               int64
	UserID           int64
	Enabled          bool
	Thresholds       ThresholdSet
	NotificationTime string // "HH:MM", 24h clock
	Timezone         string // IANA name; governs the daily fire time and the day boundary
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DefaultSettings returns the record created on first access for a user.
func DefaultSettings(userID int64) *Settings {
	return &Settings{
		UserID:           userID,
		Enabled:          true,
		Thresholds:       AllThresholds(),
		NotificationTime: DefaultNotificationTime,
		Timezone:         DefaultTimezone,
	}
}

// Location resolves the settings timezone, falling back to UTC for empty or unknown names.
func (s *Settings) Location() *time.Location {
	if s == nil || s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseTimeOfDay validates an "HH:MM" string and returns its hour and minute.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return hour, minute, nil
}

// NormalizeTimeOfDay returns s in canonical zero-padded "HH:MM" form.
func NormalizeTimeOfDay(s string) (string, error) {
	h, m, err := ParseTimeOfDay(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}
