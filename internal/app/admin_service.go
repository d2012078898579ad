package app

import (
	"context"
	"fmt"
	"strings"

	"license_notifier/internal/domain/notification"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")

// AdminService backs the operator commands: settings changes, manual checks and history.
// Every call carries the Telegram ID of the caller and is rejected unless it is the admin.
type AdminService struct {
	settings        SettingsService
	notifService    NotificationService
	guard           *DedupGuard
	adminTelegramID int64
}

func NewAdminService(ss SettingsService, ns NotificationService, guard *DedupGuard, adminID int64) *AdminService {
	return &AdminService{
		settings:        ss,
		notifService:    ns,
		guard:           guard,
		adminTelegramID: adminID,
	}
}

func (s *AdminService) authorize(performingAdminID int64) error {
	if performingAdminID != s.adminTelegramID {
		return ErrAdminNotAuthorized
	}
	return nil
}

// CheckNow runs a manual pass.
func (s *AdminService) CheckNow(ctx context.Context, performingAdminID int64) (*TriggerResult, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	return s.notifService.TriggerNow(ctx), nil
}

func (s *AdminService) CurrentSettings(ctx context.Context, performingAdminID int64) (*notification.Settings, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	return s.settings.Load(ctx)
}

// SetTime changes the daily run time and, when timezone is non-empty, the timezone.
func (s *AdminService) SetTime(ctx context.Context, performingAdminID int64, timeOfDay, timezone string) (*notification.Settings, error) {
	return s.modify(ctx, performingAdminID, func(u *SettingsUpdate) error {
		u.NotificationTime = timeOfDay
		if timezone != "" {
			u.Timezone = timezone
		}
		return nil
	})
}

// SetDays replaces the enabled thresholds with a comma separated list such as "30,7,1,0".
func (s *AdminService) SetDays(ctx context.Context, performingAdminID int64, list string) (*notification.Settings, error) {
	return s.modify(ctx, performingAdminID, func(u *SettingsUpdate) error {
		set, err := notification.ParseThresholdList(list)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
		u.Days = set.Days()
		return nil
	})
}

func (s *AdminService) SetEnabled(ctx context.Context, performingAdminID int64, enabled bool) (*notification.Settings, error) {
	return s.modify(ctx, performingAdminID, func(u *SettingsUpdate) error {
		u.Enabled = enabled
		return nil
	})
}

func (s *AdminService) modify(ctx context.Context, performingAdminID int64, change func(u *SettingsUpdate) error) (*notification.Settings, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	current, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	update := UpdateFrom(current)
	if err := change(&update); err != nil {
		return nil, err
	}
	return s.settings.Save(ctx, update)
}

// RecentHistory returns the newest ledger rows, newest first.
func (s *AdminService) RecentHistory(ctx context.Context, performingAdminID int64, limit int) ([]*notification.Record, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	return s.guard.History(ctx, notification.HistoryFilter{Limit: limit})
}

// FormatSettings renders settings for chat replies.
func FormatSettings(st *notification.Settings) string {
	state := "enabled"
	if !st.Enabled {
		state = "disabled"
	}
	days := st.Thresholds.String()
	if days == "" {
		days = "none"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Notifications: %s\n", state)
	fmt.Fprintf(&b, "Days before expiry: %s\n", days)
	fmt.Fprintf(&b, "Daily run: %s (%s)", st.NotificationTime, st.Timezone)
	return b.String()
}
