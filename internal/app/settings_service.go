// internal/app/settings_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"license_notifier/internal/domain/notification"
	"license_notifier/internal/domain/user"
	idb "license_notifier/internal/infra/database"

	"github.com/sirupsen/logrus"
)

var (
	// ErrSettingsOwnerNotFound means there is no user to attach the settings record to.
	ErrSettingsOwnerNotFound = errors.New("no user exists to own the notification settings")
	ErrInvalidSettings       = errors.New("invalid notification settings")
	// ErrRescheduleFailed accompanies settings that were persisted but not applied to the timer.
	ErrRescheduleFailed = errors.New("settings saved but the daily run could not be rescheduled")
)

// Rescheduler re-arms the daily timer. Implemented by the scheduler.
type Rescheduler interface {
	Reschedule(notificationTime, timezone string) error
}

// SettingsUpdate is a full replacement of the mutable settings fields.
type SettingsUpdate struct {
	Enabled          bool
	Days             []int
	NotificationTime string
	Timezone         string
}

// UpdateFrom returns an update that would rewrite s unchanged; callers tweak single fields on it.
func UpdateFrom(s *notification.Settings) SettingsUpdate {
	return SettingsUpdate{
		Enabled:          s.Enabled,
		Days:             s.Thresholds.Days(),
		NotificationTime: s.NotificationTime,
		Timezone:         s.Timezone,
	}
}

// SettingsService resolves and persists the single notification settings record.
type SettingsService interface {
	// Load returns the settings, creating the default record on first access.
	Load(ctx context.Context) (*notification.Settings, error)
	// Resolve is Load plus the owning user, who is also the admin recipient.
	Resolve(ctx context.Context) (*notification.Settings, *user.User, error)
	// Save validates and persists u, then re-arms the daily timer.
	Save(ctx context.Context, u SettingsUpdate) (*notification.Settings, error)
	SetRescheduler(r Rescheduler)
}

type SettingsServiceImpl struct {
	userRepo     user.Repository
	settingsRepo notification.SettingsRepository
	logger       *logrus.Entry

	mu          sync.RWMutex
	rescheduler Rescheduler
}

func NewSettingsService(ur user.Repository, sr notification.SettingsRepository, logger *logrus.Entry) *SettingsServiceImpl {
	return &SettingsServiceImpl{
		userRepo:     ur,
		settingsRepo: sr,
		logger:       logger,
	}
}

// SetRescheduler wires the scheduler after construction; the scheduler itself needs this
// service to read its initial time.
func (s *SettingsServiceImpl) SetRescheduler(r Rescheduler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rescheduler = r
}

func (s *SettingsServiceImpl) Load(ctx context.Context) (*notification.Settings, error) {
	settings, _, err := s.Resolve(ctx)
	return settings, err
}

func (s *SettingsServiceImpl) Resolve(ctx context.Context) (*notification.Settings, *user.User, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, nil, err
	}
	settings, err := s.loadOrCreate(ctx, owner.ID)
	if err != nil {
		return nil, nil, err
	}
	return settings, owner, nil
}

func (s *SettingsServiceImpl) owner(ctx context.Context) (*user.User, error) {
	owner, err := s.userRepo.FirstAdmin(ctx)
	if err != nil {
		if errors.Is(err, idb.ErrUserNotFound) {
			return nil, ErrSettingsOwnerNotFound
		}
		return nil, fmt.Errorf("failed to resolve settings owner: %w", err)
	}
	return owner, nil
}

func (s *SettingsServiceImpl) loadOrCreate(ctx context.Context, userID int64) (*notification.Settings, error) {
	settings, err := s.settingsRepo.GetByUserID(ctx, userID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, idb.ErrSettingsNotFound) {
		return nil, fmt.Errorf("failed to load notification settings: %w", err)
	}

	settings = notification.DefaultSettings(userID)
	if err := s.settingsRepo.Create(ctx, settings); err != nil {
		if errors.Is(err, idb.ErrDuplicateSettings) {
			// Lost a first-access race with another caller; their row wins.
			return s.settingsRepo.GetByUserID(ctx, userID)
		}
		return nil, fmt.Errorf("failed to create default notification settings: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"thresholds": settings.Thresholds.String(),
		"time":       settings.NotificationTime,
	}).Info("Created default notification settings")
	return settings, nil
}

// validate normalizes u in place.
func (u *SettingsUpdate) validate() (notification.ThresholdSet, error) {
	normalized, err := notification.NormalizeTimeOfDay(u.NotificationTime)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	u.NotificationTime = normalized

	u.Timezone = strings.TrimSpace(u.Timezone)
	if u.Timezone == "" {
		u.Timezone = notification.DefaultTimezone
	}
	if _, err := time.LoadLocation(u.Timezone); err != nil {
		return 0, fmt.Errorf("%w: unknown timezone %q", ErrInvalidSettings, u.Timezone)
	}

	set, err := notification.NewThresholdSet(u.Days...)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return set, nil
}

func (s *SettingsServiceImpl) Save(ctx context.Context, u SettingsUpdate) (*notification.Settings, error) {
	set, err := u.validate()
	if err != nil {
		return nil, err
	}

	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.loadOrCreate(ctx, owner.ID)
	if err != nil {
		return nil, err
	}

	settings.Enabled = u.Enabled
	settings.Thresholds = set
	settings.NotificationTime = u.NotificationTime
	settings.Timezone = u.Timezone
	if err := s.settingsRepo.Update(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to save notification settings: %w", err)
	}

	log := s.logger.WithFields(logrus.Fields{
		"enabled":    settings.Enabled,
		"thresholds": settings.Thresholds.String(),
		"time":       settings.NotificationTime,
		"timezone":   settings.Timezone,
	})
	log.Info("Notification settings updated")

	s.mu.RLock()
	r := s.rescheduler
	s.mu.RUnlock()
	if r != nil {
		if err := r.Reschedule(settings.NotificationTime, settings.Timezone); err != nil {
			log.WithError(err).Error("Settings saved but the daily run could not be rescheduled")
			return settings, fmt.Errorf("%w: %w", ErrRescheduleFailed, err)
		}
	}
	return settings, nil
}
