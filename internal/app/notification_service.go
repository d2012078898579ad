// internal/app/notification_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"license_notifier/internal/domain/license"
	"license_notifier/internal/domain/notification"
	domainTelegram "license_notifier/internal/domain/telegram"
	"license_notifier/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Trigger says what started a pass.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerStartup   Trigger = "startup"
	TriggerManual    Trigger = "manual"
)

// PassSummary is the outcome of one check-and-notify pass.
type PassSummary struct {
	RunID           uuid.UUID `json:"runId"`
	Trigger         Trigger   `json:"trigger"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
	LicensesChecked int       `json:"licensesChecked"`
	LicensesMatched int       `json:"licensesMatched"`
	LicensesSkipped int       `json:"licensesSkipped"` // matched but already notified today
	LicensesFailed  int       `json:"licensesFailed"`  // unexpected error while processing
	EmailsSent      int       `json:"emailsSent"`
	EmailsFailed    int       `json:"emailsFailed"`
	Message         string    `json:"message"`
}

// TriggerResult is what a manual trigger hands back to its caller.
type TriggerResult struct {
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	EmailsSent   int       `json:"emailsSent"`
	EmailsFailed int       `json:"emailsFailed"`
	RunID        uuid.UUID `json:"runId"`
}

// NotificationService runs license expiry passes.
type NotificationService interface {
	// RunDailyPass executes one full pass. Configuration problems produce a zero-count summary
	// with an explanatory message; only an unreachable settings store or a failed license
	// listing return an error.
	RunDailyPass(ctx context.Context, trigger Trigger) (*PassSummary, error)
	// TriggerNow runs a manual pass synchronously and never returns an error.
	TriggerNow(ctx context.Context) *TriggerResult
}

// PassOptions tunes a pass.
type PassOptions struct {
	AdminEmail  string // replaces the settings owner's address when set
	Concurrency int    // licenses processed in parallel
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	settings    SettingsService
	licenseRepo license.Repository
	guard       *DedupGuard
	notifier    *Notifier
	opts        PassOptions
	logger      *logrus.Entry

	telegramClient domainTelegram.Client
	adminChatID    int64

	passMu sync.Mutex // passes never overlap
	now    func() time.Time
}

func NewNotificationServiceImpl(
	settings SettingsService,
	lr license.Repository,
	guard *DedupGuard,
	notifier *Notifier,
	opts PassOptions,
	logger *logrus.Entry,
) *NotificationServiceImpl {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &NotificationServiceImpl{
		settings:    settings,
		licenseRepo: lr,
		guard:       guard,
		notifier:    notifier,
		opts:        opts,
		logger:      logger,
		now:         time.Now,
	}
}

// SetTelegramReporter enables pushing scheduled pass summaries to the admin chat.
func (s *NotificationServiceImpl) SetTelegramReporter(tc domainTelegram.Client, adminChatID int64) {
	s.telegramClient = tc
	s.adminChatID = adminChatID
}

// passTally is shared by the per-license workers of one pass.
type passTally struct {
	mu      sync.Mutex
	summary *PassSummary
}

func (t *passTally) add(fn func(s *PassSummary)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.summary)
}

func (s *NotificationServiceImpl) RunDailyPass(ctx context.Context, trigger Trigger) (summary *PassSummary, err error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	summary = &PassSummary{
		RunID:     uuid.New(),
		Trigger:   trigger,
		StartedAt: s.now(),
	}
	log := s.logger.WithFields(logrus.Fields{"run_id": summary.RunID, "trigger": trigger})
	log.Info("Starting notification pass")

	defer func() {
		summary.FinishedAt = s.now()
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.PassesTotal.WithLabelValues(string(trigger), outcome).Inc()
		metrics.PassDuration.WithLabelValues(string(trigger)).Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	}()

	settings, owner, err := s.settings.Resolve(ctx)
	if err != nil {
		if errors.Is(err, ErrSettingsOwnerNotFound) {
			summary.Message = "No user exists to own the notification settings; nothing was sent."
			log.Warn(summary.Message)
			return summary, nil
		}
		log.WithError(err).Error("Failed to load notification settings")
		summary.Message = "Notification settings could not be loaded."
		return summary, fmt.Errorf("failed to load notification settings: %w", err)
	}
	if !settings.Enabled {
		summary.Message = "Notifications are disabled; nothing was sent."
		log.Info(summary.Message)
		return summary, nil
	}
	if settings.Thresholds.IsEmpty() {
		summary.Message = "No notification thresholds are enabled; nothing was sent."
		log.Info(summary.Message)
		return summary, nil
	}

	adminEmail := s.opts.AdminEmail
	if adminEmail == "" {
		adminEmail = owner.Email
	}

	licenses, err := s.licenseRepo.ListActive(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list licenses, aborting pass")
		summary.Message = "Licenses could not be loaded; the pass was aborted."
		return summary, fmt.Errorf("failed to list active licenses: %w", err)
	}

	today := s.now().In(settings.Location())
	tally := &passTally{summary: summary}
	summary.LicensesChecked = len(licenses)

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, lic := range licenses {
		g.Go(func() error {
			s.processLicense(ctx, log, lic, today, settings, adminEmail, tally)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are tallied

	summary.Message = fmt.Sprintf("Checked %d licenses: %d matched a threshold, %d already notified today. %d emails sent, %d failed.",
		summary.LicensesChecked, summary.LicensesMatched, summary.LicensesSkipped, summary.EmailsSent, summary.EmailsFailed)
	if summary.LicensesFailed > 0 {
		summary.Message += fmt.Sprintf(" %d licenses could not be processed.", summary.LicensesFailed)
	}
	log.WithFields(logrus.Fields{
		"checked":         summary.LicensesChecked,
		"matched":         summary.LicensesMatched,
		"skipped":         summary.LicensesSkipped,
		"failed_licenses": summary.LicensesFailed,
		"emails_sent":     summary.EmailsSent,
		"emails_failed":   summary.EmailsFailed,
	}).Info("Notification pass finished")

	if trigger != TriggerManual {
		s.reportToAdmin(log, summary)
	}
	return summary, nil
}

// processLicense handles one license. Any panic or error is logged and tallied so that
// sibling licenses are unaffected.
func (s *NotificationServiceImpl) processLicense(
	ctx context.Context,
	log *logrus.Entry,
	lic *license.License,
	today time.Time,
	settings *notification.Settings,
	adminEmail string,
	tally *passTally,
) {
	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", p).Error("Recovered from panic while processing license")
			tally.add(func(sum *PassSummary) { sum.LicensesFailed++ })
		}
	}()
	llog := log.WithFields(logrus.Fields{"license_id": lic.ID, "tool": lic.ToolName})

	days := notification.DaysUntilExpiry(today, lic.ExpirationDate)
	if !settings.Thresholds.ContainsDays(days) {
		return
	}
	notifType := notification.TypeForDays(days)
	tally.add(func(sum *PassSummary) { sum.LicensesMatched++ })

	sent, err := s.guard.AlreadySent(ctx, lic.ID, notifType, today)
	if err != nil {
		llog.WithError(err).WithField("type", notifType).Error("Dedup check failed, skipping license for this pass")
		tally.add(func(sum *PassSummary) { sum.LicensesFailed++ })
		return
	}
	if sent {
		llog.WithField("type", notifType).Debug("Reminder already attempted today")
		tally.add(func(sum *PassSummary) { sum.LicensesSkipped++ })
		return
	}

	result := s.notifier.Notify(ctx, lic, days, recipientsFor(lic, adminEmail))
	tally.add(func(sum *PassSummary) {
		sum.EmailsSent += result.Sent
		sum.EmailsFailed += result.Failed
	})
}

// recipientsFor lists admin, client and vendor in that order. Missing addresses are kept
// so the notifier can count them as skipped.
func recipientsFor(lic *license.License, adminEmail string) []Recipient {
	return []Recipient{
		{Category: notification.RecipientAdmin, Email: adminEmail},
		{Category: notification.RecipientClient, Email: lic.ClientEmail.String},
		{Category: notification.RecipientVendor, Email: lic.VendorEmail.String},
	}
}

func (s *NotificationServiceImpl) reportToAdmin(log *logrus.Entry, summary *PassSummary) {
	if s.telegramClient == nil || s.adminChatID == 0 {
		return
	}
	if summary.EmailsSent == 0 && summary.EmailsFailed == 0 && summary.LicensesFailed == 0 {
		return
	}
	text := fmt.Sprintf("License reminders (%s run):\n%s", summary.Trigger, summary.Message)
	if err := s.telegramClient.SendMessage(s.adminChatID, text); err != nil {
		log.WithError(err).Warn("Failed to push pass summary to admin chat")
	}
}

// TriggerNow detaches the pass from the caller's cancellation: a client that disconnects
// must not leave a half-recorded pass behind.
func (s *NotificationServiceImpl) TriggerNow(ctx context.Context) *TriggerResult {
	summary, err := s.RunDailyPass(context.WithoutCancel(ctx), TriggerManual)
	if err != nil {
		return &TriggerResult{
			Success: false,
			Message: fmt.Sprintf("Notification check failed: %v", err),
			RunID:   summary.RunID,
		}
	}
	return &TriggerResult{
		Success:      true,
		Message:      summary.Message,
		EmailsSent:   summary.EmailsSent,
		EmailsFailed: summary.EmailsFailed,
		RunID:        summary.RunID,
	}
}
