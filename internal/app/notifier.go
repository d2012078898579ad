package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"license_notifier/internal/domain/license"
	"license_notifier/internal/domain/mail"
	"license_notifier/internal/domain/notification"
	"license_notifier/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

const (
	// ledgerWriteTimeout bounds a ledger append that outlives the pass context.
	ledgerWriteTimeout = 5 * time.Second
	// sendGrace is how long dispatch still waits for a sender whose context was cancelled.
	sendGrace = 250 * time.Millisecond
)

// Recipient is one logical addressee of a reminder.
type Recipient struct {
	Category notification.RecipientCategory
	Email    string
}

// NotifyResult tallies a single Notify call.
type NotifyResult struct {
	Delivered bool // at least one recipient accepted the message
	Sent      int
	Failed    int
	Skipped   int // empty or malformed addresses
}

// ValidEmail is a syntactic check only: non-empty, an "@", and a "." somewhere after it.
func ValidEmail(addr string) bool {
	addr = strings.TrimSpace(addr)
	at := strings.Index(addr, "@")
	if at <= 0 {
		return false
	}
	return strings.Contains(addr[at+1:], ".")
}

// Notifier renders and dispatches reminders and records every attempt in the ledger.
type Notifier struct {
	sender  mail.Sender
	guard   *DedupGuard
	timeout time.Duration
	logger  *logrus.Entry
	now     func() time.Time
}

func NewNotifier(sender mail.Sender, guard *DedupGuard, timeout time.Duration, logger *logrus.Entry) *Notifier {
	return &Notifier{
		sender:  sender,
		guard:   guard,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Notify sends the reminder for lic to each valid recipient independently. Delivery errors,
// timeouts and panics in the sender are recorded as failed attempts and never returned.
func (n *Notifier) Notify(ctx context.Context, lic *license.License, days int, recipients []Recipient) NotifyResult {
	var result NotifyResult
	notifType := notification.TypeForDays(days)
	log := n.logger.WithFields(logrus.Fields{
		"license_id": lic.ID,
		"tool":       lic.ToolName,
		"type":       notifType,
	})

	content, err := BuildReminder(lic, days)
	if err != nil {
		log.WithError(err).Error("Failed to build reminder")
		for _, r := range recipients {
			if !ValidEmail(r.Email) {
				result.Skipped++
				continue
			}
			result.Failed++
			n.record(ctx, lic.ID, notifType, "", r, err)
		}
		return result
	}

	for _, r := range recipients {
		if !ValidEmail(r.Email) {
			log.WithField("category", r.Category).Debug("Skipping recipient without a usable address")
			result.Skipped++
			continue
		}

		rlog := log.WithFields(logrus.Fields{"category": r.Category, "to": r.Email})
		if err := ctx.Err(); err != nil {
			// Not attempted, so no ledger row: a later pass the same day may still send it.
			rlog.WithError(err).Warn("Pass cancelled before delivery")
			result.Failed++
			continue
		}
		if err := n.dispatch(ctx, r.Email, content); err != nil {
			rlog.WithError(err).Warn("Reminder delivery failed")
			result.Failed++
			n.record(ctx, lic.ID, notifType, content.Subject, r, err)
			continue
		}
		rlog.Info("Reminder sent")
		result.Sent++
		n.record(ctx, lic.ID, notifType, content.Subject, r, nil)
	}

	result.Delivered = result.Sent > 0
	return result
}

// dispatch bounds one send by the configured timeout and converts a sender panic into an error.
// The send runs in its own goroutine so a sender that ignores ctx still cannot stall the pass.
func (n *Notifier) dispatch(ctx context.Context, to string, content *ReminderContent) error {
	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("%w: sender panicked: %v", mail.ErrDelivery, p)
			}
		}()
		_, sendErr := n.sender.Send(sendCtx, mail.Message{
			To:      []string{strings.TrimSpace(to)},
			Subject: content.Subject,
			HTML:    content.HTML,
			Text:    content.Text,
		})
		done <- sendErr
	}()

	select {
	case err := <-done:
		return err
	case <-sendCtx.Done():
	}
	// A sender that already handed the message over returns promptly; prefer its result.
	grace := time.NewTimer(sendGrace)
	defer grace.Stop()
	select {
	case err := <-done:
		return err
	case <-grace.C:
		return fmt.Errorf("%w: %v", mail.ErrDelivery, sendCtx.Err())
	}
}

func (n *Notifier) record(ctx context.Context, licenseID int64, notifType notification.Type, subject string, r Recipient, sendErr error) {
	rec := &notification.Record{
		LicenseID:         licenseID,
		Type:              notifType,
		Status:            notification.StatusSent,
		Subject:           subject,
		RecipientCategory: r.Category,
		RecipientEmail:    strings.TrimSpace(r.Email),
		SentAt:            n.now(),
	}
	if sendErr != nil {
		rec.Status = notification.StatusFailed
		rec.ErrorMessage = sendErr.Error()
	}
	metrics.EmailsTotal.WithLabelValues(string(r.Category), string(rec.Status)).Inc()

	// The attempt happened; its row must land even if the pass was cancelled meanwhile.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
	defer cancel()
	n.guard.Record(writeCtx, rec)
}
