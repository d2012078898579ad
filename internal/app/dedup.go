package app

import (
	"context"
	"time"

	"license_notifier/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// DedupGuard answers "was this reminder already attempted today" against the ledger and
// appends new attempts to it.
type DedupGuard struct {
	repo     notification.Repository
	statuses []notification.Status
	logger   *logrus.Entry
}

// NewDedupGuard builds a guard. With countFailed, a failed attempt suppresses a same-day
// re-send just like a sent one; otherwise only sent attempts count.
func NewDedupGuard(repo notification.Repository, countFailed bool, logger *logrus.Entry) *DedupGuard {
	statuses := []notification.Status{notification.StatusSent}
	if countFailed {
		statuses = append(statuses, notification.StatusFailed)
	}
	return &DedupGuard{repo: repo, statuses: statuses, logger: logger}
}

// AlreadySent checks the calendar day containing day, in day's own location.
func (g *DedupGuard) AlreadySent(ctx context.Context, licenseID int64, notifType notification.Type, day time.Time) (bool, error) {
	from, to := notification.DayBounds(day, day.Location())
	return g.repo.ExistsInWindow(ctx, licenseID, notifType, g.statuses, from, to)
}

// Record appends rec to the ledger. A failed write is logged and swallowed so that one
// license cannot stop the rest of the pass.
func (g *DedupGuard) Record(ctx context.Context, rec *notification.Record) {
	if err := g.repo.Append(ctx, rec); err != nil {
		g.logger.WithError(err).WithFields(logrus.Fields{
			"license_id": rec.LicenseID,
			"type":       rec.Type,
			"status":     rec.Status,
			"category":   rec.RecipientCategory,
		}).Error("Failed to record notification attempt")
	}
}

// History lists ledger rows for operator views.
func (g *DedupGuard) History(ctx context.Context, filter notification.HistoryFilter) ([]*notification.Record, error) {
	return g.repo.ListHistory(ctx, filter)
}
