package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"license_notifier/internal/app"
	"license_notifier/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	msgUnauthorized = "Error: you are not allowed to run this command."
	defaultHistory  = 10
	maxHistory      = 50
)

// AdminCommands turns operator command arguments into AdminService calls and reply text.
// It has no telebot dependency so replies can be checked directly.
type AdminCommands struct {
	admin  *app.AdminService
	logger *logrus.Entry
}

func NewAdminCommands(admin *app.AdminService, logger *logrus.Entry) *AdminCommands {
	return &AdminCommands{admin: admin, logger: logger}
}

func (a *AdminCommands) fail(log *logrus.Entry, err error, what string) string {
	switch {
	case errors.Is(err, app.ErrAdminNotAuthorized):
		log.Warn("Unauthorized access attempt")
		return msgUnauthorized
	case errors.Is(err, app.ErrInvalidSettings):
		log.WithError(err).Warn("Rejected settings change")
		return "Error: " + err.Error()
	case errors.Is(err, app.ErrSettingsOwnerNotFound):
		log.WithError(err).Warn("No settings owner")
		return "No user exists yet, so there are no notification settings to change."
	default:
		log.WithError(err).Error("Command failed")
		return fmt.Sprintf("An error occurred while %s: %s", what, err.Error())
	}
}

// saved reports a settings change; a persisted change whose timer update failed still counts.
func (a *AdminCommands) saved(log *logrus.Entry, st *notification.Settings, err error, what, header string) string {
	if errors.Is(err, app.ErrRescheduleFailed) && st != nil {
		log.WithError(err).Warn("Settings persisted without rescheduling")
		return "Settings saved, but the daily run keeps its previous time until restart.\n\n" + app.FormatSettings(st)
	}
	if err != nil {
		return a.fail(log, err, what)
	}
	return header + app.FormatSettings(st)
}

func (a *AdminCommands) entry(command string, senderID int64) *logrus.Entry {
	log := a.logger.WithFields(logrus.Fields{
		"handler":   command,
		"sender_id": senderID,
	})
	log.Info("Command received")
	return log
}

func (a *AdminCommands) CheckNow(ctx context.Context, senderID int64, _ []string) string {
	log := a.entry("/check_now", senderID)
	res, err := a.admin.CheckNow(ctx, senderID)
	if err != nil {
		return a.fail(log, err, "running the check")
	}
	log.WithFields(logrus.Fields{
		"run_id":        res.RunID,
		"emails_sent":   res.EmailsSent,
		"emails_failed": res.EmailsFailed,
	}).Info("Manual check finished")
	return res.Message
}

func (a *AdminCommands) Settings(ctx context.Context, senderID int64, _ []string) string {
	log := a.entry("/settings", senderID)
	st, err := a.admin.CurrentSettings(ctx, senderID)
	if err != nil {
		return a.fail(log, err, "loading settings")
	}
	return app.FormatSettings(st)
}

// SetTime expects: /set_time HH:MM [Timezone]
func (a *AdminCommands) SetTime(ctx context.Context, senderID int64, args []string) string {
	log := a.entry("/set_time", senderID)
	if len(args) < 1 || len(args) > 2 {
		return "Invalid format. Use: /set_time HH:MM [Timezone], e.g. /set_time 09:30 Europe/Berlin"
	}
	tz := ""
	if len(args) == 2 {
		tz = args[1]
	}
	st, err := a.admin.SetTime(ctx, senderID, args[0], tz)
	return a.saved(log, st, err, "saving the notification time", "Daily run moved.\n\n")
}

// SetDays expects: /set_days 45,30,7 (spaces are also accepted as separators)
func (a *AdminCommands) SetDays(ctx context.Context, senderID int64, args []string) string {
	log := a.entry("/set_days", senderID)
	if len(args) == 0 {
		return "Invalid format. Use: /set_days 45,30,15,7,5,1,0"
	}
	st, err := a.admin.SetDays(ctx, senderID, strings.Join(args, ","))
	return a.saved(log, st, err, "saving the thresholds", "Thresholds updated.\n\n")
}

// SetEnabled expects: /notifications on|off
func (a *AdminCommands) SetEnabled(ctx context.Context, senderID int64, args []string) string {
	log := a.entry("/notifications", senderID)
	if len(args) != 1 {
		return "Invalid format. Use: /notifications on|off"
	}
	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on", "enable", "enabled":
		enabled = true
	case "off", "disable", "disabled":
		enabled = false
	default:
		return "Invalid format. Use: /notifications on|off"
	}
	st, err := a.admin.SetEnabled(ctx, senderID, enabled)
	return a.saved(log, st, err, "saving settings", "")
}

// History expects: /history [n]
func (a *AdminCommands) History(ctx context.Context, senderID int64, args []string) string {
	log := a.entry("/history", senderID)
	limit := defaultHistory
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return "Invalid format. Use: /history [count]"
		}
		if n > maxHistory {
			n = maxHistory
		}
		limit = n
	}
	records, err := a.admin.RecentHistory(ctx, senderID, limit)
	if err != nil {
		return a.fail(log, err, "reading history")
	}
	if len(records) == 0 {
		return "No notifications have been sent yet."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Last %d notifications:\n", len(records))
	for _, r := range records {
		fmt.Fprintf(&sb, "\n%s #%d %s -> %s (%s) %s",
			r.SentAt.UTC().Format("2006-01-02 15:04"), r.LicenseID, r.Type, r.RecipientEmail, r.RecipientCategory, r.Status)
		if r.Status == notification.StatusFailed && r.ErrorMessage != "" {
			fmt.Fprintf(&sb, ": %s", r.ErrorMessage)
		}
	}
	return sb.String()
}

type commandFunc func(ctx context.Context, senderID int64, args []string) string

// RegisterAdminHandlers registers the operator commands on the bot.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, cmds *AdminCommands) {
	handle := func(fn commandFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			return c.Send(fn(ctx, c.Sender().ID, c.Args()))
		}
	}
	b.Handle("/check_now", handle(cmds.CheckNow))
	b.Handle("/settings", handle(cmds.Settings))
	b.Handle("/set_time", handle(cmds.SetTime))
	b.Handle("/set_days", handle(cmds.SetDays))
	b.Handle("/notifications", handle(cmds.SetEnabled))
	b.Handle("/history", handle(cmds.History))
}
