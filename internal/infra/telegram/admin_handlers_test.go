package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"license_notifier/internal/app"
	"license_notifier/internal/domain/notification"
	"license_notifier/internal/domain/user"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminID = int64(4242)

type fakeSettings struct {
	current *notification.Settings
	saved   []app.SettingsUpdate
	saveErr error // returned alongside the persisted settings
}

func (f *fakeSettings) Load(context.Context) (*notification.Settings, error) {
	cp := *f.current
	return &cp, nil
}

func (f *fakeSettings) Resolve(ctx context.Context) (*notification.Settings, *user.User, error) {
	s, _ := f.Load(ctx)
	return s, &user.User{ID: 1, Email: "admin@example.com"}, nil
}

func (f *fakeSettings) Save(_ context.Context, u app.SettingsUpdate) (*notification.Settings, error) {
	f.saved = append(f.saved, u)
	set, err := notification.NewThresholdSet(u.Days...)
	if err != nil {
		return nil, err
	}
	next := *f.current
	next.Enabled = u.Enabled
	next.Thresholds = set
	next.NotificationTime = u.NotificationTime
	next.Timezone = u.Timezone
	f.current = &next
	return &next, f.saveErr
}

func (f *fakeSettings) SetRescheduler(app.Rescheduler) {}

type fakePasses struct{ calls int }

func (f *fakePasses) RunDailyPass(context.Context, app.Trigger) (*app.PassSummary, error) {
	return &app.PassSummary{}, nil
}

func (f *fakePasses) TriggerNow(context.Context) *app.TriggerResult {
	f.calls++
	return &app.TriggerResult{Success: true, Message: "Checked 2 licenses: 1 matched a threshold", EmailsSent: 3}
}

type fakeLedger struct{ records []*notification.Record }

func (f *fakeLedger) ExistsInWindow(context.Context, int64, notification.Type, []notification.Status, time.Time, time.Time) (bool, error) {
	return false, nil
}

func (f *fakeLedger) Append(_ context.Context, r *notification.Record) error {
	f.records = append(f.records, r)
	return nil
}

func (f *fakeLedger) ListHistory(_ context.Context, filter notification.HistoryFilter) ([]*notification.Record, error) {
	if filter.Limit < len(f.records) {
		return f.records[:filter.Limit], nil
	}
	return f.records, nil
}

func newTestCommands() (*AdminCommands, *fakeSettings, *fakePasses, *fakeLedger) {
	l, _ := test.NewNullLogger()
	entry := logrus.NewEntry(l)
	settings := &fakeSettings{current: notification.DefaultSettings(1)}
	passes := &fakePasses{}
	ledger := &fakeLedger{}
	guard := app.NewDedupGuard(ledger, true, entry)
	return NewAdminCommands(app.NewAdminService(settings, passes, guard, adminID), entry), settings, passes, ledger
}

func TestAdminCommands_Unauthorized(t *testing.T) {
	cmds, settings, passes, _ := newTestCommands()
	ctx := context.Background()

	assert.Equal(t, msgUnauthorized, cmds.CheckNow(ctx, 1, nil))
	assert.Equal(t, msgUnauthorized, cmds.SetTime(ctx, 1, []string{"10:00"}))
	assert.Equal(t, msgUnauthorized, cmds.History(ctx, 1, nil))
	assert.Zero(t, passes.calls)
	assert.Empty(t, settings.saved)
}

func TestAdminCommands_CheckNow(t *testing.T) {
	cmds, _, passes, _ := newTestCommands()
	reply := cmds.CheckNow(context.Background(), adminID, nil)
	assert.Contains(t, reply, "Checked 2 licenses")
	assert.Equal(t, 1, passes.calls)
}

func TestAdminCommands_SetTime(t *testing.T) {
	cmds, settings, _, _ := newTestCommands()

	reply := cmds.SetTime(context.Background(), adminID, []string{"07:45", "Europe/Berlin"})
	assert.Contains(t, reply, "Daily run: 07:45 (Europe/Berlin)")
	require.Len(t, settings.saved, 1)
	assert.True(t, settings.saved[0].Enabled)

	reply = cmds.SetTime(context.Background(), adminID, nil)
	assert.Contains(t, reply, "Invalid format")
	assert.Len(t, settings.saved, 1)
}

func TestAdminCommands_SetDays(t *testing.T) {
	cmds, _, _, _ := newTestCommands()

	reply := cmds.SetDays(context.Background(), adminID, []string{"30,", "7", "0"})
	assert.Contains(t, reply, "Days before expiry: 30,7,0")

	reply = cmds.SetDays(context.Background(), adminID, []string{"12"})
	assert.Contains(t, reply, "Error:")
}

func TestAdminCommands_SetEnabled(t *testing.T) {
	cmds, _, _, _ := newTestCommands()

	assert.Contains(t, cmds.SetEnabled(context.Background(), adminID, []string{"off"}), "Notifications: disabled")
	assert.Contains(t, cmds.SetEnabled(context.Background(), adminID, []string{"ON"}), "Notifications: enabled")
	assert.Contains(t, cmds.SetEnabled(context.Background(), adminID, []string{"maybe"}), "Invalid format")
}

func TestAdminCommands_History(t *testing.T) {
	cmds, _, _, ledger := newTestCommands()
	assert.Equal(t, "No notifications have been sent yet.", cmds.History(context.Background(), adminID, nil))

	ledger.records = []*notification.Record{
		{LicenseID: 7, Type: notification.TypeForDays(1), Status: notification.StatusFailed,
			RecipientCategory: notification.RecipientVendor, RecipientEmail: "sales@vendor.example",
			ErrorMessage: "550 mailbox unavailable", SentAt: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)},
		{LicenseID: 7, Type: notification.TypeForDays(1), Status: notification.StatusSent,
			RecipientCategory: notification.RecipientClient, RecipientEmail: "it@acme.example",
			SentAt: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)},
	}

	reply := cmds.History(context.Background(), adminID, []string{"1"})
	assert.Contains(t, reply, "Last 1 notifications")
	assert.Contains(t, reply, "2026-10-18 09:00 #7")
	assert.Contains(t, reply, "550 mailbox unavailable")

	assert.Contains(t, cmds.History(context.Background(), adminID, []string{"-3"}), "Invalid format")
}

func TestStartAndHelpReplies(t *testing.T) {
	assert.Contains(t, StartReply(adminID, adminID, "Ana"), "Hello, Ana!")
	assert.Contains(t, StartReply(5, adminID, "Bob"), "administrator only")
	assert.Contains(t, HelpReply(adminID, adminID), "/set_time HH:MM [Timezone]")
	assert.Equal(t, "There are no commands available to you.", HelpReply(5, adminID))
}

func TestAdminCommands_SavedButNotRescheduled(t *testing.T) {
	cmds, settings, _, _ := newTestCommands()
	settings.saveErr = fmt.Errorf("%w: %w", app.ErrRescheduleFailed, errors.New("cron engine stopped"))

	reply := cmds.SetTime(context.Background(), adminID, []string{"11:15"})
	assert.Contains(t, reply, "Settings saved, but the daily run keeps its previous time")
	assert.Contains(t, reply, "Daily run: 11:15 (UTC)")
	assert.NotContains(t, reply, "An error occurred")
}
