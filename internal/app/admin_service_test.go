package app

import (
	"context"
	"testing"
	"time"

	"license_notifier/internal/domain/notification"
	"license_notifier/internal/domain/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminChat = int64(1001)

func newTestAdminService() (*AdminService, *stubSettings, *memoryLedger) {
	settings := &stubSettings{
		settings: notification.DefaultSettings(1),
		owner:    &user.User{ID: 1, Email: "admin@example.com"},
	}
	ledger := &memoryLedger{}
	guard := NewDedupGuard(ledger, true, nullLogger())
	return NewAdminService(settings, nil, guard, adminChat), settings, ledger
}

func TestAdminService_RejectsStrangers(t *testing.T) {
	svc, settings, _ := newTestAdminService()

	_, err := svc.SetTime(context.Background(), 777, "14:00", "")
	assert.ErrorIs(t, err, ErrAdminNotAuthorized)
	_, err = svc.CheckNow(context.Background(), 777)
	assert.ErrorIs(t, err, ErrAdminNotAuthorized)
	assert.Empty(t, settings.saved)
}

func TestAdminService_SetTimeKeepsOtherFields(t *testing.T) {
	svc, settings, _ := newTestAdminService()

	st, err := svc.SetTime(context.Background(), adminChat, "14:00", "Europe/Madrid")
	require.NoError(t, err)
	assert.Equal(t, "14:00", st.NotificationTime)
	assert.Equal(t, "Europe/Madrid", st.Timezone)
	assert.Equal(t, notification.AllThresholds(), st.Thresholds)
	require.Len(t, settings.saved, 1)
	assert.True(t, settings.saved[0].Enabled)
}

func TestAdminService_SetDays(t *testing.T) {
	svc, _, _ := newTestAdminService()

	st, err := svc.SetDays(context.Background(), adminChat, "0, 1,7,30")
	require.NoError(t, err)
	assert.Equal(t, "30,7,1,0", st.Thresholds.String())

	_, err = svc.SetDays(context.Background(), adminChat, "30,10")
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestAdminService_SetEnabledAndFormat(t *testing.T) {
	svc, _, _ := newTestAdminService()

	st, err := svc.SetEnabled(context.Background(), adminChat, false)
	require.NoError(t, err)
	assert.Contains(t, FormatSettings(st), "Notifications: disabled")
	assert.Contains(t, FormatSettings(st), "Daily run: 09:00 (UTC)")
}

func TestAdminService_RecentHistory(t *testing.T) {
	svc, _, ledger := newTestAdminService()
	for i := 0; i < 5; i++ {
		require.NoError(t, ledger.Append(context.Background(), &notification.Record{
			LicenseID: int64(i), Type: "7_days", Status: notification.StatusSent, SentAt: time.Now(),
		}))
	}

	records, err := svc.RecentHistory(context.Background(), adminChat, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(4), records[0].LicenseID)
}
