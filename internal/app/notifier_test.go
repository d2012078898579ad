package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"license_notifier/internal/domain/license"
	"license_notifier/internal/domain/mail"
	"license_notifier/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLicense(id int64, expires time.Time) *license.License {
	return &license.License{
		ID:             id,
		ToolName:       "IntelliJ IDEA",
		VendorName:     "JetBrains",
		ExpirationDate: expires,
		Quantity:       3,
		ClientID:       sql.NullInt64{Int64: 9, Valid: true},
		ClientName:     sql.NullString{String: "Acme", Valid: true},
		ClientEmail:    sql.NullString{String: "it@acme.example", Valid: true},
		VendorEmail:    sql.NullString{String: "sales@jetbrains.example", Valid: true},
	}
}

func newTestNotifier(sender mail.Sender, ledger *memoryLedger, timeout time.Duration) *Notifier {
	return NewNotifier(sender, NewDedupGuard(ledger, true, nullLogger()), timeout, nullLogger())
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"", false},
		{"not-an-email", false},
		{"@example.com", false},
		{"user@localhost", false},
		{"first.last@host", false},
		{"ok@example.com", true},
		{"  padded@example.org ", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidEmail(tt.addr), "ValidEmail(%q)", tt.addr)
	}
}

func TestNotifier_SkipsInvalidRecipients(t *testing.T) {
	sender := &fakeSender{}
	ledger := &memoryLedger{}
	n := newTestNotifier(sender, ledger, time.Second)

	res := n.Notify(context.Background(), testLicense(1, time.Now()), 7, []Recipient{
		{Category: notification.RecipientAdmin, Email: ""},
		{Category: notification.RecipientClient, Email: "not-an-email"},
		{Category: notification.RecipientVendor, Email: "ok@example.com"},
	})

	assert.Equal(t, NotifyResult{Delivered: true, Sent: 1, Skipped: 2}, res)
	assert.Equal(t, []string{"ok@example.com"}, sender.recipients())

	records := ledger.all()
	require.Len(t, records, 1)
	assert.Equal(t, notification.RecipientVendor, records[0].RecipientCategory)
	assert.Equal(t, notification.StatusSent, records[0].Status)
	assert.Equal(t, notification.Type("7_days"), records[0].Type)
}

func TestNotifier_OneRecipientFails(t *testing.T) {
	sender := &fakeSender{failFor: map[string]error{
		"sales@jetbrains.example": errors.New("550 mailbox unavailable"),
	}}
	ledger := &memoryLedger{}
	n := newTestNotifier(sender, ledger, time.Second)
	lic := testLicense(1, time.Now())

	res := n.Notify(context.Background(), lic, 1, recipientsFor(lic, "admin@example.com"))

	assert.True(t, res.Delivered)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)

	byCat := ledger.byCategory()
	require.Len(t, byCat, 3)
	assert.Equal(t, notification.StatusSent, byCat[notification.RecipientAdmin].Status)
	assert.Equal(t, notification.StatusSent, byCat[notification.RecipientClient].Status)
	assert.Equal(t, notification.StatusFailed, byCat[notification.RecipientVendor].Status)
	assert.Contains(t, byCat[notification.RecipientVendor].ErrorMessage, "mailbox unavailable")
	assert.Equal(t, notification.Type("1_day"), byCat[notification.RecipientVendor].Type)
}

func TestNotifier_TimeoutCountsAsFailure(t *testing.T) {
	sender := &fakeSender{hangFor: map[string]bool{"slow@example.com": true}}
	ledger := &memoryLedger{}
	n := newTestNotifier(sender, ledger, 20*time.Millisecond)

	start := time.Now()
	res := n.Notify(context.Background(), testLicense(1, time.Now()), 0, []Recipient{
		{Category: notification.RecipientAdmin, Email: "slow@example.com"},
		{Category: notification.RecipientClient, Email: "fast@example.com"},
	})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	rec := ledger.byCategory()[notification.RecipientAdmin]
	require.NotNil(t, rec)
	assert.Equal(t, notification.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "deadline exceeded")
}

func TestNotifier_SenderPanicIsContained(t *testing.T) {
	sender := &fakeSender{panicFor: map[string]bool{"boom@example.com": true}}
	ledger := &memoryLedger{}
	n := newTestNotifier(sender, ledger, time.Second)

	res := n.Notify(context.Background(), testLicense(1, time.Now()), 30, []Recipient{
		{Category: notification.RecipientAdmin, Email: "boom@example.com"},
	})

	assert.False(t, res.Delivered)
	assert.Equal(t, 1, res.Failed)
	rec := ledger.all()[0]
	assert.Equal(t, notification.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "panicked")
}

func TestNotifier_LedgerFailureDoesNotAffectResult(t *testing.T) {
	sender := &fakeSender{}
	ledger := &memoryLedger{appendErr: errors.New("disk full")}
	n := newTestNotifier(sender, ledger, time.Second)

	res := n.Notify(context.Background(), testLicense(1, time.Now()), 5, []Recipient{
		{Category: notification.RecipientAdmin, Email: "admin@example.com"},
	})
	assert.Equal(t, 1, res.Sent)
	assert.Empty(t, ledger.all())
}

func TestBuildReminder_TierWording(t *testing.T) {
	lic := testLicense(1, time.Date(2026, 10, 25, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		days        int
		wantSubject string
	}{
		{-2, "[URGENT] License expired 2 days ago: IntelliJ IDEA"},
		{0, "[URGENT] License expires today: IntelliJ IDEA"},
		{1, "[IMPORTANT] License expires tomorrow: IntelliJ IDEA"},
		{5, "[IMPORTANT] License expires in 5 days: IntelliJ IDEA"},
		{15, "License expires in 15 days: IntelliJ IDEA"},
		{45, "License expires in 45 days: IntelliJ IDEA"},
	}
	for _, tt := range tests {
		content, err := BuildReminder(lic, tt.days)
		require.NoError(t, err)
		assert.Equal(t, tt.wantSubject, content.Subject)
	}

	content, err := BuildReminder(lic, 7)
	require.NoError(t, err)
	assert.Contains(t, content.HTML, "2026-10-25")
	assert.Contains(t, content.HTML, "JetBrains")
	assert.Contains(t, content.Text, "Client: Acme")
}

func TestBuildReminder_EscapesHTML(t *testing.T) {
	lic := testLicense(1, time.Now())
	lic.ToolName = "<script>alert(1)</script>"

	content, err := BuildReminder(lic, 7)
	require.NoError(t, err)
	assert.NotContains(t, content.HTML, "<script>")
}

func TestNotifier_CancelAfterDeliveryStillRecordsSent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender := &fakeSender{afterSend: cancel}
	ledger := &memoryLedger{honorCtx: true}
	n := newTestNotifier(sender, ledger, time.Second)

	res := n.Notify(ctx, testLicense(1, time.Now()), 7, []Recipient{
		{Category: notification.RecipientAdmin, Email: "admin@example.com"},
		{Category: notification.RecipientClient, Email: "it@acme.example"},
	})

	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"admin@example.com"}, sender.recipients())

	records := ledger.all()
	require.Len(t, records, 1, "only the attempted recipient gets a row")
	assert.Equal(t, notification.RecipientAdmin, records[0].RecipientCategory)
	assert.Equal(t, notification.StatusSent, records[0].Status)
}
