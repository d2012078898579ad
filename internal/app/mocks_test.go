package app

import (
	"context"
	"sort"
	"sync"
	"time"
	_ "time/tzdata"

	"license_notifier/internal/domain/license"
	"license_notifier/internal/domain/mail"
	"license_notifier/internal/domain/notification"
	"license_notifier/internal/domain/user"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
)

func nullLogger() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) FirstAdmin(ctx context.Context) (*user.User, error) {
	args := m.Called(ctx)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

type mockSettingsRepo struct{ mock.Mock }

func (m *mockSettingsRepo) GetByUserID(ctx context.Context, userID int64) (*notification.Settings, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).(*notification.Settings)
	return s, args.Error(1)
}

func (m *mockSettingsRepo) Create(ctx context.Context, s *notification.Settings) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockSettingsRepo) Update(ctx context.Context, s *notification.Settings) error {
	return m.Called(ctx, s).Error(0)
}

type mockLicenseRepo struct{ mock.Mock }

func (m *mockLicenseRepo) ListActive(ctx context.Context) ([]*license.License, error) {
	args := m.Called(ctx)
	l, _ := args.Get(0).([]*license.License)
	return l, args.Error(1)
}

type mockRescheduler struct{ mock.Mock }

func (m *mockRescheduler) Reschedule(notificationTime, timezone string) error {
	return m.Called(notificationTime, timezone).Error(0)
}

// memoryLedger is an in-memory notification.Repository.
type memoryLedger struct {
	mu        sync.Mutex
	records   []*notification.Record
	appendErr error
	existsErr error
	honorCtx  bool // fail on a done context, as database/sql does
}

func (l *memoryLedger) ExistsInWindow(ctx context.Context, licenseID int64, notifType notification.Type, statuses []notification.Status, from, to time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.honorCtx && ctx.Err() != nil {
		return false, ctx.Err()
	}
	if l.existsErr != nil {
		return false, l.existsErr
	}
	for _, r := range l.records {
		if r.LicenseID != licenseID || r.Type != notifType {
			continue
		}
		if r.SentAt.Before(from) || !r.SentAt.Before(to) {
			continue
		}
		for _, s := range statuses {
			if r.Status == s {
				return true, nil
			}
		}
	}
	return false, nil
}

func (l *memoryLedger) Append(ctx context.Context, r *notification.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	if l.appendErr != nil {
		return l.appendErr
	}
	cp := *r
	cp.ID = int64(len(l.records) + 1)
	r.ID = cp.ID
	l.records = append(l.records, &cp)
	return nil
}

func (l *memoryLedger) ListHistory(_ context.Context, filter notification.HistoryFilter) ([]*notification.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*notification.Record, 0, len(l.records))
	for _, r := range l.records {
		if filter.LicenseID != 0 && r.LicenseID != filter.LicenseID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (l *memoryLedger) all() []*notification.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*notification.Record(nil), l.records...)
}

func (l *memoryLedger) byCategory() map[notification.RecipientCategory]*notification.Record {
	out := make(map[notification.RecipientCategory]*notification.Record)
	for _, r := range l.all() {
		out[r.RecipientCategory] = r
	}
	return out
}

// fakeSender records dispatches and can fail, hang or panic per address.
type fakeSender struct {
	mu       sync.Mutex
	sent     []mail.Message
	failFor  map[string]error
	hangFor  map[string]bool
	panicFor map[string]bool
	// afterSend runs once a message has been accepted, before Send returns.
	afterSend func()
}

func (f *fakeSender) Send(ctx context.Context, msg mail.Message) (*mail.Receipt, error) {
	to := msg.To[0]
	if f.panicFor[to] {
		panic("smtp client exploded")
	}
	if f.hangFor[to] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.failFor[to]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	after := f.afterSend
	f.mu.Unlock()
	if after != nil {
		after()
	}
	return &mail.Receipt{MessageID: "<test@local>", Accepted: msg.To}, nil
}

func (f *fakeSender) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		out = append(out, m.To...)
	}
	sort.Strings(out)
	return out
}

// stubSettings is a fixed SettingsService for pass tests.
type stubSettings struct {
	mu       sync.Mutex
	settings *notification.Settings
	owner    *user.User
	err      error
	saved    []SettingsUpdate
}

func (s *stubSettings) Load(ctx context.Context) (*notification.Settings, error) {
	st, _, err := s.Resolve(ctx)
	return st, err
}

func (s *stubSettings) Resolve(_ context.Context) (*notification.Settings, *user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, nil, s.err
	}
	cp := *s.settings
	return &cp, s.owner, nil
}

func (s *stubSettings) Save(_ context.Context, u SettingsUpdate) (*notification.Settings, error) {
	set, err := u.validate()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, u)
	s.settings.Enabled = u.Enabled
	s.settings.Thresholds = set
	s.settings.NotificationTime = u.NotificationTime
	s.settings.Timezone = u.Timezone
	cp := *s.settings
	return &cp, nil
}

func (s *stubSettings) SetRescheduler(Rescheduler) {}

type fakeTelegram struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeTelegram) SendMessage(_ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}
