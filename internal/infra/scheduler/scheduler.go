package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"license_notifier/internal/app" // For NotificationService interface
	"license_notifier/internal/domain/notification"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SettingsLoader supplies the configured time of day on start.
type SettingsLoader interface {
	Load(ctx context.Context) (*notification.Settings, error)
}

// Status is a snapshot for the schedule endpoint.
type Status struct {
	Started          bool      `json:"started"`
	NextRun          time.Time `json:"nextRun"`
	NotificationTime string    `json:"time"`
	Timezone         string    `json:"timezone"`
}

// DailyScheduler owns the single cron entry that fires the daily pass.
type DailyScheduler struct {
	cronEngine   *cron.Cron
	notifService app.NotificationService // Using the interface
	settings     SettingsLoader
	logger       *logrus.Entry
	passTimeout  time.Duration
	graceDelay   time.Duration

	mu         sync.Mutex
	started    bool
	entryID    cron.EntryID
	timeOfDay  string
	timezone   string
	graceTimer *time.Timer
	passes     sync.WaitGroup
}

func NewDailyScheduler(
	notifService app.NotificationService,
	settings SettingsLoader,
	passTimeout time.Duration, // upper bound for one pass, e.g. 15m
	graceDelay time.Duration, // delay before the optional startup pass
	logger *logrus.Entry,
) *DailyScheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &DailyScheduler{
		cronEngine: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		notifService: notifService,
		settings:     settings,
		logger:       logger,
		passTimeout:  passTimeout,
		graceDelay:   graceDelay,
	}
}

// dailySpec builds a cron schedule firing once a day at hh:mm in the given timezone.
func dailySpec(timeOfDay, timezone string) (string, cron.Schedule, error) {
	h, m, err := notification.ParseTimeOfDay(timeOfDay)
	if err != nil {
		return "", nil, err
	}
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		timezone = notification.DefaultTimezone
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return "", nil, fmt.Errorf("unknown timezone %q: %w", timezone, err)
	}
	spec := fmt.Sprintf("CRON_TZ=%s %d %d * * *", timezone, m, h)
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return "", nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return spec, sched, nil
}

// Start arms the daily entry. Calling it while already started is a no-op. With
// runImmediately, one extra pass runs after the grace delay.
func (s *DailyScheduler) Start(ctx context.Context, runImmediately bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.logger.Debug("Scheduler already started, ignoring Start")
		return nil
	}

	if s.timeOfDay == "" {
		s.timeOfDay, s.timezone = notification.DefaultNotificationTime, notification.DefaultTimezone
		settings, err := s.settings.Load(ctx)
		if err != nil {
			s.logger.WithError(err).Warnf("Could not read notification settings, scheduling at %s %s", s.timeOfDay, s.timezone)
		} else {
			s.timeOfDay, s.timezone = settings.NotificationTime, settings.Timezone
		}
	}

	spec, sched, err := dailySpec(s.timeOfDay, s.timezone)
	if err != nil {
		s.logger.WithError(err).Warnf("Stored schedule %s %s is invalid, falling back to defaults", s.timeOfDay, s.timezone)
		s.timeOfDay, s.timezone = notification.DefaultNotificationTime, notification.DefaultTimezone
		if spec, sched, err = dailySpec(s.timeOfDay, s.timezone); err != nil {
			return err
		}
	}

	s.entryID = s.cronEngine.Schedule(sched, cron.FuncJob(s.tick))
	s.started = true
	s.cronEngine.Start()

	if runImmediately {
		s.graceTimer = time.AfterFunc(s.graceDelay, func() {
			s.runPass(app.TriggerStartup)
		})
	}

	s.logger.WithFields(logrus.Fields{
		"spec":            spec,
		"next_run":        sched.Next(time.Now()),
		"run_immediately": runImmediately,
	}).Info("Daily notification scheduler started")
	return nil
}

// tick is the cron callback.
func (s *DailyScheduler) tick() {
	s.runPass(app.TriggerScheduled)
}

func (s *DailyScheduler) runPass(trigger app.Trigger) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.passes.Add(1)
	s.mu.Unlock()
	defer s.passes.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.passTimeout)
	defer cancel()

	log := s.logger.WithField("trigger", trigger)
	log.Info("Scheduled notification pass triggered")
	summary, err := s.notifService.RunDailyPass(ctx, trigger)
	if err != nil {
		log.WithError(err).Error("Notification pass failed, will retry on the next trigger")
		return
	}
	log.WithFields(logrus.Fields{
		"run_id":        summary.RunID,
		"emails_sent":   summary.EmailsSent,
		"emails_failed": summary.EmailsFailed,
	}).Info(summary.Message)
}

// Stop removes the entry and cancels a pending startup pass. A pass already running is
// allowed to finish; Stop waits for it. Safe to call more than once.
func (s *DailyScheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.logger.Info("Stopping notification scheduler...")
	s.started = false
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
	s.cronEngine.Remove(s.entryID)
	s.entryID = 0
	s.mu.Unlock()

	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.passes.Wait()
	s.logger.Info("Notification scheduler gracefully stopped.")
}

// Reschedule replaces the daily entry with one at the new time. It does not run a pass.
// Before Start it only remembers the time for when Start is called.
func (s *DailyScheduler) Reschedule(newTime, timezone string) error {
	spec, sched, err := dailySpec(newTime, timezone)
	if err != nil {
		return err
	}
	normalized, _ := notification.NormalizeTimeOfDay(newTime)
	if strings.TrimSpace(timezone) == "" {
		timezone = notification.DefaultTimezone
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeOfDay, s.timezone = normalized, strings.TrimSpace(timezone)
	if !s.started {
		return nil
	}

	s.cronEngine.Remove(s.entryID)
	s.entryID = s.cronEngine.Schedule(sched, cron.FuncJob(s.tick))
	s.logger.WithFields(logrus.Fields{
		"spec":     spec,
		"next_run": sched.Next(time.Now()),
	}).Info("Daily notification run rescheduled")
	return nil
}

// NextRun returns the next fire time, or the zero time when stopped.
func (s *DailyScheduler) NextRun() time.Time {
	return s.NextRunAfter(time.Now())
}

// NextRunAfter returns the first fire time strictly after t.
func (s *DailyScheduler) NextRunAfter(t time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return time.Time{}
	}
	entry := s.cronEngine.Entry(s.entryID)
	if !entry.Valid() {
		return time.Time{}
	}
	return entry.Schedule.Next(t)
}

func (s *DailyScheduler) Status() Status {
	next := s.NextRun()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Started:          s.started,
		NextRun:          next,
		NotificationTime: s.timeOfDay,
		Timezone:         s.timezone,
	}
}
