package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // settings timezones must resolve on images without a zoneinfo database

	"license_notifier/internal/app"
	domainMail "license_notifier/internal/domain/mail"
	"license_notifier/internal/infra/config"
	idb "license_notifier/internal/infra/database"
	"license_notifier/internal/infra/httpapi"
	"license_notifier/internal/infra/logger"
	"license_notifier/internal/infra/mail"
	"license_notifier/internal/infra/metrics"
	"license_notifier/internal/infra/scheduler"
	"license_notifier/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"http_addr":   cfg.HTTPAddr,
		"smtp":        cfg.SMTP.Configured(),
		"telegram":    cfg.TelegramToken != "",
	}).Info("Configuration loaded")

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	if err := idb.EnsureSchema(ctx, db); err != nil {
		mainLogger.WithError(err).Fatal("Could not prepare database schema")
	}
	mainLogger.Info("Database connection established")

	userRepo := idb.NewPostgresUserRepository(db)
	licenseRepo := idb.NewPostgresLicenseRepository(db)
	settingsRepo := idb.NewPostgresSettingsRepository(db)
	ledgerRepo := idb.NewPostgresNotificationRepository(db)

	settingsService := app.NewSettingsService(userRepo, settingsRepo, logger.Component("settings"))
	guard := app.NewDedupGuard(ledgerRepo, cfg.DedupCountsFailed, logger.Component("dedup"))

	var sender domainMail.Sender
	if cfg.SMTP.Configured() {
		sender = mail.NewSMTPSender(cfg.SMTP, logger.Component("smtp"))
	} else {
		mainLogger.Warn("SMTP is not configured; reminders will only be logged")
		sender = mail.NewLogSender(logger.Component("mail"))
	}
	notifier := app.NewNotifier(sender, guard, cfg.MailTimeout, logger.Component("notifier"))

	notifService := app.NewNotificationServiceImpl(
		settingsService,
		licenseRepo,
		guard,
		notifier,
		app.PassOptions{AdminEmail: cfg.AdminEmail, Concurrency: cfg.PassConcurrency},
		logger.Component("notification_service"),
	)

	dailyScheduler := scheduler.NewDailyScheduler(
		notifService,
		settingsService,
		cfg.PassTimeout,
		cfg.StartupGraceDelay,
		logger.Component("scheduler"),
	)
	settingsService.SetRescheduler(dailyScheduler)

	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		botLogger := logger.Component("telegram")
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				log := botLogger.WithError(err)
				if c != nil && c.Sender() != nil {
					log = log.WithField("sender_id", c.Sender().ID)
				}
				log.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		adminService := app.NewAdminService(settingsService, notifService, guard, cfg.AdminTelegramID)
		telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, botLogger)
		telegram.RegisterAdminHandlers(ctx, bot, telegram.NewAdminCommands(adminService, botLogger))
		notifService.SetTelegramReporter(telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID)
		mainLogger.Info("Telegram command handlers registered")
	}

	if err := dailyScheduler.Start(ctx, cfg.RunOnStartup); err != nil {
		mainLogger.WithError(err).Fatal("Could not start scheduler")
	}

	httpLogger := logger.Component("http")
	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(
			httpapi.NewNotificationHandler(notifService, settingsService, guard, dailyScheduler, httpLogger),
			httpapi.NewHealthHandler(db),
			httpLogger,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if bot != nil {
		g.Go(func() error {
			bot.Start()
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		mainLogger.Info("Shutting down application...")

		dailyScheduler.Stop()
		if bot != nil {
			bot.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		mainLogger.WithError(err).Error("Application stopped with error")
		os.Exit(1)
	}
	mainLogger.Info("Application shut down gracefully")
}
