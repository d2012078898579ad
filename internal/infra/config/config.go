package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL string
	LogLevel    string
	Environment string
	HTTPAddr    string

	SMTP       SMTPConfig
	AdminEmail string // Overrides the settings owner's address as the admin recipient

	MailTimeout       time.Duration // Upper bound for a single dispatch
	PassTimeout       time.Duration // Upper bound for a whole scheduled pass
	StartupGraceDelay time.Duration // Delay before the optional startup pass
	RunOnStartup      bool
	PassConcurrency   int  // Licenses processed in parallel within a pass
	DedupCountsFailed bool // Whether failed attempts suppress a same-day re-send

	TelegramToken   string // Optional operator bot
	AdminTelegramID int64
}

// SMTPConfig holds outbound mail settings. An empty Host selects the dry-run sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	UseTLS   bool // STARTTLS
	UseSSL   bool // implicit TLS, usually port 465
}

// Configured reports whether enough is set to talk to a real SMTP server.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != ""
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")

	cfg.SMTP = SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
		FromName: envOr("SMTP_FROM_NAME", "License Manager"),
	}
	if cfg.SMTP.Port, err = envInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.SMTP.UseTLS, err = envBool("SMTP_USE_TLS", true); err != nil {
		return nil, err
	}
	if cfg.SMTP.UseSSL, err = envBool("SMTP_USE_SSL", false); err != nil {
		return nil, err
	}

	cfg.AdminEmail = strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))

	if cfg.MailTimeout, err = envDuration("MAIL_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.PassTimeout, err = envDuration("PASS_TIMEOUT", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.StartupGraceDelay, err = envDuration("STARTUP_GRACE_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RunOnStartup, err = envBool("RUN_ON_STARTUP", false); err != nil {
		return nil, err
	}
	if cfg.PassConcurrency, err = envInt("PASS_CONCURRENCY", 1); err != nil {
		return nil, err
	}
	if cfg.PassConcurrency < 1 {
		return nil, fmt.Errorf("invalid PASS_CONCURRENCY: must be at least 1, got %d", cfg.PassConcurrency)
	}
	if cfg.DedupCountsFailed, err = envBool("DEDUP_COUNT_FAILED", true); err != nil {
		return nil, err
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken != "" {
		adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
		if adminIDStr == "" {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set (required when TELEGRAM_TOKEN is set)")
		}
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
