package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int
	LogLevel       string
	Environment    string
	HTTPAddr       string
	AdminAPIToken  string

	TelegramToken   string // optional, enables the admin bot
	AdminTelegramID int64

	AlertSweepSpec      string // cron spec, "@every 1h" by default
	AlertSweepOnStart   bool
	AlertChannelTimeout time.Duration
	AlertLocation       *time.Location
	SeedDefaultAlerts   bool

	SMTP   SMTPConfig
	Twilio TwilioConfig
	SMS    SMSConfig
}

// SMTPConfig configures the email channel. An empty Host means mail is only logged.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// TwilioConfig configures the Twilio SMS backend. It is enabled only when all fields are set.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

// Enabled reports whether all Twilio credentials are present.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.From != ""
}

type SMSConfig struct {
	RatePerSecond   float64
	FallbackOnError bool // log and report success when every backend failed
}

// BotEnabled reports whether the Telegram admin bot should be started.
func (c *AppConfig) BotEnabled() bool {
	return c.TelegramToken != ""
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	if cfg.DBMaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", 25); err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.AdminAPIToken = os.Getenv("ADMIN_API_TOKEN")

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.AlertSweepSpec = getEnv("ALERT_SWEEP_SPEC", "@every 1h")
	if cfg.AlertSweepOnStart, err = getEnvBool("ALERT_SWEEP_ON_START", false); err != nil {
		return nil, err
	}
	if cfg.AlertChannelTimeout, err = getEnvDuration("ALERT_CHANNEL_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	tz := getEnv("ALERT_TIMEZONE", "Local")
	cfg.AlertLocation, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_TIMEZONE %q: %w", tz, err)
	}
	if cfg.SeedDefaultAlerts, err = getEnvBool("SEED_DEFAULT_ALERTS", true); err != nil {
		return nil, err
	}

	cfg.SMTP = SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Username: os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASS"),
		From:     os.Getenv("SMTP_FROM"),
	}
	if cfg.SMTP.Port, err = getEnvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	cfg.Twilio = TwilioConfig{
		AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		From:       os.Getenv("TWILIO_FROM"),
	}

	rateStr := getEnv("SMS_RATE_PER_SECOND", "5")
	cfg.SMS.RatePerSecond, err = strconv.ParseFloat(rateStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SMS_RATE_PER_SECOND: %w", err)
	}
	if cfg.SMS.FallbackOnError, err = getEnvBool("SMS_FALLBACK_ON_ERROR", true); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *AppConfig) Validate() error {
	if c.BotEnabled() && c.AdminTelegramID == 0 {
		return fmt.Errorf("ADMIN_TELEGRAM_ID is required when TELEGRAM_TOKEN is set")
	}
	if c.Environment == "production" && c.AdminAPIToken == "" {
		return fmt.Errorf("ADMIN_API_TOKEN is required in production")
	}
	if c.AlertChannelTimeout <= 0 {
		return fmt.Errorf("ALERT_CHANNEL_TIMEOUT must be positive")
	}
	if c.SMS.RatePerSecond < 0 {
		return fmt.Errorf("SMS_RATE_PER_SECOND must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
