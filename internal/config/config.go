// Package config provides application configuration loaded from environment
// variables (optionally seeded from a .env file) with defaults, normalization
// and validation. It centralizes the Telegram transport, storage, session,
// household rules, HTTP server and observability settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in minimal containers

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Transport modes.
const (
	TransportPolling = "polling"
	TransportWebhook = "webhook"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"flatmate-bot"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1.0"` // [0..1]
}

// TelegramConfig defines how the bot talks to the Bot API.
type TelegramConfig struct {
	Token         string        `env:"BOT_TOKEN,required"`
	APIURL        string        `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	TargetChatID  int64         `env:"TARGET_CHAT_ID,required"` // shared household chat
	Transport     string        `env:"TRANSPORT" envDefault:"polling"`
	WebhookURL    string        `env:"WEBHOOK_URL"` // public base URL, webhook mode only
	WebhookPath   string        `env:"WEBHOOK_PATH" envDefault:"/telegram/webhook"`
	WebhookSecret string        `env:"WEBHOOK_SECRET"`
	PollTimeout   time.Duration `env:"POLL_TIMEOUT" envDefault:"30s"`
	SendRPS       float64       `env:"SEND_RPS" envDefault:"25"` // 0 disables outbound throttling
	SendBurst     int           `env:"SEND_BURST" envDefault:"5"`
}

// DBConfig selects the relational store.
type DBConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite"` // sqlite|postgres
	Path   string `env:"DB_PATH" envDefault:"flatmate.db"`
	URL    string `env:"DATABASE_URL"`
}

// SessionConfig selects where conversation state lives.
type SessionConfig struct {
	Store    string        `env:"SESSION_STORE" envDefault:"memory"` // memory|redis
	RedisURL string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	TTL      time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	Policy   string        `env:"FLOW_START_POLICY" envDefault:"abandon"` // abandon|reject
}

// HouseholdConfig holds the house rules.
type HouseholdConfig struct {
	Timezone        string         `env:"TIMEZONE" envDefault:"UTC"`
	Location        *time.Location `env:"-"`
	DishwasherCycle time.Duration  `env:"DISHWASHER_CYCLE" envDefault:"4m"`
	HonestyLimit    int            `env:"HONESTY_LIMIT" envDefault:"3"`
	SilenceWindow   time.Duration  `env:"SILENCE_WINDOW" envDefault:"30m"`
	SilenceLimit    int            `env:"SILENCE_LIMIT" envDefault:"3"`
	GuestsMin       int            `env:"GUESTS_MIN" envDefault:"1"`
	GuestsMax       int            `env:"GUESTS_MAX" envDefault:"50"`
	DigestSpec      string         `env:"DIGEST_SPEC" envDefault:"0 0 * * *"`
}

// Config holds all configuration values for the application.
type Config struct {
	// Server (webhook mode; /metrics and /health in both modes)
	Port              string        `env:"PORT" envDefault:"8080"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"20s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"MAX_HEADER_BYTES" envDefault:"1048576"`
	GinMode           string        `env:"GIN_MODE" envDefault:"release"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	// Webhook protection
	RateRPS   float64 `env:"RATE_RPS" envDefault:"20"`
	RateBurst int     `env:"RATE_BURST" envDefault:"40"`

	// Processing
	UpdateDedupTTL time.Duration `env:"UPDATE_DEDUP_TTL" envDefault:"24h"`
	TaskTimeout    time.Duration `env:"TASK_TIMEOUT" envDefault:"30s"`
	QueueSize      int           `env:"QUEUE_SIZE" envDefault:"256"`

	Telegram  TelegramConfig
	DB        DBConfig
	Session   SessionConfig
	Household HouseholdConfig
	OTEL      OTELConfig
}

// LoadDotEnv seeds the environment from .env files. Missing files are
// ignored and variables that are already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	// --- normalization ---
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	cfg.GinMode = strings.ToLower(cfg.GinMode)
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.Telegram.Transport = strings.ToLower(strings.TrimSpace(cfg.Telegram.Transport))
	cfg.Telegram.APIURL = strings.TrimRight(cfg.Telegram.APIURL, "/")
	cfg.Telegram.WebhookURL = strings.TrimRight(cfg.Telegram.WebhookURL, "/")
	cfg.Telegram.WebhookPath = normalizePath(cfg.Telegram.WebhookPath)
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	cfg.Session.Store = strings.ToLower(strings.TrimSpace(cfg.Session.Store))
	cfg.Session.Policy = strings.ToLower(strings.TrimSpace(cfg.Session.Policy))

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.UpdateDedupTTL <= 0 || cfg.TaskTimeout <= 0 {
		return cfg, errors.New("UPDATE_DEDUP_TTL and TASK_TIMEOUT must be > 0")
	}
	if err := cfg.validateTelegram(); err != nil {
		return cfg, err
	}
	if err := cfg.validateStorage(); err != nil {
		return cfg, err
	}
	if err := cfg.validateHousehold(); err != nil {
		return cfg, err
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return cfg, nil
}

func (cfg *Config) validateTelegram() error {
	t := cfg.Telegram
	if strings.TrimSpace(t.Token) == "" {
		return errors.New("BOT_TOKEN must not be empty")
	}
	if t.TargetChatID == 0 {
		return errors.New("TARGET_CHAT_ID must not be 0")
	}
	switch t.Transport {
	case TransportPolling:
	case TransportWebhook:
		if !strings.HasPrefix(t.WebhookURL, "https://") {
			return errors.New("WEBHOOK_URL must be an https URL in webhook mode")
		}
	default:
		return errors.New("TRANSPORT must be one of: polling, webhook")
	}
	if t.PollTimeout < 0 {
		return errors.New("POLL_TIMEOUT must be >= 0")
	}
	if t.SendRPS < 0 || t.SendBurst < 1 {
		return errors.New("SEND_RPS must be >= 0 and SEND_BURST >= 1")
	}
	return nil
}

func (cfg *Config) validateStorage() error {
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return errors.New("DATABASE_URL is required for DB_DRIVER=postgres")
		}
	default:
		return errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}

	switch cfg.Session.Store {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.Session.RedisURL) == "" {
			return errors.New("REDIS_URL is required for SESSION_STORE=redis")
		}
	default:
		return errors.New("SESSION_STORE must be one of: memory, redis")
	}
	if cfg.Session.TTL < 0 {
		return errors.New("SESSION_TTL must be >= 0")
	}
	switch cfg.Session.Policy {
	case "abandon", "reject":
	default:
		return errors.New("FLOW_START_POLICY must be one of: abandon, reject")
	}
	return nil
}

func (cfg *Config) validateHousehold() error {
	h := &cfg.Household
	loc, err := time.LoadLocation(strings.TrimSpace(h.Timezone))
	if err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	h.Location = loc
	if h.DishwasherCycle <= 0 || h.SilenceWindow <= 0 {
		return errors.New("DISHWASHER_CYCLE and SILENCE_WINDOW must be > 0")
	}
	if h.HonestyLimit < 1 || h.SilenceLimit < 1 {
		return errors.New("HONESTY_LIMIT and SILENCE_LIMIT must be >= 1")
	}
	if h.GuestsMin < 1 || h.GuestsMax < h.GuestsMin {
		return errors.New("GUESTS_MIN must be >= 1 and GUESTS_MAX >= GUESTS_MIN")
	}
	if _, err := cron.ParseStandard(h.DigestSpec); err != nil {
		return fmt.Errorf("DIGEST_SPEC: %w", err)
	}
	return nil
}

// WebhookEndpoint is the full URL registered with setWebhook.
func (cfg Config) WebhookEndpoint() string {
	return cfg.Telegram.WebhookURL + cfg.Telegram.WebhookPath
}

// normalizePath ensures a leading '/' and strips a trailing '/' (except root).
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
