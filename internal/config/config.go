package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all configuration for the booking-core service.
type Config struct {
	Environment string    `mapstructure:"environment"`
	Port        int       `mapstructure:"port"`
	LogLevel    string    `mapstructure:"log_level"`
	Database    Database  `mapstructure:"database"`
	Redis       Redis     `mapstructure:"redis"`
	NATS        NATS      `mapstructure:"nats"`
	Policy      Policy    `mapstructure:"policy"`
	Stripe      Stripe    `mapstructure:"stripe"`
	Notifier    Notifier  `mapstructure:"notifier"`
	RateLimit   RateLimit `mapstructure:"rate_limit"`
	Workers     Workers   `mapstructure:"workers"`
}

type Database struct {
	URL string `mapstructure:"url"`
}

// DatabaseConfig is an alias kept for callers that still refer to the
// teacher's original field name.
type DatabaseConfig = Database

type Redis struct {
	URL string `mapstructure:"url"`
}

type RedisConfig = Redis

type NATS struct {
	URL string `mapstructure:"url"`
}

type NATSConfig = NATS

// Policy carries the default business rules seeded into the singleton
// Policy row on first migration; the row itself is the runtime source of
// truth afterward (updatable without a redeploy).
type Policy struct {
	LeadTimeMinutes         int    `mapstructure:"lead_time_minutes"`
	FutureWindowDays        int    `mapstructure:"future_window_days"`
	RescheduleLockHours     int    `mapstructure:"reschedule_lock_hours"`
	CancelLockHours         int    `mapstructure:"cancel_lock_hours"`
	HoldTTLMinutes          int    `mapstructure:"hold_ttl_minutes"`
	PaymentGraceMinutes     int    `mapstructure:"payment_grace_minutes"`
	ReminderLeadMinutes     int    `mapstructure:"reminder_lead_minutes"`
	SlotGridMinutes         int    `mapstructure:"slot_grid_minutes"`
	OnlineEnabled           bool   `mapstructure:"online_enabled"`
	OnlineDiscountPercent   int    `mapstructure:"online_discount_percent"`
	Currency                string `mapstructure:"currency"`
	BusinessTimezone        string `mapstructure:"business_timezone"`
	SettingsCacheTTLSeconds int    `mapstructure:"settings_cache_ttl_seconds"`
}

type Stripe struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type Notifier struct {
	BaseURL string `mapstructure:"base_url"`
}

type RateLimit struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	BurstSize         int `mapstructure:"burst_size"`
}

// Workers holds the tick intervals and batch sizes for the three
// lifecycle workers (HoldExpirer, ReminderDispatcher, PaymentReconciler).
type Workers struct {
	HoldExpirerIntervalSeconds        int `mapstructure:"hold_expirer_interval_seconds"`
	ReminderDispatcherIntervalSeconds int `mapstructure:"reminder_dispatcher_interval_seconds"`
	PaymentReconcilerIntervalSeconds  int `mapstructure:"payment_reconciler_interval_seconds"`
	BatchSize                         int `mapstructure:"batch_size"`
}

// Load reads configuration from ./configs/config.yaml (if present), then
// environment variables, falling back to defaults tuned for local dev.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvPrefix("")
	viper.AutomaticEnv()

	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("nats.url", "NATS_URL")
	viper.BindEnv("environment", "ENVIRONMENT")
	viper.BindEnv("log_level", "LOG_LEVEL")
	viper.BindEnv("port", "PORT")
	viper.BindEnv("stripe.secret_key", "STRIPE_SECRET_KEY")
	viper.BindEnv("stripe.webhook_secret", "STRIPE_WEBHOOK_SECRET")
	viper.BindEnv("notifier.base_url", "NOTIFIER_BASE_URL")
	viper.BindEnv("policy.lead_time_minutes", "LEAD_TIME_MINUTES")
	viper.BindEnv("policy.future_window_days", "FUTURE_WINDOW_DAYS")
	viper.BindEnv("policy.reschedule_lock_hours", "RESCHEDULE_LOCK_HOURS")
	viper.BindEnv("policy.cancel_lock_hours", "CANCEL_LOCK_HOURS")
	viper.BindEnv("policy.hold_ttl_minutes", "HOLD_TTL_MINUTES")
	viper.BindEnv("policy.payment_grace_minutes", "PAYMENT_GRACE_MINUTES")
	viper.BindEnv("policy.reminder_lead_minutes", "REMINDER_LEAD_MINUTES")
	viper.BindEnv("policy.slot_grid_minutes", "SLOT_GRID_MINUTES")
	viper.BindEnv("policy.online_enabled", "ONLINE_ENABLED")
	viper.BindEnv("policy.online_discount_percent", "ONLINE_DISCOUNT_PERCENT")
	viper.BindEnv("policy.currency", "CURRENCY")
	viper.BindEnv("policy.business_timezone", "BUSINESS_TIMEZONE")
	viper.BindEnv("policy.settings_cache_ttl_seconds", "SETTINGS_CACHE_TTL_SECONDS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("port", 8080)
	viper.SetDefault("log_level", "info")

	viper.SetDefault("database.url", "postgres://localhost:5432/booking_core?sslmode=disable")
	viper.SetDefault("redis.url", "redis://localhost:6379")
	viper.SetDefault("nats.url", "nats://localhost:4222")

	viper.SetDefault("policy.lead_time_minutes", 0)
	viper.SetDefault("policy.future_window_days", 60)
	viper.SetDefault("policy.reschedule_lock_hours", 3)
	viper.SetDefault("policy.cancel_lock_hours", 3)
	viper.SetDefault("policy.hold_ttl_minutes", 15)
	viper.SetDefault("policy.payment_grace_minutes", 30)
	viper.SetDefault("policy.reminder_lead_minutes", 0)
	viper.SetDefault("policy.slot_grid_minutes", 15)
	viper.SetDefault("policy.online_enabled", true)
	viper.SetDefault("policy.online_discount_percent", 0)
	viper.SetDefault("policy.currency", "USD")
	viper.SetDefault("policy.business_timezone", "UTC")
	viper.SetDefault("policy.settings_cache_ttl_seconds", 60)

	viper.SetDefault("stripe.secret_key", "")
	viper.SetDefault("stripe.webhook_secret", "")

	viper.SetDefault("notifier.base_url", "http://localhost:8090")

	viper.SetDefault("rate_limit.requests_per_minute", 120)
	viper.SetDefault("rate_limit.burst_size", 30)

	viper.SetDefault("workers.hold_expirer_interval_seconds", 30)
	viper.SetDefault("workers.reminder_dispatcher_interval_seconds", 60)
	viper.SetDefault("workers.payment_reconciler_interval_seconds", 120)
	viper.SetDefault("workers.batch_size", 200)
}
