package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// CronParser accepts standard five-field expressions and an optional leading seconds field.
var CronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Email     EmailConfig     `yaml:"email"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Log       LogConfig       `yaml:"log"`
	LateFee   LateFeeConfig   `yaml:"late_fee"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Ops       OpsConfig       `yaml:"ops"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Database string `yaml:"database" env:"DB_NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSL_MODE"`
}

// EmailConfig selects and configures the outbound email provider
type EmailConfig struct {
	Provider       string `yaml:"provider" env:"EMAIL_PROVIDER"` // "sendgrid", "smtp" or "none"
	From           string `yaml:"from" env:"EMAIL_FROM"`
	FromName       string `yaml:"from_name" env:"EMAIL_FROM_NAME"`
	SendGridAPIKey string `yaml:"sendgrid_api_key" env:"SENDGRID_API_KEY"`
	SMTPHost       string `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort       int    `yaml:"smtp_port" env:"SMTP_PORT"`
	SMTPUser       string `yaml:"smtp_user" env:"SMTP_USER"`
	SMTPPassword   string `yaml:"smtp_password" env:"SMTP_PASSWORD"`
}

// KafkaConfig configures the realtime order event stream
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC"`
}

// Enabled reports whether realtime events should be published
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // "debug", "info", "warn", "error"
	Format string `yaml:"format" env:"LOG_FORMAT"` // "json" or "text"
}

// LateFeeConfig holds the business-rule inputs that are not part of a stored policy
type LateFeeConfig struct {
	ReminderDaysBeforeReturn int    `yaml:"reminder_days_before_return" env:"REMINDER_DAYS_BEFORE_RETURN"`
	FallbackFeePerDay        string `yaml:"fallback_fee_per_day" env:"FALLBACK_LATE_FEE_PER_DAY"`
	RoundingPlaces           *int32 `yaml:"rounding_places" env:"LATE_FEE_ROUNDING_PLACES"`

	fallback decimal.Decimal
}

// FallbackPerDay returns the parsed flat fee used when no policy is active
func (l LateFeeConfig) FallbackPerDay() decimal.Decimal {
	return l.fallback
}

// Places returns the rounding precision, defaulting to cents
func (l LateFeeConfig) Places() int32 {
	if l.RoundingPlaces == nil {
		return 2
	}
	return *l.RoundingPlaces
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ReminderSweep     string `yaml:"reminder_sweep" env:"SCHEDULE_REMINDER_SWEEP"`
	OverdueSweep      string `yaml:"overdue_sweep" env:"SCHEDULE_OVERDUE_SWEEP"`
	FeeRecomputeSweep string `yaml:"fee_recompute_sweep" env:"SCHEDULE_FEE_RECOMPUTE_SWEEP"`
	Timezone          string `yaml:"timezone" env:"SCHEDULER_TIMEZONE"`
}

// Location resolves the scheduler timezone, UTC when unset
func (s SchedulerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// OpsConfig controls the operational HTTP listener; an empty address disables it
type OpsConfig struct {
	Addr string `yaml:"addr" env:"OPS_ADDR"`
}

// TelemetryConfig controls optional OTLP trace export
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.Port < 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	// Email validation
	c.Email.Provider = strings.ToLower(c.Email.Provider)
	switch c.Email.Provider {
	case "", "none":
		c.Email.Provider = "none"
	case "sendgrid":
		if c.Email.SendGridAPIKey == "" {
			return fmt.Errorf("sendgrid API key is required")
		}
	case "smtp":
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP host is required")
		}
		if c.Email.SMTPPort <= 0 || c.Email.SMTPPort > 65535 {
			return fmt.Errorf("invalid SMTP port: %d", c.Email.SMTPPort)
		}
	default:
		return fmt.Errorf("unknown email provider: %s", c.Email.Provider)
	}
	if c.Email.Provider != "none" && c.Email.From == "" {
		return fmt.Errorf("email from address is required")
	}

	// Late fee validation
	if c.LateFee.ReminderDaysBeforeReturn < 0 {
		return fmt.Errorf("reminder days before return must be >= 0, got %d", c.LateFee.ReminderDaysBeforeReturn)
	}
	c.LateFee.fallback = decimal.Zero
	if c.LateFee.FallbackFeePerDay != "" {
		fee, err := decimal.NewFromString(c.LateFee.FallbackFeePerDay)
		if err != nil {
			return fmt.Errorf("invalid fallback fee per day %q: %w", c.LateFee.FallbackFeePerDay, err)
		}
		if fee.IsNegative() {
			return fmt.Errorf("fallback fee per day must be >= 0, got %s", fee)
		}
		c.LateFee.fallback = fee
	}
	if p := c.LateFee.Places(); p < 0 || p > 8 {
		return fmt.Errorf("late fee rounding places must be between 0 and 8, got %d", p)
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	// Scheduler defaults
	if c.Scheduler.ReminderSweep == "" {
		c.Scheduler.ReminderSweep = "0 0 9 * * *" // Daily at 9 AM
	}
	if c.Scheduler.OverdueSweep == "" {
		c.Scheduler.OverdueSweep = "0 0 1 * * *" // Daily at 1 AM
	}
	if c.Scheduler.FeeRecomputeSweep == "" {
		c.Scheduler.FeeRecomputeSweep = "0 0 * * * *" // Hourly
	}
	for name, expr := range map[string]string{
		"reminder_sweep":      c.Scheduler.ReminderSweep,
		"overdue_sweep":       c.Scheduler.OverdueSweep,
		"fee_recompute_sweep": c.Scheduler.FeeRecomputeSweep,
	} {
		if _, err := CronParser.Parse(expr); err != nil {
			return fmt.Errorf("invalid %s schedule %q: %w", name, expr, err)
		}
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return fmt.Errorf("invalid scheduler timezone %q: %w", c.Scheduler.Timezone, err)
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "rentflow-cronjob"
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}
