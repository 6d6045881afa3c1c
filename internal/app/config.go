package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the wedding inquiry service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Email      EmailConfig      `mapstructure:"email"`
	Reminders  ReminderConfig   `mapstructure:"reminders"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	BaseURL         string        `mapstructure:"base_url"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// RegisterRateLimit caps registrations per client IP within RegisterRateWindow. Zero disables it.
	RegisterRateLimit  int           `mapstructure:"register_rate_limit"`
	RegisterRateWindow time.Duration `mapstructure:"register_rate_window"`
}

// DatabaseConfig describes the store connection. URL follows the DATABASE_URL
// convention; an empty URL selects the SQLite file at Path.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	Provider     string     `mapstructure:"provider"`
	Sender       string     `mapstructure:"sender"`
	CateringTeam string     `mapstructure:"catering_team"`
	TestMode     bool       `mapstructure:"test_mode"`
	SMTP         SMTPConfig `mapstructure:"smtp"`
	SES          SESConfig  `mapstructure:"ses"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SESConfig holds Amazon SES credentials.
type SESConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
}

// ReminderConfig controls the reminder scheduler.
type ReminderConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Timezone string `mapstructure:"timezone"`
	LeadDays int    `mapstructure:"lead_days"`
	// Offer follow-ups to couples who have not answered, in days after the
	// offer. Zero disables one.
	FollowUpFirstDays  int           `mapstructure:"follow_up_first_days"`
	FollowUpSecondDays int           `mapstructure:"follow_up_second_days"`
	Schedule           string        `mapstructure:"schedule"`
	BatchSize          int           `mapstructure:"batch_size"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	Lease              time.Duration `mapstructure:"lease"`
	RetryDelay         time.Duration `mapstructure:"retry_delay"`
	RetryMax           time.Duration `mapstructure:"retry_max"`
}

// RetentionConfig controls pruning of delivery and audit logs.
type RetentionConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
	Days     int    `mapstructure:"days"`
}

// AdminConfig configures HTTP basic auth for the admin API. Password is only
// read at startup and replaced by its bcrypt hash.
type AdminConfig struct {
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	PasswordHash string `mapstructure:"password_hash"`
	// ManualSendWindow suppresses a repeated resend or manual reminder.
	ManualSendWindow time.Duration `mapstructure:"manual_send_window"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// legacyEnv maps configuration keys to the flat variables used by existing deployments.
var legacyEnv = map[string]string{
	"database.url":                    "DATABASE_URL",
	"server.base_url":                 "BASE_URL",
	"server.log_level":                "LOG_LEVEL",
	"email.provider":                  "EMAIL_PROVIDER",
	"email.sender":                    "SENDER_EMAIL",
	"email.catering_team":             "CATERING_TEAM_EMAIL",
	"email.test_mode":                 "TEST_MODE",
	"email.smtp.host":                 "SMTP_HOST",
	"email.smtp.port":                 "SMTP_PORT",
	"email.smtp.username":             "SMTP_USER",
	"email.smtp.password":             "SMTP_PASSWORD",
	"reminders.enabled":               "REMINDERS_ENABLED",
	"reminders.timezone":              "TIMEZONE",
	"reminders.follow_up_first_days":  "REMINDER_DAY_1",
	"reminders.follow_up_second_days": "REMINDER_DAY_2",
	"admin.username":                  "ADMIN_USER",
	"admin.password":                  "ADMIN_PASSWORD",
	"admin.password_hash":             "ADMIN_PASSWORD_HASH",
	"email.ses.region":                "AWS_REGION",
	"email.ses.access_key_id":         "AWS_ACCESS_KEY_ID",
	"email.ses.secret_access_key":     "AWS_SECRET_ACCESS_KEY",
}

const envPrefix = "WEDDINGDESK"

// LoadConfig initialises application configuration using Viper with sensible defaults.
// A .env file in the working directory is applied first when present. Prefixed
// variables (WEDDINGDESK_SERVER_PORT) take precedence over the legacy flat names.
func LoadConfig(paths ...string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("config: bind env %s: %w", legacy, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// LoadDotEnv applies variables from the given files without overriding the
// existing environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", file, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.base_url", "http://localhost:8000")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.register_rate_limit", 10)
	v.SetDefault("server.register_rate_window", "1m")

	v.SetDefault("database.url", "")
	v.SetDefault("database.path", "./data/weddingdesk.sqlite")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 0)
	v.SetDefault("database.conn_max_lifetime", "0s")
	v.SetDefault("database.log_level", "silent")

	v.SetDefault("email.provider", "")
	v.SetDefault("email.sender", "")
	v.SetDefault("email.catering_team", "")
	v.SetDefault("email.test_mode", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 465)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.use_tls", false)
	v.SetDefault("email.smtp.timeout", "10s")
	v.SetDefault("email.ses.region", "")
	v.SetDefault("email.ses.access_key_id", "")
	v.SetDefault("email.ses.secret_access_key", "")
	v.SetDefault("email.ses.endpoint", "")

	v.SetDefault("reminders.enabled", true)
	v.SetDefault("reminders.timezone", "Europe/Zagreb")
	v.SetDefault("reminders.lead_days", 2)
	v.SetDefault("reminders.follow_up_first_days", 3)
	v.SetDefault("reminders.follow_up_second_days", 7)
	v.SetDefault("reminders.schedule", "@every 1m")
	v.SetDefault("reminders.batch_size", 50)
	v.SetDefault("reminders.max_attempts", 5)
	v.SetDefault("reminders.lease", "5m")
	v.SetDefault("reminders.retry_delay", "1m")
	v.SetDefault("reminders.retry_max", "1h")

	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.schedule", "@daily")
	v.SetDefault("retention.days", 180)

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.manual_send_window", "60s")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
