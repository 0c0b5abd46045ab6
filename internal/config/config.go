package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// devSecret signs sessions in development only.
const devSecret = "schooldesk-development-secret"

// MailConfig selects and configures the outgoing mail transport.
type MailConfig struct {
	Provider       string // "console" or "sendgrid"
	SendGridAPIKey string
	From           string
	// AlertTo receives partial-failure alerts. Empty disables them.
	AlertTo string
}

// AdminConfig seeds the first super-admin of an empty registry.
type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // debug, info, warn or error
	Format string // text or json
}

// TelemetryConfig configures the OpenTelemetry providers.
type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Exporter       string // stdout, otlp or none
}

// Insecure reports whether OTLP export may use plain HTTP.
func (t TelemetryConfig) Insecure() bool {
	return t.Environment == "development"
}

// Config holds all configuration.
type Config struct {
	Environment   string
	Port          string
	DatabasePath  string
	JWTSecret     string
	SessionTTL    time.Duration
	AppName       string
	ResetURL      string
	MetricsPrefix string
	Bootstrap     AdminConfig
	Mail          MailConfig
	Log           LogConfig
	Telemetry     TelemetryConfig
}

// Production reports whether the service runs outside development.
func (c Config) Production() bool {
	return c.Environment != "development"
}

// Load reads configuration from the environment. A dotenv file is loaded
// first when it exists; variables already set in the environment win.
func Load(dotEnvPath string) (Config, error) {
	if dotEnvPath != "" {
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return Config{}, fmt.Errorf("loading %s: %w", dotEnvPath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("checking %s: %w", dotEnvPath, err)
		}
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_PATH", "schooldesk.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("SESSION_TTL", 12*time.Hour)
	v.SetDefault("APP_NAME", "SchoolDesk")
	v.SetDefault("RESET_URL", "http://localhost:8080/reset-password")
	v.SetDefault("METRICS_PREFIX", "schooldesk")
	v.SetDefault("BOOTSTRAP_ADMIN_NAME", "Super Admin")
	v.SetDefault("BOOTSTRAP_ADMIN_EMAIL", "")
	v.SetDefault("BOOTSTRAP_ADMIN_PASSWORD", "")
	v.SetDefault("MAIL_PROVIDER", "console")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM", "noreply@localhost")
	v.SetDefault("ALERT_EMAIL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("OTEL_SERVICE_NAME", "schooldesk")
	v.SetDefault("OTEL_SERVICE_VERSION", "0.1.0")
	v.SetDefault("OTEL_ENVIRONMENT", "development")
	v.SetDefault("OTEL_EXPORTER", "stdout")
	v.AutomaticEnv()

	cfg := Config{
		Environment:   strings.ToLower(v.GetString("ENVIRONMENT")),
		Port:          v.GetString("PORT"),
		DatabasePath:  v.GetString("DATABASE_PATH"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		SessionTTL:    v.GetDuration("SESSION_TTL"),
		AppName:       v.GetString("APP_NAME"),
		ResetURL:      v.GetString("RESET_URL"),
		MetricsPrefix: v.GetString("METRICS_PREFIX"),
		Bootstrap: AdminConfig{
			Name:     v.GetString("BOOTSTRAP_ADMIN_NAME"),
			Email:    v.GetString("BOOTSTRAP_ADMIN_EMAIL"),
			Password: v.GetString("BOOTSTRAP_ADMIN_PASSWORD"),
		},
		Mail: MailConfig{
			Provider:       strings.ToLower(v.GetString("MAIL_PROVIDER")),
			SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
			From:           v.GetString("MAIL_FROM"),
			AlertTo:        v.GetString("ALERT_EMAIL"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		Telemetry: TelemetryConfig{
			ServiceName:    v.GetString("OTEL_SERVICE_NAME"),
			ServiceVersion: v.GetString("OTEL_SERVICE_VERSION"),
			Environment:    v.GetString("OTEL_ENVIRONMENT"),
			Exporter:       strings.ToLower(v.GetString("OTEL_EXPORTER")),
		},
	}

	if cfg.JWTSecret == "" && !cfg.Production() {
		cfg.JWTSecret = devSecret
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL))
	}
	switch c.Mail.Provider {
	case "console":
	case "sendgrid":
		if c.Mail.SendGridAPIKey == "" {
			errs = append(errs, errors.New("SENDGRID_API_KEY is required with MAIL_PROVIDER=sendgrid"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported MAIL_PROVIDER %q (use console or sendgrid)", c.Mail.Provider))
	}
	if (c.Bootstrap.Email == "") != (c.Bootstrap.Password == "") {
		errs = append(errs, errors.New("BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD must be set together"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unsupported LOG_FORMAT %q (use text or json)", c.Log.Format))
	}
	switch c.Telemetry.Exporter {
	case "stdout", "otlp", "none":
	default:
		errs = append(errs, fmt.Errorf("unsupported OTEL_EXPORTER %q (use stdout, otlp or none)", c.Telemetry.Exporter))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("unsupported LOG_LEVEL %q", l.Level)
	}
	return level, nil
}
