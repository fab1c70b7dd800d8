package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/medieye/med-reminder/internal/domain"
)

const (
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"
)

// KeyFiles locates the VAPID key pair.
type KeyFiles struct {
	VAPIDPrivateKeyFile string `envconfig:"VAPID_PRIVATE_KEY_FILE" default:"private_key.pem"`
	VAPIDPublicKeyFile  string `envconfig:"VAPID_PUBLIC_KEY_FILE" default:"public_key.pem"`
}

// LoadKeyFiles reads only the key file locations, for tooling that runs
// without the rest of the configuration.
func LoadKeyFiles() (KeyFiles, error) {
	var kf KeyFiles
	if err := envconfig.Process("", &kf); err != nil {
		return kf, &domain.ConfigurationError{Field: "environment", Err: err}
	}
	return kf, nil
}

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error

	KeyFiles
	PushTTL time.Duration `envconfig:"PUSH_TTL" default:"24h"`

	SenderEmail    string `envconfig:"SENDER_EMAIL" required:"true"`
	SenderPassword string `envconfig:"SENDER_PASSWORD"`
	EmailProvider  string `envconfig:"EMAIL_PROVIDER" default:"smtp"` // smtp|resend
	SMTPHost       string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort       int    `envconfig:"SMTP_PORT" default:"587"`
	ResendAPIKey   string `envconfig:"RESEND_API_KEY"`
	ResendFrom     string `envconfig:"RESEND_FROM"`
	EmailRate      int    `envconfig:"EMAIL_RATE_PER_SEC" default:"2"`

	ScheduleFile string `envconfig:"SCHEDULE_FILE"`
	Timezone     string `envconfig:"TIMEZONE" default:"Local"`

	NumWorkers  int           `envconfig:"NUM_WORKERS" default:"4"`
	SendTimeout time.Duration `envconfig:"SEND_TIMEOUT" default:"15s"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`
}

// Load reads environment variables into Config and validates them.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &domain.ConfigurationError{Field: "environment", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.SenderEmail) == "" {
		return &domain.ConfigurationError{Field: "SENDER_EMAIL", Err: errors.New("is required")}
	}

	switch c.EmailProvider {
	case ProviderSMTP:
		if c.SenderPassword == "" {
			return &domain.ConfigurationError{Field: "SENDER_PASSWORD", Err: errors.New("is required for smtp")}
		}
	case ProviderResend:
		if c.ResendAPIKey == "" {
			return &domain.ConfigurationError{Field: "RESEND_API_KEY", Err: errors.New("is required for resend")}
		}
	default:
		return &domain.ConfigurationError{Field: "EMAIL_PROVIDER", Err: fmt.Errorf("unknown provider %q", c.EmailProvider)}
	}

	if c.NumWorkers < 1 {
		return &domain.ConfigurationError{Field: "NUM_WORKERS", Err: fmt.Errorf("must be at least 1, got %d", c.NumWorkers)}
	}
	if c.SendTimeout <= 0 {
		return &domain.ConfigurationError{Field: "SEND_TIMEOUT", Err: fmt.Errorf("must be positive, got %s", c.SendTimeout)}
	}
	return nil
}

// Location resolves TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "TIMEZONE", Err: err}
	}
	return loc, nil
}

// FromAddress is the reminder sender for the active provider.
func (c *Config) FromAddress() string {
	if c.EmailProvider == ProviderResend && c.ResendFrom != "" {
		return c.ResendFrom
	}
	return c.SenderEmail
}
