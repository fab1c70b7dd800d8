package config

import (
	"errors"
	"testing"
	"time"

	"github.com/medieye/med-reminder/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SENDER_EMAIL", "reminders@example.com")
	t.Setenv("SENDER_PASSWORD", "app-password")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != "8080" || cfg.SMTPHost != "smtp.gmail.com" || cfg.SMTPPort != 587 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.NumWorkers != 4 || cfg.SendTimeout != 15*time.Second || cfg.PushTTL != 24*time.Hour {
		t.Errorf("unexpected worker defaults: %+v", cfg)
	}
	if cfg.VAPIDPrivateKeyFile != "private_key.pem" || cfg.VAPIDPublicKeyFile != "public_key.pem" {
		t.Errorf("unexpected key file defaults: %+v", cfg)
	}
	if cfg.FromAddress() != "reminders@example.com" {
		t.Errorf("unexpected from address %q", cfg.FromAddress())
	}
}

func TestLoadKeyFiles(t *testing.T) {
	t.Setenv("VAPID_PRIVATE_KEY_FILE", "/etc/reminder/private.txt")

	kf, err := LoadKeyFiles()
	if err != nil {
		t.Fatal(err)
	}
	if kf.VAPIDPrivateKeyFile != "/etc/reminder/private.txt" || kf.VAPIDPublicKeyFile != "public_key.pem" {
		t.Errorf("unexpected key files %+v", kf)
	}
}

func TestLoad_RequiresSender(t *testing.T) {
	t.Setenv("SENDER_EMAIL", "")

	_, err := Load()
	var cerr *domain.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			SenderEmail:    "a@b.com",
			SenderPassword: "pw",
			EmailProvider:  ProviderSMTP,
			NumWorkers:     1,
			SendTimeout:    time.Second,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"smtp without password", func(c *Config) { c.SenderPassword = "" }, "SENDER_PASSWORD"},
		{"resend without key", func(c *Config) { c.EmailProvider = ProviderResend }, "RESEND_API_KEY"},
		{"unknown provider", func(c *Config) { c.EmailProvider = "carrier-pigeon" }, "EMAIL_PROVIDER"},
		{"no workers", func(c *Config) { c.NumWorkers = 0 }, "NUM_WORKERS"},
		{"zero timeout", func(c *Config) { c.SendTimeout = 0 }, "SEND_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)

			var cerr *domain.ConfigurationError
			if err := c.Validate(); !errors.As(err, &cerr) || cerr.Field != tt.field {
				t.Errorf("expected ConfigurationError on %s, got %v", tt.field, err)
			}
		})
	}

	c := valid()
	if err := c.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestLocation(t *testing.T) {
	c := Config{Timezone: "Asia/Kolkata"}
	loc, err := c.Location()
	if err != nil {
		t.Fatal(err)
	}
	if loc.String() != "Asia/Kolkata" {
		t.Errorf("unexpected location %s", loc)
	}

	c.Timezone = "Nowhere/Special"
	if _, err := c.Location(); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
