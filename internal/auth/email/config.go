package email

import (
	"github.com/caarlos0/env/v11"
)

// Config controls outbound email delivery.
type Config struct {
	SendGridAPIKey string `env:"FRAGMENTUI_SENDGRID_API_KEY"`
	FromName       string `env:"FRAGMENTUI_EMAIL_FROM_NAME"    envDefault:"FragmentUI"`
	FromAddress    string `env:"FRAGMENTUI_EMAIL_FROM_ADDRESS" envDefault:"no-reply@fragmentui.dev"`
	SandboxMode    bool   `env:"FRAGMENTUI_EMAIL_SANDBOX"`
}

// LoadConfigFromEnv loads email configuration and applies defensive defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.FromName == "" {
		cfg.FromName = "FragmentUI"
	}
	if cfg.FromAddress == "" {
		cfg.FromAddress = "no-reply@fragmentui.dev"
	}
	return cfg
}
