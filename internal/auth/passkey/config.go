package passkey

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls WebAuthn relying party settings.
type Config struct {
	RPDisplayName string        `env:"FRAGMENTUI_WEBAUTHN_RP_DISPLAY_NAME" envDefault:"FragmentUI"`
	RPID          string        `env:"FRAGMENTUI_WEBAUTHN_RP_ID"           envDefault:"localhost"`
	RPOrigins     []string      `env:"FRAGMENTUI_WEBAUTHN_RP_ORIGINS"      envSeparator:","`
	SessionTTL    time.Duration `env:"FRAGMENTUI_WEBAUTHN_SESSION_TTL"     envDefault:"5m"`
}

// LoadConfigFromEnv returns passkey configuration with defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{
			RPDisplayName: "FragmentUI",
			RPID:          "localhost",
			RPOrigins:     []string{"http://localhost:8080"},
			SessionTTL:    5 * time.Minute,
		}
	}
	if cfg.RPDisplayName == "" {
		cfg.RPDisplayName = "FragmentUI"
	}
	if len(cfg.RPOrigins) == 0 {
		cfg.RPOrigins = []string{"http://localhost:8080"}
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 5 * time.Minute
	}
	return cfg
}
