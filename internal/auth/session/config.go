package session

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls durable web session lifetimes.
type Config struct {
	TTL           time.Duration `env:"FRAGMENTUI_WEB_SESSION_TTL"            envDefault:"24h"`
	PersistentTTL time.Duration `env:"FRAGMENTUI_WEB_SESSION_PERSISTENT_TTL" envDefault:"720h"`
}

// LoadConfigFromEnv loads session configuration and applies defensive defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.PersistentTTL <= 0 {
		cfg.PersistentTTL = 720 * time.Hour
	}
	return cfg
}
