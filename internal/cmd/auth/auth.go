// Package auth parses auth command flags and runs the auth server.
package auth

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/caarlos0/env/v11"

	server "github.com/fragmentui/fragmentui/internal/auth/app"
	"github.com/fragmentui/fragmentui/internal/platform/otel"
)

// Config holds auth command configuration.
type Config struct {
	Addr string `env:"FRAGMENTUI_AUTH_HTTP_ADDR" envDefault:"localhost:8080"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The auth HTTP server address")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the auth server.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, "auth")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	return server.Run(ctx, cfg.Addr)
}
