package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fragmentui/fragmentui/internal/auth/api/web"
	"github.com/fragmentui/fragmentui/internal/auth/challenge"
	"github.com/fragmentui/fragmentui/internal/auth/email"
	"github.com/fragmentui/fragmentui/internal/auth/magiclink"
	"github.com/fragmentui/fragmentui/internal/auth/passkey"
	"github.com/fragmentui/fragmentui/internal/auth/session"
	"github.com/fragmentui/fragmentui/internal/auth/storage"
	authsqlite "github.com/fragmentui/fragmentui/internal/auth/storage/sqlite"
	"github.com/fragmentui/fragmentui/internal/auth/user"
)

// sessionCleanupInterval is how often expired web sessions are purged.
const sessionCleanupInterval = 15 * time.Minute

// Server hosts the authentication HTTP service.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *authsqlite.Store
}

// New creates a configured auth server listening on the provided address.
func New(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	store, err := openAuthStore()
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	if err := bootstrapUsers(store, os.Getenv("FRAGMENTUI_BOOTSTRAP_USERS")); err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	challenges := openChallengeStore()

	passkeys, err := passkey.NewCoordinator(passkey.LoadConfigFromEnv(), challenges, store, store)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("configure passkey coordinator: %w", err)
	}
	magicLinks := magiclink.NewService(magiclink.LoadConfigFromEnv(), store, store, openDispatcher())
	sessions := session.NewEstablisher(store, store, session.LoadConfigFromEnv(), nil, nil)

	mux := http.NewServeMux()
	web.NewServer(passkeys, magicLinks, sessions, store).RegisterRoutes(mux)

	return &Server{
		listener:   listener,
		httpServer: &http.Server{Handler: mux},
		store:      store,
	}, nil
}

// Addr returns the listener address for the auth server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves an auth server until the context ends.
func Run(ctx context.Context, addr string) error {
	server, err := New(addr)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the auth server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeStore()

	go s.cleanupExpiredSessions(serverCtx)

	log.Printf("auth server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		_ = s.httpServer.Shutdown(shutdownCtx)
		err := <-serveErr
		if err == nil || err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	case err := <-serveErr:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}

// cleanupExpiredSessions purges expired web sessions on a fixed interval
// until the context ends.
func (s *Server) cleanupExpiredSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.store.DeleteExpiredWebSessions(ctx, now.UTC()); err != nil {
				log.Printf("delete expired web sessions: %v", err)
			}
		}
	}
}

func openAuthStore() (*authsqlite.Store, error) {
	path := strings.TrimSpace(os.Getenv("FRAGMENTUI_AUTH_DB_PATH"))
	if path == "" {
		path = filepath.Join("data", "auth.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := authsqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open auth sqlite store: %w", err)
	}
	return store, nil
}

// openChallengeStore selects the ceremony challenge backend. A Redis
// address shares challenges across replicas; without one the in-process
// store serves a single instance.
func openChallengeStore() challenge.Store {
	addr := strings.TrimSpace(os.Getenv("FRAGMENTUI_REDIS_ADDR"))
	if addr == "" {
		return challenge.NewMemoryStore()
	}
	return challenge.NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}))
}

// openDispatcher selects the email backend. Without a SendGrid key the
// dispatcher logs outbound mail instead of sending it.
func openDispatcher() email.Dispatcher {
	cfg := email.LoadConfigFromEnv()
	if strings.TrimSpace(cfg.SendGridAPIKey) == "" {
		return email.LogDispatcher{}
	}
	return email.NewSendGridDispatcher(cfg)
}

// bootstrapUsers seeds directory entries from a comma-separated list of
// "email:display name" pairs. Passkey registration and magic links only
// serve known users, so a fresh deployment needs at least one seed to be
// usable. Entries that already exist or do not parse are skipped.
func bootstrapUsers(store *authsqlite.Store, entries string) error {
	for _, entry := range strings.Split(entries, ",") {
		address, displayName, _ := strings.Cut(strings.TrimSpace(entry), ":")
		normalized, err := user.NormalizeEmail(address)
		if err != nil {
			continue
		}
		_, err = store.GetUserByEmail(context.Background(), normalized)
		if err == nil {
			continue
		}
		if err != storage.ErrNotFound {
			return fmt.Errorf("lookup bootstrap user: %w", err)
		}
		created, err := user.CreateUser(user.CreateUserInput{Email: normalized, DisplayName: displayName}, nil, nil)
		if err != nil {
			return fmt.Errorf("create bootstrap user: %w", err)
		}
		if err := store.PutUser(context.Background(), created); err != nil {
			return fmt.Errorf("store bootstrap user: %w", err)
		}
	}
	return nil
}

func (s *Server) closeStore() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close auth store: %v", err)
		}
	}
}
