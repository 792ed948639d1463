// Package session establishes and resolves durable authenticated web
// sessions backed by the session store and an HTTP cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fragmentui/fragmentui/internal/auth/storage"
	"github.com/fragmentui/fragmentui/internal/auth/user"
	apperrors "github.com/fragmentui/fragmentui/internal/platform/errors"
	"github.com/fragmentui/fragmentui/internal/platform/id"
)

// ErrUnauthenticated reports that the request carries no live session.
var ErrUnauthenticated = apperrors.New(apperrors.CodeUnauthenticated, "not signed in")

// Establisher creates, resolves, and revokes web sessions.
type Establisher struct {
	sessions    storage.WebSessionStore
	users       storage.UserStore
	cfg         Config
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewEstablisher wires an Establisher on its stores. Clock and id generation
// default to the real implementations when nil.
func NewEstablisher(sessions storage.WebSessionStore, users storage.UserStore, cfg Config, clock func() time.Time, idGenerator func() (string, error)) *Establisher {
	if clock == nil {
		clock = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return &Establisher{
		sessions:    sessions,
		users:       users,
		cfg:         cfg,
		clock:       clock,
		idGenerator: idGenerator,
	}
}

// SignIn creates a web session for the user and sets the session cookie.
// Persistent sessions get the longer lifetime and a corresponding cookie
// max-age; otherwise the cookie lasts for the browser session only.
func (e *Establisher) SignIn(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string, persistent bool) (storage.WebSession, error) {
	if e == nil || e.sessions == nil {
		return storage.WebSession{}, fmt.Errorf("session store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.WebSession{}, fmt.Errorf("user id is required")
	}

	sessionID, err := e.idGenerator()
	if err != nil {
		return storage.WebSession{}, fmt.Errorf("generate session id: %w", err)
	}

	ttl := e.cfg.TTL
	if persistent {
		ttl = e.cfg.PersistentTTL
	}
	now := e.clock().UTC()
	webSession := storage.WebSession{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := e.sessions.PutWebSession(ctx, webSession); err != nil {
		return storage.WebSession{}, fmt.Errorf("put web session: %w", err)
	}

	maxAge := 0
	if persistent {
		maxAge = int(ttl / time.Second)
	}
	WriteCookie(w, r, sessionID, maxAge)
	return webSession, nil
}

// Resolve returns the signed-in user for the request's session cookie.
// Missing, expired, and revoked sessions all produce ErrUnauthenticated.
func (e *Establisher) Resolve(ctx context.Context, r *http.Request) (user.User, storage.WebSession, error) {
	if e == nil || e.sessions == nil || e.users == nil {
		return user.User{}, storage.WebSession{}, fmt.Errorf("session store is not configured")
	}

	sessionID, ok := ReadCookie(r)
	if !ok {
		return user.User{}, storage.WebSession{}, ErrUnauthenticated
	}
	webSession, err := e.sessions.GetWebSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, storage.WebSession{}, ErrUnauthenticated
		}
		return user.User{}, storage.WebSession{}, fmt.Errorf("get web session: %w", err)
	}
	now := e.clock().UTC()
	if webSession.RevokedAt != nil || !webSession.ExpiresAt.After(now) {
		return user.User{}, storage.WebSession{}, ErrUnauthenticated
	}

	found, err := e.users.GetUser(ctx, webSession.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, storage.WebSession{}, ErrUnauthenticated
		}
		return user.User{}, storage.WebSession{}, fmt.Errorf("get session user: %w", err)
	}
	return found, webSession, nil
}

// SignOut revokes the request's session and clears the cookie. A request
// without a live session is not an error.
func (e *Establisher) SignOut(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if e == nil || e.sessions == nil {
		return fmt.Errorf("session store is not configured")
	}
	defer ClearCookie(w, r)

	sessionID, ok := ReadCookie(r)
	if !ok {
		return nil
	}
	if err := e.sessions.RevokeWebSession(ctx, sessionID, e.clock().UTC()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("revoke web session: %w", err)
	}
	return nil
}
