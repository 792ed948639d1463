package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fragmentui/fragmentui/internal/auth/storage"
	"github.com/fragmentui/fragmentui/internal/auth/user"
)

type fakeSessionStore struct {
	sessions map[string]storage.WebSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]storage.WebSession)}
}

func (f *fakeSessionStore) PutWebSession(_ context.Context, session storage.WebSession) error {
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionStore) GetWebSession(_ context.Context, id string) (storage.WebSession, error) {
	session, ok := f.sessions[id]
	if !ok {
		return storage.WebSession{}, storage.ErrNotFound
	}
	return session, nil
}

func (f *fakeSessionStore) RevokeWebSession(_ context.Context, id string, revokedAt time.Time) error {
	session, ok := f.sessions[id]
	if !ok || session.RevokedAt != nil {
		return storage.ErrNotFound
	}
	session.RevokedAt = &revokedAt
	f.sessions[id] = session
	return nil
}

func (f *fakeSessionStore) DeleteExpiredWebSessions(_ context.Context, now time.Time) error {
	for id, session := range f.sessions {
		if session.ExpiresAt.Before(now) {
			delete(f.sessions, id)
		}
	}
	return nil
}

type fakeUserStore struct {
	users map[string]user.User
}

func (f *fakeUserStore) PutUser(_ context.Context, u user.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserStore) GetUser(_ context.Context, id string) (user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, storage.ErrNotFound
}

func newTestEstablisher(t *testing.T, now time.Time) (*Establisher, *fakeSessionStore, *fakeUserStore) {
	t.Helper()
	sessions := newFakeSessionStore()
	users := &fakeUserStore{users: map[string]user.User{
		"user-1": {ID: "user-1", Email: "ada@example.com", DisplayName: "Ada"},
	}}
	counter := 0
	establisher := NewEstablisher(sessions, users, Config{
		TTL:           24 * time.Hour,
		PersistentTTL: 720 * time.Hour,
	}, func() time.Time { return now }, func() (string, error) {
		counter++
		return "session-" + string(rune('0'+counter)), nil
	})
	return establisher, sessions, users
}

func requestWithSessionCookie(sessionID string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: sessionID})
	return r
}

func TestSignInCreatesSessionAndCookie(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	establisher, sessions, _ := newTestEstablisher(t, now)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	webSession, err := establisher.SignIn(context.Background(), w, r, "user-1", false)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if !webSession.ExpiresAt.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("expires = %v", webSession.ExpiresAt)
	}
	if _, ok := sessions.sessions[webSession.ID]; !ok {
		t.Fatal("expected session persisted")
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	cookie := cookies[0]
	if cookie.Name != CookieName || cookie.Value != webSession.ID {
		t.Fatalf("cookie = %+v", cookie)
	}
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookie attributes = %+v", cookie)
	}
	if cookie.MaxAge != 0 {
		t.Fatalf("max age = %d, want session cookie", cookie.MaxAge)
	}
}

func TestSignInPersistentUsesLongerTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	establisher, _, _ := newTestEstablisher(t, now)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	webSession, err := establisher.SignIn(context.Background(), w, r, "user-1", true)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if !webSession.ExpiresAt.Equal(now.Add(720 * time.Hour)) {
		t.Fatalf("expires = %v", webSession.ExpiresAt)
	}
	cookie := w.Result().Cookies()[0]
	if cookie.MaxAge != int(720*time.Hour/time.Second) {
		t.Fatalf("max age = %d", cookie.MaxAge)
	}
}

func TestResolveReturnsSignedInUser(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	establisher, _, _ := newTestEstablisher(t, now)

	w := httptest.NewRecorder()
	webSession, err := establisher.SignIn(context.Background(), w, httptest.NewRequest(http.MethodPost, "/", nil), "user-1", false)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	found, resolved, err := establisher.Resolve(context.Background(), requestWithSessionCookie(webSession.ID))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if found.ID != "user-1" || resolved.ID != webSession.ID {
		t.Fatalf("resolved %+v / %+v", found, resolved)
	}
}

func TestResolveWithoutCookieFails(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	establisher, _, _ := newTestEstablisher(t, now)

	if _, _, err := establisher.Resolve(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil)); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolveExpiredSessionFails(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	establisher, sessions, _ := newTestEstablisher(t, now)
	sessions.sessions["stale"] = storage.WebSession{
		ID:        "stale",
		UserID:    "user-1",
		CreatedAt: now.Add(-48 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}

	if _, _, err := establisher.Resolve(context.Background(), requestWithSessionCookie("stale")); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolveRevokedSessionFails(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	establisher, sessions, _ := newTestEstablisher(t, now)
	revoked := now.Add(-time.Minute)
	sessions.sessions["revoked"] = storage.WebSession{
		ID:        "revoked",
		UserID:    "user-1",
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now.Add(time.Hour),
		RevokedAt: &revoked,
	}

	if _, _, err := establisher.Resolve(context.Background(), requestWithSessionCookie("revoked")); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestSignOutRevokesAndClearsCookie(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	establisher, sessions, _ := newTestEstablisher(t, now)

	w := httptest.NewRecorder()
	webSession, err := establisher.SignIn(context.Background(), w, httptest.NewRequest(http.MethodPost, "/", nil), "user-1", false)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	out := httptest.NewRecorder()
	if err := establisher.SignOut(context.Background(), out, requestWithSessionCookie(webSession.ID)); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if sessions.sessions[webSession.ID].RevokedAt == nil {
		t.Fatal("expected session revoked")
	}
	cookie := out.Result().Cookies()[0]
	if cookie.Value != "" || cookie.MaxAge != -1 {
		t.Fatalf("cookie = %+v, want cleared", cookie)
	}
}

func TestSignOutWithoutSessionSucceeds(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	establisher, _, _ := newTestEstablisher(t, now)

	out := httptest.NewRecorder()
	if err := establisher.SignOut(context.Background(), out, httptest.NewRequest(http.MethodPost, "/", nil)); err != nil {
		t.Fatalf("sign out: %v", err)
	}
}
