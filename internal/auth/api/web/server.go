// Package web exposes the authentication subsystem over HTTP.
//
// Handlers translate between JSON requests and the ceremony coordinator,
// magic link service, and session establisher. Failures leave the process
// as machine codes only; internal detail never reaches a response body.
package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/fragmentui/fragmentui/internal/auth/passkey"
	"github.com/fragmentui/fragmentui/internal/auth/storage"
	"github.com/fragmentui/fragmentui/internal/auth/user"
	apperrors "github.com/fragmentui/fragmentui/internal/platform/errors"
)

// ceremonyCoordinator is the passkey surface the handlers depend on.
type ceremonyCoordinator interface {
	BeginRegistration(ctx context.Context, userID string, displayName string) (passkey.BeginResult, error)
	CompleteRegistration(ctx context.Context, userID string, requestID string, response []byte, displayName string) (storage.PasskeyCredential, error)
	BeginAssertion(ctx context.Context, email string) (passkey.BeginResult, error)
	CompleteAssertion(ctx context.Context, requestID string, response []byte) (user.User, error)
}

// linkService is the magic link surface the handlers depend on.
type linkService interface {
	RequestLink(ctx context.Context, address string, returnURL string) error
	Redeem(ctx context.Context, token string, address string) (user.User, error)
	SignReturnURL(returnURL string) (string, error)
	VerifyReturnURL(state string) string
}

// sessionManager turns resolved users into authenticated browser sessions.
type sessionManager interface {
	SignIn(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string, persistent bool) (storage.WebSession, error)
	Resolve(ctx context.Context, r *http.Request) (user.User, storage.WebSession, error)
	SignOut(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Server holds the handler dependencies for the auth HTTP surface.
type Server struct {
	passkeys    ceremonyCoordinator
	magicLinks  linkService
	sessions    sessionManager
	credentials storage.PasskeyStore
}

// NewServer wires the HTTP surface on its collaborators.
func NewServer(passkeys ceremonyCoordinator, magicLinks linkService, sessions sessionManager, credentials storage.PasskeyStore) *Server {
	return &Server{
		passkeys:    passkeys,
		magicLinks:  magicLinks,
		sessions:    sessions,
		credentials: credentials,
	}
}

// RegisterRoutes attaches the auth endpoints to a mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/passkey/register/begin", s.handleRegisterBegin)
	mux.HandleFunc("POST /auth/passkey/register/complete", s.handleRegisterComplete)
	mux.HandleFunc("POST /auth/passkey/login/begin", s.handleLoginBegin)
	mux.HandleFunc("POST /auth/passkey/login/complete", s.handleLoginComplete)
	mux.HandleFunc("POST /auth/magic-link/request", s.handleMagicLinkRequest)
	mux.HandleFunc("GET /auth/magic-link/callback", s.handleMagicLinkCallback)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/passkeys", s.handleListPasskeys)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// writeError renders a failure as its machine code and nothing else.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	if code == apperrors.CodeUnknown {
		log.Printf("internal error: %v", err)
		code = apperrors.CodeInternal
	}
	writeJSON(w, code.HTTPStatus(), map[string]string{"error": string(code)})
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := decoder.Decode(out); err != nil {
		return apperrors.New(apperrors.CodeInvalidArgument, "request body is invalid")
	}
	return nil
}
