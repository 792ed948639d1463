// Package magiclink issues and redeems single-use, time-boxed sign-in
// tokens sent over email.
package magiclink

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fragmentui/fragmentui/internal/auth/email"
	"github.com/fragmentui/fragmentui/internal/auth/storage"
	"github.com/fragmentui/fragmentui/internal/auth/user"
	apperrors "github.com/fragmentui/fragmentui/internal/platform/errors"
)

// ErrTokenInvalid is the single outward failure for every redemption
// problem. Unknown email, wrong secret, an already-used token, and an
// expired token are deliberately indistinguishable to the caller.
var ErrTokenInvalid = apperrors.New(apperrors.CodeTokenInvalid, "magic link is invalid")

const secretLength = 32

const dispatchTimeout = 30 * time.Second

// Service issues magic links and redeems them into resolved users.
type Service struct {
	users      storage.UserStore
	tokens     storage.MagicLinkStore
	dispatcher email.Dispatcher
	cfg        Config
	clock      func() time.Time
	newSecret  func() ([]byte, error)
}

// NewService wires a Service on its stores and the outbound dispatcher.
func NewService(cfg Config, users storage.UserStore, tokens storage.MagicLinkStore, dispatcher email.Dispatcher) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		dispatcher: dispatcher,
		cfg:        cfg,
		clock:      time.Now,
		newSecret:  randomSecret,
	}
}

func randomSecret() ([]byte, error) {
	secret := make([]byte, secretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// RequestLink issues a sign-in link for the address and dispatches it.
//
// The method succeeds outwardly for unknown addresses exactly as it does for
// known ones. The secret and its hash are computed before the directory
// lookup so both paths do the same work, and dispatch happens on a goroutine
// so delivery latency never shapes the response either.
func (s *Service) RequestLink(ctx context.Context, address string, returnURL string) error {
	if s == nil || s.users == nil || s.tokens == nil || s.dispatcher == nil {
		return fmt.Errorf("magic link service is not configured")
	}

	secret, err := s.newSecret()
	if err != nil {
		return fmt.Errorf("generate magic link secret: %w", err)
	}
	tokenHash := hashSecret(secret)

	normalized, err := user.NormalizeEmail(address)
	if err != nil {
		return nil
	}
	found, err := s.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil
		}
		return fmt.Errorf("get user by email: %w", err)
	}

	now := s.clock().UTC()
	if err := s.tokens.PutMagicLinkToken(ctx, storage.MagicLinkToken{
		UserID:    found.ID,
		TokenHash: tokenHash,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}); err != nil {
		return fmt.Errorf("store magic link token: %w", err)
	}

	callbackURL, err := s.buildCallbackURL(secret, normalized, returnURL)
	if err != nil {
		// No URL means nothing to send; the caller still sees success.
		return nil
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		message := email.Message{
			ToAddress: normalized,
			Subject:   "Sign in to FragmentUI",
			TextBody:  "Use this link to sign in. It expires in 15 minutes and works once.\n\n" + callbackURL,
			HTMLBody:  fmt.Sprintf(`<p>Use this link to sign in. It expires in 15 minutes and works once.</p><p><a href=%q>Sign in</a></p>`, callbackURL),
		}
		if err := s.dispatcher.Send(sendCtx, message); err != nil {
			log.Printf("dispatch magic link email: %v", err)
		}
	}()
	return nil
}

// Redeem exchanges a presented secret for the owning user, marking the token
// used. The used_at transition is a single conditional update so a race
// between two redemptions admits exactly one.
func (s *Service) Redeem(ctx context.Context, token string, address string) (user.User, error) {
	if s == nil || s.users == nil || s.tokens == nil {
		return user.User{}, fmt.Errorf("magic link service is not configured")
	}

	normalized, err := user.NormalizeEmail(address)
	if err != nil {
		return user.User{}, ErrTokenInvalid
	}
	found, err := s.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if err == storage.ErrNotFound {
			return user.User{}, ErrTokenInvalid
		}
		return user.User{}, fmt.Errorf("get user by email: %w", err)
	}

	secret, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil || len(secret) != secretLength {
		return user.User{}, ErrTokenInvalid
	}
	tokenHash := hashSecret(secret)

	stored, err := s.tokens.GetMagicLinkToken(ctx, found.ID, tokenHash)
	if err != nil {
		if err == storage.ErrNotFound {
			return user.User{}, ErrTokenInvalid
		}
		return user.User{}, fmt.Errorf("get magic link token: %w", err)
	}
	now := s.clock().UTC()
	if stored.UsedAt != nil || now.After(stored.ExpiresAt) {
		return user.User{}, ErrTokenInvalid
	}

	if err := s.tokens.ConsumeMagicLinkToken(ctx, tokenHash, now); err != nil {
		if err == storage.ErrNotFound {
			return user.User{}, ErrTokenInvalid
		}
		return user.User{}, fmt.Errorf("consume magic link token: %w", err)
	}
	return found, nil
}

func hashSecret(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:])
}

func (s *Service) buildCallbackURL(secret []byte, address string, returnURL string) (string, error) {
	base := strings.TrimSpace(s.cfg.BaseURL)
	if base == "" {
		return "", fmt.Errorf("base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("token", base64.RawURLEncoding.EncodeToString(secret))
	query.Set("email", address)
	if state, err := s.SignReturnURL(returnURL); err == nil && state != "" {
		query.Set("state", state)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// SignReturnURL wraps a relative return path in a signed claim so the
// callback cannot be steered to an attacker-chosen destination. Absolute
// URLs and unsigned deployments produce no state at all.
func (s *Service) SignReturnURL(returnURL string) (string, error) {
	returnURL = strings.TrimSpace(returnURL)
	if returnURL == "" || s.cfg.SigningSecret == "" {
		return "", nil
	}
	if !strings.HasPrefix(returnURL, "/") || strings.HasPrefix(returnURL, "//") {
		return "", fmt.Errorf("return url must be a relative path")
	}
	claims := jwt.MapClaims{
		"return_url": returnURL,
		"exp":        s.clock().UTC().Add(s.cfg.TTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.SigningSecret))
}

// VerifyReturnURL recovers the return path from a signed state parameter.
// Anything that does not verify cleanly yields an empty path.
func (s *Service) VerifyReturnURL(state string) string {
	state = strings.TrimSpace(state)
	if state == "" || s.cfg.SigningSecret == "" {
		return ""
	}
	parsed, err := jwt.Parse(state, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.cfg.SigningSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return s.clock().UTC() }))
	if err != nil || !parsed.Valid {
		return ""
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	returnURL, _ := claims["return_url"].(string)
	if !strings.HasPrefix(returnURL, "/") || strings.HasPrefix(returnURL, "//") {
		return ""
	}
	return returnURL
}
