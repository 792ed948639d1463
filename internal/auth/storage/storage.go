package storage

import (
	"context"
	"time"

	"github.com/fragmentui/fragmentui/internal/auth/user"
	"github.com/fragmentui/fragmentui/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrDuplicate indicates a uniqueness constraint was violated.
var ErrDuplicate = errors.New(errors.CodeDuplicate, "record already exists")

// UserStore persists auth user records.
type UserStore interface {
	PutUser(ctx context.Context, u user.User) error
	GetUser(ctx context.Context, userID string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
}

// PasskeyCredential stores a registered WebAuthn credential for a user.
//
// DescriptorID is the base64url encoding of the raw credential id and is
// unique across all users, not just within one user.
type PasskeyCredential struct {
	DescriptorID     string
	UserID           string
	PublicKey        []byte
	CredentialType   string
	SignatureCounter uint64
	AAGUID           []byte
	UserHandle       []byte
	DisplayName      string
	CreatedAt        time.Time
	LastUsedAt       *time.Time
}

// PasskeyStore persists registered WebAuthn credentials.
type PasskeyStore interface {
	// InsertPasskeyCredential stores a new credential.
	// Returns ErrDuplicate when the descriptor is already claimed by any user.
	InsertPasskeyCredential(ctx context.Context, credential PasskeyCredential) error
	GetPasskeyCredential(ctx context.Context, descriptorID string) (PasskeyCredential, error)
	ListPasskeyCredentials(ctx context.Context, userID string) ([]PasskeyCredential, error)
	// UpdatePasskeyCounter advances the signature counter and last-used time.
	// The update is conditional on the previously observed counter so two
	// near-simultaneous assertions cannot silently lose an update; returns
	// ErrNotFound when no row matched.
	UpdatePasskeyCounter(ctx context.Context, descriptorID string, previous uint64, next uint64, usedAt time.Time) error
}

// MagicLinkToken represents a single-use emailed sign-in token.
//
// Only the one-way hash of the secret is ever stored.
type MagicLinkToken struct {
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// MagicLinkStore persists magic link tokens.
type MagicLinkStore interface {
	PutMagicLinkToken(ctx context.Context, token MagicLinkToken) error
	// GetMagicLinkToken returns the most recently created token for the user
	// matching the hash.
	GetMagicLinkToken(ctx context.Context, userID string, tokenHash string) (MagicLinkToken, error)
	// ConsumeMagicLinkToken marks the token used. The transition is a single
	// conditional update on used_at being unset; ErrNotFound means the token
	// was missing or already redeemed.
	ConsumeMagicLinkToken(ctx context.Context, tokenHash string, usedAt time.Time) error
}

// WebSession stores a durable authenticated browser session.
type WebSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// WebSessionStore persists authenticated web sessions.
type WebSessionStore interface {
	PutWebSession(ctx context.Context, session WebSession) error
	GetWebSession(ctx context.Context, id string) (WebSession, error)
	RevokeWebSession(ctx context.Context, id string, revokedAt time.Time) error
	DeleteExpiredWebSessions(ctx context.Context, now time.Time) error
}
