// Package challenge stores short-lived ceremony state keyed by request id.
//
// Entries are written at the start of a two-phase ceremony and taken exactly
// once at completion. A Take removes the entry, so a replayed completion for
// the same request id always misses.
package challenge

import (
	"context"
	"time"

	apperrors "github.com/fragmentui/fragmentui/internal/platform/errors"
)

// Namespaces partition challenges so a registration challenge can never
// complete an assertion ceremony.
const (
	NamespaceRegistration = "registration"
	NamespaceAssertion    = "assertion"
)

// ErrNotFound reports that no live challenge exists for the request id. It
// covers missing, expired, and already-taken entries alike.
var ErrNotFound = apperrors.New(apperrors.CodeCeremonyExpired, "challenge not found")

// Store holds pending ceremony payloads until they are taken or expire.
type Store interface {
	// Put stores a payload under the namespace and request id, replacing any
	// previous entry for the same key.
	Put(ctx context.Context, namespace string, requestID string, payload []byte, ttl time.Duration) error

	// Take atomically removes and returns the payload for the request id.
	// At most one caller observes the payload; every other caller and every
	// call after expiry gets ErrNotFound.
	Take(ctx context.Context, namespace string, requestID string) ([]byte, error)
}
