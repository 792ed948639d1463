// Package auth defines the identity boundary for the application.
//
// It is the single place that owns user lifecycle, passkey credentials,
// magic link tokens, and browser sessions so the rest of the system can
// depend on stable user IDs instead of re-implementing identity rules.
//
// Subpackages:
//   - app: auth server wiring and lifecycle
//   - api/web: HTTP handlers for ceremonies, magic links, and sessions
//   - passkey: WebAuthn registration and assertion ceremonies
//   - magiclink: emailed single-use sign-in tokens
//   - challenge: ephemeral take-once ceremony state
//   - session: browser session cookies and resolution
//   - email: outbound message dispatch
//   - storage: persistence interfaces and SQLite implementations
//   - user: user domain model and helpers
package auth
