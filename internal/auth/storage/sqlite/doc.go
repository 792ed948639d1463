// Package sqlite provides SQLite-backed auth persistence.
//
// It is the default on-disk identity store used by the auth service and the
// command tooling that exercises authentication flows.
package sqlite
