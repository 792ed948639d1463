// Package server composes and runs the auth process boundary.
//
// It wires the SQLite store, the challenge store, the passkey coordinator,
// the magic link service, and the session establisher behind one HTTP
// listener so every identity decision is made from one source of truth.
package server
