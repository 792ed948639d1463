// Package user provides auth user management.
package user

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	apperrors "github.com/fragmentui/fragmentui/internal/platform/errors"
	"github.com/fragmentui/fragmentui/internal/platform/id"
)

var (
	// ErrEmptyEmail indicates a missing email address.
	ErrEmptyEmail = apperrors.New(apperrors.CodeUserEmptyEmail, "email is required")
	// ErrInvalidEmail indicates an email address that does not parse.
	ErrInvalidEmail = apperrors.New(apperrors.CodeUserInvalidEmail, "email is invalid")
)

// User represents an authenticated identity record.
type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateUserInput describes the metadata needed to create a user.
type CreateUserInput struct {
	Email       string
	DisplayName string
}

// NormalizeEmail lowercases and validates an email address.
//
// Every directory lookup goes through the same normalization so the address
// stored at signup and the address typed at login compare equal.
func NormalizeEmail(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", ErrEmptyEmail
	}
	parsed, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(parsed.Address), nil
}

// CreateUser creates a durable user identity from validated input.
//
// This is the canonical point where an untrusted email address becomes a
// stable identity used by the credential and session paths.
func CreateUser(input CreateUserInput, now func() time.Time, idGenerator func() (string, error)) (User, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	email, err := NormalizeEmail(input.Email)
	if err != nil {
		return User{}, err
	}

	userID, err := idGenerator()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	createdAt := now().UTC()
	return User{
		ID:          userID,
		Email:       email,
		DisplayName: strings.TrimSpace(input.DisplayName),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}
