package user

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Ada@Example.COM ")
	if err != nil {
		t.Fatalf("normalize email: %v", err)
	}
	if got != "ada@example.com" {
		t.Fatalf("normalized = %q, want %q", got, "ada@example.com")
	}
}

func TestNormalizeEmailEmpty(t *testing.T) {
	if _, err := NormalizeEmail("   "); !errors.Is(err, ErrEmptyEmail) {
		t.Fatalf("expected ErrEmptyEmail, got %v", err)
	}
}

func TestNormalizeEmailInvalid(t *testing.T) {
	if _, err := NormalizeEmail("not-an-address"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestCreateUser(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	created, err := CreateUser(
		CreateUserInput{Email: "Ada@example.com", DisplayName: " Ada "},
		func() time.Time { return fixed },
		func() (string, error) { return "user-1", nil },
	)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.ID != "user-1" {
		t.Fatalf("id = %q, want %q", created.ID, "user-1")
	}
	if created.Email != "ada@example.com" {
		t.Fatalf("email = %q", created.Email)
	}
	if created.DisplayName != "Ada" {
		t.Fatalf("display name = %q", created.DisplayName)
	}
	if !created.CreatedAt.Equal(fixed) || !created.UpdatedAt.Equal(fixed) {
		t.Fatalf("timestamps = %v/%v, want %v", created.CreatedAt, created.UpdatedAt, fixed)
	}
}

func TestCreateUserInvalidEmail(t *testing.T) {
	if _, err := CreateUser(CreateUserInput{Email: "nope"}, nil, nil); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}
