package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeTokenInvalid, "token hash not found")
	if !stderrors.Is(err, New(CodeTokenInvalid, "different message")) {
		t.Fatal("expected errors with equal codes to match")
	}
	if stderrors.Is(err, New(CodeCeremonyExpired, "token hash not found")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("sql: no rows")
	err := Wrap(CodeNotFound, "credential lookup", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(nil); got != CodeUnknown {
		t.Fatalf("GetCode(nil) = %q, want %q", got, CodeUnknown)
	}
	if got := GetCode(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("GetCode(plain) = %q, want %q", got, CodeUnknown)
	}
	err := New(CodeDuplicateCredential, "descriptor already claimed")
	if got := GetCode(err); got != CodeDuplicateCredential {
		t.Fatalf("GetCode = %q, want %q", got, CodeDuplicateCredential)
	}
	wrapped := fmt.Errorf("complete registration: %w", err)
	if got := GetCode(wrapped); got != CodeDuplicateCredential {
		t.Fatalf("GetCode(wrapped) = %q, want %q", got, CodeDuplicateCredential)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeUnauthenticated, http.StatusUnauthorized},
		{CodeCeremonyExpired, http.StatusBadRequest},
		{CodeCredentialNotRecognized, http.StatusBadRequest},
		{CodeVerificationFailed, http.StatusBadRequest},
		{CodeDuplicateCredential, http.StatusBadRequest},
		{CodeTokenInvalid, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeInternal, http.StatusInternalServerError},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("%s.HTTPStatus() = %d, want %d", tc.code, got, tc.want)
		}
	}
}
