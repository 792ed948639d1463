// Package errors provides structured error handling with machine codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Auth errors
	CodeUnauthenticated         Code = "UNAUTHENTICATED"
	CodeCeremonyExpired         Code = "CEREMONY_EXPIRED"
	CodeCredentialNotRecognized Code = "CREDENTIAL_NOT_RECOGNIZED"
	CodeVerificationFailed      Code = "VERIFICATION_FAILED"
	CodeDuplicateCredential     Code = "DUPLICATE_CREDENTIAL"
	CodeTokenInvalid            Code = "TOKEN_INVALID"

	// User errors
	CodeUserEmptyEmail   Code = "USER_EMPTY_EMAIL"
	CodeUserInvalidEmail Code = "USER_INVALID_EMAIL"

	// Request errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Storage errors
	CodeNotFound  Code = "NOT_FOUND"
	CodeDuplicate Code = "DUPLICATE"

	// Internal errors
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeCeremonyExpired,
		CodeCredentialNotRecognized,
		CodeVerificationFailed,
		CodeDuplicateCredential,
		CodeTokenInvalid,
		CodeUserEmptyEmail,
		CodeUserInvalidEmail,
		CodeInvalidArgument,
		CodeDuplicate:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
