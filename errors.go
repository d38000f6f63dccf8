package users

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "invalid_credentials"
	TextCodeTokenExpired       = "token_expired"
	TextCodeTokenMalformed     = "token_malformed"
	TextCodeMissingSigningKey  = "missing_signing_key"
	TextCodeInvalidHash        = "invalid_password_hash"
	TextCodeUserNotFound       = "user_not_found"
)

// ErrMissingSigningKey is returned when no token signing key is configured.
// This is fatal at startup; the process must not serve traffic without it.
var ErrMissingSigningKey = errors.New("token signing key is not configured", errors.CategoryInternal).
	WithTextCode(TextCodeMissingSigningKey).
	WithCode(errors.CodeInternal)

// ErrInvalidCredentials is the single error for unknown identifiers and wrong
// passwords. Distinguishing the two would enable account enumeration.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when a token's expiry has elapsed.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that fail to decode or whose
// signature does not verify.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidPasswordHash is returned when a stored hash is structurally
// malformed. It should never occur for correctly stored records.
var ErrInvalidPasswordHash = errors.New("stored password hash is malformed", errors.CategoryInternal).
	WithTextCode(TextCodeInvalidHash).
	WithCode(errors.CodeInternal)

// ErrMismatchedHashAndPassword is the internal mismatch signal from the
// password comparison. Callers collapse it into ErrInvalidCredentials before
// it crosses the HTTP boundary.
var ErrMismatchedHashAndPassword = errors.New("password does not match", errors.CategoryAuth).
	WithTextCode("password_mismatch").
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before they reach bcrypt.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// ErrUserNotFound is the not-found error for user record lookups.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// ErrUnableToDecodeSession unable to decode claims from a parsed token
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
