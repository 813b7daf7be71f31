// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Request-scoped failures. None of them is fatal to the process; the HTTP
// layer maps each to a status code and a reason category.
var (
	// ErrMissingCredentials indicates that no session token was presented.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrInvalidCredentials indicates a token that failed verification.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnknownUser indicates a valid token whose subject no longer exists.
	ErrUnknownUser = errors.New("unknown user")

	// ErrAccountBlocked indicates that the account is suspended by an admin.
	ErrAccountBlocked = errors.New("account blocked")

	// ErrForbidden indicates an insufficient role.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation indicates malformed input (e.g., empty notification message).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIdentityMismatch indicates a realtime handshake claiming another user's identity.
	ErrIdentityMismatch = errors.New("identity mismatch")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates failed login (unknown email or wrong password).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadySolved indicates a repeated correct flag submission.
	ErrAlreadySolved = errors.New("already solved")
)

// Token verification failures. The gateway wraps them into ErrInvalidCredentials.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
)
