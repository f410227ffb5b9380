// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across the wire, token, auth and store layers. Every
// operation ultimately collapses to one opaque failure at the wire boundary
// (internal/dispatch); internal callers branch on these with errors.Is.
var (
	// ErrFraming indicates a request frame failed length/bounds validation
	// before any state was touched.
	ErrFraming = errors.New("framing error")

	// ErrTokenInvalid indicates a token of the wrong length, a bad MAC, an
	// expired token, or a token/operation action mismatch.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrNoPendingLogin indicates login_finish arrived with no matching
	// login_start state.
	ErrNoPendingLogin = errors.New("no pending login")

	// ErrNoPendingRegistration indicates registration_finish arrived with no
	// matching registration_start state.
	ErrNoPendingRegistration = errors.New("no pending registration")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g. a
	// username already registered).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates an access-rule probe missed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStore indicates the underlying transaction failed for reasons other
	// than authorization (I/O, corruption, resource exhaustion).
	ErrStore = errors.New("store error")

	// ErrReserved indicates an action code with no defined semantics in this
	// spec (group_assign, group_drop, secret_get, secret_put).
	ErrReserved = errors.New("reserved operation")

	// ErrUnknownAction indicates an action byte outside the closed set.
	ErrUnknownAction = errors.New("unknown action")
)
