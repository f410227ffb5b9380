// Package dispatch is the thin glue layer C5 (spec.md §2): it reads the
// leading action byte of a request body, routes to the matching
// internal/core.Core method, and collapses whatever that method returns
// into the single opaque failure kind spec.md §7 requires at the transport
// boundary. It never parses a frame itself beyond the action byte; codec
// work stays inside internal/wire and internal/core.
package dispatch

import (
	"errors"

	"github.com/grovedb/grove/internal/errs"
	"github.com/grovedb/grove/internal/wire"
)

// core is the subset of internal/core.Core's surface the router calls.
// Declared here, satisfied there, so dispatch can be tested against a fake.
type core interface {
	AccessGet(body []byte) ([]byte, error)
	GroupCreate(body []byte) ([]byte, error)
	LoginFinish(body []byte) ([]byte, error)
	LoginStart(body []byte) ([]byte, error)
	RegistrationFinish(body []byte) ([]byte, error)
	RegistrationStart(body []byte) ([]byte, error)
	StoragePut(body []byte) ([]byte, error)
	StorageQuery(body []byte) ([]byte, error)
	Reserved(body []byte) ([]byte, error)
}

// Router selects an operation by the leading action byte of a request body
// and calls it with the remainder.
type Router struct {
	core core
}

// NewRouter constructs a Router over a core implementation.
func NewRouter(c core) *Router {
	return &Router{core: c}
}

// Dispatch routes one request body to its operation and returns the raw
// response bytes. Callers that need the single-failure-kind framing
// spec.md §7 describes should use Handle instead.
func (r *Router) Dispatch(body []byte) ([]byte, error) {
	if len(body) < 1 {
		return nil, errs.ErrFraming
	}
	action, rest := body[0], body[1:]

	switch action {
	case wire.ActionAccessGet:
		return r.core.AccessGet(rest)
	case wire.ActionGroupCreate:
		return r.core.GroupCreate(rest)
	case wire.ActionLoginFinish:
		return r.core.LoginFinish(rest)
	case wire.ActionLoginStart:
		return r.core.LoginStart(rest)
	case wire.ActionRegistrationFinish:
		return r.core.RegistrationFinish(rest)
	case wire.ActionRegistrationStart:
		return r.core.RegistrationStart(rest)
	case wire.ActionStoragePut:
		return r.core.StoragePut(rest)
	case wire.ActionStorageQuery:
		return r.core.StorageQuery(rest)
	case wire.ActionGroupAssign, wire.ActionGroupDrop, wire.ActionSecretGet, wire.ActionSecretPut:
		return r.core.Reserved(rest)
	default:
		return nil, errs.ErrUnknownAction
	}
}

// statusOK and statusError are the response envelope's leading byte
// (spec.md §7: "a single server-error status" at the transport boundary;
// detailed kinds are logged, never returned).
const (
	statusOK    byte = 0
	statusError byte = 1
)

// Handle runs Dispatch and folds the result into the wire envelope: a
// status byte followed by either the response body or nothing. The
// specific error is returned alongside for the caller to log, never to
// encode into the response.
func (r *Router) Handle(body []byte) (response []byte, opErr error) {
	resp, err := r.Dispatch(body)
	if err != nil {
		return []byte{statusError}, err
	}
	return append([]byte{statusOK}, resp...), nil
}

// classify maps an operation error to the §7 error kind for logging only;
// it is never encoded onto the wire.
func classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errs.ErrFraming):
		return "framing"
	case errors.Is(err, errs.ErrTokenInvalid):
		return "token"
	case errors.Is(err, errs.ErrNoPendingLogin), errors.Is(err, errs.ErrNoPendingRegistration):
		return "auth_state"
	case errors.Is(err, errs.ErrUnauthorized):
		return "authorization"
	case errors.Is(err, errs.ErrAlreadyExists), errors.Is(err, errs.ErrNotFound):
		return "store"
	case errors.Is(err, errs.ErrReserved):
		return "reserved"
	case errors.Is(err, errs.ErrUnknownAction):
		return "unknown_action"
	default:
		return "store"
	}
}
