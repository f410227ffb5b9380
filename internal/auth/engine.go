// Package auth orchestrates registration and login on top of internal/pake's
// stateless handshake math: it holds the in-memory pending-registration and
// pending-login state a multi-round protocol needs between calls, persists
// completed registrations through a CredentialStore, and seals the refresh
// token a successful login hands back.
//
// This is the server-side half of the flow grounded on
// original_source/parts/auth/src/registration.rs's server_start/server_finish
// and original_source/system/auth/src/login.rs's server_start/server_finish —
// reshaped from opaque_ke's session-state objects onto internal/pake's
// explicit PendingRegistration/K values, since this module rolls its own
// OPAQUE-shaped handshake instead of depending on opaque_ke.
package auth

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/grovedb/grove/internal/errs"
	"github.com/grovedb/grove/internal/pake"
	"github.com/grovedb/grove/internal/token"
	"github.com/grovedb/grove/internal/wire"
)

func randNonce(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("auth: generating nonce: %w", err)
	}
	return b, nil
}

// CredentialStore is the Credentials-keyspace slice of internal/store that
// Engine needs. internal/store implements it; tests substitute an in-memory
// fake, the same split the teacher draws between internal/repository's
// interfaces and their Postgres implementations.
type CredentialStore interface {
	// CreateCredential persists a newly registered user's password file. It
	// returns errs.ErrAlreadyExists if username is already registered.
	CreateCredential(username string, userID [wire.UUIDLen]byte, passwordFile []byte) error

	// GetCredential returns the stored user id and password file for
	// username, or errs.ErrNotFound if there is none.
	GetCredential(username string) (userID [wire.UUIDLen]byte, passwordFile []byte, err error)
}

type pendingLogin struct {
	userID [wire.UUIDLen]byte
	k      [32]byte
}

// Engine is the server side of registration and login. One Engine is shared
// by every connection; its maps are guarded by mu the same way the
// reference pake.Server guards passwordFiles/pendingRegistrations, except
// here the durable half (passwordFiles) lives in CredentialStore instead of
// an in-memory map.
type Engine struct {
	mu                   sync.Mutex
	pendingRegistrations map[string]*pake.PendingRegistration
	pendingLogins        map[string]pendingLogin

	creds  CredentialStore
	tokens *token.Service
	log    *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(creds CredentialStore, tokens *token.Service, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		pendingRegistrations: make(map[string]*pake.PendingRegistration),
		pendingLogins:        make(map[string]pendingLogin),
		creds:                creds,
		tokens:               tokens,
		log:                  log,
	}
}

// RegistrationStart begins registering username, returning the
// registration_start response to send to the client. A later call
// overwrites any still-pending registration for the same username, mirroring
// the reference implementation's map semantics.
func (e *Engine) RegistrationStart(username string) []byte {
	pending := pake.ServerStartRegistration()

	e.mu.Lock()
	e.pendingRegistrations[username] = pending
	e.mu.Unlock()

	return pending.Challenge().Encode()
}

// RegistrationFinish completes registration for username using the
// registration_finish request body, persisting the resulting PasswordFile
// and minting the new user's uuid.
func (e *Engine) RegistrationFinish(username string, body []byte) (userID [wire.UUIDLen]byte, err error) {
	e.mu.Lock()
	pending, ok := e.pendingRegistrations[username]
	if ok {
		delete(e.pendingRegistrations, username)
	}
	e.mu.Unlock()

	if !ok {
		return userID, errs.ErrNoPendingRegistration
	}

	reg, err := pake.DecodeRegistration(body)
	if err != nil {
		return userID, fmt.Errorf("%w: %v", errs.ErrFraming, err)
	}

	if _, _, err := e.creds.GetCredential(username); err == nil {
		return userID, errs.ErrAlreadyExists
	}

	id, err := uuid.NewV4()
	if err != nil {
		return userID, fmt.Errorf("auth: generating user id: %w", err)
	}
	userID = [wire.UUIDLen]byte(id)

	pf := pake.ServerFinishRegistration(pending, reg)
	if err := e.creds.CreateCredential(username, userID, pake.MarshalPasswordFile(pf)); err != nil {
		return userID, err
	}

	e.log.Info("registration complete", zap.String("username", username))
	return userID, nil
}

// LoginStart begins a login for username, returning the login_start
// response to send to the client. It fails with errs.ErrNotFound if
// username was never registered.
func (e *Engine) LoginStart(username string, body []byte) ([]byte, error) {
	userID, rawPF, err := e.creds.GetCredential(username)
	if err != nil {
		return nil, err
	}
	pf, err := pake.UnmarshalPasswordFile(rawPF)
	if err != nil {
		return nil, fmt.Errorf("auth: corrupt password file for %q: %w", username, err)
	}

	loginStart, err := pake.DecodeLoginStart(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrFraming, err)
	}

	challenge, k := pake.ServerBeginLogin(pf, loginStart)

	e.mu.Lock()
	e.pendingLogins[username] = pendingLogin{userID: userID, k: k}
	e.mu.Unlock()

	return challenge.Encode(), nil
}

// LoginFinish completes a login given the login_finish request body (the
// client's fk2 proof), returning a sealed refresh token on success.
func (e *Engine) LoginFinish(username string, body []byte) ([]byte, error) {
	e.mu.Lock()
	pending, ok := e.pendingLogins[username]
	if ok {
		delete(e.pendingLogins, username)
	}
	e.mu.Unlock()

	if !ok {
		return nil, errs.ErrNoPendingLogin
	}

	sessionKey, ok := pake.ServerVerifyLogin(pending.k, body)
	if !ok {
		return nil, fmt.Errorf("%w: login proof rejected", errs.ErrTokenInvalid)
	}

	refresh, err := e.tokens.MintRefresh(wire.TokenActionRefresh, pending.userID)
	if err != nil {
		return nil, err
	}

	sealed, nonce, err := sealRefreshToken(sessionKey, refresh)
	if err != nil {
		return nil, err
	}

	e.log.Info("login complete", zap.String("username", username))
	return wire.EncodeSealedRefresh(sealed, nonce), nil
}

// sealRefreshToken encrypts a refresh token under a key derived from the
// PAKE session key via Blake2b, following
// original_source/system/auth/src/login.rs's server_finish.
func sealRefreshToken(sessionKey, refresh []byte) (ciphertext []byte, nonce [24]byte, err error) {
	h, err := blake2b.New(32, nil)
	if err != nil {
		return nil, nonce, fmt.Errorf("auth: sealing key derivation: %w", err)
	}
	if _, err := h.Write(sessionKey); err != nil {
		return nil, nonce, fmt.Errorf("auth: sealing key derivation: %w", err)
	}
	key := h.Sum(nil)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nonce, fmt.Errorf("auth: building aead: %w", err)
	}
	n, err := randNonce(aead.NonceSize())
	if err != nil {
		return nil, nonce, err
	}
	copy(nonce[:], n)

	return aead.Seal(nil, n, refresh, nil), nonce, nil
}

// UnsealRefreshToken is the client-side inverse of sealRefreshToken,
// exposed so cmd/groveclient can recover its refresh token after login.
func UnsealRefreshToken(sessionKey []byte, sealed []byte, nonce [24]byte) ([]byte, error) {
	h, err := blake2b.New(32, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: sealing key derivation: %w", err)
	}
	if _, err := h.Write(sessionKey); err != nil {
		return nil, fmt.Errorf("auth: sealing key derivation: %w", err)
	}
	key := h.Sum(nil)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("auth: building aead: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce[:], sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh token seal invalid", errs.ErrTokenInvalid)
	}
	return plaintext, nil
}
