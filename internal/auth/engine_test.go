package auth_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovedb/grove/internal/auth"
	"github.com/grovedb/grove/internal/errs"
	"github.com/grovedb/grove/internal/pake"
	"github.com/grovedb/grove/internal/token"
	"github.com/grovedb/grove/internal/wire"
)

// fakeCredentialStore is an in-memory stand-in for internal/store's
// Credentials keyspace, enough to exercise internal/auth in isolation.
type fakeCredentialStore struct {
	mu    sync.Mutex
	byUsr map[string][wire.UUIDLen]byte
	pf    map[string][]byte
}

func newFakeCredentialStore() *fakeCredentialStore {
	return &fakeCredentialStore{
		byUsr: make(map[string][wire.UUIDLen]byte),
		pf:    make(map[string][]byte),
	}
}

func (f *fakeCredentialStore) CreateCredential(username string, userID [wire.UUIDLen]byte, passwordFile []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.pf[username]; exists {
		return errs.ErrAlreadyExists
	}
	f.byUsr[username] = userID
	f.pf[username] = passwordFile
	return nil
}

func (f *fakeCredentialStore) GetCredential(username string) (userID [wire.UUIDLen]byte, passwordFile []byte, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pf, ok := f.pf[username]
	if !ok {
		return userID, nil, errs.ErrNotFound
	}
	return f.byUsr[username], pf, nil
}

func newEngine(t *testing.T) (*auth.Engine, *fakeCredentialStore) {
	t.Helper()
	tokens, err := token.NewService([]byte("a shared deployment mac secret"), time.Hour)
	require.NoError(t, err)
	creds := newFakeCredentialStore()
	return auth.NewEngine(creds, tokens, nil), creds
}

func register(t *testing.T, e *auth.Engine, username, password string) [wire.UUIDLen]byte {
	t.Helper()

	challengeBytes := e.RegistrationStart(username)
	challenge, err := pake.DecodeRegistrationChallenge(challengeBytes)
	require.NoError(t, err)

	reg, err := pake.ClientRegister(challenge, password)
	require.NoError(t, err)

	userID, err := e.RegistrationFinish(username, reg.Encode())
	require.NoError(t, err)
	return userID
}

func TestRegistrationThenLoginProducesUsableRefreshToken(t *testing.T) {
	e, _ := newEngine(t)
	const username = "alice"
	const password = "correct horse battery staple"

	userID := register(t, e, username, password)

	client := pake.NewClient()
	loginStart := client.StartLogin(password)

	challengeBytes, err := e.LoginStart(username, loginStart.Encode())
	require.NoError(t, err)

	challenge, err := pake.DecodeLoginChallenge(challengeBytes)
	require.NoError(t, err)

	sessionKey, fk2, err := client.FinishLogin(challenge, password)
	require.NoError(t, err)

	sealedResp, err := e.LoginFinish(username, fk2)
	require.NoError(t, err)

	ciphertext, nonce, err := wire.DecodeSealedRefresh(sealedResp)
	require.NoError(t, err)

	refresh, err := auth.UnsealRefreshToken(sessionKey, ciphertext, nonce)
	require.NoError(t, err)
	require.Len(t, refresh, wire.RefreshTokenLen)

	decoded, err := wire.DecodeRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, wire.TokenActionRefresh, decoded.Action)
	assert.Equal(t, userID, decoded.User)
}

func TestRegistrationFinishRejectsDuplicateUsername(t *testing.T) {
	e, _ := newEngine(t)
	const username = "alice"
	const password = "correct horse battery staple"

	register(t, e, username, password)

	challengeBytes := e.RegistrationStart(username)
	challenge, err := pake.DecodeRegistrationChallenge(challengeBytes)
	require.NoError(t, err)
	reg, err := pake.ClientRegister(challenge, password)
	require.NoError(t, err)

	_, err = e.RegistrationFinish(username, reg.Encode())
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestRegistrationFinishRejectsMissingPendingState(t *testing.T) {
	e, _ := newEngine(t)

	challenge := pake.ServerStartRegistration().Challenge()
	reg, err := pake.ClientRegister(challenge, "whatever")
	require.NoError(t, err)

	_, err = e.RegistrationFinish("never-started", reg.Encode())
	assert.ErrorIs(t, err, errs.ErrNoPendingRegistration)
}

func TestLoginStartRejectsUnknownUsername(t *testing.T) {
	e, _ := newEngine(t)

	client := pake.NewClient()
	loginStart := client.StartLogin("whatever")

	_, err := e.LoginStart("nobody", loginStart.Encode())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLoginFinishRejectsMissingPendingLogin(t *testing.T) {
	e, _ := newEngine(t)
	const username = "alice"
	register(t, e, username, "correct horse battery staple")

	_, err := e.LoginFinish(username, make([]byte, 32))
	assert.ErrorIs(t, err, errs.ErrNoPendingLogin)
}

func TestLoginFinishRejectsForgedProof(t *testing.T) {
	e, _ := newEngine(t)
	const username = "alice"
	const password = "correct horse battery staple"
	register(t, e, username, password)

	client := pake.NewClient()
	loginStart := client.StartLogin(password)
	challengeBytes, err := e.LoginStart(username, loginStart.Encode())
	require.NoError(t, err)

	challenge, err := pake.DecodeLoginChallenge(challengeBytes)
	require.NoError(t, err)
	_, _, err = client.FinishLogin(challenge, password)
	require.NoError(t, err)

	forged := make([]byte, 32)
	_, err = e.LoginFinish(username, forged)
	assert.ErrorIs(t, err, errs.ErrTokenInvalid)
}
