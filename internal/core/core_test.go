package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovedb/grove/internal/auth"
	"github.com/grovedb/grove/internal/core"
	"github.com/grovedb/grove/internal/errs"
	"github.com/grovedb/grove/internal/pake"
	"github.com/grovedb/grove/internal/store"
	"github.com/grovedb/grove/internal/token"
	"github.com/grovedb/grove/internal/wire"
)

func newCore(t *testing.T) *core.Core {
	t.Helper()
	tokens, err := token.NewService([]byte("a shared deployment mac secret"), time.Hour)
	require.NoError(t, err)
	st, err := store.Open(store.Config{Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	engine := auth.NewEngine(st, tokens, nil)
	return core.New(tokens, engine, st, nil)
}

// register drives registration_start/finish through Core, the way
// internal/auth's own tests drive Engine directly.
func register(t *testing.T, c *core.Core, username, password string) {
	t.Helper()

	req, err := wire.EncodeUsernameFrame(username, nil)
	require.NoError(t, err)
	challengeBytes, err := c.RegistrationStart(req)
	require.NoError(t, err)

	challenge, err := pake.DecodeRegistrationChallenge(challengeBytes)
	require.NoError(t, err)
	reg, err := pake.ClientRegister(challenge, password)
	require.NoError(t, err)

	finishReq, err := wire.EncodeUsernameFrame(username, reg.Encode())
	require.NoError(t, err)
	_, err = c.RegistrationFinish(finishReq)
	require.NoError(t, err)
}

// login drives login_start/finish through Core and returns the raw 58-byte
// refresh token (after unsealing and decrypting the sealed response).
func login(t *testing.T, c *core.Core, username, password string) []byte {
	t.Helper()

	client := pake.NewClient()
	loginStart := client.StartLogin(password)

	startReq, err := wire.EncodeUsernameFrame(username, loginStart.Encode())
	require.NoError(t, err)
	challengeBytes, err := c.LoginStart(startReq)
	require.NoError(t, err)

	challenge, err := pake.DecodeLoginChallenge(challengeBytes)
	require.NoError(t, err)
	sessionKey, fk2, err := client.FinishLogin(challenge, password)
	require.NoError(t, err)

	finishReq, err := wire.EncodeUsernameFrame(username, fk2)
	require.NoError(t, err)
	sealedResp, err := c.LoginFinish(finishReq)
	require.NoError(t, err)

	ciphertext, nonce, err := wire.DecodeSealedRefresh(sealedResp)
	require.NoError(t, err)
	refresh, err := auth.UnsealRefreshToken(sessionKey, ciphertext, nonce)
	require.NoError(t, err)
	return refresh
}

// S1 — Register then authenticate.
func TestRegisterThenAuthenticate(t *testing.T) {
	c := newCore(t)
	const username, password = "alice", "correct horse battery staple"

	register(t, c, username, password)
	refresh := login(t, c, username, password)

	decoded, err := wire.DecodeRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, wire.TokenActionRefresh, decoded.Action)
}

// S2 — Capability flow: access_get without a group, then group_create.
func TestAccessGetThenGroupCreate(t *testing.T) {
	c := newCore(t)
	const username, password = "alice", "correct horse battery staple"
	register(t, c, username, password)
	refresh := login(t, c, username, password)

	agReq, err := wire.EncodeAccessGetRequest(refresh, wire.TokenActionGroupCreate, nil)
	require.NoError(t, err)
	access, err := c.AccessGet(agReq)
	require.NoError(t, err)
	assert.Len(t, access, wire.RefreshTokenLen)

	groupBytes, err := c.GroupCreate(access)
	require.NoError(t, err)
	require.Len(t, groupBytes, wire.UUIDLen)
}

// S3 — Put and query.
func TestStoragePutThenQuery(t *testing.T) {
	c := newCore(t)
	const username, password = "alice", "correct horse battery staple"
	register(t, c, username, password)
	refresh := login(t, c, username, password)
	refreshToken, err := wire.DecodeRefreshToken(refresh)
	require.NoError(t, err)
	alice := refreshToken.User

	agReq, err := wire.EncodeAccessGetRequest(refresh, wire.TokenActionGroupCreate, nil)
	require.NoError(t, err)
	access, err := c.AccessGet(agReq)
	require.NoError(t, err)
	groupBytes, err := c.GroupCreate(access)
	require.NoError(t, err)
	var group [wire.UUIDLen]byte
	copy(group[:], groupBytes)

	putAgReq, err := wire.EncodeAccessGetRequest(refresh, wire.TokenActionStoragePut, &group)
	require.NoError(t, err)
	putAccess, err := c.AccessGet(putAgReq)
	require.NoError(t, err)
	require.Len(t, putAccess, wire.AccessTokenLen)

	putReq, err := wire.EncodeStoragePutRequest(wire.StoragePutRequest{
		Token:       putAccess,
		Parent:      alice,
		Kind:        1,
		Grandparent: alice,
		ParentKind:  0,
		Payload:     []byte("cheesecake"),
	})
	require.NoError(t, err)
	idBytes, err := c.StoragePut(putReq)
	require.NoError(t, err)
	var entity [wire.UUIDLen]byte
	copy(entity[:], idBytes)

	queryAgReq, err := wire.EncodeAccessGetRequest(refresh, wire.TokenActionStorageQuery, &group)
	require.NoError(t, err)
	queryAccess, err := c.AccessGet(queryAgReq)
	require.NoError(t, err)

	queryReq, err := wire.EncodeStorageQueryRequest(queryAccess, []wire.QueryTriple{
		{Parent: alice, Entity: entity, Kinds: []byte{1}},
	})
	require.NoError(t, err)
	respBytes, err := c.StorageQuery(queryReq)
	require.NoError(t, err)

	result, err := wire.DecodeQueryResult(respBytes)
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, alice, result.Groups[0].Parent)
	require.Len(t, result.Groups[0].Kinds, 1)
	entries := result.Groups[0].Kinds[0].Entries
	require.Len(t, entries, 1)
	assert.Equal(t, entity, entries[0].ID)
	assert.Equal(t, alice, entries[0].User)
	assert.Equal(t, []byte("cheesecake"), entries[0].Value)
}

// S4 — Authorization denial: storage_put's own parent-grant probe is
// independent of the group-membership probe access_get already passed.
// otherGroup is a group alice legitimately belongs to (so access_get
// succeeds), but neither alice nor otherGroup holds any rule on
// unrelatedParent, so the put itself must still be denied.
func TestStoragePutDeniedWithoutParentGrant(t *testing.T) {
	c := newCore(t)
	const username, password = "alice", "correct horse battery staple"
	register(t, c, username, password)
	refresh := login(t, c, username, password)
	refreshToken, err := wire.DecodeRefreshToken(refresh)
	require.NoError(t, err)
	alice := refreshToken.User

	agReq, err := wire.EncodeAccessGetRequest(refresh, wire.TokenActionGroupCreate, nil)
	require.NoError(t, err)
	access, err := c.AccessGet(agReq)
	require.NoError(t, err)
	otherGroupBytes, err := c.GroupCreate(access)
	require.NoError(t, err)
	var otherGroup [wire.UUIDLen]byte
	copy(otherGroup[:], otherGroupBytes)

	// The only rule group_create seeded is (alice, otherGroup, 0); no rule
	// exists for otherGroup on any other parent uuid.
	var unrelatedParent [wire.UUIDLen]byte
	unrelatedParent[0] = 0xEE

	putAgReq, err := wire.EncodeAccessGetRequest(refresh, wire.TokenActionStoragePut, &otherGroup)
	require.NoError(t, err)
	putAccess, err := c.AccessGet(putAgReq)
	require.NoError(t, err)

	putReq, err := wire.EncodeStoragePutRequest(wire.StoragePutRequest{
		Token:       putAccess,
		Parent:      unrelatedParent,
		Kind:        1,
		Grandparent: alice,
		ParentKind:  0,
		Payload:     []byte("nope"),
	})
	require.NoError(t, err)
	_, err = c.StoragePut(putReq)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

// S5 — Token action binding: an access token minted for storage_query
// cannot be used for storage_put.
func TestStoragePutRejectsWrongTokenAction(t *testing.T) {
	c := newCore(t)
	const username, password = "alice", "correct horse battery staple"
	register(t, c, username, password)
	refresh := login(t, c, username, password)
	refreshToken, err := wire.DecodeRefreshToken(refresh)
	require.NoError(t, err)
	alice := refreshToken.User

	agReq, err := wire.EncodeAccessGetRequest(refresh, wire.TokenActionGroupCreate, nil)
	require.NoError(t, err)
	access, err := c.AccessGet(agReq)
	require.NoError(t, err)
	groupBytes, err := c.GroupCreate(access)
	require.NoError(t, err)
	var group [wire.UUIDLen]byte
	copy(group[:], groupBytes)

	queryAgReq, err := wire.EncodeAccessGetRequest(refresh, wire.TokenActionStorageQuery, &group)
	require.NoError(t, err)
	queryAccess, err := c.AccessGet(queryAgReq)
	require.NoError(t, err)

	putReq, err := wire.EncodeStoragePutRequest(wire.StoragePutRequest{
		Token:       queryAccess,
		Parent:      alice,
		Kind:        1,
		Grandparent: alice,
		ParentKind:  0,
		Payload:     []byte("nope"),
	})
	require.NoError(t, err)
	_, err = c.StoragePut(putReq)
	assert.ErrorIs(t, err, errs.ErrTokenInvalid)
}

// S6 — Login without start.
func TestLoginFinishWithoutLoginStart(t *testing.T) {
	c := newCore(t)
	const username, password = "alice", "correct horse battery staple"
	register(t, c, username, password)

	finishReq, err := wire.EncodeUsernameFrame(username, make([]byte, 32))
	require.NoError(t, err)
	_, err = c.LoginFinish(finishReq)
	assert.ErrorIs(t, err, errs.ErrNoPendingLogin)
}
