package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovedb/grove/internal/wire"
)

func TestUsernameFrameRoundTrip(t *testing.T) {
	rest := []byte("pake-message-bytes")
	encoded, err := wire.EncodeUsernameFrame("alice", rest)
	require.NoError(t, err)

	username, got, err := wire.DecodeUsernameFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
	assert.Equal(t, rest, got)
}

func TestUsernameFrameRejectsEmptyUsername(t *testing.T) {
	_, err := wire.EncodeUsernameFrame("", nil)
	assert.Error(t, err)
}

func TestUsernameFrameRejectsTruncatedFrame(t *testing.T) {
	_, _, err := wire.DecodeUsernameFrame([]byte{5, 'a', 'b'})
	assert.Error(t, err)
}

func TestSealedRefreshRoundTrip(t *testing.T) {
	var nonce [24]byte
	copy(nonce[:], []byte("012345678901234567890123"))
	ciphertext := []byte("sealed-refresh-ciphertext")

	encoded := wire.EncodeSealedRefresh(ciphertext, nonce)

	gotCiphertext, gotNonce, err := wire.DecodeSealedRefresh(encoded)
	require.NoError(t, err)
	assert.Equal(t, ciphertext, gotCiphertext)
	assert.Equal(t, nonce, gotNonce)
}

func TestAccessGetRequestRoundTripWithoutGroup(t *testing.T) {
	refresh := make([]byte, wire.RefreshTokenLen)
	refresh[0] = 0xAB

	encoded, err := wire.EncodeAccessGetRequest(refresh, wire.ActionGroupCreate, nil)
	require.NoError(t, err)
	assert.Len(t, encoded, wire.RefreshTokenLen+1)

	gotRefresh, gotAction, gotGroup, err := wire.DecodeAccessGetRequest(encoded)
	require.NoError(t, err)
	assert.Equal(t, refresh, gotRefresh)
	assert.Equal(t, wire.ActionGroupCreate, gotAction)
	assert.Nil(t, gotGroup)
}

func TestAccessGetRequestRoundTripWithGroup(t *testing.T) {
	refresh := make([]byte, wire.RefreshTokenLen)
	var group [wire.UUIDLen]byte
	copy(group[:], []byte("groupgroupgroupg"))

	encoded, err := wire.EncodeAccessGetRequest(refresh, wire.ActionStoragePut, &group)
	require.NoError(t, err)
	assert.Len(t, encoded, wire.RefreshTokenLen+1+wire.UUIDLen)

	gotRefresh, gotAction, gotGroup, err := wire.DecodeAccessGetRequest(encoded)
	require.NoError(t, err)
	assert.Equal(t, refresh, gotRefresh)
	assert.Equal(t, wire.ActionStoragePut, gotAction)
	require.NotNil(t, gotGroup)
	assert.Equal(t, group, *gotGroup)
}

func TestAccessGetRequestRejectsInvalidLength(t *testing.T) {
	_, _, _, err := wire.DecodeAccessGetRequest(make([]byte, 10))
	assert.Error(t, err)
}

func TestStoragePutRequestRoundTrip(t *testing.T) {
	var parent, grandparent [wire.UUIDLen]byte
	copy(parent[:], []byte("parentparentpare"))
	copy(grandparent[:], []byte("grandparentgrand"))

	want := wire.StoragePutRequest{
		Token:       make([]byte, wire.AccessTokenLen),
		Parent:      parent,
		Kind:        7,
		Grandparent: grandparent,
		ParentKind:  3,
		Payload:     []byte("hello, entity"),
	}

	encoded, err := wire.EncodeStoragePutRequest(want)
	require.NoError(t, err)

	got, err := wire.DecodeStoragePutRequest(encoded)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStoragePutRequestRejectsShortHeader(t *testing.T) {
	_, err := wire.DecodeStoragePutRequest(make([]byte, wire.AccessTokenLen))
	assert.Error(t, err)
}

func TestStorageQueryRequestRoundTrip(t *testing.T) {
	token := make([]byte, wire.AccessTokenLen)
	token[0] = 0x01

	var p1, e1, p2, e2 [wire.UUIDLen]byte
	copy(p1[:], []byte("parent1parent1pa"))
	copy(e1[:], []byte("entity1entity1en"))
	copy(p2[:], []byte("parent2parent2pa"))
	copy(e2[:], []byte("entity2entity2en"))

	triples := []wire.QueryTriple{
		{Parent: p1, Entity: e1, Kinds: []byte{1, 2, 3}},
		{Parent: p2, Entity: e2, Kinds: []byte{9}},
	}

	encoded, err := wire.EncodeStorageQueryRequest(token, triples)
	require.NoError(t, err)

	gotToken, gotTriples, err := wire.DecodeStorageQueryRequest(encoded)
	require.NoError(t, err)
	assert.Equal(t, token, gotToken)
	assert.Equal(t, triples, gotTriples)
}

func TestStorageQueryRequestRejectsTruncatedTriple(t *testing.T) {
	token := make([]byte, wire.AccessTokenLen)
	_, _, err := wire.DecodeStorageQueryRequest(append(token, 1, 2, 3))
	assert.Error(t, err)
}
