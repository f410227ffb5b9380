package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovedb/grove/internal/wire"
)

func TestEntityRoundTrip(t *testing.T) {
	var grandparent, user [wire.UUIDLen]byte
	copy(grandparent[:], []byte("grandparentgrand"))
	copy(user[:], []byte("useruseruseruser"))

	want := wire.Entity{
		Grandparent: grandparent,
		ParentKind:  4,
		User:        user,
		Payload:     []byte("entity payload bytes"),
	}

	encoded := wire.EncodeEntity(want)
	got, err := wire.DecodeEntity(encoded)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeEntityRejectsShortValue(t *testing.T) {
	_, err := wire.DecodeEntity(make([]byte, wire.UUIDLen))
	assert.Error(t, err)
}

func TestResultEntityRoundTrip(t *testing.T) {
	var id, user [wire.UUIDLen]byte
	copy(id[:], []byte("idididididididid"))
	copy(user[:], []byte("useruseruseruser"))

	want := wire.ResultEntity{ID: id, User: user, Value: []byte("entity payload bytes")}

	encoded := wire.EncodeResultEntity(want)
	got, err := wire.DecodeResultEntity(encoded)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeResultEntityRejectsShortValue(t *testing.T) {
	_, err := wire.DecodeResultEntity(make([]byte, wire.UUIDLen))
	assert.Error(t, err)
}

func TestQueryResultRoundTrip(t *testing.T) {
	var parent1, parent2 [wire.UUIDLen]byte
	copy(parent1[:], []byte("parent1parent1pa"))
	copy(parent2[:], []byte("parent2parent2pa"))

	entity := func(idByte byte, payload string) wire.ResultEntity {
		var id, user [wire.UUIDLen]byte
		id[0] = idByte
		copy(user[:], []byte("useruseruseruser"))
		return wire.ResultEntity{ID: id, User: user, Value: []byte(payload)}
	}

	want := wire.QueryResult{
		Groups: []wire.QueryGroup{
			{
				Parent: parent1,
				Kinds: []wire.KindEntities{
					{Kind: 1, Entries: []wire.ResultEntity{entity(1, "a"), entity(2, "b")}},
					{Kind: 2, Entries: []wire.ResultEntity{entity(3, "c")}},
				},
			},
			{
				Parent: parent2,
				Kinds:  []wire.KindEntities{{Kind: 5, Entries: nil}},
			},
		},
	}

	encoded, err := want.Encode()
	require.NoError(t, err)

	got, err := wire.DecodeQueryResult(encoded)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestQueryResultEmpty(t *testing.T) {
	want := wire.QueryResult{}
	encoded, err := want.Encode()
	require.NoError(t, err)

	got, err := wire.DecodeQueryResult(encoded)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeQueryResultRejectsTruncated(t *testing.T) {
	_, err := wire.DecodeQueryResult([]byte{0, 1})
	assert.Error(t, err)
}
