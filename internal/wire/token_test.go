package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovedb/grove/internal/wire"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	var mac [wire.MACLen]byte
	var user, group [wire.UUIDLen]byte
	copy(mac[:], []byte("0123456789abcdef0123456789abcdef"))
	copy(user[:], []byte("useruseruseruser"))
	copy(group[:], []byte("groupgroupgroupg"))

	want := wire.AccessToken{
		Action: wire.TokenActionStoragePut,
		Exp:    1893456000,
		MAC:    mac,
		User:   user,
		Group:  group,
	}

	encoded := wire.EncodeAccessToken(want)
	require.Len(t, encoded, wire.AccessTokenLen)

	got, err := wire.DecodeAccessToken(encoded)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	var mac [wire.MACLen]byte
	var user [wire.UUIDLen]byte
	copy(mac[:], []byte("0123456789abcdef0123456789abcdef"))
	copy(user[:], []byte("useruseruseruser"))

	want := wire.RefreshToken{
		Action: wire.TokenActionRefresh,
		Exp:    1893456000,
		MAC:    mac,
		User:   user,
	}

	encoded := wire.EncodeRefreshToken(want)
	require.Len(t, encoded, wire.RefreshTokenLen)

	got, err := wire.DecodeRefreshToken(encoded)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeAccessTokenRejectsWrongLength(t *testing.T) {
	_, err := wire.DecodeAccessToken(make([]byte, wire.AccessTokenLen-1))
	assert.Error(t, err)
}

func TestDecodeRefreshTokenRejectsWrongLength(t *testing.T) {
	_, err := wire.DecodeRefreshToken(make([]byte, wire.RefreshTokenLen+1))
	assert.Error(t, err)
}

func TestAccessTokenSignedExcludesMAC(t *testing.T) {
	var mac1, mac2 [wire.MACLen]byte
	mac1[0] = 0x01
	mac2[0] = 0x02

	a := wire.AccessToken{Action: 1, Exp: 2, MAC: mac1}
	b := wire.AccessToken{Action: 1, Exp: 2, MAC: mac2}
	assert.Equal(t, a.Signed(), b.Signed())
}
