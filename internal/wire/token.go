package wire

import (
	"encoding/binary"
	"fmt"
)

// Token byte layouts (spec.md §4.1).
//
//	access  (74B): action(1) || exp(8) || mac(32) || user(16) || group(16)
//	refresh (58B): action(1) || exp(8) || mac(32) || user(16)
const (
	AccessTokenLen  = 1 + 8 + 32 + 16 + 16
	RefreshTokenLen = 1 + 8 + 32 + 16

	MACLen  = 32
	UUIDLen = 16

	tokenActionOff = 0
	tokenExpOff    = 1
	tokenMACOff    = 9
	tokenUserOff   = 41
	tokenGroupOff  = 57 // access tokens only
)

// AccessToken is the decoded form of a 74-byte access token.
type AccessToken struct {
	Action byte
	Exp    uint64
	MAC    [MACLen]byte
	User   [UUIDLen]byte
	Group  [UUIDLen]byte
}

// RefreshToken is the decoded form of a 58-byte refresh token.
type RefreshToken struct {
	Action byte
	Exp    uint64
	MAC    [MACLen]byte
	User   [UUIDLen]byte
}

// Signed returns the bytes a token's MAC is computed over: every field
// except the MAC itself, in wire order.
func (t AccessToken) Signed() []byte {
	buf := make([]byte, 0, 1+8+UUIDLen+UUIDLen)
	buf = append(buf, t.Action)
	buf = binary.BigEndian.AppendUint64(buf, t.Exp)
	buf = append(buf, t.User[:]...)
	buf = append(buf, t.Group[:]...)
	return buf
}

// Signed returns the bytes a refresh token's MAC is computed over.
func (t RefreshToken) Signed() []byte {
	buf := make([]byte, 0, 1+8+UUIDLen)
	buf = append(buf, t.Action)
	buf = binary.BigEndian.AppendUint64(buf, t.Exp)
	buf = append(buf, t.User[:]...)
	return buf
}

// EncodeAccessToken lays out a 74-byte access token.
func EncodeAccessToken(t AccessToken) []byte {
	buf := make([]byte, AccessTokenLen)
	buf[tokenActionOff] = t.Action
	binary.BigEndian.PutUint64(buf[tokenExpOff:tokenExpOff+8], t.Exp)
	copy(buf[tokenMACOff:tokenMACOff+MACLen], t.MAC[:])
	copy(buf[tokenUserOff:tokenUserOff+UUIDLen], t.User[:])
	copy(buf[tokenGroupOff:tokenGroupOff+UUIDLen], t.Group[:])
	return buf
}

// EncodeRefreshToken lays out a 58-byte refresh token.
func EncodeRefreshToken(t RefreshToken) []byte {
	buf := make([]byte, RefreshTokenLen)
	buf[tokenActionOff] = t.Action
	binary.BigEndian.PutUint64(buf[tokenExpOff:tokenExpOff+8], t.Exp)
	copy(buf[tokenMACOff:tokenMACOff+MACLen], t.MAC[:])
	copy(buf[tokenUserOff:tokenUserOff+UUIDLen], t.User[:])
	return buf
}

// DecodeAccessToken parses a 74-byte access token. It does not verify the
// MAC or expiry — that is internal/token's job.
func DecodeAccessToken(b []byte) (AccessToken, error) {
	if len(b) != AccessTokenLen {
		return AccessToken{}, fmt.Errorf("wire: access token must be %d bytes, got %d", AccessTokenLen, len(b))
	}
	var t AccessToken
	t.Action = b[tokenActionOff]
	t.Exp = binary.BigEndian.Uint64(b[tokenExpOff : tokenExpOff+8])
	copy(t.MAC[:], b[tokenMACOff:tokenMACOff+MACLen])
	copy(t.User[:], b[tokenUserOff:tokenUserOff+UUIDLen])
	copy(t.Group[:], b[tokenGroupOff:tokenGroupOff+UUIDLen])
	return t, nil
}

// DecodeRefreshToken parses a 58-byte refresh token.
func DecodeRefreshToken(b []byte) (RefreshToken, error) {
	if len(b) != RefreshTokenLen {
		return RefreshToken{}, fmt.Errorf("wire: refresh token must be %d bytes, got %d", RefreshTokenLen, len(b))
	}
	var t RefreshToken
	t.Action = b[tokenActionOff]
	t.Exp = binary.BigEndian.Uint64(b[tokenExpOff : tokenExpOff+8])
	copy(t.MAC[:], b[tokenMACOff:tokenMACOff+MACLen])
	copy(t.User[:], b[tokenUserOff:tokenUserOff+UUIDLen])
	return t, nil
}
