package wire

import (
	"fmt"
)

// EncodeUsernameFrame lays out username_len(1) || username(1..255) || rest,
// the shared shape of registration_start/finish and login_start/finish
// requests (spec.md §4.1).
func EncodeUsernameFrame(username string, rest []byte) ([]byte, error) {
	if len(username) == 0 || len(username) > 255 {
		return nil, fmt.Errorf("wire: username must be 1..255 bytes, got %d", len(username))
	}
	buf := make([]byte, 0, 1+len(username)+len(rest))
	buf = append(buf, byte(len(username)))
	buf = append(buf, username...)
	buf = append(buf, rest...)
	return buf, nil
}

// DecodeUsernameFrame splits a username-prefixed frame into the username and
// the remaining bytes.
func DecodeUsernameFrame(b []byte) (username string, rest []byte, err error) {
	if len(b) < 1 {
		return "", nil, fmt.Errorf("wire: frame shorter than username length byte")
	}
	n := int(b[0])
	if n == 0 {
		return "", nil, fmt.Errorf("wire: username length cannot be zero")
	}
	if len(b) < 1+n {
		return "", nil, fmt.Errorf("wire: frame shorter than declared username length %d", n)
	}
	return string(b[1 : 1+n]), b[1+n:], nil
}

// EncodeSealedRefresh lays out ciphertext || nonce(24), the login_finish
// response shape.
func EncodeSealedRefresh(ciphertext []byte, nonce [24]byte) []byte {
	buf := make([]byte, 0, len(ciphertext)+24)
	buf = append(buf, ciphertext...)
	buf = append(buf, nonce[:]...)
	return buf
}

// DecodeSealedRefresh splits a sealed refresh response into ciphertext and
// its trailing 24-byte nonce.
func DecodeSealedRefresh(b []byte) (ciphertext []byte, nonce [24]byte, err error) {
	if len(b) < 24 {
		return nil, nonce, fmt.Errorf("wire: sealed refresh shorter than nonce")
	}
	split := len(b) - 24
	copy(nonce[:], b[split:])
	return b[:split], nonce, nil
}

// EncodeAccessGetRequest lays out refresh_token(58) || action(1) [|| group(16)].
func EncodeAccessGetRequest(refresh []byte, action byte, group *[UUIDLen]byte) ([]byte, error) {
	if len(refresh) != RefreshTokenLen {
		return nil, fmt.Errorf("wire: access_get refresh token must be %d bytes", RefreshTokenLen)
	}
	size := RefreshTokenLen + 1
	if group != nil {
		size += UUIDLen
	}
	buf := make([]byte, 0, size)
	buf = append(buf, refresh...)
	buf = append(buf, action)
	if group != nil {
		buf = append(buf, group[:]...)
	}
	return buf, nil
}

// DecodeAccessGetRequest parses an access_get request. Presence of the
// trailing group is inferred from total length (59 vs 75), per spec.md §4.1.
func DecodeAccessGetRequest(b []byte) (refresh []byte, action byte, group *[UUIDLen]byte, err error) {
	switch len(b) {
	case RefreshTokenLen + 1:
		return b[:RefreshTokenLen], b[RefreshTokenLen], nil, nil
	case RefreshTokenLen + 1 + UUIDLen:
		var g [UUIDLen]byte
		copy(g[:], b[RefreshTokenLen+1:])
		return b[:RefreshTokenLen], b[RefreshTokenLen], &g, nil
	default:
		return nil, 0, nil, fmt.Errorf("wire: access_get request has invalid length %d", len(b))
	}
}

// StoragePutRequest is the decoded storage_put request body. Token holds the
// access token bytes unverified (callers verify the token separately).
type StoragePutRequest struct {
	Token       []byte // 74 bytes, access-token-shaped
	Parent      [UUIDLen]byte
	Kind        byte
	Grandparent [UUIDLen]byte
	ParentKind  byte
	Payload     []byte
}

const storagePutHeaderLen = AccessTokenLen + UUIDLen + 1 + UUIDLen + 1

// EncodeStoragePutRequest lays out
// access_token(74) || parent(16) || kind(1) || grandparent(16) || parent_kind(1) || payload.
func EncodeStoragePutRequest(r StoragePutRequest) ([]byte, error) {
	if len(r.Token) != AccessTokenLen {
		return nil, fmt.Errorf("wire: storage_put access token must be %d bytes", AccessTokenLen)
	}
	buf := make([]byte, 0, storagePutHeaderLen+len(r.Payload))
	buf = append(buf, r.Token...)
	buf = append(buf, r.Parent[:]...)
	buf = append(buf, r.Kind)
	buf = append(buf, r.Grandparent[:]...)
	buf = append(buf, r.ParentKind)
	buf = append(buf, r.Payload...)
	return buf, nil
}

// DecodeStoragePutRequest parses a storage_put request.
func DecodeStoragePutRequest(b []byte) (StoragePutRequest, error) {
	if len(b) < storagePutHeaderLen {
		return StoragePutRequest{}, fmt.Errorf("wire: storage_put request shorter than header (%d)", storagePutHeaderLen)
	}
	var r StoragePutRequest
	r.Token = b[:AccessTokenLen]
	off := AccessTokenLen
	copy(r.Parent[:], b[off:off+UUIDLen])
	off += UUIDLen
	r.Kind = b[off]
	off++
	copy(r.Grandparent[:], b[off:off+UUIDLen])
	off += UUIDLen
	r.ParentKind = b[off]
	off++
	r.Payload = b[off:]
	return r, nil
}

// QueryTriple is one (parent, entity, kinds) probe in a storage_query
// request.
type QueryTriple struct {
	Parent [UUIDLen]byte
	Entity [UUIDLen]byte
	Kinds  []byte
}

const maxQueryTriples = 255
const maxKindsPerTriple = 255

// EncodeStorageQueryRequest lays out
// access_token(74) || repeat(parent(16) || entity(16) || kind_count(1) || kinds).
func EncodeStorageQueryRequest(token []byte, triples []QueryTriple) ([]byte, error) {
	if len(token) != AccessTokenLen {
		return nil, fmt.Errorf("wire: storage_query access token must be %d bytes", AccessTokenLen)
	}
	if len(triples) > maxQueryTriples {
		return nil, fmt.Errorf("wire: storage_query cannot contain more than %d triples", maxQueryTriples)
	}
	buf := make([]byte, 0, AccessTokenLen+len(triples)*(UUIDLen*2+1))
	buf = append(buf, token...)
	for _, t := range triples {
		if len(t.Kinds) > maxKindsPerTriple {
			return nil, fmt.Errorf("wire: storage_query cannot have more than %d kinds per triple", maxKindsPerTriple)
		}
		buf = append(buf, t.Parent[:]...)
		buf = append(buf, t.Entity[:]...)
		buf = append(buf, byte(len(t.Kinds)))
		buf = append(buf, t.Kinds...)
	}
	return buf, nil
}

// DecodeStorageQueryRequest parses a storage_query request.
func DecodeStorageQueryRequest(b []byte) (token []byte, triples []QueryTriple, err error) {
	if len(b) < AccessTokenLen {
		return nil, nil, fmt.Errorf("wire: storage_query request shorter than access token")
	}
	token = b[:AccessTokenLen]
	rest := b[AccessTokenLen:]

	for len(rest) > 0 {
		if len(triples) >= maxQueryTriples {
			return nil, nil, fmt.Errorf("wire: storage_query cannot contain more than %d triples", maxQueryTriples)
		}
		if len(rest) < UUIDLen*2+1 {
			return nil, nil, fmt.Errorf("wire: truncated storage_query triple")
		}
		var t QueryTriple
		copy(t.Parent[:], rest[:UUIDLen])
		copy(t.Entity[:], rest[UUIDLen:UUIDLen*2])
		kindCount := int(rest[UUIDLen*2])
		rest = rest[UUIDLen*2+1:]
		if len(rest) < kindCount {
			return nil, nil, fmt.Errorf("wire: truncated storage_query kind list")
		}
		t.Kinds = append([]byte(nil), rest[:kindCount]...)
		rest = rest[kindCount:]
		triples = append(triples, t)
	}
	return token, triples, nil
}
