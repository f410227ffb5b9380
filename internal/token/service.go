// Package token mints and verifies the two fixed-width MAC tokens this
// system issues: the 58-byte refresh token and the 74-byte access token
// (spec.md §4.2). Both are keyed BLAKE2s-MAC authenticated byte strings,
// not a self-describing claims format — there is no header, no algorithm
// negotiation, nothing to parse beyond the fixed offsets internal/wire
// already defines.
package token

import (
	"crypto/subtle"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2s"

	"github.com/grovedb/grove/internal/errs"
	"github.com/grovedb/grove/internal/wire"
)

// DefaultTTL is the lifetime minted into every token, matching the
// original system's fixed 24-hour expiry.
const DefaultTTL = 24 * time.Hour

// Service mints and verifies tokens under a single shared MAC key. The key
// is operator-provided configuration (spec.md calls it a deployment secret,
// not per-user material) — see cmd/groved for how it reaches this type.
type Service struct {
	key []byte
	ttl time.Duration
}

// NewService constructs a Service. key must be non-empty. A key of up to 32
// bytes is used directly as the BLAKE2s-MAC key; a longer key is first
// reduced to 32 bytes with BLAKE2s-256.
func NewService(key []byte, ttl time.Duration) (*Service, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("token: mac key must not be empty")
	}
	if len(key) > blake2s.Size {
		sum := blake2s.Sum256(key)
		key = sum[:]
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{key: key, ttl: ttl}, nil
}

func (s *Service) mac(signed []byte) ([wire.MACLen]byte, error) {
	var out [wire.MACLen]byte
	h, err := blake2s.New256(s.key)
	if err != nil {
		return out, fmt.Errorf("token: mac init: %w", err)
	}
	if _, err := h.Write(signed); err != nil {
		return out, fmt.Errorf("token: mac write: %w", err)
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}

func (s *Service) expiry() uint64 {
	return uint64(time.Now().Add(s.ttl).Unix())
}

// MintAccess mints a 74-byte access token bound to action, user and group.
func (s *Service) MintAccess(action byte, user, group [wire.UUIDLen]byte) ([]byte, error) {
	t := wire.AccessToken{Action: action, Exp: s.expiry(), User: user, Group: group}
	mac, err := s.mac(t.Signed())
	if err != nil {
		return nil, err
	}
	t.MAC = mac
	return wire.EncodeAccessToken(t), nil
}

// MintRefresh mints a 58-byte refresh-shaped token bound to action and user.
// A login's refresh token carries wire.TokenActionRefresh; the action
// parameter exists because access_get also mints refresh-shaped tokens bound
// to other actions, such as group_create (spec.md §4.4.1).
func (s *Service) MintRefresh(action byte, user [wire.UUIDLen]byte) ([]byte, error) {
	t := wire.RefreshToken{Action: action, Exp: s.expiry(), User: user}
	mac, err := s.mac(t.Signed())
	if err != nil {
		return nil, err
	}
	t.MAC = mac
	return wire.EncodeRefreshToken(t), nil
}

// VerifyAccess verifies a 74-byte access token: length, MAC, expiry and
// that its bound action matches wantAction. It returns the bound user and
// group on success.
func (s *Service) VerifyAccess(raw []byte, wantAction byte) (user, group [wire.UUIDLen]byte, err error) {
	t, err := wire.DecodeAccessToken(raw)
	if err != nil {
		return user, group, fmt.Errorf("%w: %v", errs.ErrTokenInvalid, err)
	}
	if t.Action != wantAction {
		return user, group, fmt.Errorf("%w: action mismatch", errs.ErrTokenInvalid)
	}
	if err := s.verifyCommon(t.Exp, t.MAC, t.Signed()); err != nil {
		return user, group, err
	}
	return t.User, t.Group, nil
}

// VerifyRefresh verifies a 58-byte refresh-shaped token: length, MAC,
// expiry and bound action. It returns the bound user on success.
func (s *Service) VerifyRefresh(raw []byte, wantAction byte) (user [wire.UUIDLen]byte, err error) {
	t, err := wire.DecodeRefreshToken(raw)
	if err != nil {
		return user, fmt.Errorf("%w: %v", errs.ErrTokenInvalid, err)
	}
	if t.Action != wantAction {
		return user, fmt.Errorf("%w: action mismatch", errs.ErrTokenInvalid)
	}
	if err := s.verifyCommon(t.Exp, t.MAC, t.Signed()); err != nil {
		return user, err
	}
	return t.User, nil
}

func (s *Service) verifyCommon(exp uint64, mac [wire.MACLen]byte, signed []byte) error {
	if exp < uint64(time.Now().Unix()) {
		return fmt.Errorf("%w: expired", errs.ErrTokenInvalid)
	}
	want, err := s.mac(signed)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(want[:], mac[:]) != 1 {
		return fmt.Errorf("%w: bad mac", errs.ErrTokenInvalid)
	}
	return nil
}
