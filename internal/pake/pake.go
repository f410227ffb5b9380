// Package pake implements an OPAQUE-shaped asymmetric password-authenticated
// key exchange: the client's plaintext password never reaches the server,
// not during registration and not during login, yet both sides agree on a
// shared session key once login completes. It follows the OPAQUE
// construction — OPRF-wrapped registration envelope, then a triple-DH key
// exchange gated by that envelope, with one extra round so the server can
// verify the client too — using the Ristretto255 group operations and keyed
// PRF from internal/crypto.
//
// pake itself is stateless: it has no notion of "the current registration"
// or "the current login attempt". internal/auth holds that state (pending
// registrations and pending logins, keyed by username) and internal/store
// persists the long-lived PasswordFile; pake only does the math and the
// wire shape of its own messages.
package pake

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/subtle"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/sha3"

	ristretto "github.com/gtank/ristretto255"

	"github.com/grovedb/grove/internal/crypto"
)

const elementLen = 32

type (
	// PendingRegistration is the server-held state between a
	// registration_start call and the registration_finish that completes
	// it: the OPRF key and server static keypair generated for this
	// username.
	PendingRegistration struct {
		KS *ristretto.Scalar
		Ps *ristretto.Element
		ps *ristretto.Scalar
	}

	// RegistrationChallenge is the registration_start response sent to the
	// client: the OPRF key and server public key it needs to build its
	// envelope. Unlike login, occlude's registration hands the client the
	// OPRF key in the clear — registration_start/finish is only safe to run
	// over an already-authenticated, confidential channel, per spec.md §1's
	// transport assumptions.
	RegistrationChallenge struct {
		KS *ristretto.Scalar
		Ps *ristretto.Element
	}

	// Registration is the client's registration_finish request: the
	// envelope it wants the server to store, and the client's static
	// public key.
	Registration struct {
		Envelope AuthCiphertext
		Pu       *ristretto.Element
	}

	// PasswordFile is the durable, server-held record produced by a
	// completed registration. It carries the same sensitivity as a password
	// hash: anyone holding it can mount an offline dictionary attack against
	// the user's password, though the Argon2id stretch inside
	// crypto.OPRFBlind makes that costly. It belongs in the Credentials
	// keyspace, never on the wire.
	PasswordFile struct {
		KS *ristretto.Scalar
		Ps *ristretto.Scalar
		Pp *ristretto.Element // server static public key
		Pu *ristretto.Element // client static public key
		C  AuthCiphertext
	}

	// LoginStart is the client's login_start request.
	LoginStart struct {
		Alpha *ristretto.Element
		Xu    *ristretto.Element
	}

	// LoginChallenge is the server's login_start response. The client needs
	// all four fields to derive the session key and to verify the server
	// holds the genuine PasswordFile.
	LoginChallenge struct {
		Beta *ristretto.Element
		Xs   *ristretto.Element
		FK1  []byte
		C    AuthCiphertext
	}

	// AuthCiphertext pairs an arbitrary-length ciphertext with its MAC tag.
	// OPAQUE needs a stronger property than a generic AEAD mode gives
	// ("key-committal"), so registration envelopes use AES-CTR plus a
	// separate HMAC-SHA3 key instead.
	AuthCiphertext struct {
		Tag        []byte
		Ciphertext []byte
	}

	// envelopeContents is the plaintext sealed inside a registration
	// envelope's ciphertext.
	envelopeContents struct {
		pu *ristretto.Scalar
		Pu *ristretto.Element
		Ps *ristretto.Element
	}

	// Client is the client side of an in-progress login. A Client is
	// single-use: construct one per login attempt.
	Client struct {
		xu *ristretto.Scalar
		r  *ristretto.Scalar
	}
)

// NewClient starts a new, single-use login attempt.
func NewClient() *Client {
	return &Client{}
}

// StartLogin begins login_start on the client side, blinding the password
// with a fresh random scalar so the server never learns it.
func (c *Client) StartLogin(password string) *LoginStart {
	xu := crypto.RandomScalar()
	Xu := new(ristretto.Element).ScalarBaseMult(xu)

	x := sha3.Sum512([]byte(password))
	alpha := new(ristretto.Element).FromUniformBytes(x[:])
	r := crypto.RandomScalar()
	alpha.ScalarMult(r, alpha)

	c.xu = xu
	c.r = r

	return &LoginStart{Alpha: alpha, Xu: Xu}
}

// ServerStartRegistration begins registration_start on the server side: a
// fresh OPRF key and server static keypair for this (as yet unregistered)
// username.
func ServerStartRegistration() *PendingRegistration {
	ks := crypto.RandomScalar()
	ps := crypto.RandomScalar()
	Ps := new(ristretto.Element).ScalarBaseMult(ps)
	return &PendingRegistration{KS: ks, Ps: Ps, ps: ps}
}

// Challenge extracts the registration_start response to send to the
// client. The server's private static scalar never leaves PendingRegistration.
func (p *PendingRegistration) Challenge() *RegistrationChallenge {
	return &RegistrationChallenge{KS: p.KS, Ps: p.Ps}
}

// ServerFinishRegistration produces the PasswordFile to persist. The caller
// is responsible for checking a PendingRegistration exists for this
// username and that no PasswordFile is already stored for it.
func ServerFinishRegistration(pending *PendingRegistration, reg *Registration) *PasswordFile {
	return &PasswordFile{
		KS: pending.KS,
		Ps: pending.ps,
		Pp: pending.Ps,
		Pu: reg.Pu,
		C:  reg.Envelope,
	}
}

// ClientRegister builds a registration_finish request from the server's
// registration_start response and the user's password. This step, like
// login, must run over a confidential, authenticated channel (e.g. TLS) —
// the envelope protects the password against a passive eavesdropper but not
// against an active one.
func ClientRegister(challenge *RegistrationChallenge, password string) (*Registration, error) {
	pu := crypto.RandomScalar()
	Pu := new(ristretto.Element).ScalarBaseMult(pu)

	x := sha3.Sum512([]byte(password))
	rw := crypto.OPRFBlind(x[:], challenge.KS)

	hmacKey, cipherKey := crypto.DeriveKeys(rw)

	block, err := aes.NewCipher(cipherKey)
	if err != nil {
		return nil, fmt.Errorf("pake: registration cipher: %w", err)
	}
	iv := make([]byte, block.BlockSize())
	ctr := cipher.NewCTR(block, iv)
	authHMAC := hmac.New(sha3.New256, hmacKey)

	plaintext, err := json.Marshal(&envelopeContents{pu: pu, Pu: Pu, Ps: challenge.Ps})
	if err != nil {
		return nil, fmt.Errorf("pake: encoding envelope: %w", err)
	}

	ciphertext := make([]byte, len(plaintext))
	ctr.XORKeyStream(ciphertext, plaintext)
	tag := authHMAC.Sum(ciphertext)

	return &Registration{
		Envelope: AuthCiphertext{Tag: tag, Ciphertext: ciphertext},
		Pu:       Pu,
	}, nil
}

// Encode lays out ks(32) || ps_pub(32), the registration_start response.
func (rc *RegistrationChallenge) Encode() []byte {
	buf := make([]byte, 0, elementLen*2)
	buf = append(buf, rc.KS.Encode(nil)...)
	buf = append(buf, rc.Ps.Encode(nil)...)
	return buf
}

// DecodeRegistrationChallenge parses a RegistrationChallenge message.
func DecodeRegistrationChallenge(b []byte) (*RegistrationChallenge, error) {
	if len(b) != elementLen*2 {
		return nil, fmt.Errorf("pake: registration challenge must be %d bytes, got %d", elementLen*2, len(b))
	}
	ks := new(ristretto.Scalar)
	if err := ks.Decode(b[:elementLen]); err != nil {
		return nil, fmt.Errorf("pake: decoding ks: %w", err)
	}
	ps := new(ristretto.Element)
	if err := ps.Decode(b[elementLen:]); err != nil {
		return nil, fmt.Errorf("pake: decoding ps: %w", err)
	}
	return &RegistrationChallenge{KS: ks, Ps: ps}, nil
}

// ServerBeginLogin answers a login_start request given the user's stored
// PasswordFile. It returns the LoginChallenge to send to the client and the
// raw key-exchange secret K; the client is not yet authenticated — the
// server must hold K until login_finish delivers the client's proof, then call
// ServerVerifyLogin.
func ServerBeginLogin(pf *PasswordFile, login *LoginStart) (*LoginChallenge, [32]byte) {
	xs := crypto.RandomScalar()
	Xs := new(ristretto.Element).ScalarBaseMult(xs)
	beta := new(ristretto.Element).ScalarMult(pf.KS, login.Alpha)

	K := crypto.KeyExchangeServer(pf.Ps, xs, pf.Pu, login.Xu)
	fk1 := crypto.PRF(K, []byte{1})

	return &LoginChallenge{Beta: beta, Xs: Xs, FK1: fk1, C: pf.C}, K
}

// FinishLogin completes the client side of a login: it recovers the
// envelope sealed during registration, verifies the server produced the
// right fk1 (proving it holds the real PasswordFile), and derives the
// session key plus fk2, the proof of knowledge the client sends on to
// login_finish for the server to check in ServerVerifyLogin.
func (c *Client) FinishLogin(challenge *LoginChallenge, password string) (sessionKey, fk2 []byte, err error) {
	x := sha3.Sum512([]byte(password))
	rw := crypto.OPRFUnblind(challenge.Beta, c.r, x)

	hmacKey, cipherKey := crypto.DeriveKeys(rw)
	block, err := aes.NewCipher(cipherKey)
	if err != nil {
		return nil, nil, fmt.Errorf("pake: login cipher: %w", err)
	}
	iv := make([]byte, block.BlockSize())
	ctr := cipher.NewCTR(block, iv)
	authHMAC := hmac.New(sha3.New256, hmacKey)

	if subtle.ConstantTimeCompare(authHMAC.Sum(challenge.C.Ciphertext), challenge.C.Tag) != 1 {
		return nil, nil, fmt.Errorf("pake: envelope authentication failed")
	}

	var env envelopeContents
	plaintext := make([]byte, len(challenge.C.Ciphertext))
	ctr.XORKeyStream(plaintext, challenge.C.Ciphertext)
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return nil, nil, fmt.Errorf("pake: decoding envelope: %w", err)
	}

	K := crypto.KeyExchangeClient(env.pu, c.xu, env.Ps, challenge.Xs)
	fk1 := crypto.PRF(K, []byte{1})
	if subtle.ConstantTimeCompare(fk1, challenge.FK1) != 1 {
		return nil, nil, fmt.Errorf("pake: server authentication failed")
	}
	sessionKey = crypto.PRF(K, []byte{0})
	fk2 = crypto.PRF(K, []byte{2})
	return sessionKey, fk2, nil
}

// ServerVerifyLogin checks the fk2 proof a login_finish request carried
// against the K the server derived in ServerBeginLogin. Only on success is
// the session key released; the caller (internal/auth) mints the sealed
// refresh token from it.
func ServerVerifyLogin(K [32]byte, fk2 []byte) (sessionKey []byte, ok bool) {
	expected := crypto.PRF(K, []byte{2})
	if subtle.ConstantTimeCompare(expected, fk2) != 1 {
		return nil, false
	}
	return crypto.PRF(K, []byte{0}), true
}

func (e *envelopeContents) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Pu []byte `json:"pu"`
		PU []byte `json:"Pu"`
		Ps []byte `json:"Ps"`
	}{
		e.pu.Encode(nil),
		e.Pu.Encode(nil),
		e.Ps.Encode(nil),
	})
}

func (e *envelopeContents) UnmarshalJSON(data []byte) error {
	encoded := &struct {
		Pu []byte `json:"pu"`
		PU []byte `json:"Pu"`
		Ps []byte `json:"Ps"`
	}{}
	if err := json.Unmarshal(data, encoded); err != nil {
		return err
	}
	e.pu = new(ristretto.Scalar)
	if err := e.pu.Decode(encoded.Pu); err != nil {
		return err
	}
	e.Pu = new(ristretto.Element)
	if err := e.Pu.Decode(encoded.PU); err != nil {
		return err
	}
	e.Ps = new(ristretto.Element)
	return e.Ps.Decode(encoded.Ps)
}

// --- wire encodings for the messages that travel inside a request frame ---
//
// Every message below is encoded as a closed sequence of 32-byte Ristretto
// elements/scalars followed by any variable-length ciphertext, itself
// length-prefixed — the same "fields are positionally addressed, lengths
// are explicit" discipline internal/wire uses for the frames these messages
// are embedded in.

// Note: the tag here is whatever hash.Hash.Sum(ciphertext) returns — Go's
// Sum appends the MAC to the slice it's given, so Tag is actually
// ciphertext||mac, not a bare mac. Both sides recompute it the same way, so
// this is only ever compared against itself; it still has to be
// length-prefixed like any other variable-length field.
func encodeAuthCiphertext(buf []byte, c AuthCiphertext) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Tag)))
	buf = append(buf, c.Tag...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Ciphertext)))
	buf = append(buf, c.Ciphertext...)
	return buf
}

func decodeAuthCiphertext(b []byte) (AuthCiphertext, []byte, error) {
	if len(b) < 4 {
		return AuthCiphertext{}, nil, fmt.Errorf("pake: truncated ciphertext tag length")
	}
	tagLen := binary.BigEndian.Uint32(b[:4])
	rest := b[4:]
	if uint32(len(rest)) < tagLen {
		return AuthCiphertext{}, nil, fmt.Errorf("pake: truncated ciphertext tag")
	}
	tag := append([]byte(nil), rest[:tagLen]...)
	rest = rest[tagLen:]

	if len(rest) < 4 {
		return AuthCiphertext{}, nil, fmt.Errorf("pake: truncated ciphertext length")
	}
	n := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	if uint32(len(rest)) < n {
		return AuthCiphertext{}, nil, fmt.Errorf("pake: truncated ciphertext body")
	}
	ciphertext := append([]byte(nil), rest[:n]...)
	return AuthCiphertext{Tag: tag, Ciphertext: ciphertext}, rest[n:], nil
}

// Encode lays out alpha(32) || xu(32).
func (m *LoginStart) Encode() []byte {
	buf := make([]byte, 0, elementLen*2)
	buf = append(buf, m.Alpha.Encode(nil)...)
	buf = append(buf, m.Xu.Encode(nil)...)
	return buf
}

// DecodeLoginStart parses a LoginStart message.
func DecodeLoginStart(b []byte) (*LoginStart, error) {
	if len(b) != elementLen*2 {
		return nil, fmt.Errorf("pake: login start must be %d bytes, got %d", elementLen*2, len(b))
	}
	alpha := new(ristretto.Element)
	if err := alpha.Decode(b[:elementLen]); err != nil {
		return nil, fmt.Errorf("pake: decoding alpha: %w", err)
	}
	xu := new(ristretto.Element)
	if err := xu.Decode(b[elementLen:]); err != nil {
		return nil, fmt.Errorf("pake: decoding xu: %w", err)
	}
	return &LoginStart{Alpha: alpha, Xu: xu}, nil
}

// Encode lays out beta(32) || xs(32) || fk1(32) || ciphertext.
func (m *LoginChallenge) Encode() []byte {
	buf := make([]byte, 0, elementLen*3+len(m.FK1)+len(m.C.Ciphertext)+elementLen+4)
	buf = append(buf, m.Beta.Encode(nil)...)
	buf = append(buf, m.Xs.Encode(nil)...)
	buf = append(buf, m.FK1...)
	buf = encodeAuthCiphertext(buf, m.C)
	return buf
}

// DecodeLoginChallenge parses a LoginChallenge message.
func DecodeLoginChallenge(b []byte) (*LoginChallenge, error) {
	if len(b) < elementLen*3 {
		return nil, fmt.Errorf("pake: login challenge shorter than fixed header")
	}
	beta := new(ristretto.Element)
	if err := beta.Decode(b[:elementLen]); err != nil {
		return nil, fmt.Errorf("pake: decoding beta: %w", err)
	}
	xs := new(ristretto.Element)
	if err := xs.Decode(b[elementLen : elementLen*2]); err != nil {
		return nil, fmt.Errorf("pake: decoding xs: %w", err)
	}
	fk1 := append([]byte(nil), b[elementLen*2:elementLen*3]...)
	c, rest, err := decodeAuthCiphertext(b[elementLen*3:])
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("pake: trailing bytes after login challenge")
	}
	return &LoginChallenge{Beta: beta, Xs: xs, FK1: fk1, C: c}, nil
}

// EncodeLoginFinish lays out fk2(32), the login_finish request body.
func EncodeLoginFinish(fk2 []byte) []byte {
	return append([]byte(nil), fk2...)
}

// Encode lays out ciphertext || pu(32), the registration_finish request
// body.
func (r *Registration) Encode() []byte {
	buf := encodeAuthCiphertext(nil, r.Envelope)
	buf = append(buf, r.Pu.Encode(nil)...)
	return buf
}

// DecodeRegistration parses a Registration message.
func DecodeRegistration(b []byte) (*Registration, error) {
	envelope, rest, err := decodeAuthCiphertext(b)
	if err != nil {
		return nil, err
	}
	if len(rest) != elementLen {
		return nil, fmt.Errorf("pake: registration missing or malformed static public key")
	}
	pu := new(ristretto.Element)
	if err := pu.Decode(rest); err != nil {
		return nil, fmt.Errorf("pake: decoding pu: %w", err)
	}
	return &Registration{Envelope: envelope, Pu: pu}, nil
}

// MarshalPasswordFile serializes a PasswordFile for storage in the
// Credentials keyspace.
func MarshalPasswordFile(pf *PasswordFile) []byte {
	buf := make([]byte, 0, elementLen*4)
	buf = append(buf, pf.KS.Encode(nil)...)
	buf = append(buf, pf.Ps.Encode(nil)...)
	buf = append(buf, pf.Pp.Encode(nil)...)
	buf = append(buf, pf.Pu.Encode(nil)...)
	buf = encodeAuthCiphertext(buf, pf.C)
	return buf
}

// UnmarshalPasswordFile parses a PasswordFile read back from the
// Credentials keyspace.
func UnmarshalPasswordFile(b []byte) (*PasswordFile, error) {
	if len(b) < elementLen*4 {
		return nil, fmt.Errorf("pake: password file shorter than fixed header")
	}
	ks := new(ristretto.Scalar)
	if err := ks.Decode(b[:elementLen]); err != nil {
		return nil, fmt.Errorf("pake: decoding ks: %w", err)
	}
	ps := new(ristretto.Scalar)
	if err := ps.Decode(b[elementLen : elementLen*2]); err != nil {
		return nil, fmt.Errorf("pake: decoding ps: %w", err)
	}
	pp := new(ristretto.Element)
	if err := pp.Decode(b[elementLen*2 : elementLen*3]); err != nil {
		return nil, fmt.Errorf("pake: decoding pp: %w", err)
	}
	pu := new(ristretto.Element)
	if err := pu.Decode(b[elementLen*3 : elementLen*4]); err != nil {
		return nil, fmt.Errorf("pake: decoding pu: %w", err)
	}
	c, rest, err := decodeAuthCiphertext(b[elementLen*4:])
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("pake: trailing bytes after password file")
	}
	return &PasswordFile{KS: ks, Ps: ps, Pp: pp, Pu: pu, C: c}, nil
}
