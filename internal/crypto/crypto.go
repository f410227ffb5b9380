// Package crypto implements the Ristretto255 group operations, oblivious
// PRF, keyed PRF and key-exchange primitives the PAKE handshake in
// internal/pake is built from. Nothing here is specific to a wire format or
// to storage; it is the same low-level toolbox an OPAQUE-style protocol is
// always assembled from.
package crypto

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	ristretto "github.com/gtank/ristretto255"
)

const (
	argonTime   = 3
	argonMemory = 1e5
)

// RandomScalar returns a uniformly random ristretto255 scalar (←R Zq).
func RandomScalar() *ristretto.Scalar {
	b := make([]byte, 64)
	if _, err := rand.Read(b); err != nil {
		panic("crypto: could not get entropy")
	}
	return new(ristretto.Scalar).FromUniformBytes(b)
}

// OPRFBlind computes the oblivious PRF output H(x, H'(x)^k), where H' maps
// uniform bytes onto a group element. x must be exactly 64 bytes (callers
// pass a SHA3-512 digest); any other length panics. The output is stretched with Argon2id so that a compromised
// server's OPRF key does not turn a stolen password file into a cheap
// offline dictionary attack.
func OPRFBlind(x []byte, k *ristretto.Scalar) []byte {
	hprimex := new(ristretto.Element).FromUniformBytes(x) // H'(x)
	hprimex.ScalarMult(k, hprimex)                         // H'(x)^k
	hash := sha3.Sum512(append(x, hprimex.Encode(nil)...)) // H(x, H'(x)^k)
	return argon2.IDKey(hash[:], nil, argonTime, argonMemory, 4, 32)
}

// OPRFUnblind recovers the same OPRF output as OPRFBlind from the client's
// side of the exchange, given β = (H'(x)^r)^k, the blinding factor r, and
// the original input x.
func OPRFUnblind(beta *ristretto.Element, r *ristretto.Scalar, x [64]byte) []byte {
	rinv := new(ristretto.Scalar).Invert(r)
	// β^{1/r} = (a^k)^{1/r} = (((H'(x))^r)^k)^{1/r} = H'(x)^k
	betaRInv := new(ristretto.Element).ScalarMult(rinv, beta)
	hash := sha3.Sum512(append(x[:], betaRInv.Encode(nil)...))
	return argon2.IDKey(hash[:], nil, argonTime, argonMemory, 4, 32)
}

// PRF is a keyed pseudorandom function built from Blake2b-256.
func PRF(k [32]byte, x []byte) []byte {
	h, err := blake2b.New256(k[:])
	if err != nil {
		panic(err)
	}
	if _, err := h.Write(x); err != nil {
		panic(err)
	}
	return h.Sum(nil)
}

// DeriveKeys splits an input key material string into a separate
// authentication key and cipher key via HKDF-SHA3-512.
func DeriveKeys(ikm []byte) (authKey, cipherKey []byte) {
	kdf := hkdf.New(sha3.New512, ikm, nil, nil)
	cipherKey = make([]byte, 32)
	authKey = make([]byte, 32)
	if _, err := io.ReadFull(kdf, cipherKey); err != nil {
		panic("crypto: could not derive HKDF key material")
	}
	if _, err := io.ReadFull(kdf, authKey); err != nil {
		panic("crypto: could not derive HKDF key material")
	}
	return authKey, cipherKey
}

// KeyExchangeServer computes the server's side of the triple-DH key
// exchange: shared secret SHA3-256(xs·Pu || ps·Xu || xs·Xu), where ps/xs are
// the server's static/ephemeral scalars and Pu/Xu the client's static/
// ephemeral public elements.
func KeyExchangeServer(ps, xs *ristretto.Scalar, Pu, Xu *ristretto.Element) [32]byte {
	xsPu := new(ristretto.Element).ScalarMult(xs, Pu)
	psXu := new(ristretto.Element).ScalarMult(ps, Xu)
	xsXu := new(ristretto.Element).ScalarMult(xs, Xu)
	shared := append(xsPu.Encode(nil), psXu.Encode(nil)...)
	shared = append(shared, xsXu.Encode(nil)...)
	return sha3.Sum256(shared)
}

// KeyExchangeClient computes the client's side of the same triple-DH key
// exchange; the two sides agree because ECDH is commutative over the
// exchanged terms (puXs == xsPu, xuPs == psXu, xuXs == xsXu).
func KeyExchangeClient(pu, xu *ristretto.Scalar, Ps, Xs *ristretto.Element) [32]byte {
	puXs := new(ristretto.Element).ScalarMult(pu, Xs)
	xuPs := new(ristretto.Element).ScalarMult(xu, Ps)
	xuXs := new(ristretto.Element).ScalarMult(xu, Xs)
	shared := append(puXs.Encode(nil), xuPs.Encode(nil)...)
	shared = append(shared, xuXs.Encode(nil)...)
	return sha3.Sum256(shared)
}

// Clear zeroes a byte slice in place, for scrubbing key material that must
// not outlive its handshake.
func Clear(x []byte) {
	for i := range x {
		x[i] = 0
	}
}
