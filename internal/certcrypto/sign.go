package certcrypto

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

const AlgoEd25519 = "ed25519"

var ErrBadSignature = errors.New("certificate signature verification failed")

// SigningKey wraps an Ed25519 private key, the signature scheme spec §6
// mandates for all certificates.
type SigningKey struct {
	priv ed25519.PrivateKey
}

func GenerateSigningKey() (SigningKey, ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return SigningKey{}, nil, err
	}
	return SigningKey{priv: priv}, pub, nil
}

func NewSigningKey(priv ed25519.PrivateKey) SigningKey {
	return SigningKey{priv: priv}
}

func (k SigningKey) PublicKey() ed25519.PublicKey {
	return k.priv.Public().(ed25519.PublicKey)
}

// Sign produces the armored envelope "ed25519:signature||payload" over a
// CBOR-encoded certificate payload.
func (k SigningKey) Sign(payload []byte) []byte {
	sig := ed25519.Sign(k.priv, payload)
	return Armor(AlgoEd25519, sig, payload)
}

// Verify checks an armored envelope against a verify key and returns the
// enclosed payload bytes.
func Verify(verifyKey ed25519.PublicKey, envelope []byte) ([]byte, error) {
	algo, parts, err := Unarmor(envelope)
	if err != nil {
		return nil, err
	}
	if algo != AlgoEd25519 {
		return nil, fmt.Errorf("%w: unexpected algorithm %q", ErrBadSignature, algo)
	}
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: expected signature and payload parts", ErrBadSignature)
	}
	sig, payload := parts[0], parts[1]
	if len(verifyKey) != ed25519.PublicKeySize || !ed25519.Verify(verifyKey, payload, sig) {
		return nil, ErrBadSignature
	}
	return payload, nil
}
