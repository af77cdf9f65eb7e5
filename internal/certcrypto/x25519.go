package certcrypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/box"
)

var ErrShortKey = errors.New("public key must be 32 bytes")

// X25519KeyPair is an ephemeral key exchange keypair used during
// enrollment (spec §4.4, stage 1).
type X25519KeyPair struct {
	Public  [32]byte
	private [32]byte
}

func GenerateX25519KeyPair() (X25519KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return X25519KeyPair{}, err
	}
	return X25519KeyPair{Public: *pub, private: *priv}, nil
}

// SharedSecret runs X25519 ECDH against a peer's public key, matching
// nacl/box's Precompute scalar multiplication.
func (k X25519KeyPair) SharedSecret(peerPublic [32]byte) [32]byte {
	var shared [32]byte
	box.Precompute(&shared, &peerPublic, &k.private)
	return shared
}

func BytesToPublicKey(b []byte) ([32]byte, error) {
	var out [32]byte
	if len(b) != 32 {
		return out, ErrShortKey
	}
	copy(out[:], b)
	return out, nil
}
