package certcrypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/pbkdf2"
)

// Hash256 returns the Blake2b-256 digest of data, the hash spec §6 allows
// as an alternative to SHA-256 and the one used for nonce commitments
// during enrollment stage 1 (hash(claimer_nonce)).
func Hash256(data ...[]byte) []byte {
	h, _ := blake2b.New256(nil)
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// DeriveKeyFromPassphrase derives a 32-byte symmetric key from a
// passphrase and a per-device salt, used to protect a device key file
// when the caller chose passphrase-based protection (spec §6).
func DeriveKeyFromPassphrase(passphrase string, salt []byte) [32]byte {
	derived := pbkdf2.Key([]byte(passphrase), salt, 100_000, 32, sha256.New)
	var out [32]byte
	copy(out[:], derived)
	return out
}
