package certcrypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/secretbox"
)

var ErrDecryptionFailed = errors.New("authenticated decryption failed")

// SealSymmetric encrypts plaintext with Xsalsa20-Poly1305 under key,
// prefixing the ciphertext with a fresh random nonce. This is the AEAD
// spec §6 mandates for symmetric encryption (shared-secret payloads,
// recovery-device ciphering, shamir share ciphering).
func SealSymmetric(key [32]byte, plaintext []byte) ([]byte, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	out := make([]byte, 24, 24+len(plaintext)+secretbox.Overhead)
	copy(out, nonce[:])
	return secretbox.Seal(out, plaintext, &nonce, &key), nil
}

// OpenSymmetric reverses SealSymmetric.
func OpenSymmetric(key [32]byte, sealed []byte) ([]byte, error) {
	if len(sealed) < 24 {
		return nil, ErrDecryptionFailed
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plaintext, ok := secretbox.Open(nil, sealed[24:], &nonce, &key)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
