package certcrypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
)

const (
	AlgoRSAOAEPSHA256 = "rsaes-oaep-sha256"
	AlgoRSAPSSSHA256  = "rsassa-pss-sha256"
)

// SequesterEncrypt implements spec §6's sequester armor for encryption:
// a fresh AEAD key wraps the plaintext, then the AEAD key itself is
// wrapped under the sequester service's RSA-OAEP public key. Envelope is
// "rsaes-oaep-sha256:wrapped-secret-key||AEAD-ciphertext".
func SequesterEncrypt(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	var dataKey [32]byte
	if _, err := rand.Read(dataKey[:]); err != nil {
		return nil, err
	}
	ciphertext, err := SealSymmetric(dataKey, plaintext)
	if err != nil {
		return nil, err
	}
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, dataKey[:], nil)
	if err != nil {
		return nil, err
	}
	return Armor(AlgoRSAOAEPSHA256, wrapped, ciphertext), nil
}

// SequesterDecrypt reverses SequesterEncrypt.
func SequesterDecrypt(priv *rsa.PrivateKey, envelope []byte) ([]byte, error) {
	algo, parts, err := Unarmor(envelope)
	if err != nil {
		return nil, err
	}
	if algo != AlgoRSAOAEPSHA256 {
		return nil, fmt.Errorf("%w: unexpected sequester algorithm %q", ErrMalformedEnvelope, algo)
	}
	if len(parts) != 2 {
		return nil, ErrMalformedEnvelope
	}
	wrapped, ciphertext := parts[0], parts[1]
	dataKeyBytes, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, err
	}
	var dataKey [32]byte
	copy(dataKey[:], dataKeyBytes)
	return OpenSymmetric(dataKey, ciphertext)
}

// SequesterSign implements spec §6's sequester signature armor:
// "rsassa-pss-sha256:signature||payload".
func SequesterSign(priv *rsa.PrivateKey, payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], nil)
	if err != nil {
		return nil, err
	}
	return Armor(AlgoRSAPSSSHA256, sig, payload), nil
}

// SequesterVerify reverses SequesterSign and returns the enclosed payload.
func SequesterVerify(pub *rsa.PublicKey, envelope []byte) ([]byte, error) {
	algo, parts, err := Unarmor(envelope)
	if err != nil {
		return nil, err
	}
	if algo != AlgoRSAPSSSHA256 {
		return nil, fmt.Errorf("%w: unexpected sequester algorithm %q", ErrBadSignature, algo)
	}
	if len(parts) != 2 {
		return nil, ErrBadSignature
	}
	sig, payload := parts[0], parts[1]
	digest := sha256.Sum256(payload)
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, nil); err != nil {
		return nil, ErrBadSignature
	}
	return payload, nil
}
