// Package certcrypto wires the cryptographic primitives mandated by the
// certificate and wire formats: deterministic CBOR payload encoding,
// Ed25519 signatures, X25519 key exchange, AEAD symmetric encryption,
// Blake2b hashing, PBKDF2 passphrase derivation, and the RSA sequester
// envelope formats.
package certcrypto

import "github.com/fxamacker/cbor/v2"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Canonical (deterministic) encoding: map keys sorted, no
	// indefinite-length items, shortest-form integers. Certificate
	// payloads must encode identically across runs given identical
	// field values, since the signature covers the encoded bytes.
	encOpts := cbor.CanonicalEncOptions()
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(err)
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
		TagsMd:      cbor.TagsForbidden,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(err)
	}
}

// MarshalPayload deterministically CBOR-encodes a certificate payload.
func MarshalPayload(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// UnmarshalPayload decodes a certificate payload previously produced by
// MarshalPayload.
func UnmarshalPayload(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
