package enrollment

import (
	"github.com/parsec-cloud/libparsec-go/internal/certcrypto"
	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
)

// ClaimPayload is what the claimer encrypts and posts in stage 4. For a
// device claim, PublicKey and RequestedHandle are left empty.
type ClaimPayload struct {
	Kind            ClaimKind `cbor:"1,keyasint"`
	DeviceLabel     string    `cbor:"2,keyasint"`
	VerifyKey       []byte    `cbor:"3,keyasint"`
	PublicKey       []byte    `cbor:"4,keyasint,omitempty"` // user claim only
	RequestedHandle string    `cbor:"5,keyasint,omitempty"` // user claim only
}

// GreeterConfirmation is what the greeter seals back to the claimer once
// its certificates have been accepted by the server.
type GreeterConfirmation struct {
	Kind     ClaimKind          `cbor:"1,keyasint"`
	UserID   certtypes.UserID   `cbor:"2,keyasint,omitempty"`
	DeviceID certtypes.DeviceID `cbor:"3,keyasint"`
}

// SealPayload encrypts v under the stage-1 shared secret.
func SealPayload(shared [32]byte, v any) ([]byte, error) {
	plain, err := certcrypto.MarshalPayload(v)
	if err != nil {
		return nil, err
	}
	return certcrypto.SealSymmetric(shared, plain)
}

// OpenPayload decrypts and decodes a value sealed by SealPayload.
func OpenPayload(shared [32]byte, sealed []byte, v any) error {
	plain, err := certcrypto.OpenSymmetric(shared, sealed)
	if err != nil {
		return err
	}
	return certcrypto.UnmarshalPayload(plain, v)
}
