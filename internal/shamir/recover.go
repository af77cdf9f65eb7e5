package shamir

import (
	"crypto/rsa"
	"fmt"

	"github.com/parsec-cloud/libparsec-go/internal/certcrypto"
	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
)

// GatheredShare is one recipient's decrypted contribution, ready to feed
// into Reconstruct.
type GatheredShare struct {
	Recipient certtypes.UserID
	Data      certtypes.ShamirRecoveryShareData
}

// DecryptShare opens a recipient's ciphered_share certificate field
// under that recipient's RSA private key.
func DecryptShare(priv *rsa.PrivateKey, cert certtypes.ShamirRecoveryShareCertificate) (GatheredShare, error) {
	plain, err := certcrypto.SequesterDecrypt(priv, cert.CipheredShare)
	if err != nil {
		return GatheredShare{}, fmt.Errorf("shamir: decrypt share: %w", err)
	}
	var data certtypes.ShamirRecoveryShareData
	if err := certcrypto.UnmarshalPayload(plain, &data); err != nil {
		return GatheredShare{}, fmt.Errorf("shamir: decode share: %w", err)
	}
	return GatheredShare{Recipient: cert.Recipient, Data: data}, nil
}

// Reconstruct rebuilds the recovery secret from a brief's threshold and
// at least that many recipients' decrypted shares (spec testable
// property 4: any threshold-sized subset reconstructs; fewer never
// does).
func Reconstruct(brief certtypes.ShamirRecoveryBriefCertificate, gathered []GatheredShare) ([32]byte, error) {
	var shares []Share
	for _, g := range gathered {
		for i := 0; i+1 < len(g.Data.WeightedShare); i += 2 {
			s, err := UnmarshalShare(g.Data.WeightedShare[i], g.Data.WeightedShare[i+1])
			if err != nil {
				return [32]byte{}, fmt.Errorf("shamir: decode weighted share for %s: %w", g.Recipient, err)
			}
			shares = append(shares, s)
		}
	}
	return CombineSecret(uint32(brief.Threshold), shares)
}
