package certcrypto

import (
	"encoding/binary"
	"math/big"
)

// sasDigits is the number of base-32 digits in a displayed SAS code, e.g
// "MHWK" -- four characters carry ~20 bits, plenty for the human
// comparison step to make echo attacks infeasible.
const sasDigits = 4

var sasAlphabet = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ234567")

// SASCodes holds the two short strings derived at the end of enrollment
// stage 1, which the greeter and claimer compare out of band in stages 2
// and 3.
type SASCodes struct {
	GreeterSAS string
	ClaimerSAS string
}

// DeriveSASCodes partitions Hash256(claimerNonce||greeterNonce||sharedSecret)
// into two independent digit strings, mirroring the original source's
// claimer_nonce || greeter_nonce || shared_secret KDF input order.
func DeriveSASCodes(claimerNonce, greeterNonce []byte, sharedSecret [32]byte) SASCodes {
	digest := Hash256(claimerNonce, greeterNonce, sharedSecret[:])
	return SASCodes{
		GreeterSAS: encodeSAS(digest[:8]),
		ClaimerSAS: encodeSAS(digest[8:16]),
	}
}

func encodeSAS(seed []byte) string {
	v := binary.BigEndian.Uint64(seed)
	out := make([]byte, sasDigits)
	base := big.NewInt(int64(len(sasAlphabet)))
	n := new(big.Int).SetUint64(v)
	mod := new(big.Int)
	for i := sasDigits - 1; i >= 0; i-- {
		n.DivMod(n, base, mod)
		out[i] = sasAlphabet[mod.Int64()]
	}
	return string(out)
}
