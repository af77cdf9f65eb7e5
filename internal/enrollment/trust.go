package enrollment

// TrustChannel is the stage 2/3 server surface: signify_trust and
// deny_trust.
type TrustChannel interface {
	SignifyTrust() error
	DenyTrust() error
}

// Stage2TrustOnGreeter has the greeter display greeterSAS out of band
// and compare the claimer's read-back choice against it. A mismatch
// calls deny_trust and transitions both sides to PeerReset.
func Stage2TrustOnGreeter(ch TrustChannel, greeterSAS string, claimerChoice string) error {
	if claimerChoice != greeterSAS {
		_ = ch.DenyTrust()
		return ErrTrustDenied
	}
	return ch.SignifyTrust()
}

// Stage3TrustOnClaimer mirrors stage 2 with claimerSAS.
func Stage3TrustOnClaimer(ch TrustChannel, claimerSAS string, greeterChoice string) error {
	if greeterChoice != claimerSAS {
		_ = ch.DenyTrust()
		return ErrTrustDenied
	}
	return ch.SignifyTrust()
}

// ShuffleCandidates arranges the real SAS among three decoys at the
// index given by position (0..3), the shape the UI needs to present
// a 4-choice read-back without revealing which slot is genuine from the
// candidate list's structure alone.
func ShuffleCandidates(real string, decoys [3]string, position int) [4]string {
	var out [4]string
	decoyIdx := 0
	for i := range out {
		if i == position {
			out[i] = real
		} else {
			out[i] = decoys[decoyIdx]
			decoyIdx++
		}
	}
	return out
}
