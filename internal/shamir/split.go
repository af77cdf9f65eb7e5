// Package shamir implements the Shamir Recovery Engine (C3): threshold
// splitting of a user's recovery secret, brief/share certificate
// emission, and the two successive RequireGreaterTimestamp retry loops spec
// §4.3 describes (first the recovery device, then the brief+shares
// batch). Secret splitting itself is grounded on
// github.com/cloudflare/circl/secretsharing, the only pack dependency
// offering a constant-time polynomial Shamir scheme instead of a
// hand-rolled one.
package shamir

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/group"
	"github.com/cloudflare/circl/secretsharing"
)

// shamirGroup is the field the polynomial scheme operates over. P256's
// scalar field is 256 bits wide, matching our 32-byte DataKey exactly;
// a uniformly random 32-byte secret has a roughly 2^-32 chance of not
// reducing losslessly, deemed acceptable here (see DESIGN.md).
var shamirGroup = group.P256

// Share is one recipient-share pair ready to be bundled into a
// weighted_share blob and encrypted under that recipient's key.
type Share struct {
	ID    group.Scalar
	Value group.Scalar
}

// SplitSecret splits a 32-byte secret into total shares recoverable by
// any threshold of them.
func SplitSecret(secret [32]byte, threshold, total uint32) ([]Share, error) {
	if threshold < 1 || threshold > total {
		return nil, fmt.Errorf("shamir: threshold %d out of range for %d shares", threshold, total)
	}

	s := shamirGroup.NewScalar()
	if err := s.UnmarshalBinary(secret[:]); err != nil {
		return nil, fmt.Errorf("shamir: secret does not reduce into the scalar field: %w", err)
	}

	set := secretsharing.New(rand.Reader, uint(threshold-1), s)
	raw := set.Share(shamirGroup, uint(total))

	shares := make([]Share, len(raw))
	for i, sh := range raw {
		shares[i] = Share{ID: sh.ID, Value: sh.Value}
	}
	return shares, nil
}

// CombineSecret reconstructs the original secret from threshold-or-more
// shares. Fewer shares than threshold is rejected with an error. A
// threshold argument lower than the one used at split time yields a
// wrong value rather than an error, as Lagrange interpolation has no way
// to tell; callers take the threshold from the brief certificate's
// Threshold field.
func CombineSecret(threshold uint32, shares []Share) ([32]byte, error) {
	var out [32]byte
	if uint32(len(shares)) < threshold {
		return out, fmt.Errorf("shamir: need at least %d shares, got %d", threshold, len(shares))
	}

	raw := make([]secretsharing.Share, len(shares))
	for i, s := range shares {
		raw[i] = secretsharing.Share{ID: s.ID, Value: s.Value}
	}

	secret, err := secretsharing.Recover(uint(threshold-1), raw)
	if err != nil {
		return out, fmt.Errorf("shamir: recover: %w", err)
	}
	b, err := secret.MarshalBinary()
	if err != nil {
		return out, fmt.Errorf("shamir: marshal recovered secret: %w", err)
	}
	copy(out[:], b)
	return out, nil
}

// MarshalShare/UnmarshalShare let a weighted_share blob (one recipient's
// allotment, possibly more than one Share when counts > 1) be
// CBOR-encoded for the ciphered_share payload.
func MarshalShare(s Share) ([]byte, []byte, error) {
	id, err := s.ID.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	val, err := s.Value.MarshalBinary()
	if err != nil {
		return nil, nil, err
	}
	return id, val, nil
}

func UnmarshalShare(id, val []byte) (Share, error) {
	s := Share{ID: shamirGroup.NewScalar(), Value: shamirGroup.NewScalar()}
	if err := s.ID.UnmarshalBinary(id); err != nil {
		return Share{}, err
	}
	if err := s.Value.UnmarshalBinary(val); err != nil {
		return Share{}, err
	}
	return s, nil
}
