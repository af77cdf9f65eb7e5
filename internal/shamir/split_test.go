package shamir

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitAndCombineRoundTrip(t *testing.T) {
	for threshold := uint32(1); threshold <= 8; threshold++ {
		for total := threshold; total <= 16; total++ {
			var secret [32]byte
			_, err := rand.Read(secret[:])
			require.NoError(t, err)

			shares, err := SplitSecret(secret, threshold, total)
			require.NoError(t, err)
			require.Len(t, shares, int(total))

			got, err := CombineSecret(threshold, shares[:threshold])
			require.NoError(t, err)
			require.Equal(t, secret, got)
		}
	}
}

func TestCombineFailsWithTooFewShares(t *testing.T) {
	var secret [32]byte
	_, err := rand.Read(secret[:])
	require.NoError(t, err)

	shares, err := SplitSecret(secret, 5, 9)
	require.NoError(t, err)

	_, err = CombineSecret(5, shares[:3])
	require.Error(t, err)
}

func TestSplitRejectsInvalidThreshold(t *testing.T) {
	var secret [32]byte
	_, err := SplitSecret(secret, 0, 4)
	require.Error(t, err)

	_, err = SplitSecret(secret, 5, 4)
	require.Error(t, err)
}
