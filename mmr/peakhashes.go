package mmr

// indexStoreGetter is the read side of NodeAppender: anything that can
// return a previously stored node value by its zero-based mmr index.
type indexStoreGetter interface {
	Get(i uint64) ([]byte, error)
}

// PeakHashes returns the node values for the accumulator peaks of the mmr
// whose last zero-based index is mmrIndex, highest peak first (matching
// the ordering Peaks itself returns).
func PeakHashes(store indexStoreGetter, mmrIndex uint64) ([][]byte, error) {
	mmrSize := mmrIndex + 1
	positions := Peaks(mmrSize)
	hashes := make([][]byte, len(positions))
	for i, pos := range positions {
		v, err := store.Get(pos - 1)
		if err != nil {
			return nil, err
		}
		hashes[i] = v
	}
	return hashes, nil
}
