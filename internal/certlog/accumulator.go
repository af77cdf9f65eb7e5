// Package certlog adds an optional per-topic tamper-evidence accumulator
// on top of the certificate store: each topic's accepted certificates are
// folded, in insertion order, into a Merkle Mountain Range whose peak
// hashes are a compact commitment to the topic's accepted history. The
// package exposes the peaks only; it does not produce or check
// inclusion proofs. This is not required by the
// certificate/timestamp ordering invariants themselves (those are
// enforced by internal/certstore); it strengthens testable property 1
// (topic ordering) and 3 (cache subset of disk) with an auditable,
// append-only accumulator, grounded on the teacher's merkle-log core.
package certlog

import (
	"crypto/sha256"
	"errors"
	"sync"

	"github.com/parsec-cloud/libparsec-go/mmr"
)

var ErrIndexOutOfRange = errors.New("certlog: node index out of range")

// memoryNodes is a NodeAppender backed by a plain slice, the simplest
// possible store for AddHashedLeaf. The nodes live only in memory:
// nothing persists them, and a new Accumulator starts empty.
type memoryNodes struct {
	mu    sync.RWMutex
	nodes [][]byte
}

func (m *memoryNodes) Get(i uint64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i >= uint64(len(m.nodes)) {
		return nil, ErrIndexOutOfRange
	}
	return m.nodes[i], nil
}

func (m *memoryNodes) Append(value []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = append(m.nodes, value)
	return uint64(len(m.nodes)), nil
}

func (m *memoryNodes) size() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.nodes))
}

// Accumulator is one topic's append-only Merkle Mountain Range of
// accepted-certificate hashes.
type Accumulator struct {
	store *memoryNodes
}

func New() *Accumulator {
	return &Accumulator{store: &memoryNodes{}}
}

// Add folds a newly accepted certificate's envelope bytes into the
// accumulator and returns the resulting mmr size.
func (a *Accumulator) Add(certificateEnvelope []byte) (uint64, error) {
	h := sha256.Sum256(certificateEnvelope)
	hasher := sha256.New()
	return mmr.AddHashedLeaf(a.store, hasher, h[:])
}

// Peaks returns the current accumulator peak hashes, the compact
// commitment to every certificate folded in so far.
func (a *Accumulator) Peaks() ([][]byte, error) {
	size := a.store.size()
	if size == 0 {
		return nil, nil
	}
	return mmr.PeakHashes(a.store, size-1)
}

// Size returns the number of mmr nodes (not leaves) recorded so far.
func (a *Accumulator) Size() uint64 {
	return a.store.size()
}
