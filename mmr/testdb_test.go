package mmr

import (
	"errors"
	"testing"
)

var errNotFound = errors.New("mmr: test db: index not found")

// testDb is the simplest possible NodeAppender: an in-memory map-backed
// store, good enough to drive AddHashedLeaf in tests without needing a real
// backing store.
type testDb struct {
	t     *testing.T
	store map[uint64][]byte
	next  uint64
}

func NewTestDb(t *testing.T) *testDb {
	db := testDb{
		t: t, store: make(map[uint64][]byte),
		next: uint64(0),
	}
	return &db
}

func (db *testDb) Append(value []byte) (uint64, error) {
	db.store[db.next] = value
	db.next += 1
	return db.next, nil
}

func (db *testDb) Get(i uint64) ([]byte, error) {
	if value, ok := db.store[i]; ok {
		return value, nil
	}
	return nil, errNotFound
}
