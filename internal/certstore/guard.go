package certstore

import (
	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
	"github.com/parsec-cloud/libparsec-go/internal/storage"
)

// ReadGuard is handed to ForRead callbacks. It exposes the same query
// surface as the store's top-level methods but documents, by its type,
// that the caller is inside a held shared lock and must not block for a
// long time.
type ReadGuard struct {
	store *Store
}

func (g *ReadGuard) GetLastTimestamps() (certtypes.PerTopicLastTimestamps, error) {
	return g.store.getLastTimestampsLocked()
}

func (g *ReadGuard) GetDeviceVerifyKey(device certtypes.DeviceID) ([]byte, error) {
	return g.store.getDeviceVerifyKeyLocked(device)
}

// WriteGuard is handed to ForWrite callbacks. It wraps the adapter's
// update scope plus the validation pipeline; every append made through it
// either all lands (on Commit) or none does.
//
// This is the Go resolution of the source's async-inversion problem
// (spec §9): there is no captured-mutable-reference-across-a-future
// issue here because the callback runs synchronously, in the same stack
// frame as the scope, for the whole duration of ForWrite. No builder or
// command queue is required.
type WriteGuard struct {
	scope *storage.UpdateScope
	store *Store
}

// InsertBatch runs the C2 validation pipeline (spec §4.2) over a batch of
// certificates scoped to a single topic and, if every one validates,
// appends them all and updates the cache inline. The batch is
// all-or-nothing: the first failure aborts the whole batch without
// appending any of it.
func (g *WriteGuard) InsertBatch(topic certtypes.Topic, certs []PendingCertificate) error {
	return g.store.insertBatch(g.scope, topic, certs)
}

func (g *WriteGuard) ForgetAll() error {
	return g.store.forgetAllLocked(g.scope)
}
