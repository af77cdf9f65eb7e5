// Package storage implements the Local Persistence Adapter (C1): one
// bbolt database per device, encrypting each record at rest with a
// device-local symmetric key and exposing atomic multi-record update
// scopes, grounded on the bucket-per-domain-type bbolt idiom in
// cuemby-warren/pkg/storage/boltdb.go.
package storage

import (
	"fmt"

	"github.com/parsec-cloud/libparsec-go/internal/certcrypto"
	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

func bucketName(topic certtypes.Topic) []byte {
	return []byte("topic:" + topic.String())
}

// Adapter is the C1 local persistence adapter. All exported operations
// encrypt/decrypt transparently; callers only ever see Record/Query
// values in the clear.
type Adapter struct {
	db     *bolt.DB
	key    [32]byte
	logger zerolog.Logger
}

// Open opens (creating if absent) the device's local database, encrypted
// at rest under key. Buckets are created up front, one per topic, so
// later transactions never need to special-case bucket creation.
func Open(path string, key [32]byte, logger zerolog.Logger) (*Adapter, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, topic := range certtypes.Topics() {
			if _, err := tx.CreateBucketIfNotExists(bucketName(topic)); err != nil {
				return fmt.Errorf("%w: create bucket %s: %v", ErrInternal, topic, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Adapter{db: db, key: key, logger: logger.With().Str("component", "storage").Logger()}, nil
}

func (a *Adapter) Close() error {
	return a.db.Close()
}

func encodeKey(ts certtypes.Timestamp) []byte {
	var b [8]byte
	u := uint64(ts)
	for i := 7; i >= 0; i-- {
		b[i] = byte(u)
		u >>= 8
	}
	return b[:]
}

func (a *Adapter) encryptRecord(r Record) ([]byte, error) {
	plain, err := certcrypto.MarshalPayload(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	sealed, err := certcrypto.SealSymmetric(a.key, plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return sealed, nil
}

func (a *Adapter) decryptRecord(sealed []byte) (Record, error) {
	plain, err := certcrypto.OpenSymmetric(a.key, sealed)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	var r Record
	if err := certcrypto.UnmarshalPayload(plain, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return r, nil
}

// Query runs a read-only query against the current durable state.
func (a *Adapter) Query(q Query) ([]Record, error) {
	var out []Record
	err := a.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(q.Topic))
		if b == nil {
			return fmt.Errorf("%w: unknown topic bucket", ErrInternal)
		}
		return b.ForEach(func(k, v []byte) error {
			r, err := a.decryptRecord(v)
			if err != nil {
				return err
			}
			if q.matches(r) {
				out = append(out, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// LastTimestamp returns the greatest stored timestamp for a topic, or
// zero if the topic is empty.
func (a *Adapter) LastTimestamp(topic certtypes.Topic) (certtypes.Timestamp, error) {
	var last certtypes.Timestamp
	err := a.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(topic))
		if b == nil {
			return fmt.Errorf("%w: unknown topic bucket", ErrInternal)
		}
		c := b.Cursor()
		k, _ := c.Last()
		if k == nil {
			return nil
		}
		var u uint64
		for _, byt := range k {
			u = (u << 8) | uint64(byt)
		}
		last = certtypes.Timestamp(u)
		return nil
	})
	return last, err
}

// UpdateScope is an exclusive, atomic multi-record write. Append may be
// called any number of times; Commit makes the writes durable. If the
// scope is never committed, Rollback (or letting it go out of scope
// after calling Rollback explicitly) discards every append, matching
// spec §4.1's "begin an exclusive update scope ... with commit and
// implicit rollback on drop" — Go has no destructor to rely on for the
// implicit part, so callers (internal/certstore) are required to defer
// scope.Rollback() immediately after a successful Begin, which is a
// no-op once Commit has succeeded.
type UpdateScope struct {
	tx      *bolt.Tx
	adapter *Adapter
	done    bool
}

// Begin starts an exclusive update scope.
func (a *Adapter) Begin() (*UpdateScope, error) {
	tx, err := a.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &UpdateScope{tx: tx, adapter: a}, nil
}

// Append persists a new record within the scope. It does not take
// effect durably until Commit succeeds.
func (s *UpdateScope) Append(r Record) error {
	if s.done {
		return fmt.Errorf("%w: update scope already closed", ErrInternal)
	}
	b := s.tx.Bucket(bucketName(r.Topic))
	if b == nil {
		return fmt.Errorf("%w: unknown topic bucket", ErrInternal)
	}
	sealed, err := s.adapter.encryptRecord(r)
	if err != nil {
		return err
	}
	if err := b.Put(encodeKey(r.Timestamp), sealed); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return nil
}

// Query runs a read against the scope's in-flight transaction, so a
// write scope observes its own uncommitted appends.
func (s *UpdateScope) Query(q Query) ([]Record, error) {
	if s.done {
		return nil, fmt.Errorf("%w: update scope already closed", ErrInternal)
	}
	b := s.tx.Bucket(bucketName(q.Topic))
	if b == nil {
		return nil, fmt.Errorf("%w: unknown topic bucket", ErrInternal)
	}
	var out []Record
	err := b.ForEach(func(k, v []byte) error {
		r, err := s.adapter.decryptRecord(v)
		if err != nil {
			return err
		}
		if q.matches(r) {
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Commit durably applies every Append made within the scope.
func (s *UpdateScope) Commit() error {
	if s.done {
		return fmt.Errorf("%w: update scope already closed", ErrInternal)
	}
	s.done = true
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return nil
}

// Rollback discards every Append made within the scope. Safe to call
// after a successful Commit (no-op).
func (s *UpdateScope) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.tx.Rollback()
}
