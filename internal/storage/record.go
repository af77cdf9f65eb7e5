package storage

import "github.com/parsec-cloud/libparsec-go/internal/certtypes"

// Record is what the adapter persists: the metadata indexed during
// insertion plus the certificate envelope. The adapter seals the whole
// Record, metadata included, as one blob under the device-local key, and
// Query returns it decrypted.
type Record struct {
	Topic     certtypes.Topic
	Kind      certtypes.Kind
	Timestamp certtypes.Timestamp
	Author    certtypes.DeviceID
	RealmID   certtypes.RealmID // zero value when the topic isn't realm-scoped
	UserID    certtypes.UserID  // zero value when the record isn't user-scoped

	// Ciphertext is the signed, armored certificate envelope as produced
	// by certcrypto.SigningKey.Sign; it is encrypted at rest only as part of the
	// sealed Record.
	Ciphertext []byte
}

// Query selects records from one topic, optionally narrowed by author,
// user, or realm, and bounded by an upper timestamp.
type Query struct {
	Topic   certtypes.Topic
	Author  *certtypes.DeviceID
	UserID  *certtypes.UserID
	RealmID *certtypes.RealmID

	// UpTo is the query time bound: zero value (certtypes.Timestamp(0))
	// combined with Unbounded=true means "current"; otherwise results
	// are restricted to Timestamp <= UpTo.
	UpTo      certtypes.Timestamp
	Unbounded bool
}

func (q Query) matches(r Record) bool {
	if r.Topic != q.Topic {
		return false
	}
	if q.Author != nil && r.Author != *q.Author {
		return false
	}
	if q.UserID != nil && r.UserID != *q.UserID {
		return false
	}
	if q.RealmID != nil && r.RealmID != *q.RealmID {
		return false
	}
	if !q.Unbounded && r.Timestamp > q.UpTo {
		return false
	}
	return true
}
