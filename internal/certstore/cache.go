package certstore

import "github.com/parsec-cloud/libparsec-go/internal/certtypes"

// scalarCache mirrors the source's ScalarCache<T>: present-or-absent,
// never "stale" — a cleared cache is simply refetched on next read. Go
// doesn't need a dedicated enum for this; a pointer captures Miss (nil)
// vs Present (non-nil) without an extra discriminant.
type scalarCache[T any] struct {
	value *T
}

func (c *scalarCache[T]) get() (T, bool) {
	if c.value == nil {
		var zero T
		return zero, false
	}
	return *c.value, true
}

func (c *scalarCache[T]) set(v T) {
	c.value = &v
}

func (c *scalarCache[T]) clear() {
	c.value = nil
}

// CurrentViewCache is the derived, in-memory view over the durable
// certificate log: last-timestamps per topic, the caller's own current
// profile, and per-user/per-device lookups populated lazily on read
// miss. It is always a subset of the durable contents (testable
// property 3): an entry only ever gets in by being read back out of the
// adapter, and any write failure clears the whole structure rather than
// trying to selectively undo entries added during the failed scope.
type CurrentViewCache struct {
	lastTimestamps scalarCache[certtypes.PerTopicLastTimestamps]
	selfProfile    scalarCache[certtypes.UserProfile]
	userProfiles   map[certtypes.UserID]certtypes.UserProfile
	deviceKeys     map[certtypes.DeviceID][]byte // verify keys
}

func newCurrentViewCache() *CurrentViewCache {
	return &CurrentViewCache{
		userProfiles: make(map[certtypes.UserID]certtypes.UserProfile),
		deviceKeys:   make(map[certtypes.DeviceID][]byte),
	}
}

func (c *CurrentViewCache) clear() {
	c.lastTimestamps.clear()
	c.selfProfile.clear()
	c.userProfiles = make(map[certtypes.UserID]certtypes.UserProfile)
	c.deviceKeys = make(map[certtypes.DeviceID][]byte)
}
