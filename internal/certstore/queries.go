package certstore

import (
	"errors"
	"fmt"

	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
	"github.com/parsec-cloud/libparsec-go/internal/storage"
)

// GetCurrentSelfProfile returns the caller's own current access profile,
// resolved from the most recent UserUpdate certificate targeting it.
func (g *ReadGuard) GetCurrentSelfProfile() (certtypes.UserProfile, error) {
	return g.store.getCurrentSelfProfileLocked()
}

func (s *Store) getCurrentSelfProfileLocked() (certtypes.UserProfile, error) {
	if p, ok := s.cache.selfProfile.get(); ok {
		return p, nil
	}
	records, err := s.adapter.Query(storage.Query{Topic: certtypes.TopicCommon, UserID: &s.selfUserID, Unbounded: true})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return certtypes.ProfileOutsider, nil
		}
		return 0, err
	}
	profile := certtypes.ProfileOutsider
	var latest certtypes.Timestamp
	for _, r := range records {
		if r.Kind != certtypes.KindUser && r.Kind != certtypes.KindUserUpdate {
			continue
		}
		p, ts, ok := decodeProfile(r)
		if ok && ts >= latest {
			profile, latest = p, ts
		}
	}
	s.cache.selfProfile.set(profile)
	return profile, nil
}

func decodeProfile(r storage.Record) (certtypes.UserProfile, certtypes.Timestamp, bool) {
	switch r.Kind {
	case certtypes.KindUser:
		var uc certtypes.UserCertificate
		if decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &uc) != nil {
			return 0, 0, false
		}
		return uc.Profile, uc.Timestamp, true
	case certtypes.KindUserUpdate:
		var uc certtypes.UserUpdateCertificate
		if decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &uc) != nil {
			return 0, 0, false
		}
		return uc.Profile, uc.Timestamp, true
	default:
		return 0, 0, false
	}
}

// queryKind runs a query against a topic and UpTo bound, keeping only
// records of the given kind that satisfy match, and decoding each into a
// T. Results come back in ascending timestamp order, since bbolt cursors
// iterate by key byte order and encodeKey is big-endian.
func queryKind[T any](s *Store, topic certtypes.Topic, kind certtypes.Kind, upTo certtypes.Timestamp, unbounded bool, match func(storage.Record) bool, decode func(storage.Record) (T, bool)) ([]T, error) {
	q := storage.Query{Topic: topic, UpTo: upTo, Unbounded: unbounded}
	records, err := s.adapter.Query(q)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var out []T
	for _, r := range records {
		if r.Kind != kind || !match(r) {
			continue
		}
		v, ok := decode(r)
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// GetUserCertificate returns a user's User certificate, as of now or as
// of upTo if unbounded is false.
func (g *ReadGuard) GetUserCertificate(user certtypes.UserID, upTo certtypes.Timestamp, unbounded bool) (certtypes.UserCertificate, error) {
	results, err := queryKind(g.store, certtypes.TopicCommon, certtypes.KindUser, upTo, unbounded,
		func(r storage.Record) bool { return r.UserID == user },
		func(r storage.Record) (certtypes.UserCertificate, bool) {
			var uc certtypes.UserCertificate
			return uc, decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &uc) == nil
		})
	if err != nil {
		return certtypes.UserCertificate{}, err
	}
	if len(results) == 0 {
		return certtypes.UserCertificate{}, fmt.Errorf("%w: user %s", storage.ErrNotFound, user)
	}
	return results[0], nil
}

// GetDeviceCertificate returns a device's Device certificate.
func (g *ReadGuard) GetDeviceCertificate(device certtypes.DeviceID, upTo certtypes.Timestamp, unbounded bool) (certtypes.DeviceCertificate, error) {
	results, err := queryKind(g.store, certtypes.TopicCommon, certtypes.KindDevice, upTo, unbounded,
		func(r storage.Record) bool { return true },
		func(r storage.Record) (certtypes.DeviceCertificate, bool) {
			var dc certtypes.DeviceCertificate
			if decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &dc) != nil {
				return dc, false
			}
			return dc, dc.DeviceID == device
		})
	if err != nil {
		return certtypes.DeviceCertificate{}, err
	}
	if len(results) == 0 {
		return certtypes.DeviceCertificate{}, fmt.Errorf("%w: device %s", storage.ErrNotFound, device)
	}
	return results[0], nil
}

// GetLastUserUpdate returns the most recent UserUpdate certificate for a
// user, if any.
func (g *ReadGuard) GetLastUserUpdate(user certtypes.UserID, upTo certtypes.Timestamp, unbounded bool) (certtypes.UserUpdateCertificate, bool, error) {
	results, err := queryKind(g.store, certtypes.TopicCommon, certtypes.KindUserUpdate, upTo, unbounded,
		func(r storage.Record) bool { return r.UserID == user },
		func(r storage.Record) (certtypes.UserUpdateCertificate, bool) {
			var uc certtypes.UserUpdateCertificate
			return uc, decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &uc) == nil
		})
	if err != nil {
		return certtypes.UserUpdateCertificate{}, false, err
	}
	if len(results) == 0 {
		return certtypes.UserUpdateCertificate{}, false, nil
	}
	latest := results[0]
	for _, uc := range results[1:] {
		if uc.Timestamp > latest.Timestamp {
			latest = uc
		}
	}
	return latest, true, nil
}

// GetRealmRoles returns every RealmRole certificate ever issued for a
// realm, in the order stored (ascending timestamp); the caller folds
// them to find the current role per user.
func (g *ReadGuard) GetRealmRoles(realm certtypes.RealmID, upTo certtypes.Timestamp, unbounded bool) ([]certtypes.RealmRoleCertificate, error) {
	return queryKind(g.store, certtypes.TopicRealm, certtypes.KindRealmRole, upTo, unbounded,
		func(r storage.Record) bool { return r.RealmID == realm },
		func(r storage.Record) (certtypes.RealmRoleCertificate, bool) {
			var rc certtypes.RealmRoleCertificate
			return rc, decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &rc) == nil
		})
}

// GetUserRealmsRoles returns every RealmRole certificate ever issued to
// a user, across every realm.
func (g *ReadGuard) GetUserRealmsRoles(user certtypes.UserID, upTo certtypes.Timestamp, unbounded bool) ([]certtypes.RealmRoleCertificate, error) {
	return queryKind(g.store, certtypes.TopicRealm, certtypes.KindRealmRole, upTo, unbounded,
		func(r storage.Record) bool { return r.UserID == user },
		func(r storage.Record) (certtypes.RealmRoleCertificate, bool) {
			var rc certtypes.RealmRoleCertificate
			return rc, decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &rc) == nil
		})
}

// GetLastShamirBriefForAuthor returns the most recent non-deleted Shamir
// recovery brief a user has set up for themself, if any.
func (g *ReadGuard) GetLastShamirBriefForAuthor(author certtypes.UserID, upTo certtypes.Timestamp, unbounded bool) (certtypes.ShamirRecoveryBriefCertificate, bool, error) {
	briefs, err := queryKind(g.store, certtypes.TopicShamirRecovery, certtypes.KindShamirRecoveryBrief, upTo, unbounded,
		func(r storage.Record) bool { return r.UserID == author },
		func(r storage.Record) (certtypes.ShamirRecoveryBriefCertificate, bool) {
			var bc certtypes.ShamirRecoveryBriefCertificate
			return bc, decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &bc) == nil
		})
	if err != nil {
		return certtypes.ShamirRecoveryBriefCertificate{}, false, err
	}
	if len(briefs) == 0 {
		return certtypes.ShamirRecoveryBriefCertificate{}, false, nil
	}
	deletions, err := queryKind(g.store, certtypes.TopicShamirRecovery, certtypes.KindShamirRecoveryDeletion, upTo, unbounded,
		func(r storage.Record) bool { return r.UserID == author },
		func(r storage.Record) (certtypes.ShamirRecoveryDeletionCertificate, bool) {
			var dc certtypes.ShamirRecoveryDeletionCertificate
			return dc, decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &dc) == nil
		})
	if err != nil {
		return certtypes.ShamirRecoveryBriefCertificate{}, false, err
	}
	deleted := make(map[certtypes.Timestamp]bool, len(deletions))
	for _, d := range deletions {
		deleted[d.SetupToDeleteTS] = true
	}

	var latest certtypes.ShamirRecoveryBriefCertificate
	found := false
	for _, b := range briefs {
		if deleted[b.Timestamp] {
			continue
		}
		if !found || b.Timestamp > latest.Timestamp {
			latest, found = b, true
		}
	}
	return latest, found, nil
}

// GetShamirRecoveryShare returns the share certificate a setup author
// issued to one recipient, if any.
func (g *ReadGuard) GetShamirRecoveryShare(author, recipient certtypes.UserID, upTo certtypes.Timestamp, unbounded bool) (certtypes.ShamirRecoveryShareCertificate, bool, error) {
	shares, err := queryKind(g.store, certtypes.TopicShamirRecovery, certtypes.KindShamirRecoveryShare, upTo, unbounded,
		func(r storage.Record) bool { return r.UserID == author },
		func(r storage.Record) (certtypes.ShamirRecoveryShareCertificate, bool) {
			var sc certtypes.ShamirRecoveryShareCertificate
			if decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &sc) != nil {
				return sc, false
			}
			return sc, sc.Recipient == recipient
		})
	if err != nil {
		return certtypes.ShamirRecoveryShareCertificate{}, false, err
	}
	if len(shares) == 0 {
		return certtypes.ShamirRecoveryShareCertificate{}, false, nil
	}
	latest := shares[0]
	for _, s := range shares[1:] {
		if s.Timestamp > latest.Timestamp {
			latest = s
		}
	}
	return latest, true, nil
}

// GetSequesterAuthorityCertificate returns the organization's sequester
// authority certificate, if sequester was enabled at bootstrap.
func (g *ReadGuard) GetSequesterAuthorityCertificate(upTo certtypes.Timestamp, unbounded bool) (certtypes.SequesterAuthorityCertificate, bool, error) {
	results, err := queryKind(g.store, certtypes.TopicSequester, certtypes.KindSequesterAuthority, upTo, unbounded,
		func(r storage.Record) bool { return true },
		func(r storage.Record) (certtypes.SequesterAuthorityCertificate, bool) {
			var sc certtypes.SequesterAuthorityCertificate
			return sc, decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &sc) == nil
		})
	if err != nil {
		return certtypes.SequesterAuthorityCertificate{}, false, err
	}
	if len(results) == 0 {
		return certtypes.SequesterAuthorityCertificate{}, false, nil
	}
	return results[0], true, nil
}

// GetSequesterServices returns every non-revoked SequesterService
// certificate, in the order stored.
func (g *ReadGuard) GetSequesterServices(upTo certtypes.Timestamp, unbounded bool) ([]certtypes.SequesterServiceCertificate, error) {
	services, err := queryKind(g.store, certtypes.TopicSequester, certtypes.KindSequesterService, upTo, unbounded,
		func(r storage.Record) bool { return true },
		func(r storage.Record) (certtypes.SequesterServiceCertificate, bool) {
			var sc certtypes.SequesterServiceCertificate
			return sc, decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &sc) == nil
		})
	if err != nil {
		return nil, err
	}
	revocations, err := queryKind(g.store, certtypes.TopicSequester, certtypes.KindSequesterRevokedService, upTo, unbounded,
		func(r storage.Record) bool { return true },
		func(r storage.Record) (certtypes.SequesterRevokedServiceCertificate, bool) {
			var rc certtypes.SequesterRevokedServiceCertificate
			return rc, decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &rc) == nil
		})
	if err != nil {
		return nil, err
	}
	revoked := make(map[certtypes.SequesterServiceID]bool, len(revocations))
	for _, r := range revocations {
		revoked[r.ServiceID] = true
	}
	out := services[:0]
	for _, s := range services {
		if !revoked[s.ServiceID] {
			out = append(out, s)
		}
	}
	return out, nil
}
