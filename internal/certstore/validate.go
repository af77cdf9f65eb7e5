package certstore

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/parsec-cloud/libparsec-go/internal/certcrypto"
	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
	"github.com/parsec-cloud/libparsec-go/internal/storage"
)

// InvalidCertificateReason enumerates the InvalidCertificate{subtype}
// variants of spec §7.
type InvalidCertificateReason int

const (
	ReasonAuthorNotFound InvalidCertificateReason = iota
	ReasonAuthorRevoked
	ReasonAuthorBadSignature
	ReasonBadTimestamp
	ReasonViolatesTopicRule
)

func (r InvalidCertificateReason) String() string {
	switch r {
	case ReasonAuthorNotFound:
		return "author-not-found"
	case ReasonAuthorRevoked:
		return "author-revoked"
	case ReasonAuthorBadSignature:
		return "bad-signature"
	case ReasonBadTimestamp:
		return "bad-timestamp"
	case ReasonViolatesTopicRule:
		return "violates-topic-rule"
	default:
		return "unknown"
	}
}

// ErrInvalidCertificate is InvalidCertificate{subtype} from spec §7.
type ErrInvalidCertificate struct {
	Reason InvalidCertificateReason
}

func (e *ErrInvalidCertificate) Error() string {
	return fmt.Sprintf("certstore: invalid certificate (%s)", e.Reason)
}

// PendingCertificate is a not-yet-admitted certificate submitted to
// InsertBatch: the envelope carries (kind, signed payload); everything
// else is derived during validation.
type PendingCertificate struct {
	Kind     certtypes.Kind
	Envelope []byte
	Redacted []byte
}

func decodePendingFromEnvelope(r storage.Record) (PendingCertificate, error) {
	return PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, nil
}

// decodePayload verifies nothing; it only extracts the CBOR payload from
// an armored envelope blindly (used for trusted, already-admitted
// records read back from storage, e.g. scanning for a device's verify
// key). For untrusted incoming certificates use verifyAndDecode instead.
func decodePayload(pc PendingCertificate, v any) error {
	_, parts, err := certcrypto.Unarmor(pc.Envelope)
	if err != nil {
		return err
	}
	if len(parts) != 2 {
		return fmt.Errorf("%w: expected signature and payload", certcrypto.ErrMalformedEnvelope)
	}
	return certcrypto.UnmarshalPayload(parts[1], v)
}

// authorTimestamp decodes just enough of the payload to read (author,
// timestamp) without verifying the signature yet (validation step 1).
func authorTimestamp(kind certtypes.Kind, payload []byte) (certtypes.DeviceID, certtypes.Timestamp, error) {
	type authorTS struct {
		Author    certtypes.DeviceID `cbor:"1,keyasint"`
		Timestamp certtypes.Timestamp `cbor:"2,keyasint"`
	}
	var at authorTS
	if err := certcrypto.UnmarshalPayload(payload, &at); err != nil {
		return certtypes.DeviceID{}, 0, err
	}
	return at.Author, at.Timestamp, nil
}

// insertBatch implements the C2 validation pipeline (spec §4.2) for one
// topic's worth of pending certificates. The whole batch is
// all-or-nothing.
func (s *Store) insertBatch(scope *storage.UpdateScope, topic certtypes.Topic, certs []PendingCertificate) error {
	lastTS, err := s.lastTimestampInScope(scope, topic)
	if err != nil {
		return err
	}

	type admitted struct {
		pc        PendingCertificate
		record    storage.Record
	}
	var toAdmit []admitted

	for _, pc := range certs {
		algo, parts, err := certcrypto.Unarmor(pc.Envelope)
		if err != nil {
			return &ErrInvalidCertificate{Reason: ReasonAuthorBadSignature}
		}
		if algo != certcrypto.AlgoEd25519 || len(parts) != 2 {
			return &ErrInvalidCertificate{Reason: ReasonAuthorBadSignature}
		}
		payload := parts[1]

		author, timestamp, err := authorTimestamp(pc.Kind, payload)
		if err != nil {
			return &ErrInvalidCertificate{Reason: ReasonBadTimestamp}
		}

		// Step 2: resolve the author's verify key and check the
		// signature. A certificate authored by the organization root is
		// checked against rootVerifyKey and skips the key lookup and the
		// revocation check.
		var verifyKey []byte
		if author == RootAuthor {
			verifyKey = s.rootVerifyKey
		} else {
			verifyKey, err = s.resolveVerifyKeyInScope(scope, author)
			if err != nil {
				return &ErrInvalidCertificate{Reason: ReasonAuthorNotFound}
			}
			revoked, err := s.authorRevokedInScope(scope, author, timestamp)
			if err != nil {
				return err
			}
			if revoked {
				return &ErrInvalidCertificate{Reason: ReasonAuthorRevoked}
			}
		}
		if _, err := certcrypto.Verify(ed25519.PublicKey(verifyKey), pc.Envelope); err != nil {
			return &ErrInvalidCertificate{Reason: ReasonAuthorBadSignature}
		}

		// Step 3: topic-specific preconditions.
		realm, user, err := s.checkTopicRule(scope, pc.Kind, author, payload, timestamp)
		if err != nil {
			return err
		}

		// Step 4: strictly increasing timestamp within the topic scope
		// (realm-scoped topics are further partitioned by realm id).
		var prior certtypes.Timestamp
		if topic == certtypes.TopicRealm {
			prior = lastTS.Realm[realm]
		} else {
			prior = lastTS.Get(topic, realm)
		}
		if timestamp <= prior {
			return &ErrInvalidCertificate{Reason: ReasonBadTimestamp}
		}
		if topic == certtypes.TopicRealm {
			lastTS.Realm[realm] = timestamp
		} else {
			lastTS = lastTS.With(topic, realm, timestamp)
		}

		toAdmit = append(toAdmit, admitted{
			pc: pc,
			record: storage.Record{
				Topic:     topic,
				Kind:      pc.Kind,
				Timestamp: timestamp,
				Author:    author,
				RealmID:   realm,
				UserID:    user,
				Ciphertext: pc.Envelope,
			},
		})
	}

	// Step 5: append to the adapter and update the cache, only now that
	// every certificate in the batch has validated.
	for _, a := range toAdmit {
		if err := scope.Append(a.record); err != nil {
			return err
		}
		s.updateCacheOnAdmit(a.record)
		s.pendingAccumulatorAdds = append(s.pendingAccumulatorAdds, pendingAccumulatorAdd{topic: topic, plaintext: a.record.Ciphertext})
	}

	return nil
}

func (s *Store) lastTimestampInScope(scope *storage.UpdateScope, topic certtypes.Topic) (certtypes.PerTopicLastTimestamps, error) {
	cached, ok := s.cache.lastTimestamps.get()
	if ok {
		return cached.Clone(), nil
	}
	var out certtypes.PerTopicLastTimestamps
	out.Realm = make(map[certtypes.RealmID]certtypes.Timestamp)
	for _, t := range certtypes.Topics() {
		records, err := scope.Query(storage.Query{Topic: t, Unbounded: true})
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return out, err
		}
		for _, r := range records {
			if t == certtypes.TopicRealm {
				if r.Timestamp > out.Realm[r.RealmID] {
					out.Realm[r.RealmID] = r.Timestamp
				}
				continue
			}
			out = out.With(t, certtypes.RealmID{}, maxTS(out.Get(t, certtypes.RealmID{}), r.Timestamp))
		}
	}
	return out, nil
}

func maxTS(a, b certtypes.Timestamp) certtypes.Timestamp {
	if a > b {
		return a
	}
	return b
}

func (s *Store) resolveVerifyKeyInScope(scope *storage.UpdateScope, device certtypes.DeviceID) ([]byte, error) {
	if key, ok := s.cache.deviceKeys[device]; ok {
		return key, nil
	}
	records, err := scope.Query(storage.Query{Topic: certtypes.TopicCommon, Unbounded: true})
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Kind != certtypes.KindDevice {
			continue
		}
		var dc certtypes.DeviceCertificate
		if err := decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &dc); err != nil {
			continue
		}
		if dc.DeviceID == device {
			return dc.VerifyKey, nil
		}
	}
	return nil, fmt.Errorf("%w: device %s", storage.ErrNotFound, device)
}

func (s *Store) authorRevokedInScope(scope *storage.UpdateScope, device certtypes.DeviceID, at certtypes.Timestamp) (bool, error) {
	records, err := scope.Query(storage.Query{Topic: certtypes.TopicCommon, Unbounded: true})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	// Resolve the device's owning user, then check for a RevokedUser
	// certificate on that user at or before `at`.
	var owner certtypes.UserID
	found := false
	for _, r := range records {
		if r.Kind != certtypes.KindDevice {
			continue
		}
		var dc certtypes.DeviceCertificate
		if err := decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &dc); err != nil {
			continue
		}
		if dc.DeviceID == device {
			owner = dc.UserID
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	for _, r := range records {
		if r.Kind != certtypes.KindRevokedUser {
			continue
		}
		var rc certtypes.RevokedUserCertificate
		if err := decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &rc); err != nil {
			continue
		}
		if rc.UserID == owner && rc.Timestamp <= at {
			return true, nil
		}
	}
	return false, nil
}

// resolveOwningUserInScope finds the user a device belongs to by scanning
// the common topic's Device certificates (mirrors authorRevokedInScope's
// device lookup).
func (s *Store) resolveOwningUserInScope(scope *storage.UpdateScope, device certtypes.DeviceID) (certtypes.UserID, bool, error) {
	records, err := scope.Query(storage.Query{Topic: certtypes.TopicCommon, Unbounded: true})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return certtypes.UserID{}, false, nil
		}
		return certtypes.UserID{}, false, err
	}
	for _, r := range records {
		if r.Kind != certtypes.KindDevice {
			continue
		}
		var dc certtypes.DeviceCertificate
		if err := decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &dc); err != nil {
			continue
		}
		if dc.DeviceID == device {
			return dc.UserID, true, nil
		}
	}
	return certtypes.UserID{}, false, nil
}

// currentRoleAt scans a realm's already-admitted role records for the
// latest Role granted to user at or before at.
func currentRoleAt(existing []storage.Record, user certtypes.UserID, at certtypes.Timestamp) (certtypes.RealmRoleKind, bool) {
	var role certtypes.RealmRoleKind
	var latest certtypes.Timestamp
	found := false
	for _, r := range existing {
		if r.UserID != user || r.Timestamp > at {
			continue
		}
		var rc certtypes.RealmRoleCertificate
		if err := decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &rc); err != nil {
			continue
		}
		if !found || rc.Timestamp >= latest {
			role, latest, found = rc.Role, rc.Timestamp, true
		}
	}
	return role, found
}

// profileAtInScope resolves a user's current access profile as of at, from
// the common topic's User/UserUpdate certificates (mirrors decodeProfile).
func (s *Store) profileAtInScope(scope *storage.UpdateScope, user certtypes.UserID, at certtypes.Timestamp) (certtypes.UserProfile, error) {
	records, err := scope.Query(storage.Query{Topic: certtypes.TopicCommon, UserID: &user, UpTo: at})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return certtypes.ProfileOutsider, nil
		}
		return certtypes.ProfileOutsider, err
	}
	profile := certtypes.ProfileOutsider
	var latest certtypes.Timestamp
	for _, r := range records {
		p, ts, ok := decodeProfile(r)
		if ok && ts >= latest {
			profile, latest = p, ts
		}
	}
	return profile, nil
}

// checkTopicRule enforces the spec's per-topic preconditions and returns
// the realm/user scope keys used for timestamp partitioning and record
// indexing.
func (s *Store) checkTopicRule(scope *storage.UpdateScope, kind certtypes.Kind, author certtypes.DeviceID, payload []byte, at certtypes.Timestamp) (certtypes.RealmID, certtypes.UserID, error) {
	switch kind {
	case certtypes.KindRealmRole:
		var rc certtypes.RealmRoleCertificate
		if err := certcrypto.UnmarshalPayload(payload, &rc); err != nil {
			return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
		}
		existing, err := scope.Query(storage.Query{Topic: certtypes.TopicRealm, RealmID: &rc.RealmID, Unbounded: true})
		firstRole := errors.Is(err, storage.ErrNotFound) || len(existing) == 0
		if firstRole {
			if rc.Role != certtypes.RoleOwner {
				return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
			}
		} else {
			issuer, found, err := s.resolveOwningUserInScope(scope, author)
			if err != nil {
				return certtypes.RealmID{}, certtypes.UserID{}, err
			}
			if !found {
				return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
			}
			issuerRole, hasRole := currentRoleAt(existing, issuer, at)
			if !hasRole || issuerRole != certtypes.RoleOwner {
				return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
			}
		}
		if rc.Role == certtypes.RoleOwner || rc.Role == certtypes.RoleManager {
			targetProfile, err := s.profileAtInScope(scope, rc.UserID, at)
			if err != nil {
				return certtypes.RealmID{}, certtypes.UserID{}, err
			}
			if targetProfile == certtypes.ProfileOutsider {
				return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
			}
		}
		return rc.RealmID, rc.UserID, nil
	case certtypes.KindRealmName:
		var rc certtypes.RealmNameCertificate
		if err := certcrypto.UnmarshalPayload(payload, &rc); err != nil {
			return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
		}
		return rc.RealmID, certtypes.UserID{}, nil
	case certtypes.KindRealmKeyRotation:
		var rc certtypes.RealmKeyRotationCertificate
		if err := certcrypto.UnmarshalPayload(payload, &rc); err != nil {
			return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
		}
		return rc.RealmID, certtypes.UserID{}, nil
	case certtypes.KindRealmArchiving:
		var rc certtypes.RealmArchivingCertificate
		if err := certcrypto.UnmarshalPayload(payload, &rc); err != nil {
			return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
		}
		return rc.RealmID, certtypes.UserID{}, nil
	case certtypes.KindShamirRecoveryBrief:
		var bc certtypes.ShamirRecoveryBriefCertificate
		if err := certcrypto.UnmarshalPayload(payload, &bc); err != nil {
			return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
		}
		var sum uint64
		for _, c := range bc.PerRecipientShares {
			sum += c
		}
		if bc.Threshold < 1 || bc.Threshold > sum {
			return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
		}
		if _, isRecipient := bc.PerRecipientShares[bc.UserID]; isRecipient {
			return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
		}
		return certtypes.RealmID{}, bc.UserID, nil
	case certtypes.KindShamirRecoveryShare:
		var sc certtypes.ShamirRecoveryShareCertificate
		if err := certcrypto.UnmarshalPayload(payload, &sc); err != nil {
			return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
		}
		return certtypes.RealmID{}, sc.UserID, nil
	case certtypes.KindShamirRecoveryDeletion:
		var dc certtypes.ShamirRecoveryDeletionCertificate
		if err := certcrypto.UnmarshalPayload(payload, &dc); err != nil {
			return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
		}
		return certtypes.RealmID{}, dc.UserID, nil
	case certtypes.KindUser:
		var uc certtypes.UserCertificate
		if err := certcrypto.UnmarshalPayload(payload, &uc); err != nil {
			return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
		}
		return certtypes.RealmID{}, uc.UserID, nil
	case certtypes.KindUserUpdate:
		var uc certtypes.UserUpdateCertificate
		if err := certcrypto.UnmarshalPayload(payload, &uc); err != nil {
			return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
		}
		return certtypes.RealmID{}, uc.UserID, nil
	case certtypes.KindRevokedUser:
		var rc certtypes.RevokedUserCertificate
		if err := certcrypto.UnmarshalPayload(payload, &rc); err != nil {
			return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
		}
		return certtypes.RealmID{}, rc.UserID, nil
	case certtypes.KindDevice:
		var dc certtypes.DeviceCertificate
		if err := certcrypto.UnmarshalPayload(payload, &dc); err != nil {
			return certtypes.RealmID{}, certtypes.UserID{}, &ErrInvalidCertificate{Reason: ReasonViolatesTopicRule}
		}
		return certtypes.RealmID{}, dc.UserID, nil
	default:
		return certtypes.RealmID{}, certtypes.UserID{}, nil
	}
}

func (s *Store) updateCacheOnAdmit(r storage.Record) {
	if ts, ok := s.cache.lastTimestamps.get(); ok {
		if r.Topic == certtypes.TopicRealm {
			ts.Realm[r.RealmID] = r.Timestamp
		} else {
			ts = ts.With(r.Topic, r.RealmID, r.Timestamp)
		}
		s.cache.lastTimestamps.set(ts)
	}

	if r.Kind == certtypes.KindDevice {
		var dc certtypes.DeviceCertificate
		if decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &dc) == nil {
			s.cache.deviceKeys[dc.DeviceID] = dc.VerifyKey
		}
	}
	if r.Kind == certtypes.KindUserUpdate {
		var uc certtypes.UserUpdateCertificate
		if decodePayload(PendingCertificate{Kind: r.Kind, Envelope: r.Ciphertext}, &uc) == nil {
			s.cache.userProfiles[uc.UserID] = uc.Profile
			if uc.UserID == s.selfUserID {
				s.cache.selfProfile.set(uc.Profile)
			}
		}
	}
}
