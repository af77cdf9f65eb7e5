package certtypes

// Kind tags the payload type carried inside a SignedCertificate, playing
// the role the wire format's "type" tag plays in the real protocol (see
// spec §6: "the payload is the schema-encoded body with a type tag").
type Kind int

const (
	KindUser Kind = iota
	KindDevice
	KindUserUpdate
	KindRevokedUser
	KindSequesterAuthority
	KindSequesterService
	KindSequesterRevokedService
	KindRealmRole
	KindRealmName
	KindRealmKeyRotation
	KindRealmArchiving
	KindShamirRecoveryBrief
	KindShamirRecoveryShare
	KindShamirRecoveryDeletion
)

func (k Kind) Topic() Topic {
	switch k {
	case KindUser, KindDevice, KindUserUpdate, KindRevokedUser:
		return TopicCommon
	case KindSequesterAuthority, KindSequesterService, KindSequesterRevokedService:
		return TopicSequester
	case KindRealmRole, KindRealmName, KindRealmKeyRotation, KindRealmArchiving:
		return TopicRealm
	case KindShamirRecoveryBrief, KindShamirRecoveryShare, KindShamirRecoveryDeletion:
		return TopicShamirRecovery
	default:
		return TopicCommon
	}
}

// SignedCertificate is the envelope persisted by the store and exchanged
// with the server: (author, timestamp, topic) are duplicated outside the
// signed payload purely as indexing metadata, exactly mirroring how the
// teacher's massif index carries plaintext metadata (idtimestamp, massif
// number) alongside an opaque signed blob it never needs to open to route
// or order.
type SignedCertificate struct {
	Kind      Kind
	Topic     Topic
	Author    DeviceID
	Timestamp Timestamp
	RealmID   RealmID // populated only when Topic == TopicRealm
	UserID    UserID  // populated when the certificate is user-scoped (shamir topic)

	// Envelope is "algorithm-name:signature||payload", matching the
	// armored sequester format spec §6 mandates for consistency across
	// every signed artifact in the system, not just sequester ones.
	Envelope []byte

	// Redacted is the alternate envelope with human-readable fields
	// replaced by deterministic placeholders, stored alongside Envelope
	// and handed out instead of it to actors not entitled to the clear
	// data (spec §6).
	Redacted []byte
}

// StorageKey is the adapter-level primary key: (topic, timestamp) is
// always unique because timestamps are strictly increasing per topic.
type StorageKey struct {
	Topic     Topic
	Timestamp Timestamp
}

func (s SignedCertificate) Key() StorageKey {
	return StorageKey{Topic: s.Topic, Timestamp: s.Timestamp}
}
