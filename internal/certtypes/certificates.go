package certtypes

// Every certificate payload below carries its own timestamp, and all but
// the sequester ones their author, so it can be CBOR-encoded standalone;
// the SignedCertificate envelope (see
// envelope.go) additionally repeats (author, timestamp, topic) outside the
// signed payload so the store can index without touching the crypto
// layer.

type UserCertificate struct {
	Author      DeviceID    `cbor:"1,keyasint"`
	Timestamp   Timestamp   `cbor:"2,keyasint"`
	UserID      UserID      `cbor:"3,keyasint"`
	HumanHandle string      `cbor:"4,keyasint,omitempty"`
	PublicKey   []byte      `cbor:"5,keyasint"`
	Profile     UserProfile `cbor:"6,keyasint"`
}

type DeviceCertificate struct {
	Author         DeviceID  `cbor:"1,keyasint"`
	Timestamp      Timestamp `cbor:"2,keyasint"`
	UserID         UserID    `cbor:"3,keyasint"`
	DeviceID       DeviceID  `cbor:"4,keyasint"`
	DeviceLabel    string    `cbor:"5,keyasint,omitempty"`
	VerifyKey      []byte    `cbor:"6,keyasint"`
}

type UserUpdateCertificate struct {
	Author    DeviceID    `cbor:"1,keyasint"`
	Timestamp Timestamp   `cbor:"2,keyasint"`
	UserID    UserID      `cbor:"3,keyasint"`
	Profile   UserProfile `cbor:"4,keyasint"`
}

type RevokedUserCertificate struct {
	Author    DeviceID  `cbor:"1,keyasint"`
	Timestamp Timestamp `cbor:"2,keyasint"`
	UserID    UserID    `cbor:"3,keyasint"`
}

type SequesterAuthorityCertificate struct {
	Timestamp Timestamp `cbor:"1,keyasint"`
	PublicKey []byte    `cbor:"2,keyasint"` // RSA public key, root-signed
}

type SequesterServiceCertificate struct {
	Timestamp Timestamp           `cbor:"1,keyasint"`
	ServiceID SequesterServiceID  `cbor:"2,keyasint"`
	PublicKey []byte              `cbor:"3,keyasint"`
	Label     string              `cbor:"4,keyasint,omitempty"`
}

type SequesterRevokedServiceCertificate struct {
	Timestamp Timestamp          `cbor:"1,keyasint"`
	ServiceID SequesterServiceID `cbor:"2,keyasint"`
}

type RealmRoleCertificate struct {
	Author    DeviceID      `cbor:"1,keyasint"`
	Timestamp Timestamp     `cbor:"2,keyasint"`
	RealmID   RealmID       `cbor:"3,keyasint"`
	UserID    UserID        `cbor:"4,keyasint"`
	Role      RealmRoleKind `cbor:"5,keyasint"`
}

type RealmNameCertificate struct {
	Author          DeviceID  `cbor:"1,keyasint"`
	Timestamp       Timestamp `cbor:"2,keyasint"`
	RealmID         RealmID   `cbor:"3,keyasint"`
	CipheredName    []byte    `cbor:"4,keyasint"`
	KeyIndex        uint64    `cbor:"5,keyasint"`
}

type RealmKeyRotationCertificate struct {
	Author           DeviceID  `cbor:"1,keyasint"`
	Timestamp        Timestamp `cbor:"2,keyasint"`
	RealmID          RealmID   `cbor:"3,keyasint"`
	KeyIndex         uint64    `cbor:"4,keyasint"`
	EncryptionAlgo   string    `cbor:"5,keyasint"`
	HashAlgo         string    `cbor:"6,keyasint"`
	KeyCanary        []byte    `cbor:"7,keyasint"`
}

type RealmArchivingCertificate struct {
	Author          DeviceID  `cbor:"1,keyasint"`
	Timestamp       Timestamp `cbor:"2,keyasint"`
	RealmID         RealmID   `cbor:"3,keyasint"`
	Configuration   string    `cbor:"4,keyasint"` // "available" | "archived" | "deletion_planned"
}

// ShamirRecoveryBriefCertificate is the public setup descriptor: who set
// it up, the threshold, and how many shares each recipient was granted.
// Field shapes follow original_source/.../shamir_recovery_setup.rs exactly.
type ShamirRecoveryBriefCertificate struct {
	Author             DeviceID         `cbor:"1,keyasint"`
	Timestamp          Timestamp        `cbor:"2,keyasint"`
	UserID             UserID           `cbor:"3,keyasint"`
	Threshold          uint64           `cbor:"4,keyasint"`
	PerRecipientShares map[UserID]uint64 `cbor:"5,keyasint"`
}

// ShamirRecoveryShareCertificate carries one recipient's opaque ciphered
// share of the split secret. Never decodable without that recipient's
// private key.
type ShamirRecoveryShareCertificate struct {
	Author        DeviceID  `cbor:"1,keyasint"`
	Timestamp     Timestamp `cbor:"2,keyasint"`
	UserID        UserID    `cbor:"3,keyasint"`
	Recipient     UserID    `cbor:"4,keyasint"`
	CipheredShare []byte    `cbor:"5,keyasint"`
}

type ShamirRecoveryDeletionCertificate struct {
	Author            DeviceID  `cbor:"1,keyasint"`
	Timestamp         Timestamp `cbor:"2,keyasint"`
	SetupToDeleteTS   Timestamp `cbor:"3,keyasint"`
	UserID            UserID    `cbor:"4,keyasint"`
}

// ShamirRecoverySecret is the bundle actually split among recipients: a
// fresh symmetric key used to encrypt the recovery device, plus an opaque
// token revealed only once reconstruction succeeds.
type ShamirRecoverySecret struct {
	DataKey     []byte `cbor:"1,keyasint"`
	RevealToken []byte `cbor:"2,keyasint"`
}

// ShamirRecoveryShareData is the per-recipient plaintext bundled before
// being encrypted under that recipient's public key into CipheredShare.
type ShamirRecoveryShareData struct {
	WeightedShare [][]byte `cbor:"1,keyasint"`
}
