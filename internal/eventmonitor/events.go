package eventmonitor

import "github.com/parsec-cloud/libparsec-go/internal/certtypes"

// ServerEvent is one decoded SSE message, tagged by kind, before it is
// translated into the matching internal/eventbus.Event and published.
type ServerEvent struct {
	ID      string
	Kind    string
	RetryMS int64 // server-supplied retry hint, 0 if absent

	OrganizationConfig *OrganizationConfigPayload
	Invitation         *InvitationPayload
	Certificate        *CertificatePayload
	Vlob               *VlobPayload
	Greeting           *GreetingPayload
}

type OrganizationConfigPayload struct {
	ActiveUsersLimit int64
	OutsiderAllowed  bool
}

type InvitationPayload struct {
	Token  certtypes.InvitationToken
	Status string
}

type CertificatePayload struct {
	Topic     certtypes.Topic
	Timestamp certtypes.Timestamp
	RealmID   certtypes.RealmID
}

type VlobPayload struct {
	RealmID certtypes.RealmID
	VlobID  certtypes.RealmID
	Version uint64
}

type GreetingPayload struct {
	Token  certtypes.InvitationToken
	Status string // "ready" | "joined" | "cancelled" | "peer_reset"
}
