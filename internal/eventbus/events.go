package eventbus

import "github.com/parsec-cloud/libparsec-go/internal/certtypes"

// CertificatesUpdated is published by the certificate store (C2) after
// every successful write batch commits, and by the server event monitor
// (C5) on a remote certificate notification, so readers holding a stale
// PerTopicLastTimestamps know to refetch. From the monitor, Timestamps
// carries only the slot actually affected; from the store, it carries
// the store's cached last timestamps, or the zero value when that cache
// is empty. Callers merge it into their own view rather than treating it
// as a full snapshot.
type CertificatesUpdated struct {
	Timestamps certtypes.PerTopicLastTimestamps
}

func (CertificatesUpdated) Kind() string { return "certificates_updated" }

// InvitationChanged fires when an enrollment invitation (C4) is created,
// cancelled, or completed.
type InvitationChanged struct {
	Token  certtypes.InvitationToken
	Status string // "ready" | "cancelled" | "completed"
}

func (InvitationChanged) Kind() string { return "invitation_changed" }

// ServerConfigNotified carries a server-pushed configuration change
// (C5), e.g. an updated sequester policy.
type ServerConfigNotified struct {
	Raw []byte
}

func (ServerConfigNotified) Kind() string { return "server_config_notified" }

// RealmVlobUpdated is forwarded from the server's realm event stream
// when any vlob in a realm changes, so a higher layer can invalidate
// cached workspace listings.
type RealmVlobUpdated struct {
	RealmID    certtypes.RealmID
	VlobID     certtypes.RealmID // reuses the opaque-UUID shape; vlobs share it
	Version    uint64
}

func (RealmVlobUpdated) Kind() string { return "realm_vlob_updated" }

// Online/Offline report C5's connection monitor state transitions.
type Online struct{}

func (Online) Kind() string { return "online" }

type Offline struct{}

func (Offline) Kind() string { return "offline" }

// MustAcceptTos stands for a server rejecting a connection pending
// acceptance of updated terms of service. The event monitor classifies
// that rejection as non-terminal and reconnects with backoff without
// publishing this event.
type MustAcceptTos struct{}

func (MustAcceptTos) Kind() string { return "must_accept_tos" }

// ExpiredOrganization fires when the server reports the organization's
// subscription has lapsed.
type ExpiredOrganization struct{}

func (ExpiredOrganization) Kind() string { return "expired_organization" }

// RevokedSelfUser fires when the server reports the authenticated
// user's own account has been revoked.
type RevokedSelfUser struct{}

func (RevokedSelfUser) Kind() string { return "revoked_self_user" }

// IncompatibleServer fires when the server's advertised API version is
// not one this client can speak.
type IncompatibleServer struct {
	ServerAPIVersion string
}

func (IncompatibleServer) Kind() string { return "incompatible_server" }

// MissedServerEvents fires when the SSE stream resumes after a gap the
// server could not replay from last-event-id, so the caller knows its
// view may be stale and should reconcile rather than trust incremental
// events alone.
type MissedServerEvents struct{}

func (MissedServerEvents) Kind() string { return "missed_server_events" }

// Greeting attempt lifecycle (C4), shared by both the greeter and
// claimer sides of an enrollment.
type GreetingAttemptReady struct {
	Token certtypes.InvitationToken
}

func (GreetingAttemptReady) Kind() string { return "greeting_attempt_ready" }

type GreetingAttemptJoined struct {
	Token certtypes.InvitationToken
}

func (GreetingAttemptJoined) Kind() string { return "greeting_attempt_joined" }

type GreetingAttemptCancelled struct {
	Token  certtypes.InvitationToken
	Reason string
}

func (GreetingAttemptCancelled) Kind() string { return "greeting_attempt_cancelled" }

// GreetingAttemptPeerReset is the distinguished terminal state reached
// when the peer abandons the handshake mid-stage and must restart from
// scratch rather than resume.
type GreetingAttemptPeerReset struct {
	Token certtypes.InvitationToken
}

func (GreetingAttemptPeerReset) Kind() string { return "greeting_attempt_peer_reset" }

// TimestampOutOfBallparkEvent describes the server rejecting a
// certificate or vlob write because its timestamp falls outside the
// server's acceptable clock-skew window. The Shamir engine and the
// greeter return that rejection as an error; neither publishes this
// event.
type TimestampOutOfBallparkEvent struct {
	ServerTimestamp certtypes.Timestamp
	ClientTimestamp certtypes.Timestamp
	BallparkClientEarlyOffset float64
	BallparkClientLateOffset  float64
}

func (TimestampOutOfBallparkEvent) Kind() string { return "timestamp_out_of_ballpark" }
