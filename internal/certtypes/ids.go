// Package certtypes defines the certificate data model shared by the
// certificate store, the Shamir recovery engine, and the enrollment
// protocol: topics, identifiers, certificate payloads, and the derived
// per-topic timestamp bookkeeping.
package certtypes

import (
	"fmt"

	"github.com/google/uuid"
)

// DeviceID identifies a device. The scheme is intentionally opaque: a
// random UUID, carrying no structure a caller should rely on.
type DeviceID uuid.UUID

func NewDeviceID() DeviceID { return DeviceID(uuid.New()) }

func (d DeviceID) String() string { return uuid.UUID(d).String() }

// UserID identifies a user within an organization.
type UserID uuid.UUID

func NewUserID() UserID { return UserID(uuid.New()) }

func (u UserID) String() string { return uuid.UUID(u).String() }

// RealmID identifies a realm (shared workspace).
type RealmID uuid.UUID

func NewRealmID() RealmID { return RealmID(uuid.New()) }

func (r RealmID) String() string { return uuid.UUID(r).String() }

// SequesterServiceID identifies a sequester recovery service.
type SequesterServiceID uuid.UUID

func (s SequesterServiceID) String() string { return uuid.UUID(s).String() }

// InvitationToken identifies an enrollment invitation.
type InvitationToken uuid.UUID

func (t InvitationToken) String() string { return uuid.UUID(t).String() }

// UserProfile is the access tier granted to a user.
type UserProfile int

const (
	ProfileOutsider UserProfile = iota
	ProfileStandard
	ProfileAdmin
)

func (p UserProfile) String() string {
	switch p {
	case ProfileOutsider:
		return "OUTSIDER"
	case ProfileStandard:
		return "STANDARD"
	case ProfileAdmin:
		return "ADMIN"
	default:
		return fmt.Sprintf("UserProfile(%d)", int(p))
	}
}

// RealmRoleKind is the access level a user holds on a realm. RoleNone
// revokes a previously granted role; it is a valid certificate payload,
// not the absence of one.
type RealmRoleKind int

const (
	RoleNone RealmRoleKind = iota
	RoleReader
	RoleContributor
	RoleManager
	RoleOwner
)

func (r RealmRoleKind) String() string {
	switch r {
	case RoleNone:
		return "NONE"
	case RoleReader:
		return "READER"
	case RoleContributor:
		return "CONTRIBUTOR"
	case RoleManager:
		return "MANAGER"
	case RoleOwner:
		return "OWNER"
	default:
		return fmt.Sprintf("RealmRoleKind(%d)", int(r))
	}
}
