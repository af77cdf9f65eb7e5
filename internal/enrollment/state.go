// Package enrollment implements the Enrollment Protocol state machines
// (C4): the four-stage SAS handshake shared structurally by the greeter
// (existing device admitting someone) and the claimer (the party being
// admitted). Grounded in the teacher's own state-machine-over-a-log
// idiom (massifs' append-only, strictly-ordered progression) generalized
// here to an in-memory linear state walk instead of a durable log, since
// a single handshake is ephemeral and never needs replay.
package enrollment

import "errors"

// State is a stage in the four-step handshake, identical in shape for
// both roles.
type State int

const (
	StateInitial State = iota
	StateAwaitingPeer
	StateTrust1
	StateTrust2
	StateTrust3
	StateExchange
	StateDone

	// StatePeerReset is the distinguished terminal state entered when
	// the partner denies trust or the attempt is cancelled.
	StatePeerReset
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateAwaitingPeer:
		return "awaiting_peer"
	case StateTrust1:
		return "trust1"
	case StateTrust2:
		return "trust2"
	case StateTrust3:
		return "trust3"
	case StateExchange:
		return "exchange"
	case StateDone:
		return "done"
	case StatePeerReset:
		return "peer_reset"
	default:
		return "unknown"
	}
}

var ErrNonceMismatch = errors.New("enrollment: claimer nonce does not match the committed hash")
var ErrTrustDenied = errors.New("enrollment: peer denied trust")
var ErrWrongState = errors.New("enrollment: operation not valid in the current state")
var ErrCancelled = errors.New("enrollment: greeting attempt cancelled")

// Role distinguishes which side of the handshake a machine drives. Both
// sides compute both SAS codes; Role selects each side's part in the
// stage 1 nonce commit/reveal exchange and which SAS it displays versus
// validates at stages 2 and 3.
type Role int

const (
	RoleGreeter Role = iota
	RoleClaimer
)

// ClaimKind is the protocol's parametrization over what is being
// claimed: a new user, or a new device for an existing user.
type ClaimKind int

const (
	ClaimUser ClaimKind = iota
	ClaimDevice
)

// advance enforces the strictly linear stage order; any attempt to call
// a stage's handler out of order is a programmer error surfaced as
// ErrWrongState rather than silently skipping ahead.
func advance(current, required, next State) (State, error) {
	if current != required {
		return current, ErrWrongState
	}
	return next, nil
}
