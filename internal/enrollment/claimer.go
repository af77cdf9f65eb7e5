package enrollment

import (
	"fmt"

	"github.com/parsec-cloud/libparsec-go/internal/certcrypto"
)

// Claimer drives the being-admitted side of one enrollment attempt.
type Claimer struct {
	state State
	peer  PeerExchange
	trust TrustChannel
	ex    ExchangeChannel

	waitResult WaitPeerResult
}

func NewClaimer(peer PeerExchange, trust TrustChannel, ex ExchangeChannel) *Claimer {
	return &Claimer{state: StateInitial, peer: peer, trust: trust, ex: ex}
}

func (c *Claimer) State() State { return c.state }

func (c *Claimer) DoWaitPeer() (certcrypto.SASCodes, error) {
	if _, err := advance(c.state, StateInitial, StateAwaitingPeer); err != nil {
		return certcrypto.SASCodes{}, err
	}
	res, err := RunWaitPeer(RoleClaimer, c.peer)
	if err != nil {
		if err == ErrNonceMismatch {
			c.state = StatePeerReset
		}
		return certcrypto.SASCodes{}, err
	}
	c.waitResult = res
	c.state = StateAwaitingPeer
	return res.SAS, nil
}

// DoTrust1 mirrors the greeter's stage 2 from the claimer's side: it
// takes whether the greeter signified trust on its read-back.
func (c *Claimer) DoTrust1(peerSignifiedTrust bool) error {
	if _, err := advance(c.state, StateAwaitingPeer, StateTrust1); err != nil {
		return err
	}
	if !peerSignifiedTrust {
		c.state = StatePeerReset
		return ErrTrustDenied
	}
	c.state = StateTrust1
	return nil
}

// DoTrust2 is stage 3: the claimer validates the greeter's read-back of
// claimer_sas.
func (c *Claimer) DoTrust2(greeterChoice string) error {
	if _, err := advance(c.state, StateTrust1, StateTrust2); err != nil {
		return err
	}
	if err := Stage3TrustOnClaimer(c.trust, c.waitResult.SAS.ClaimerSAS, greeterChoice); err != nil {
		c.state = StatePeerReset
		return err
	}
	c.state = StateTrust2
	return nil
}

// DoExchange posts the claim payload and waits for the greeter's
// confirmation.
func (c *Claimer) DoExchange(claim ClaimPayload) (GreeterConfirmation, error) {
	if _, err := advance(c.state, StateTrust2, StateExchange); err != nil {
		return GreeterConfirmation{}, err
	}
	c.state = StateExchange

	sealed, err := SealPayload(c.waitResult.SharedSecret, claim)
	if err != nil {
		return GreeterConfirmation{}, err
	}
	// The claim payload travels through the same ExchangeChannel the
	// greeter fetches from; concretely this posts to the invitation
	// relay endpoint the server routes to the greeter's FetchClaimPayload.
	if poster, ok := c.ex.(claimPoster); ok {
		if err := poster.PostClaimPayload(sealed); err != nil {
			return GreeterConfirmation{}, err
		}
	} else {
		return GreeterConfirmation{}, fmt.Errorf("enrollment: exchange channel cannot post a claim payload")
	}

	confirmationSealed, err := waitConfirmation(c.ex)
	if err != nil {
		return GreeterConfirmation{}, err
	}
	var confirmation GreeterConfirmation
	if err := OpenPayload(c.waitResult.SharedSecret, confirmationSealed, &confirmation); err != nil {
		return GreeterConfirmation{}, fmt.Errorf("enrollment: decrypt confirmation: %w", err)
	}

	_ = c.ex.DeleteInvitation() // best-effort per spec §4.4
	c.state = StateDone
	return confirmation, nil
}

// claimPoster and confirmationWaiter extend ExchangeChannel with the
// claimer-side operations; kept as separate small interfaces so a
// concrete transport can implement exactly the methods each role needs.
type claimPoster interface {
	PostClaimPayload(sealed []byte) error
}

type confirmationWaiter interface {
	FetchConfirmation() ([]byte, error)
}

func waitConfirmation(ex ExchangeChannel) ([]byte, error) {
	waiter, ok := ex.(confirmationWaiter)
	if !ok {
		return nil, fmt.Errorf("enrollment: exchange channel cannot fetch a confirmation")
	}
	return waiter.FetchConfirmation()
}

// Cancel aborts the attempt, transitioning both sides to PeerReset.
func (c *Claimer) Cancel() error {
	c.state = StatePeerReset
	return c.trust.DenyTrust()
}
