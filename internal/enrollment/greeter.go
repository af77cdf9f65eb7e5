package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/parsec-cloud/libparsec-go/internal/certcrypto"
	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
	"github.com/parsec-cloud/libparsec-go/internal/serverclient"
)

// ExchangeChannel is stage 4's transport: posting/fetching the sealed
// claim payload and confirmation.
type ExchangeChannel interface {
	PostConfirmation(sealed []byte) error
	FetchClaimPayload() (sealed []byte, err error)
	DeleteInvitation() error
}

// Greeter drives the existing-device side of one enrollment attempt.
type Greeter struct {
	state  State
	peer   PeerExchange
	trust  TrustChannel
	ex     ExchangeChannel
	server *serverclient.Client
	signer certcrypto.SigningKey
	signerDevice certtypes.DeviceID

	waitResult WaitPeerResult
}

func NewGreeter(peer PeerExchange, trust TrustChannel, ex ExchangeChannel, server *serverclient.Client, signer certcrypto.SigningKey, signerDevice certtypes.DeviceID) *Greeter {
	return &Greeter{state: StateInitial, peer: peer, trust: trust, ex: ex, server: server, signer: signer, signerDevice: signerDevice}
}

func (g *Greeter) State() State { return g.state }

// DoWaitPeer runs stage 1 and returns the SAS pair for display/read-back.
func (g *Greeter) DoWaitPeer() (certcrypto.SASCodes, error) {
	if _, err := advance(g.state, StateInitial, StateAwaitingPeer); err != nil {
		return certcrypto.SASCodes{}, err
	}
	res, err := RunWaitPeer(RoleGreeter, g.peer)
	if err != nil {
		if err == ErrNonceMismatch {
			g.state = StatePeerReset
		}
		return certcrypto.SASCodes{}, err
	}
	g.waitResult = res
	g.state = StateAwaitingPeer
	return res.SAS, nil
}

// DoTrust1 is stage 2: the greeter validates the claimer's read-back.
func (g *Greeter) DoTrust1(claimerChoice string) error {
	if _, err := advance(g.state, StateAwaitingPeer, StateTrust1); err != nil {
		return err
	}
	if err := Stage2TrustOnGreeter(g.trust, g.waitResult.SAS.GreeterSAS, claimerChoice); err != nil {
		g.state = StatePeerReset
		return err
	}
	g.state = StateTrust1
	return nil
}

// DoTrust2 is stage 3's mirror, driven from the greeter's side: it takes
// whether the claimer signified trust on its own SAS.
func (g *Greeter) DoTrust2(peerSignifiedTrust bool) error {
	if _, err := advance(g.state, StateTrust1, StateTrust2); err != nil {
		return err
	}
	if !peerSignifiedTrust {
		g.state = StatePeerReset
		return ErrTrustDenied
	}
	g.state = StateTrust2
	return nil
}

// DoExchange is stage 4: fetch the claimer's sealed payload, validate it,
// compose and submit the resulting certificates, and seal a confirmation
// back.
func (g *Greeter) DoExchange(ctx context.Context, claim ClaimKind, rootAuthor certtypes.DeviceID, now func() time.Time) (GreeterConfirmation, error) {
	if _, err := advance(g.state, StateTrust2, StateExchange); err != nil {
		return GreeterConfirmation{}, err
	}
	g.state = StateExchange

	sealed, err := g.ex.FetchClaimPayload()
	if err != nil {
		return GreeterConfirmation{}, err
	}
	var claimPayload ClaimPayload
	if err := OpenPayload(g.waitResult.SharedSecret, sealed, &claimPayload); err != nil {
		return GreeterConfirmation{}, fmt.Errorf("enrollment: decrypt claim payload: %w", err)
	}
	if claimPayload.Kind != claim {
		return GreeterConfirmation{}, fmt.Errorf("enrollment: claim kind mismatch: expected %d got %d", claim, claimPayload.Kind)
	}

	newDeviceID := certtypes.NewDeviceID()
	var newUserID certtypes.UserID

	ts := certtypes.TimestampFromTime(now())
	for {
		var envelopes [][]byte

		if claim == ClaimUser {
			newUserID = certtypes.NewUserID()
			uc := certtypes.UserCertificate{
				Author:      g.signerDevice,
				Timestamp:   ts,
				UserID:      newUserID,
				HumanHandle: claimPayload.RequestedHandle,
				PublicKey:   claimPayload.PublicKey,
				Profile:     certtypes.ProfileStandard,
			}
			payload, err := certcrypto.MarshalPayload(uc)
			if err != nil {
				return GreeterConfirmation{}, err
			}
			envelopes = append(envelopes, g.signer.Sign(payload))
		}

		dc := certtypes.DeviceCertificate{
			Author:      g.signerDevice,
			Timestamp:   ts,
			UserID:      newUserID,
			DeviceID:    newDeviceID,
			DeviceLabel: claimPayload.DeviceLabel,
			VerifyKey:   claimPayload.VerifyKey,
		}
		payload, err := certcrypto.MarshalPayload(dc)
		if err != nil {
			return GreeterConfirmation{}, err
		}
		envelopes = append(envelopes, g.signer.Sign(payload))

		outcome, err := g.server.SubmitCertificates(ctx, certtypes.TopicCommon, envelopes)
		if err != nil {
			return GreeterConfirmation{}, err
		}
		if outcome.Accepted {
			break
		}
		if outcome.RequireGreaterTimestamp != nil {
			ts = certtypes.StrictlyAfter(*outcome.RequireGreaterTimestamp, now())
			continue
		}
		if outcome.Terminal != nil {
			return GreeterConfirmation{}, outcome.Terminal
		}
		return GreeterConfirmation{}, fmt.Errorf("enrollment: clock drift rejected by server")
	}

	confirmation := GreeterConfirmation{Kind: claim, UserID: newUserID, DeviceID: newDeviceID}
	sealedConfirmation, err := SealPayload(g.waitResult.SharedSecret, confirmation)
	if err != nil {
		return GreeterConfirmation{}, err
	}
	if err := g.ex.PostConfirmation(sealedConfirmation); err != nil {
		return GreeterConfirmation{}, err
	}
	_ = g.ex.DeleteInvitation() // best-effort per spec §4.4

	g.state = StateDone
	return confirmation, nil
}

// Cancel aborts the attempt from whatever state it is in, transitioning
// both sides to PeerReset via the trust channel's deny path.
func (g *Greeter) Cancel() error {
	g.state = StatePeerReset
	return g.trust.DenyTrust()
}
