package enrollment

import (
	"bytes"
	"crypto/rand"
	"fmt"

	"github.com/parsec-cloud/libparsec-go/internal/certcrypto"
)

// PeerExchange is stage 1's channel abstraction: posting and fetching
// the handful of values the server's invitation relay carries between
// greeter and claimer. Greeter and Claimer both run stage 1 through
// RunWaitPeer over whatever transport the caller supplies here.
type PeerExchange interface {
	PostPublicKey(pub [32]byte) error
	FetchPeerPublicKey() ([32]byte, error)

	PostNonceHash(hash []byte) error
	FetchPeerNonceHash() ([]byte, error)

	PostNonce(nonce []byte) error
	FetchPeerNonce() ([]byte, error)
}

// WaitPeerResult carries everything stages 2-4 need: the shared secret
// and both derived SAS codes.
type WaitPeerResult struct {
	SharedSecret [32]byte
	SAS          certcrypto.SASCodes
}

// RunWaitPeer executes stage 1 for either role. The claimer commits to
// its nonce before either side reveals anything, and the greeter checks
// the revealed claimer nonce against that commitment, returning
// ErrNonceMismatch when they differ.
func RunWaitPeer(role Role, peer PeerExchange) (WaitPeerResult, error) {
	kp, err := certcrypto.GenerateX25519KeyPair()
	if err != nil {
		return WaitPeerResult{}, err
	}
	if err := peer.PostPublicKey(kp.Public); err != nil {
		return WaitPeerResult{}, err
	}
	peerPub, err := peer.FetchPeerPublicKey()
	if err != nil {
		return WaitPeerResult{}, err
	}
	shared := kp.SharedSecret(peerPub)

	myNonce := make([]byte, 8)
	if _, err := rand.Read(myNonce); err != nil {
		return WaitPeerResult{}, err
	}

	var claimerNonce, greeterNonce []byte
	switch role {
	case RoleClaimer:
		myHash := certcrypto.Hash256(myNonce)
		if err := peer.PostNonceHash(myHash); err != nil {
			return WaitPeerResult{}, err
		}
		gNonce, err := peer.FetchPeerNonce()
		if err != nil {
			return WaitPeerResult{}, err
		}
		if err := peer.PostNonce(myNonce); err != nil {
			return WaitPeerResult{}, err
		}
		claimerNonce, greeterNonce = myNonce, gNonce

	case RoleGreeter:
		committedHash, err := peer.FetchPeerNonceHash()
		if err != nil {
			return WaitPeerResult{}, err
		}
		if err := peer.PostNonce(myNonce); err != nil {
			return WaitPeerResult{}, err
		}
		cNonce, err := peer.FetchPeerNonce()
		if err != nil {
			return WaitPeerResult{}, err
		}
		if !bytes.Equal(certcrypto.Hash256(cNonce), committedHash) {
			return WaitPeerResult{}, ErrNonceMismatch
		}
		claimerNonce, greeterNonce = cNonce, myNonce

	default:
		return WaitPeerResult{}, fmt.Errorf("enrollment: unknown role %d", role)
	}

	sas := certcrypto.DeriveSASCodes(claimerNonce, greeterNonce, shared)
	return WaitPeerResult{SharedSecret: shared, SAS: sas}, nil
}
