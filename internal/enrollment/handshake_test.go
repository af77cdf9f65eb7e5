package enrollment

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// pipe is a tiny in-memory rendezvous used to fake the server-mediated
// invitation channel between two RunWaitPeer calls in the same process.
type pipe struct {
	mu   sync.Mutex
	cond *sync.Cond
	vals map[string][]byte
}

func newPipe() *pipe {
	p := &pipe{vals: make(map[string][]byte)}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *pipe) put(key string, v []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vals[key] = v
	p.cond.Broadcast()
}

func (p *pipe) get(key string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if v, ok := p.vals[key]; ok {
			return v
		}
		p.cond.Wait()
	}
}

type fakePeer struct {
	p      *pipe
	prefix string
	peer   string
}

func (f *fakePeer) PostPublicKey(pub [32]byte) error {
	f.p.put(f.prefix+"pub", pub[:])
	return nil
}
func (f *fakePeer) FetchPeerPublicKey() ([32]byte, error) {
	var out [32]byte
	copy(out[:], f.p.get(f.peer+"pub"))
	return out, nil
}
func (f *fakePeer) PostNonceHash(h []byte) error {
	f.p.put(f.prefix+"noncehash", h)
	return nil
}
func (f *fakePeer) FetchPeerNonceHash() ([]byte, error) {
	return f.p.get(f.peer + "noncehash"), nil
}
func (f *fakePeer) PostNonce(n []byte) error {
	f.p.put(f.prefix+"nonce", n)
	return nil
}
func (f *fakePeer) FetchPeerNonce() ([]byte, error) {
	return f.p.get(f.peer + "nonce"), nil
}

type fakeTrust struct {
	denied bool
}

func (f *fakeTrust) SignifyTrust() error { return nil }
func (f *fakeTrust) DenyTrust() error    { f.denied = true; return nil }

func TestWaitPeerDerivesMatchingSAS(t *testing.T) {
	p := newPipe()
	greeter := &fakePeer{p: p, prefix: "greeter:", peer: "claimer:"}
	claimer := &fakePeer{p: p, prefix: "claimer:", peer: "greeter:"}

	var gSAS, cSAS WaitPeerResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		res, err := RunWaitPeer(RoleGreeter, greeter)
		require.NoError(t, err)
		gSAS = res
	}()
	go func() {
		defer wg.Done()
		res, err := RunWaitPeer(RoleClaimer, claimer)
		require.NoError(t, err)
		cSAS = res
	}()
	wg.Wait()

	require.Equal(t, gSAS.SharedSecret, cSAS.SharedSecret)
	require.Equal(t, gSAS.SAS, cSAS.SAS)
}

func TestTrustStageDeniesOnMismatch(t *testing.T) {
	trust := &fakeTrust{}
	err := Stage2TrustOnGreeter(trust, "ABCD", "WXYZ")
	require.ErrorIs(t, err, ErrTrustDenied)
	require.True(t, trust.denied)
}

func TestTrustStageAcceptsOnMatch(t *testing.T) {
	trust := &fakeTrust{}
	err := Stage2TrustOnGreeter(trust, "ABCD", "ABCD")
	require.NoError(t, err)
	require.False(t, trust.denied)
}

func TestShuffleCandidatesPlacesRealAtPosition(t *testing.T) {
	out := ShuffleCandidates("REAL", [3]string{"A", "B", "C"}, 2)
	require.Equal(t, "REAL", out[2])
	require.ElementsMatch(t, []string{"A", "B", "C"}, []string{out[0], out[1], out[3]})
}
