package eventmonitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
	"github.com/parsec-cloud/libparsec-go/internal/eventbus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeSession replays a fixed list of events, then reports io.EOF-like
// exhaustion via errDrained, a transient error after which the monitor
// reconnects; the tests end the loop through their context deadline.
type fakeSession struct {
	events []ServerEvent
	pos    int
}

var errDrained = errors.New("fake session drained")

func (s *fakeSession) Next(ctx context.Context) (ServerEvent, error) {
	if s.pos >= len(s.events) {
		return ServerEvent{}, errDrained
	}
	e := s.events[s.pos]
	s.pos++
	return e, nil
}

func (s *fakeSession) Close() error { return nil }

type fakeStream struct {
	session *fakeSession
	opened  int
}

func (f *fakeStream) Open(ctx context.Context, lastEventID string) (Session, error) {
	f.opened++
	return f.session, nil
}

type terminalStream struct {
	class ErrorClass
}

func (t *terminalStream) Open(ctx context.Context, lastEventID string) (Session, error) {
	return nil, &StreamError{Class: t.class, Message: "terminal"}
}

func drainNonBlocking(ch <-chan eventbus.Event) []eventbus.Event {
	var out []eventbus.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestMonitorDispatchesAndGoesOnline(t *testing.T) {
	stream := &fakeStream{session: &fakeSession{events: []ServerEvent{
		{ID: "1", Invitation: &InvitationPayload{Token: certtypes.InvitationToken{}, Status: "ready"}},
		{ID: "2", Vlob: &VlobPayload{Version: 3}},
	}}}
	bus := eventbus.New()
	defer bus.Stop()
	sub := bus.Subscribe("online", "invitation_changed", "realm_vlob_updated")

	mon, err := New(stream, bus, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = mon.Run(ctx) // exits on ctx deadline since the fake stream only offers transient drains

	var kinds []string
	for _, ev := range drainNonBlocking(sub.C()) {
		kinds = append(kinds, ev.Kind())
	}
	require.Contains(t, kinds, "online")
	require.Contains(t, kinds, "invitation_changed")
	require.Contains(t, kinds, "realm_vlob_updated")
}

func TestMonitorDedupsRepeatedEventID(t *testing.T) {
	stream := &fakeStream{session: &fakeSession{events: []ServerEvent{
		{ID: "dup", Vlob: &VlobPayload{Version: 1}},
		{ID: "dup", Vlob: &VlobPayload{Version: 1}},
	}}}
	bus := eventbus.New()
	defer bus.Stop()
	sub := bus.Subscribe("realm_vlob_updated")

	mon, err := New(stream, bus, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = mon.Run(ctx)

	count := len(drainNonBlocking(sub.C()))
	require.Equal(t, 1, count, "a repeated event id must only dispatch once")
}

func TestMonitorStopsOnTerminalClass(t *testing.T) {
	stream := &terminalStream{class: ClassRevokedSelfUser}
	bus := eventbus.New()
	defer bus.Stop()
	sub := bus.Subscribe("revoked_self_user")

	mon, err := New(stream, bus, zerolog.Nop())
	require.NoError(t, err)

	err = mon.Run(context.Background())
	require.Error(t, err)

	select {
	case ev := <-sub.C():
		require.Equal(t, "revoked_self_user", ev.Kind())
	case <-time.After(time.Second):
		t.Fatal("expected a revoked_self_user event")
	}
}

func TestClassifyDefaultsTransientForOpaqueErrors(t *testing.T) {
	require.Equal(t, ClassTransient, Classify(errors.New("connection reset")))
	require.Equal(t, ClassOrganizationExpired, Classify(&StreamError{Class: ClassOrganizationExpired}))
}
