package eventmonitor

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
	"github.com/parsec-cloud/libparsec-go/internal/eventbus"
	"github.com/rs/zerolog"
)

// Stream is the SSE transport Monitor drives. Open blocks until either
// the connection is established (returning a Session to read events
// from) or it fails outright; lastEventID resumes from that offset when
// non-empty.
type Stream interface {
	Open(ctx context.Context, lastEventID string) (Session, error)
}

// Session yields one decoded event at a time until the connection ends.
type Session interface {
	Next(ctx context.Context) (ServerEvent, error)
	Close() error
}

type connState int

const (
	connOffline connState = iota
	connOnline
)

// Monitor owns the long-lived SSE task: connect, classify, dispatch,
// reconnect with backoff (spec §4.5).
type Monitor struct {
	stream Stream
	bus    *eventbus.Bus
	logger zerolog.Logger

	lastEventID string
	state       connState
	dedup       *idDedup

	backoffNow backoff.BackOff
}

const dedupWindow = 4096

func New(stream Stream, bus *eventbus.Bus, logger zerolog.Logger) (*Monitor, error) {
	dedup, err := newIDDedup(dedupWindow)
	if err != nil {
		return nil, err
	}
	return &Monitor{
		stream:     stream,
		bus:        bus,
		logger:     logger.With().Str("component", "eventmonitor").Logger(),
		state:      connOffline,
		dedup:      dedup,
		backoffNow: newBackoff(),
	}, nil
}

func newBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // never give up; C5 retries transport errors indefinitely
	return b
}

// Run drives the monitor until ctx is cancelled or a terminal error
// class is classified.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		session, err := m.stream.Open(ctx, m.lastEventID)
		if err != nil {
			if m.state == connOnline {
				m.state = connOffline
				m.bus.Publish(eventbus.Offline{})
			}
			class := Classify(err)
			if class.terminal() {
				m.publishTerminal(class)
				return err
			}
			if err := m.wait(ctx); err != nil {
				return err
			}
			continue
		}

		m.backoffNow.Reset()
		terminalErr := m.drain(ctx, session)
		session.Close()
		if terminalErr != nil {
			return terminalErr
		}
		// The session ended without a terminal classification (dropped
		// connection, idle timeout). Back off before reconnecting so a
		// server that keeps accepting and immediately closing doesn't get
		// hammered.
		if err := m.wait(ctx); err != nil {
			return err
		}
	}
}

func (m *Monitor) drain(ctx context.Context, session Session) error {
	for {
		event, err := session.Next(ctx)
		if err != nil {
			if m.state == connOnline {
				m.state = connOffline
				m.bus.Publish(eventbus.Offline{})
			}
			class := Classify(err)
			if class.terminal() {
				m.publishTerminal(class)
				return err
			}
			return nil // transient: caller reconnects
		}

		if m.state == connOffline {
			m.state = connOnline
			m.bus.Publish(eventbus.Online{})
		}

		if event.RetryMS > 0 {
			if eb, ok := m.backoffNow.(*backoff.ExponentialBackOff); ok {
				eb.InitialInterval = time.Duration(event.RetryMS) * time.Millisecond
				eb.Reset()
			}
		}

		if event.ID != "" {
			dup, err := m.dedup.seenBefore(event.ID)
			if err != nil {
				m.logger.Warn().Err(err).Msg("dedup filter error, dispatching anyway")
			} else if dup {
				continue
			}
			m.lastEventID = event.ID
		}

		m.dispatch(event)
	}
}

func (m *Monitor) dispatch(event ServerEvent) {
	switch {
	case event.Kind == "pinged":
		// ignored
	case event.OrganizationConfig != nil:
		m.bus.Publish(eventbus.ServerConfigNotified{})
	case event.Invitation != nil:
		m.bus.Publish(eventbus.InvitationChanged{Token: event.Invitation.Token, Status: event.Invitation.Status})
	case event.Certificate != nil:
		c := event.Certificate
		ts := certtypes.PerTopicLastTimestamps{}.With(c.Topic, c.RealmID, c.Timestamp)
		m.bus.Publish(eventbus.CertificatesUpdated{Timestamps: ts})
	case event.Vlob != nil:
		m.bus.Publish(eventbus.RealmVlobUpdated{RealmID: event.Vlob.RealmID, VlobID: event.Vlob.VlobID, Version: event.Vlob.Version})
	case event.Greeting != nil:
		m.dispatchGreeting(*event.Greeting)
	case event.Kind == "missed_events":
		m.bus.Publish(eventbus.MissedServerEvents{})
	default:
		m.logger.Debug().Str("kind", event.Kind).Msg("unrecognized server event, ignoring")
	}
}

func (m *Monitor) dispatchGreeting(g GreetingPayload) {
	switch g.Status {
	case "ready":
		m.bus.Publish(eventbus.GreetingAttemptReady{Token: g.Token})
	case "joined":
		m.bus.Publish(eventbus.GreetingAttemptJoined{Token: g.Token})
	case "cancelled":
		m.bus.Publish(eventbus.GreetingAttemptCancelled{Token: g.Token})
	case "peer_reset":
		m.bus.Publish(eventbus.GreetingAttemptPeerReset{Token: g.Token})
	}
}

func (m *Monitor) publishTerminal(class ErrorClass) {
	switch class {
	case ClassMustAcceptTos:
		m.bus.Publish(eventbus.MustAcceptTos{})
	case ClassOrganizationExpired:
		m.bus.Publish(eventbus.ExpiredOrganization{})
	case ClassRevokedSelfUser:
		m.bus.Publish(eventbus.RevokedSelfUser{})
	case ClassUnsupportedAPIVersion, ClassOther:
		m.bus.Publish(eventbus.IncompatibleServer{})
	}
}

func (m *Monitor) wait(ctx context.Context) error {
	d := m.backoffNow.NextBackOff()
	if d == backoff.Stop {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NotifyRetryHint lets a component that just observed fresh server
// activity (e.g. a successful certificate submission) tell the monitor
// to reset its backoff, so the next wait starts again from the initial
// interval. A wait already in progress is not cut short.
func (m *Monitor) NotifyRetryHint() {
	m.backoffNow.Reset()
}
