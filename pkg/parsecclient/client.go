// Package parsecclient is the public facade composing the Local
// Persistence Adapter (C1), Certificate Store (C2), Shamir Recovery
// Engine (C3), Enrollment Protocol (C4), and Server Event Monitor (C5)
// into the single client object a caller constructs and drives. Grounded
// on the teacher's top-level package (forestrie-go-merklelog has no
// single facade of its own, since it is a library of independent
// accumulator packages; this facade instead follows cuemby-warren's
// pkg/client/client.go shape of "one struct wrapping every subsystem,
// exposed as plain methods").
package parsecclient

import (
	"context"
	"fmt"
	"os"

	"github.com/parsec-cloud/libparsec-go/internal/certcrypto"
	"github.com/parsec-cloud/libparsec-go/internal/certstore"
	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
	"github.com/parsec-cloud/libparsec-go/internal/config"
	"github.com/parsec-cloud/libparsec-go/internal/enrollment"
	"github.com/parsec-cloud/libparsec-go/internal/eventbus"
	"github.com/parsec-cloud/libparsec-go/internal/eventmonitor"
	"github.com/parsec-cloud/libparsec-go/internal/serverclient"
	"github.com/parsec-cloud/libparsec-go/internal/shamir"
	"github.com/parsec-cloud/libparsec-go/internal/storage"
	"github.com/rs/zerolog"
)

// Client is the assembled library surface for one local device. It owns
// the local database, the certificate store, and the server connection;
// the event monitor is started separately via StartEventMonitor once a
// Stream transport is available.
type Client struct {
	cfg *config.Config

	adapter *storage.Adapter
	store   *certstore.Store
	bus     *eventbus.Bus
	server  *serverclient.Client

	signer   certcrypto.SigningKey
	deviceID certtypes.DeviceID
	userID   certtypes.UserID

	logger     zerolog.Logger
	monitor    *eventmonitor.Monitor
	monitorErr chan error
}

// Open loads the on-disk configuration, opens the local database under a
// key derived from passphrase, and wires up the certificate store and
// server client. rootVerifyKey is the organization's root signing public
// key, obtained out of band at enrollment/bootstrap time.
func Open(configPath, passphrase string, rootVerifyKey []byte, signer certcrypto.SigningKey, deviceID certtypes.DeviceID, userID certtypes.UserID, logger zerolog.Logger) (*Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.StorageDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating storage dir %s: %w", cfg.StorageDir, err)
	}

	storageKey := certcrypto.DeriveKeyFromPassphrase(passphrase, []byte(cfg.OrganizationID))
	dbPath := fmt.Sprintf("%s/%s.db", cfg.StorageDir, deviceID.String())
	adapter, err := storage.Open(dbPath, storageKey, logger)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	store := certstore.New(adapter, rootVerifyKey, userID, bus, logger)
	server := serverclient.New(cfg.ServerURL, logger)

	return &Client{
		cfg:      cfg,
		adapter:  adapter,
		store:    store,
		bus:      bus,
		server:   server,
		signer:   signer,
		deviceID: deviceID,
		userID:   userID,
		logger:   logger,
	}, nil
}

// Close releases the local database and stops the event bus. Any running
// event monitor should be stopped by cancelling the context passed to
// StartEventMonitor before calling Close.
func (c *Client) Close() error {
	c.bus.Stop()
	return c.adapter.Close()
}

// Subscribe exposes the in-process event bus to callers (UI layers,
// workspace-sync daemons) that need to react to certificate, invitation,
// or connectivity changes.
func (c *Client) Subscribe(kinds ...string) *eventbus.Subscription {
	return c.bus.Subscribe(kinds...)
}

// Store exposes the certificate store for read/write access (spec §4.2
// operations) beyond the convenience wrappers below.
func (c *Client) Store() *certstore.Store { return c.store }

// ForgetAllCertificates drops every locally cached certificate, used on
// organization reset.
func (c *Client) ForgetAllCertificates(ctx context.Context) error {
	return c.store.ForgetAllCertificates(ctx)
}

// CurrentSelfProfile returns the caller's own current access profile.
func (c *Client) CurrentSelfProfile(ctx context.Context) (certtypes.UserProfile, error) {
	var profile certtypes.UserProfile
	err := c.store.ForRead(ctx, func(g *certstore.ReadGuard) error {
		p, err := g.GetCurrentSelfProfile()
		profile = p
		return err
	})
	return profile, err
}

// ShamirRecipientKeyResolver is supplied by the caller: it looks up a
// recipient's sequester-style RSA public key (obtained out of band, e.g.
// from that recipient's own Device/User certificate extension) for
// encrypting their Shamir share.
type ShamirRecipientKeyResolver = shamir.RecipientKeyResolver

// NewShamirEngine constructs C3's recovery engine bound to this client's
// store and server connection.
func (c *Client) NewShamirEngine(resolver ShamirRecipientKeyResolver) *shamir.Engine {
	return shamir.New(c.store, c.server, resolver)
}

// NewGreeter constructs one side of a C4 enrollment handshake for the
// user currently greeting an invitation, bound to this client's signing
// identity and server connection.
func (c *Client) NewGreeter(peer enrollment.PeerExchange, trust enrollment.TrustChannel, ex enrollment.ExchangeChannel) *enrollment.Greeter {
	return enrollment.NewGreeter(peer, trust, ex, c.server, c.signer, c.deviceID)
}

// NewClaimer constructs the claimer side of a C4 enrollment handshake.
func (c *Client) NewClaimer(peer enrollment.PeerExchange, trust enrollment.TrustChannel, ex enrollment.ExchangeChannel) *enrollment.Claimer {
	return enrollment.NewClaimer(peer, trust, ex)
}

// StartEventMonitor builds and launches C5's SSE reconnect loop over the
// given transport, publishing onto this client's event bus. Run blocks
// until ctx is cancelled or a terminal error class is reached; callers
// typically launch it in its own goroutine and read the result from the
// returned channel.
func (c *Client) StartEventMonitor(ctx context.Context, stream eventmonitor.Stream) (<-chan error, error) {
	mon, err := eventmonitor.New(stream, c.bus, c.logger)
	if err != nil {
		return nil, err
	}
	c.monitor = mon

	done := make(chan error, 1)
	c.monitorErr = done
	go func() {
		done <- mon.Run(ctx)
	}()
	return done, nil
}
