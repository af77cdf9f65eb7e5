package shamir

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/parsec-cloud/libparsec-go/internal/certcrypto"
	"github.com/parsec-cloud/libparsec-go/internal/certstore"
	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
	"github.com/parsec-cloud/libparsec-go/internal/serverclient"
)

var (
	ErrInvalidThreshold    = errors.New("shamir: threshold must be >= 1 and <= sum of recipient share counts")
	ErrZeroShareCount      = errors.New("shamir: a recipient cannot be granted zero shares")
	ErrAuthorIsRecipient   = errors.New("shamir: the setup's author cannot also be a recipient")
	ErrSetupAlreadyExists  = errors.New("shamir: user already has a non-deleted recovery setup")
	ErrRecipientUnknown    = errors.New("shamir: recipient does not exist or is revoked")
	ErrTimestampOutOfBallpark = errors.New("shamir: device clock too far from server clock")
)

// RecipientKeyResolver resolves a user's current RSA public encryption
// key (the same sequester-grade RSA-OAEP scheme spec §6 mandates for any
// recipient-sealed payload, not only sequester services), used to seal
// that recipient's weighted_share.
type RecipientKeyResolver func(ctx context.Context, user certtypes.UserID) (*rsa.PublicKey, error)

// Engine drives Shamir recovery setup: recovery device creation, input
// validation, secret splitting, and the brief+shares server round-trip,
// all with RequireGreaterTimestamp retried indefinitely (spec §4.3,
// §8 — "no attempt cap; the server's suggested timestamp always
// advances").
type Engine struct {
	store    *certstore.Store
	server   *serverclient.Client
	resolver RecipientKeyResolver
}

func New(store *certstore.Store, server *serverclient.Client, resolver RecipientKeyResolver) *Engine {
	return &Engine{store: store, server: server, resolver: resolver}
}

// SetupResult is what a successful shamir_setup_create returns to the
// caller (spec E3): the brief, the per-recipient shares just emitted,
// and the recovery device's id for cross-reference.
type SetupResult struct {
	Brief          certtypes.ShamirRecoveryBriefCertificate
	Shares         []certtypes.ShamirRecoveryShareCertificate
	RecoveryDevice certtypes.DeviceID
}

// Create runs the full setup: validation (including the check for an
// earlier brief), recovery device, split+emit, submit.
func (e *Engine) Create(
	ctx context.Context,
	author certtypes.UserID,
	authorDevice certtypes.DeviceID,
	signer certcrypto.SigningKey,
	recipients map[certtypes.UserID]uint64,
	threshold uint64,
	now func() time.Time,
) (SetupResult, error) {
	if err := validateRecipients(author, recipients, threshold); err != nil {
		return SetupResult{}, err
	}

	if err := e.checkNoEarlierBrief(ctx, author); err != nil {
		return SetupResult{}, err
	}

	recoveryDeviceID, recoveryVerify, err := e.createRecoveryDevice(ctx, author, authorDevice, signer, now)
	if err != nil {
		return SetupResult{}, err
	}

	var dataKey [32]byte
	if _, err := rand.Read(dataKey[:]); err != nil {
		return SetupResult{}, fmt.Errorf("shamir: generate data key: %w", err)
	}
	revealToken := make([]byte, 16)
	if _, err := rand.Read(revealToken); err != nil {
		return SetupResult{}, fmt.Errorf("shamir: generate reveal token: %w", err)
	}

	total := uint32(0)
	for _, c := range recipients {
		total += uint32(c)
	}
	shares, err := SplitSecret(dataKey, uint32(threshold), total)
	if err != nil {
		return SetupResult{}, err
	}

	return e.submitBriefAndShares(ctx, author, authorDevice, signer, recipients, uint32(threshold), shares, recoveryDeviceID, recoveryVerify, dataKey, revealToken, now)
}

func validateRecipients(author certtypes.UserID, recipients map[certtypes.UserID]uint64, threshold uint64) error {
	var sum uint64
	for user, count := range recipients {
		if count == 0 {
			return ErrZeroShareCount
		}
		if user == author {
			return ErrAuthorIsRecipient
		}
		sum += count
	}
	if threshold < 1 || threshold > sum {
		return ErrInvalidThreshold
	}
	return nil
}

func (e *Engine) checkNoEarlierBrief(ctx context.Context, author certtypes.UserID) error {
	var exists bool
	err := e.store.ForRead(ctx, func(g *certstore.ReadGuard) error {
		_, found, err := g.GetLastShamirBriefForAuthor(author, 0, true)
		exists = found
		return err
	})
	if err != nil {
		return err
	}
	if exists {
		return ErrSetupAlreadyExists
	}
	return nil
}

// createRecoveryDevice implements spec §4.3 step 1: generate a fresh
// signing keypair, assemble a labeled Device certificate, and submit it
// with RequireGreaterTimestamp retried until accepted.
func (e *Engine) createRecoveryDevice(
	ctx context.Context,
	author certtypes.UserID,
	authorDevice certtypes.DeviceID,
	signer certcrypto.SigningKey,
	now func() time.Time,
) (certtypes.DeviceID, []byte, error) {
	_, recoveryVerify, err := certcrypto.GenerateSigningKey()
	if err != nil {
		return certtypes.DeviceID{}, nil, err
	}
	recoveryDeviceID := certtypes.NewDeviceID()

	ts := certtypes.TimestampFromTime(now())
	for {
		dc := certtypes.DeviceCertificate{
			Author:      authorDevice,
			Timestamp:   ts,
			UserID:      author,
			DeviceID:    recoveryDeviceID,
			DeviceLabel: fmt.Sprintf("shamir-recovery-%d", ts),
			VerifyKey:   recoveryVerify,
		}
		payload, err := certcrypto.MarshalPayload(dc)
		if err != nil {
			return certtypes.DeviceID{}, nil, err
		}
		envelope := signer.Sign(payload)

		outcome, err := e.server.SubmitCertificates(ctx, certtypes.TopicCommon, [][]byte{envelope})
		if err != nil {
			return certtypes.DeviceID{}, nil, err
		}
		if outcome.Accepted {
			return recoveryDeviceID, recoveryVerify, nil
		}
		if outcome.RequireGreaterTimestamp != nil {
			ts = certtypes.StrictlyAfter(*outcome.RequireGreaterTimestamp, now())
			continue
		}
		if outcome.OutOfBallpark != nil {
			return certtypes.DeviceID{}, nil, ErrTimestampOutOfBallpark
		}
		return certtypes.DeviceID{}, nil, outcome.Terminal
	}
}

func (e *Engine) submitBriefAndShares(
	ctx context.Context,
	author certtypes.UserID,
	authorDevice certtypes.DeviceID,
	signer certcrypto.SigningKey,
	recipients map[certtypes.UserID]uint64,
	threshold uint32,
	shares []Share,
	recoveryDeviceID certtypes.DeviceID,
	recoveryVerify []byte,
	dataKey [32]byte,
	revealToken []byte,
	now func() time.Time,
) (SetupResult, error) {
	ts := certtypes.TimestampFromTime(now())
	for {
		envelopes, briefCert, shareCerts, err := e.buildBriefAndShares(ctx, author, authorDevice, signer, recipients, threshold, shares, ts)
		if err != nil {
			return SetupResult{}, err
		}

		outcome, err := e.server.SubmitCertificates(ctx, certtypes.TopicShamirRecovery, envelopes)
		if err != nil {
			return SetupResult{}, err
		}
		if outcome.Accepted {
			return SetupResult{Brief: briefCert, Shares: shareCerts, RecoveryDevice: recoveryDeviceID}, nil
		}
		if outcome.RequireGreaterTimestamp != nil {
			ts = certtypes.StrictlyAfter(*outcome.RequireGreaterTimestamp, now())
			continue
		}
		if outcome.OutOfBallpark != nil {
			return SetupResult{}, ErrTimestampOutOfBallpark
		}
		return SetupResult{}, outcome.Terminal
	}
}

// buildBriefAndShares assembles (deterministically, for a fixed ts) the
// brief certificate plus one Share certificate per recipient, splitting
// shares across each recipient's count in map-iteration order. Ciphering
// is non-deterministic (fresh nonce per recipient) even though the brief
// itself is deterministic given identical inputs and ts (spec §4.3's
// determinism property).
func (e *Engine) buildBriefAndShares(
	ctx context.Context,
	author certtypes.UserID,
	authorDevice certtypes.DeviceID,
	signer certcrypto.SigningKey,
	recipients map[certtypes.UserID]uint64,
	threshold uint32,
	shares []Share,
	ts certtypes.Timestamp,
) ([][]byte, certtypes.ShamirRecoveryBriefCertificate, []certtypes.ShamirRecoveryShareCertificate, error) {
	brief := certtypes.ShamirRecoveryBriefCertificate{
		Author:             authorDevice,
		Timestamp:          ts,
		UserID:             author,
		Threshold:          uint64(threshold),
		PerRecipientShares: recipients,
	}
	briefPayload, err := certcrypto.MarshalPayload(brief)
	if err != nil {
		return nil, brief, nil, err
	}
	envelopes := [][]byte{signer.Sign(briefPayload)}

	var shareCerts []certtypes.ShamirRecoveryShareCertificate
	offset := uint64(0)
	for recipient, count := range recipients {
		mine := shares[offset : offset+count]
		offset += count

		var data certtypes.ShamirRecoveryShareData
		for _, s := range mine {
			id, val, err := MarshalShare(s)
			if err != nil {
				return nil, brief, nil, err
			}
			data.WeightedShare = append(data.WeightedShare, id, val)
		}
		plain, err := certcrypto.MarshalPayload(data)
		if err != nil {
			return nil, brief, nil, err
		}

		pub, err := e.resolver(ctx, recipient)
		if err != nil {
			return nil, brief, nil, fmt.Errorf("%w: %s", ErrRecipientUnknown, recipient)
		}
		ciphered, err := certcrypto.SequesterEncrypt(pub, plain)
		if err != nil {
			return nil, brief, nil, err
		}

		shareCert := certtypes.ShamirRecoveryShareCertificate{
			Author:        authorDevice,
			Timestamp:     ts,
			UserID:        author,
			Recipient:     recipient,
			CipheredShare: ciphered,
		}
		shareCerts = append(shareCerts, shareCert)

		sharePayload, err := certcrypto.MarshalPayload(shareCert)
		if err != nil {
			return nil, brief, nil, err
		}
		envelopes = append(envelopes, signer.Sign(sharePayload))
	}

	return envelopes, brief, shareCerts, nil
}
