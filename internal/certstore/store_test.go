package certstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/parsec-cloud/libparsec-go/internal/certcrypto"
	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
	"github.com/parsec-cloud/libparsec-go/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, certcrypto.SigningKey, []byte, certtypes.DeviceID) {
	t.Helper()

	adapter, err := storage.Open(filepath.Join(t.TempDir(), "certs.db"), [32]byte{1}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })

	rootKey, rootPub, err := certcrypto.GenerateSigningKey()
	require.NoError(t, err)

	selfUser := certtypes.NewUserID()
	store := New(adapter, rootPub, selfUser, nil, zerolog.Nop())
	return store, rootKey, rootPub, RootAuthor
}

func signedDeviceCert(t *testing.T, signer certcrypto.SigningKey, userID, deviceID certtypes.DeviceID, at certtypes.Timestamp, verifyKey []byte) []byte {
	t.Helper()
	dc := certtypes.DeviceCertificate{
		Author:    RootAuthor,
		Timestamp: at,
		UserID:    certtypes.UserID(userID),
		DeviceID:  deviceID,
		VerifyKey: verifyKey,
	}
	payload, err := certcrypto.MarshalPayload(dc)
	require.NoError(t, err)
	return signer.Sign(payload)
}

func TestStoreInsertAndReadBackDevice(t *testing.T) {
	store, rootKey, _, _ := newTestStore(t)

	deviceID := certtypes.NewDeviceID()
	_, deviceVerify, err := certcrypto.GenerateSigningKey()
	require.NoError(t, err)

	envelope := signedDeviceCert(t, rootKey, certtypes.DeviceID(certtypes.NewUserID()), deviceID, 1000, deviceVerify)

	err = store.ForWrite(context.Background(), func(g *WriteGuard) error {
		return g.InsertBatch(certtypes.TopicCommon, []PendingCertificate{
			{Kind: certtypes.KindDevice, Envelope: envelope},
		})
	})
	require.NoError(t, err)

	err = store.ForRead(context.Background(), func(g *ReadGuard) error {
		key, err := g.GetDeviceVerifyKey(deviceID)
		require.NoError(t, err)
		require.Equal(t, []byte(deviceVerify), key)
		return nil
	})
	require.NoError(t, err)
}

func TestStoreRejectsNonIncreasingTimestamp(t *testing.T) {
	store, rootKey, _, _ := newTestStore(t)

	deviceID := certtypes.NewDeviceID()
	_, deviceVerify, err := certcrypto.GenerateSigningKey()
	require.NoError(t, err)
	user := certtypes.DeviceID(certtypes.NewUserID())

	first := signedDeviceCert(t, rootKey, user, deviceID, 1000, deviceVerify)
	err = store.ForWrite(context.Background(), func(g *WriteGuard) error {
		return g.InsertBatch(certtypes.TopicCommon, []PendingCertificate{
			{Kind: certtypes.KindDevice, Envelope: first},
		})
	})
	require.NoError(t, err)

	secondDevice := certtypes.NewDeviceID()
	stale := signedDeviceCert(t, rootKey, user, secondDevice, 1000, deviceVerify)
	err = store.ForWrite(context.Background(), func(g *WriteGuard) error {
		return g.InsertBatch(certtypes.TopicCommon, []PendingCertificate{
			{Kind: certtypes.KindDevice, Envelope: stale},
		})
	})
	require.Error(t, err)
	var invalid *ErrInvalidCertificate
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, ReasonBadTimestamp, invalid.Reason)
}

func TestStoreClearsCacheOnWriteFailure(t *testing.T) {
	store, rootKey, _, _ := newTestStore(t)

	deviceID := certtypes.NewDeviceID()
	_, deviceVerify, err := certcrypto.GenerateSigningKey()
	require.NoError(t, err)
	user := certtypes.DeviceID(certtypes.NewUserID())

	first := signedDeviceCert(t, rootKey, user, deviceID, 1000, deviceVerify)
	require.NoError(t, store.ForWrite(context.Background(), func(g *WriteGuard) error {
		return g.InsertBatch(certtypes.TopicCommon, []PendingCertificate{
			{Kind: certtypes.KindDevice, Envelope: first},
		})
	}))

	require.NoError(t, store.ForRead(context.Background(), func(g *ReadGuard) error {
		_, err := g.GetLastTimestamps()
		return err
	}))
	_, cached := store.cache.lastTimestamps.get()
	require.True(t, cached)

	bogus := append([]byte(nil), first...)
	bogus[len(bogus)-1] ^= 0xFF
	err = store.ForWrite(context.Background(), func(g *WriteGuard) error {
		return g.InsertBatch(certtypes.TopicCommon, []PendingCertificate{
			{Kind: certtypes.KindDevice, Envelope: bogus},
		})
	})
	require.Error(t, err)

	_, cached = store.cache.lastTimestamps.get()
	require.False(t, cached, "a failed write must clear the whole cache, not just the failed entry")
}
