package parsecclient

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/parsec-cloud/libparsec-go/internal/certcrypto"
	"github.com/parsec-cloud/libparsec-go/internal/certtypes"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestOpenAndCloseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "client.yaml")
	storageDir := filepath.Join(dir, "storage")
	require.NoError(t, os.WriteFile(configPath, []byte(
		"server_url: https://parsec.example.com\norganization_id: acme\nstorage_dir: "+storageDir+"\n",
	), 0o600))

	signer, rootVerifyKey, err := certcrypto.GenerateSigningKey()
	require.NoError(t, err)

	client, err := Open(configPath, "correct horse battery staple", rootVerifyKey, signer, certtypes.NewDeviceID(), certtypes.NewUserID(), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	profile, err := client.CurrentSelfProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, certtypes.ProfileOutsider, profile)
}
