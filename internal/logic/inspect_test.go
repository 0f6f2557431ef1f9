package logic_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/idelchi/recrypt/internal/config"
	"github.com/idelchi/recrypt/internal/encryption"
	"github.com/idelchi/recrypt/internal/logic"
	"github.com/idelchi/recrypt/internal/store"
)

//nolint:gochecknoglobals
var jpeg = append([]byte{0xff, 0xd8, 0xff, 0xe0}, bytes.Repeat([]byte{0x42}, 100)...)

func TestInspectLegacy(t *testing.T) {
	t.Parallel()

	keys := encryption.DeriveKeys(secret, encryption.DefaultParams())

	token, err := encryption.NewLegacy(keys).Encode(jpeg)
	require.NoError(t, err)

	output := filepath.Join(t.TempDir(), "out", "photo.jpg")
	cfg := &config.Config{Secret: secret, Inspect: config.Inspect{Output: output}}

	var out bytes.Buffer

	rec := store.Record{ID: "r1", Filename: "photo.jpg"}
	require.NoError(t, logic.Inspect(cfg, rec, token, &out))

	report := out.String()
	require.Contains(t, report, "Format:       legacy")
	require.Contains(t, report, "Encoding:     raw")
	require.Contains(t, report, "First bytes:  ffd8ffe0")
	require.Contains(t, report, "Detected:     image/jpeg")
	require.Contains(t, report, "Expected:     image/jpeg")

	written, err := os.ReadFile(output)
	require.NoError(t, err)
	require.Equal(t, jpeg, written)

	require.ErrorContains(t, logic.Inspect(cfg, rec, token, &out), "exists")
}

func TestInspectUnified(t *testing.T) {
	t.Parallel()

	keys := encryption.DeriveKeys(secret, encryption.DefaultParams())

	unified, err := encryption.NewUnified(keys)
	require.NoError(t, err)

	payload, meta, err := unified.Encrypt(jpeg, 32)
	require.NoError(t, err)

	metaJSON, err := meta.JSON()
	require.NoError(t, err)

	rec := store.Record{
		ID:               "r2",
		Filename:         "photo.jpg",
		EncryptionMethod: encryption.MethodUnified,
		Metadata:         metaJSON,
	}

	var out bytes.Buffer

	require.NoError(t, logic.Inspect(&config.Config{Secret: secret}, rec, payload, &out))
	require.Contains(t, out.String(), "Format:       aes-gcm-unified")
	require.Contains(t, out.String(), "Chunks:       4")
	require.Contains(t, out.String(), "Detected:     image/jpeg")
}

func TestInspectWrongSecret(t *testing.T) {
	t.Parallel()

	token, err := encryption.NewLegacy(encryption.DeriveKeys("other", encryption.DefaultParams())).Encode(jpeg)
	require.NoError(t, err)

	var out bytes.Buffer

	err = logic.Inspect(&config.Config{Secret: secret}, store.Record{ID: "r3"}, token, &out)
	require.ErrorIs(t, err, encryption.ErrIntegrity)
	require.Contains(t, out.String(), "Decryption:   failed")
}
