package encryption_test

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/idelchi/recrypt/internal/encryption"
)

const testSecret = "test-secret"

//nolint:gochecknoglobals
var testKeys = sync.OnceValue(func() encryption.Keys {
	return encryption.DeriveKeys(testSecret, encryption.DefaultParams())
})

func newLegacy(t *testing.T) *encryption.Legacy {
	t.Helper()

	return encryption.NewLegacy(testKeys())
}

func encode(t *testing.T, plaintext []byte) []byte {
	t.Helper()

	token, err := newLegacy(t).Encode(plaintext)
	if err != nil {
		t.Fatalf("encoding: %v", err)
	}

	return token
}

func TestDeriveKeysSplitsOneDerivation(t *testing.T) {
	t.Parallel()

	keys := testKeys()

	if len(keys.Signing) != 16 || len(keys.Decryption) != 16 || len(keys.Encryption) != 32 {
		t.Fatalf("unexpected key sizes %d/%d/%d", len(keys.Signing), len(keys.Decryption), len(keys.Encryption))
	}

	joined := append(append([]byte{}, keys.Signing...), keys.Decryption...)
	if !bytes.Equal(joined, keys.Encryption) {
		t.Fatal("legacy halves do not concatenate to the unified key")
	}

	want := sha256.Sum256([]byte(testSecret + "file_salt"))
	if !bytes.Equal(keys.FileSalt, want[:]) {
		t.Fatal("file salt mismatch")
	}

	again := encryption.DeriveKeys(testSecret, encryption.DefaultParams())
	if !bytes.Equal(again.Encryption, keys.Encryption) {
		t.Fatal("derivation is not deterministic")
	}
}

func TestLegacyRoundTrip(t *testing.T) {
	t.Parallel()

	tests := map[string][]byte{
		"hello world": []byte("hello world"),
		"empty":       {},
		"block sized": bytes.Repeat([]byte{'a'}, aes.BlockSize),
		"multi block": bytes.Repeat([]byte{0xff, 0xd8, 0x00}, 1000),
		"single byte": {0x80},
	}

	for name, plaintext := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			token := encode(t, plaintext)

			if token[0] != 0x80 {
				t.Fatalf("version byte = 0x%02x", token[0])
			}

			got, err := newLegacy(t).Decode(token)
			if err != nil {
				t.Fatalf("decoding: %v", err)
			}

			if !bytes.Equal(got, plaintext) {
				t.Fatalf("got %q, want %q", got, plaintext)
			}
		})
	}
}

func TestLegacyStoredRepresentations(t *testing.T) {
	t.Parallel()

	token := encode(t, []byte("hello world"))
	b64 := base64.URLEncoding.EncodeToString(token)

	tests := []struct {
		name     string
		stored   []byte
		encoding encryption.Encoding
	}{
		{"raw", token, encryption.EncodingRaw},
		{"base64url padded", []byte(b64), encryption.EncodingBase64URL},
		{"base64url unpadded", []byte(strings.TrimRight(b64, "=")), encryption.EncodingBase64URL},
		{"standard alphabet", []byte(base64.StdEncoding.EncodeToString(token)), encryption.EncodingBase64URL},
		{"hex of base64url", []byte(hex.EncodeToString([]byte(b64))), encryption.EncodingHex},
		{"hex of raw", []byte(hex.EncodeToString(token)), encryption.EncodingHex},
		{"bytea of base64url", []byte(`\x` + hex.EncodeToString([]byte(b64))), encryption.EncodingByteaHex},
		{"bytea of raw", []byte(`\x` + hex.EncodeToString(token)), encryption.EncodingByteaHex},
		{"trailing newline", []byte(b64 + "\n"), encryption.EncodingBase64URL},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			normalized, encoding := encryption.Normalize(tc.stored)
			if encoding != tc.encoding {
				t.Fatalf("encoding = %q, want %q", encoding, tc.encoding)
			}

			if !bytes.Equal(normalized, token) {
				t.Fatal("normalized token differs from the original")
			}

			got, err := newLegacy(t).Decode(tc.stored)
			if err != nil {
				t.Fatalf("decoding: %v", err)
			}

			if string(got) != "hello world" {
				t.Fatalf("got %q", got)
			}
		})
	}
}

func TestLegacyUnknownRepresentation(t *testing.T) {
	t.Parallel()

	stored := []byte("definitely not a token, not hex, not base64!")

	normalized, encoding := encryption.Normalize(stored)
	if encoding != encryption.EncodingUnknown || !bytes.Equal(normalized, stored) {
		t.Fatalf("got %q/%q, want passthrough", encoding, normalized)
	}

	if _, err := newLegacy(t).Decode(stored); !errors.Is(err, encryption.ErrFormat) {
		t.Fatalf("got %v, want ErrFormat", err)
	}
}

func TestLegacyTamperedByte(t *testing.T) {
	t.Parallel()

	token := encode(t, []byte("hello world"))
	codec := newLegacy(t)

	for i := range token {
		tampered := bytes.Clone(token)
		tampered[i] ^= 0x01

		_, err := codec.DecodeToken(tampered)

		want := encryption.ErrIntegrity
		if i == 0 {
			want = encryption.ErrFormat
		}

		if !errors.Is(err, want) {
			t.Fatalf("byte %d: got %v, want %v", i, err, want)
		}
	}
}

func TestLegacyShortToken(t *testing.T) {
	t.Parallel()

	short := bytes.Repeat([]byte{0x80}, encryption.MinLegacyTokenSize-1)

	_, err := newLegacy(t).DecodeToken(short)
	if !errors.Is(err, encryption.ErrFormat) {
		t.Fatalf("got %v, want ErrFormat", err)
	}
}

func TestLegacyWrongSecret(t *testing.T) {
	t.Parallel()

	token := encode(t, []byte("hello world"))
	other := encryption.NewLegacy(encryption.DeriveKeys("other-secret", encryption.DefaultParams()))

	if _, err := other.Decode(token); !errors.Is(err, encryption.ErrIntegrity) {
		t.Fatalf("got %v, want ErrIntegrity", err)
	}
}

// signedToken builds a correctly authenticated token around an arbitrary ciphertext.
func signedToken(t *testing.T, ciphertext []byte) []byte {
	t.Helper()

	token := make([]byte, 25, 25+len(ciphertext)+32)
	token[0] = 0x80
	token = append(token, ciphertext...)

	mac := hmac.New(sha256.New, testKeys().Signing)
	mac.Write(token)

	return mac.Sum(token)
}

func TestLegacyCryptoFailures(t *testing.T) {
	t.Parallel()

	block, err := aes.NewCipher(testKeys().Decryption)
	if err != nil {
		t.Fatal(err)
	}

	badPadding := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(badPadding, make([]byte, aes.BlockSize))

	tests := map[string][]byte{
		"zero padding":     badPadding,
		"misaligned":       make([]byte, aes.BlockSize+3),
		"empty ciphertext": {},
	}

	for name, ciphertext := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := newLegacy(t).DecodeToken(signedToken(t, ciphertext))
			if !errors.Is(err, encryption.ErrCrypto) {
				t.Fatalf("got %v, want ErrCrypto", err)
			}
		})
	}
}

func TestTimestamp(t *testing.T) {
	t.Parallel()

	token := encode(t, []byte("x"))

	ts, err := encryption.Timestamp(token)
	if err != nil {
		t.Fatalf("reading timestamp: %v", err)
	}

	if ts.IsZero() || ts.Year() < 2020 {
		t.Fatalf("implausible timestamp %v", ts)
	}

	if _, err := encryption.Timestamp([]byte{0x00}); !errors.Is(err, encryption.ErrFormat) {
		t.Fatalf("got %v, want ErrFormat", err)
	}
}
