package encryption_test

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"testing"

	"github.com/goccy/go-yaml"

	"github.com/idelchi/recrypt/internal/encryption"
)

func newUnified(t *testing.T) *encryption.Unified {
	t.Helper()

	codec, err := encryption.NewUnified(testKeys())
	if err != nil {
		t.Fatalf("creating codec: %v", err)
	}

	return codec
}

func pseudoRandom(n int) []byte {
	rng := rand.New(rand.NewPCG(uint64(n), 42)) //nolint:gosec
	out := make([]byte, n)

	for i := range out {
		out[i] = byte(rng.UintN(256))
	}

	return out
}

func TestUnifiedHelloWorld(t *testing.T) {
	t.Parallel()

	plaintext := []byte("hello world")

	payload, meta, err := newUnified(t).Encrypt(plaintext, encryption.OptimalChunkSize(int64(len(plaintext))))
	if err != nil {
		t.Fatalf("encrypting: %v", err)
	}

	if len(payload) != 43 {
		t.Fatalf("payload is %d bytes, want 43", len(payload))
	}

	want := encryption.Metadata{
		ChunkSize:        65536,
		TotalChunks:      1,
		EncryptionMethod: "aes-gcm-unified",
		FileSize:         11,
	}
	if meta != want {
		t.Fatalf("metadata = %+v, want %+v", meta, want)
	}

	data, err := meta.JSON()
	if err != nil {
		t.Fatal(err)
	}

	const wantJSON = `{"chunkSize":65536,"totalChunks":1,"encryptionMethod":"aes-gcm-unified","fileSize":11}`
	if string(data) != wantJSON {
		t.Fatalf("json = %s", data)
	}

	got, err := newUnified(t).Decrypt(payload, meta)
	if err != nil {
		t.Fatalf("decrypting: %v", err)
	}

	if !bytes.Equal(got, plaintext) {
		t.Fatalf("got %q", got)
	}
}

func TestUnifiedNonceDerivation(t *testing.T) {
	t.Parallel()

	payload, _, err := newUnified(t).Encrypt(pseudoRandom(20), 16)
	if err != nil {
		t.Fatal(err)
	}

	fileSalt := sha256.Sum256([]byte(testSecret + "file_salt"))

	for index, offset := range []int{0, 16 + encryption.ChunkOverhead} {
		digest := sha256.Sum256(append(fileSalt[:], []byte(fmt.Sprint(index))...))

		if !bytes.Equal(payload[offset:offset+16], digest[:16]) {
			t.Fatalf("chunk %d nonce mismatch", index)
		}
	}
}

func TestUnifiedDeterministic(t *testing.T) {
	t.Parallel()

	plaintext := pseudoRandom(200_000)

	first, _, err := newUnified(t).Encrypt(plaintext, 65536)
	if err != nil {
		t.Fatal(err)
	}

	second, _, err := newUnified(t).Encrypt(plaintext, 65536)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(first, second) {
		t.Fatal("payloads differ for identical inputs")
	}
}

func TestUnifiedChunking(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size, chunk, chunks int
	}{
		{0, 64, 0},
		{1, 64, 1},
		{63, 64, 1},
		{64, 64, 1},
		{65, 64, 2},
		{640, 64, 10},
		{1000, 7, 143},
		{200_000, 65536, 4},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%d/%d", tc.size, tc.chunk), func(t *testing.T) {
			t.Parallel()

			plaintext := pseudoRandom(tc.size)
			codec := newUnified(t)

			payload, meta, err := codec.Encrypt(plaintext, tc.chunk)
			if err != nil {
				t.Fatalf("encrypting: %v", err)
			}

			if meta.TotalChunks != tc.chunks {
				t.Fatalf("chunks = %d, want %d", meta.TotalChunks, tc.chunks)
			}

			if int64(len(payload)) != encryption.EncryptedSize(int64(tc.size), tc.chunk) {
				t.Fatalf("payload is %d bytes, want %d", len(payload), encryption.EncryptedSize(int64(tc.size), tc.chunk))
			}

			if len(payload) != tc.size+tc.chunks*encryption.ChunkOverhead {
				t.Fatalf("payload is %d bytes", len(payload))
			}

			got, err := codec.Decrypt(payload, meta)
			if err != nil {
				t.Fatalf("decrypting: %v", err)
			}

			if !bytes.Equal(got, plaintext) {
				t.Fatal("round trip mismatch")
			}
		})
	}
}

func TestUnifiedTamperedByte(t *testing.T) {
	t.Parallel()

	codec := newUnified(t)

	payload, meta, err := codec.Encrypt(pseudoRandom(40), 16)
	if err != nil {
		t.Fatal(err)
	}

	for i := range payload {
		tampered := bytes.Clone(payload)
		tampered[i] ^= 0x80

		if _, err := codec.Decrypt(tampered, meta); !errors.Is(err, encryption.ErrIntegrity) {
			t.Fatalf("byte %d: got %v, want ErrIntegrity", i, err)
		}
	}
}

func TestUnifiedRejectsMalformed(t *testing.T) {
	t.Parallel()

	codec := newUnified(t)

	payload, meta, err := codec.Encrypt(pseudoRandom(100), 32)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := codec.Encrypt([]byte("x"), 0); !errors.Is(err, encryption.ErrFormat) {
		t.Fatalf("zero chunk size: got %v", err)
	}

	if _, err := codec.Decrypt(payload[:len(payload)-1], meta); !errors.Is(err, encryption.ErrFormat) {
		t.Fatalf("truncated: got %v", err)
	}

	wrong := meta
	wrong.TotalChunks++

	if _, err := codec.Decrypt(payload, wrong); !errors.Is(err, encryption.ErrFormat) {
		t.Fatalf("inconsistent metadata: got %v", err)
	}

	other, err := encryption.NewUnified(encryption.DeriveKeys("other-secret", encryption.DefaultParams()))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := other.Decrypt(payload, meta); !errors.Is(err, encryption.ErrIntegrity) {
		t.Fatalf("wrong secret: got %v", err)
	}
}

func TestUnifiedDecryptRange(t *testing.T) {
	t.Parallel()

	plaintext := pseudoRandom(300)
	codec := newUnified(t)

	payload, meta, err := codec.Encrypt(plaintext, 64)
	if err != nil {
		t.Fatal(err)
	}

	ranges := [][2]int64{{0, 0}, {0, 63}, {10, 70}, {64, 127}, {250, 299}, {299, 299}, {0, 299}}

	for _, r := range ranges {
		got, err := codec.DecryptRange(payload, meta, r[0], r[1])
		if err != nil {
			t.Fatalf("range %v: %v", r, err)
		}

		if !bytes.Equal(got, plaintext[r[0]:r[1]+1]) {
			t.Fatalf("range %v: content mismatch", r)
		}
	}

	for _, r := range [][2]int64{{-1, 5}, {5, 4}, {0, 300}} {
		if _, err := codec.DecryptRange(payload, meta, r[0], r[1]); !errors.Is(err, encryption.ErrFormat) {
			t.Fatalf("range %v: got %v, want ErrFormat", r, err)
		}
	}
}

func TestChunkRange(t *testing.T) {
	t.Parallel()

	got := encryption.ChunkRange(100, 200_000, 65536)
	want := encryption.ChunkInfo{StartChunk: 0, EndChunk: 3, ChunksNeeded: 4}

	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParseMetadata(t *testing.T) {
	t.Parallel()

	meta, err := encryption.ParseMetadata(
		[]byte(`{"chunkSize":65536,"totalChunks":2,"encryptionMethod":"aes-gcm-unified","fileSize":70000}`))
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}

	if meta.EncryptedSize() != 70000+64 {
		t.Fatalf("encrypted size = %d", meta.EncryptedSize())
	}

	invalid := []string{
		`not json`,
		`{"chunkSize":65536,"totalChunks":1,"encryptionMethod":"fernet","fileSize":1}`,
		`{"chunkSize":0,"totalChunks":1,"encryptionMethod":"aes-gcm-unified","fileSize":1}`,
		`{"chunkSize":10,"totalChunks":1,"encryptionMethod":"aes-gcm-unified","fileSize":11}`,
	}

	for _, in := range invalid {
		if _, err := encryption.ParseMetadata([]byte(in)); !errors.Is(err, encryption.ErrFormat) {
			t.Fatalf("%s: got %v, want ErrFormat", in, err)
		}
	}
}

// PolicyCase is a single chunk size expectation from testdata/chunk_policy.yml.
type PolicyCase struct {
	Size        int64  `yaml:"size"`
	Chunk       int    `yaml:"chunk"`
	Description string `yaml:"description,omitempty"`
}

// PolicyGroup is a named collection of policy cases.
type PolicyGroup struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Cases       []PolicyCase `yaml:"cases"`
}

func TestOptimalChunkSize(t *testing.T) {
	t.Parallel()

	data, err := os.ReadFile("testdata/chunk_policy.yml")
	if err != nil {
		t.Fatalf("reading testdata: %v", err)
	}

	var groups []PolicyGroup
	if err := yaml.Unmarshal(data, &groups); err != nil {
		t.Fatalf("parsing testdata: %v", err)
	}

	for _, group := range groups {
		for _, tc := range group.Cases {
			t.Run(group.Name+"/"+tc.Description, func(t *testing.T) {
				t.Parallel()

				if got := encryption.OptimalChunkSize(tc.Size); got != tc.Chunk {
					t.Fatalf("OptimalChunkSize(%d) = %d, want %d", tc.Size, got, tc.Chunk)
				}
			})
		}
	}
}
