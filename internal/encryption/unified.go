package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"strconv"
)

const (
	gcmNonceSize = 16
	gcmTagSize   = 16
)

// Unified encrypts and decrypts chunked AES-256-GCM payloads.
// Each chunk is laid out as nonce(16) | tag(16) | ciphertext, and chunks are concatenated in index order.
//
// Nonces are derived from the secret and the chunk index, so equal inputs give equal payloads.
type Unified struct {
	aead     cipher.AEAD
	fileSalt []byte
}

// NewUnified returns a codec bound to the unified halves of keys.
func NewUnified(keys Keys) (*Unified, error) {
	block, err := aes.NewCipher(keys.Encryption)
	if err != nil {
		return nil, fmt.Errorf("%w: creating cipher: %w", ErrCrypto, err)
	}

	aead, err := cipher.NewGCMWithNonceSize(block, gcmNonceSize)
	if err != nil {
		return nil, fmt.Errorf("%w: creating GCM: %w", ErrCrypto, err)
	}

	return &Unified{aead: aead, fileSalt: keys.FileSalt}, nil
}

// Encrypt splits plaintext into chunkSize pieces and seals each one.
func (u *Unified) Encrypt(plaintext []byte, chunkSize int) ([]byte, Metadata, error) {
	if chunkSize <= 0 {
		return nil, Metadata{}, fmt.Errorf("%w: chunk size must be positive, got %d", ErrFormat, chunkSize)
	}

	var out bytes.Buffer

	out.Grow(int(EncryptedSize(int64(len(plaintext)), chunkSize)))

	w := newChunkWriter(&out, u, chunkSize)

	if _, err := w.Write(plaintext); err != nil {
		return nil, Metadata{}, err
	}

	if err := w.Close(); err != nil {
		return nil, Metadata{}, err
	}

	return out.Bytes(), w.Metadata(), nil
}

// Decrypt opens every chunk of payload.
func (u *Unified) Decrypt(payload []byte, meta Metadata) ([]byte, error) {
	if meta.FileSize == 0 {
		if err := u.check(payload, meta); err != nil {
			return nil, err
		}

		return []byte{}, nil
	}

	return u.DecryptRange(payload, meta, 0, meta.FileSize-1)
}

// DecryptRange returns plaintext bytes start through end inclusive, opening only the chunks that cover them.
func (u *Unified) DecryptRange(payload []byte, meta Metadata, start, end int64) ([]byte, error) {
	if err := u.check(payload, meta); err != nil {
		return nil, err
	}

	if start < 0 || end < start || end >= meta.FileSize {
		return nil, fmt.Errorf("%w: range %d-%d outside %d bytes", ErrFormat, start, end, meta.FileSize)
	}

	info := ChunkRange(start, end, meta.ChunkSize)
	out := make([]byte, 0, info.ChunksNeeded*meta.ChunkSize)

	for index := info.StartChunk; index <= info.EndChunk; index++ {
		plain, err := u.openChunk(chunkAt(payload, meta, index), index)
		if err != nil {
			return nil, err
		}

		out = append(out, plain...)
	}

	offset := start - int64(info.StartChunk)*int64(meta.ChunkSize)

	return out[offset : offset+end-start+1], nil
}

func (u *Unified) check(payload []byte, meta Metadata) error {
	if err := meta.Validate(); err != nil {
		return err
	}

	if want := meta.EncryptedSize(); int64(len(payload)) != want {
		return fmt.Errorf("%w: payload is %d bytes, metadata describes %d", ErrFormat, len(payload), want)
	}

	return nil
}

// nonce returns SHA-256(fileSalt || decimal(index))[:16].
func (u *Unified) nonce(index int) []byte {
	h := sha256.New()
	h.Write(u.fileSalt)
	h.Write([]byte(strconv.Itoa(index)))

	return h.Sum(nil)[:gcmNonceSize]
}

// sealChunk appends nonce | tag | ciphertext for chunk index to dst.
func (u *Unified) sealChunk(dst, chunk []byte, index int) []byte {
	nonce := u.nonce(index)
	sealed := u.aead.Seal(nil, nonce, chunk, nil)
	ciphertext, tag := sealed[:len(chunk)], sealed[len(chunk):]

	dst = append(dst, nonce...)
	dst = append(dst, tag...)

	return append(dst, ciphertext...)
}

func (u *Unified) openChunk(chunk []byte, index int) ([]byte, error) {
	nonce := chunk[:gcmNonceSize]
	tag := chunk[gcmNonceSize:ChunkOverhead]

	sealed := make([]byte, 0, len(chunk)-gcmNonceSize)
	sealed = append(sealed, chunk[ChunkOverhead:]...)
	sealed = append(sealed, tag...)

	plain, err := u.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %d", ErrIntegrity, index)
	}

	return plain, nil
}

func chunkAt(payload []byte, meta Metadata, index int) []byte {
	start := int64(index) * int64(meta.ChunkSize+ChunkOverhead)

	size := int64(meta.ChunkSize)
	if index == meta.TotalChunks-1 {
		size = meta.FileSize - int64(index)*int64(meta.ChunkSize)
	}

	return payload[start : start+size+ChunkOverhead]
}
