package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

const (
	legacyVersion       = byte(0x80)
	legacyTimestampSize = 8
	legacyIVSize        = aes.BlockSize
	legacyTagSize       = sha256.Size
	legacyHeaderSize    = 1 + legacyTimestampSize + legacyIVSize

	// MinLegacyTokenSize is the length of a token with an empty ciphertext.
	MinLegacyTokenSize = legacyHeaderSize + legacyTagSize
)

// Legacy reads and writes version 0x80 tokens:
//
//	version(1) | timestamp(8, big endian seconds) | IV(16) | AES-128-CBC ciphertext | HMAC-SHA256(32)
//
// The HMAC covers everything before it. The timestamp is carried but never enforced.
type Legacy struct {
	signing    []byte
	decryption []byte

	now  func() time.Time
	rand io.Reader
}

// NewLegacy returns a codec bound to the legacy halves of keys.
func NewLegacy(keys Keys) *Legacy {
	return &Legacy{
		signing:    keys.Signing,
		decryption: keys.Decryption,
		now:        time.Now,
		rand:       rand.Reader,
	}
}

// Decode normalizes data as stored in the database and decrypts the resulting token.
func (l *Legacy) Decode(data []byte) ([]byte, error) {
	token, _ := Normalize(data)

	return l.DecodeToken(token)
}

// DecodeToken verifies and decrypts a raw token. No plaintext is returned unless the tag verifies.
func (l *Legacy) DecodeToken(token []byte) ([]byte, error) {
	if len(token) < MinLegacyTokenSize {
		return nil, fmt.Errorf("%w: token is %d bytes, need at least %d", ErrFormat, len(token), MinLegacyTokenSize)
	}

	if token[0] != legacyVersion {
		return nil, fmt.Errorf("%w: unsupported token version 0x%02x", ErrFormat, token[0])
	}

	signed := token[:len(token)-legacyTagSize]
	tag := token[len(token)-legacyTagSize:]

	mac := hmac.New(sha256.New, l.signing)
	mac.Write(signed)

	if !hmac.Equal(mac.Sum(nil), tag) {
		return nil, ErrIntegrity
	}

	iv := token[1+legacyTimestampSize : legacyHeaderSize]
	ciphertext := token[legacyHeaderSize : len(token)-legacyTagSize]

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a positive multiple of the block size", ErrCrypto, len(ciphertext))
	}

	block, err := aes.NewCipher(l.decryption)
	if err != nil {
		return nil, fmt.Errorf("%w: creating cipher: %w", ErrCrypto, err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
}

// Encode produces a token for plaintext with a random IV and the current time.
// It exists to build fixtures and to round-trip test the decoder.
func (l *Legacy) Encode(plaintext []byte) ([]byte, error) {
	iv := make([]byte, legacyIVSize)
	if _, err := io.ReadFull(l.rand, iv); err != nil {
		return nil, fmt.Errorf("generating IV: %w", err)
	}

	return l.encode(plaintext, l.now(), iv)
}

func (l *Legacy) encode(plaintext []byte, ts time.Time, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(l.decryption)
	if err != nil {
		return nil, fmt.Errorf("%w: creating cipher: %w", ErrCrypto, err)
	}

	padded := pkcs7Pad(append([]byte(nil), plaintext...), aes.BlockSize)

	token := make([]byte, legacyHeaderSize, legacyHeaderSize+len(padded)+legacyTagSize)
	token[0] = legacyVersion
	binary.BigEndian.PutUint64(token[1:1+legacyTimestampSize], uint64(ts.Unix())) //nolint:gosec
	copy(token[1+legacyTimestampSize:], iv)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	token = append(token, ciphertext...)

	mac := hmac.New(sha256.New, l.signing)
	mac.Write(token)

	return mac.Sum(token), nil
}

// Timestamp returns the creation time recorded in a token without verifying it.
func Timestamp(token []byte) (time.Time, error) {
	if len(token) < MinLegacyTokenSize || token[0] != legacyVersion {
		return time.Time{}, fmt.Errorf("%w: not a legacy token", ErrFormat)
	}

	secs := binary.BigEndian.Uint64(token[1 : 1+legacyTimestampSize])

	return time.Unix(int64(secs), 0).UTC(), nil //nolint:gosec
}
