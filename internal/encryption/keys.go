package encryption

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultSalt is the PBKDF2 salt shared by both storage formats.
	DefaultSalt = "comfy_media_salt_v1"
	// DefaultIterations is the PBKDF2 iteration count shared by both storage formats.
	DefaultIterations = 100_000
	// DefaultFileSaltSuffix is appended to the secret before hashing it into the nonce salt.
	DefaultFileSaltSuffix = "file_salt"

	derivedKeySize = 32
	halfKeySize    = derivedKeySize / 2
)

// Params are the constants of the key schedule. They are fixed in deployed data
// but kept explicit so tests and future rotations can vary them.
type Params struct {
	Salt           string
	Iterations     int
	FileSaltSuffix string
}

// DefaultParams returns the parameters used by all stored media.
func DefaultParams() Params {
	return Params{
		Salt:           DefaultSalt,
		Iterations:     DefaultIterations,
		FileSaltSuffix: DefaultFileSaltSuffix,
	}
}

// Keys holds every key derived from a secret.
// The schedule is deterministic, so one Keys value can be shared for a whole run.
type Keys struct {
	// Signing is the HMAC-SHA256 key of legacy tokens.
	Signing []byte
	// Decryption is the AES-128-CBC key of legacy tokens.
	Decryption []byte
	// Encryption is the AES-256-GCM key of unified payloads.
	Encryption []byte
	// FileSalt seeds the per-chunk nonces of unified payloads.
	FileSalt []byte
}

// DeriveKeys runs PBKDF2-HMAC-SHA256 once and splits the result for both formats.
func DeriveKeys(secret string, params Params) Keys {
	derived := pbkdf2.Key([]byte(secret), []byte(params.Salt), params.Iterations, derivedKeySize, sha256.New)
	fileSalt := sha256.Sum256([]byte(secret + params.FileSaltSuffix))

	return Keys{
		Signing:    derived[:halfKeySize],
		Decryption: derived[halfKeySize:],
		Encryption: derived,
		FileSalt:   fileSalt[:],
	}
}
