package encryption

import "errors"

var (
	// ErrFormat is returned when input is structurally wrong before any key is used.
	ErrFormat = errors.New("malformed input")
	// ErrIntegrity is returned when an authentication tag does not verify.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrCrypto is returned when a cipher operation or padding removal fails after authentication.
	ErrCrypto = errors.New("cryptographic failure")
)
