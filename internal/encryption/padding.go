package encryption

import (
	"bytes"
	"crypto/aes"
	"fmt"
)

// pkcs7Pad adds PKCS#7 padding to the data to make it a multiple of blockSize.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padText := bytes.Repeat([]byte{byte(padding)}, padding)

	return append(data, padText...)
}

// pkcs7Unpad removes PKCS#7 padding from the data.
func pkcs7Unpad(data []byte) ([]byte, error) {
	length := len(data)
	if length == 0 || length%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: padded length %d", ErrCrypto, length)
	}

	padding := int(data[length-1])
	if padding == 0 || padding > aes.BlockSize {
		return nil, fmt.Errorf("%w: invalid padding size %d", ErrCrypto, padding)
	}

	for _, b := range data[length-padding:] {
		if b != byte(padding) {
			return nil, fmt.Errorf("%w: invalid padding", ErrCrypto)
		}
	}

	return data[:length-padding], nil
}
