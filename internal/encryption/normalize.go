package encryption

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Encoding names the stored representation a legacy token was recovered from.
type Encoding string

const (
	// EncodingRaw is a token stored as raw bytes.
	EncodingRaw Encoding = "raw"
	// EncodingByteaHex is PostgreSQL bytea text output (\x followed by hex).
	EncodingByteaHex Encoding = "bytea-hex"
	// EncodingHex is plain hex text.
	EncodingHex Encoding = "hex"
	// EncodingBase64URL is the base64url text form of a token.
	EncodingBase64URL Encoding = "base64url"
	// EncodingUnknown means no strategy produced a token; the input is passed through unchanged.
	EncodingUnknown Encoding = "unknown"
)

type normalizer struct {
	encoding Encoding
	decode   func([]byte) ([]byte, bool)
}

// normalizers are tried in order; the first producing a token that starts with the version byte wins.
//
//nolint:gochecknoglobals
var normalizers = []normalizer{
	{EncodingRaw, func(data []byte) ([]byte, bool) { return data, true }},
	{EncodingByteaHex, decodeByteaHex},
	{EncodingHex, decodeHexText},
	{EncodingBase64URL, decodeBase64URL},
}

// Normalize recovers a raw legacy token from any of the representations found in storage.
// When nothing matches, data is returned unchanged with EncodingUnknown so the decoder
// reports the format error.
func Normalize(data []byte) ([]byte, Encoding) {
	for _, n := range normalizers {
		token, ok := n.decode(data)
		if ok && len(token) > 0 && token[0] == legacyVersion {
			return token, n.encoding
		}
	}

	return data, EncodingUnknown
}

func decodeByteaHex(data []byte) ([]byte, bool) {
	rest, found := bytes.CutPrefix(bytes.TrimSpace(data), []byte(`\x`))
	if !found {
		return nil, false
	}

	return decodeHexText(rest)
}

// decodeHexText accepts hex of either the raw token or its base64url text.
func decodeHexText(data []byte) ([]byte, bool) {
	text := bytes.TrimSpace(data)
	if len(text) == 0 || len(text)%2 != 0 {
		return nil, false
	}

	decoded := make([]byte, hex.DecodedLen(len(text)))
	if _, err := hex.Decode(decoded, text); err != nil {
		return nil, false
	}

	if decoded[0] == legacyVersion {
		return decoded, true
	}

	return decodeBase64URL(decoded)
}

// decodeBase64URL accepts padded or unpadded input in either base64 alphabet.
func decodeBase64URL(data []byte) ([]byte, bool) {
	text := strings.TrimRight(strings.TrimSpace(string(data)), "=")
	if text == "" {
		return nil, false
	}

	text = strings.NewReplacer("+", "-", "/", "_").Replace(text)

	decoded, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		return nil, false
	}

	return decoded, true
}
