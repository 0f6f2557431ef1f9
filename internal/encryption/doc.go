// Package encryption implements the two storage formats of media payloads.
//
// Legacy decodes version 0x80 tokens (AES-128-CBC with HMAC-SHA256) as they were written
// by earlier releases, accepting the raw, hex, bytea and base64url forms found in storage.
// Unified produces and reads the chunked AES-256-GCM format with deterministic per-chunk nonces.
// Both derive their keys from the same secret through DeriveKeys.
package encryption
