package encryption

import (
	"encoding/json"
	"fmt"
)

// MethodUnified marks records stored in the unified chunked format.
const MethodUnified = "aes-gcm-unified"

const (
	// ChunkOverhead is the per-chunk cost of the nonce and the tag.
	ChunkOverhead = gcmNonceSize + gcmTagSize
	// SmallChunkSize is used for payloads up to ChunkingThreshold.
	SmallChunkSize = 64 * 1024
	// DefaultChunkSize is used for payloads above ChunkingThreshold.
	DefaultChunkSize = 1024 * 1024
	// ChunkingThreshold is the inclusive upper bound for SmallChunkSize.
	ChunkingThreshold = 1024 * 1024
)

// Metadata describes a unified payload. Its JSON form is stored next to the payload.
type Metadata struct {
	ChunkSize        int    `json:"chunkSize"`
	TotalChunks      int    `json:"totalChunks"`
	EncryptionMethod string `json:"encryptionMethod"`
	FileSize         int64  `json:"fileSize"`
}

// NewMetadata computes the metadata for a plaintext of size bytes.
func NewMetadata(size int64, chunkSize int) Metadata {
	return Metadata{
		ChunkSize:        chunkSize,
		TotalChunks:      chunkCount(size, chunkSize),
		EncryptionMethod: MethodUnified,
		FileSize:         size,
	}
}

// ParseMetadata decodes and validates stored metadata.
func ParseMetadata(data []byte) (Metadata, error) {
	var meta Metadata

	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("%w: decoding metadata: %w", ErrFormat, err)
	}

	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}

	return meta, nil
}

// JSON encodes the metadata in its stored form.
func (m Metadata) JSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}

	return data, nil
}

// Validate checks that the fields are consistent with each other.
func (m Metadata) Validate() error {
	switch {
	case m.EncryptionMethod != MethodUnified:
		return fmt.Errorf("%w: unexpected encryption method %q", ErrFormat, m.EncryptionMethod)
	case m.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size %d", ErrFormat, m.ChunkSize)
	case m.FileSize < 0:
		return fmt.Errorf("%w: file size %d", ErrFormat, m.FileSize)
	case m.TotalChunks != chunkCount(m.FileSize, m.ChunkSize):
		return fmt.Errorf("%w: %d chunks cannot hold %d bytes at chunk size %d",
			ErrFormat, m.TotalChunks, m.FileSize, m.ChunkSize)
	}

	return nil
}

// EncryptedSize is the exact payload length the metadata describes.
func (m Metadata) EncryptedSize() int64 {
	return EncryptedSize(m.FileSize, m.ChunkSize)
}

// EncryptedSize returns the payload length for a plaintext of size bytes.
func EncryptedSize(size int64, chunkSize int) int64 {
	return size + int64(ChunkOverhead*chunkCount(size, chunkSize))
}

// OptimalChunkSize picks the chunk size for a plaintext of size bytes.
func OptimalChunkSize(size int64) int {
	if size <= ChunkingThreshold {
		return SmallChunkSize
	}

	return DefaultChunkSize
}

// ChunkInfo names the chunks covering a byte range.
type ChunkInfo struct {
	StartChunk   int
	EndChunk     int
	ChunksNeeded int
}

// ChunkRange returns the chunks covering the inclusive byte range [start, end].
func ChunkRange(start, end int64, chunkSize int) ChunkInfo {
	first := int(start / int64(chunkSize))
	last := int(end / int64(chunkSize))

	return ChunkInfo{
		StartChunk:   first,
		EndChunk:     last,
		ChunksNeeded: last - first + 1,
	}
}

func chunkCount(size int64, chunkSize int) int {
	if chunkSize <= 0 || size <= 0 {
		return 0
	}

	return int((size + int64(chunkSize) - 1) / int64(chunkSize))
}
