package store

import (
	"sync"
)

// largeObjectChunkSize is the unit of large object reads and writes.
const largeObjectChunkSize = 64 * 1024

// bufferPool provides reusable byte slices for large object transfers.
//
//nolint:gochecknoglobals
var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, largeObjectChunkSize)

		return &buf
	},
}
