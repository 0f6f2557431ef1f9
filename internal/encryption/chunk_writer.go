package encryption

import (
	"fmt"
	"io"
)

// chunkWriter wraps an io.Writer, sealing data in fixed-size chunks as it arrives.
type chunkWriter struct {
	w          io.Writer
	codec      *Unified
	chunkSize  int
	buffer     []byte
	sealed     []byte
	chunkIndex int
	written    int64
}

func newChunkWriter(w io.Writer, codec *Unified, chunkSize int) *chunkWriter {
	return &chunkWriter{
		w:         w,
		codec:     codec,
		chunkSize: chunkSize,
		buffer:    make([]byte, 0, chunkSize),
		sealed:    make([]byte, 0, chunkSize+ChunkOverhead),
	}
}

// Write implements io.Writer, buffering data until a complete chunk can be sealed.
func (cw *chunkWriter) Write(data []byte) (int, error) {
	total := len(data)

	for len(data) > 0 {
		n := min(cw.chunkSize-len(cw.buffer), len(data))
		cw.buffer = append(cw.buffer, data[:n]...)
		data = data[n:]

		if len(cw.buffer) == cw.chunkSize {
			if err := cw.flushChunk(); err != nil {
				return total - len(data), err
			}
		}
	}

	return total, nil
}

// Close implements io.Closer, sealing any remaining buffered data as the short last chunk.
func (cw *chunkWriter) Close() error {
	if len(cw.buffer) > 0 {
		return cw.flushChunk()
	}

	return nil
}

// Metadata describes everything written so far. Call it after Close.
func (cw *chunkWriter) Metadata() Metadata {
	return NewMetadata(cw.written, cw.chunkSize)
}

func (cw *chunkWriter) flushChunk() error {
	cw.sealed = cw.codec.sealChunk(cw.sealed[:0], cw.buffer, cw.chunkIndex)

	if _, err := cw.w.Write(cw.sealed); err != nil {
		return fmt.Errorf("writing chunk %d: %w", cw.chunkIndex, err)
	}

	cw.written += int64(len(cw.buffer))
	cw.buffer = cw.buffer[:0]
	cw.chunkIndex++

	return nil
}
