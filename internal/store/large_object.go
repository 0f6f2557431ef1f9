package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
)

// largeObjects is the part of the PostgreSQL large object API the store needs.
type largeObjects interface {
	create(ctx context.Context) (uint32, error)
	open(ctx context.Context, oid uint32, write bool) (io.ReadWriteCloser, error)
	unlink(ctx context.Context, oid uint32) error
}

// pgxLargeObjects adapts the large objects of one pgx transaction.
type pgxLargeObjects struct {
	objects *pgx.LargeObjects
}

func (l pgxLargeObjects) create(ctx context.Context) (uint32, error) {
	return l.objects.Create(ctx, 0)
}

func (l pgxLargeObjects) open(ctx context.Context, oid uint32, write bool) (io.ReadWriteCloser, error) {
	mode := pgx.LargeObjectModeRead
	if write {
		mode = pgx.LargeObjectModeWrite
	}

	obj, err := l.objects.Open(ctx, oid, mode)
	if err != nil {
		return nil, err
	}

	return obj, nil
}

func (l pgxLargeObjects) unlink(ctx context.Context, oid uint32) error {
	return l.objects.Unlink(ctx, oid)
}

// readLargeObject reads the whole object in pooled pieces.
func readLargeObject(ctx context.Context, objects largeObjects, oid uint32) ([]byte, error) {
	obj, err := objects.open(ctx, oid, false)
	if err != nil {
		return nil, fmt.Errorf("opening large object %d: %w", oid, err)
	}
	defer obj.Close()

	buf := bufferPool.Get().(*[]byte) //nolint:forcetypeassert
	defer bufferPool.Put(buf)

	var out bytes.Buffer

	for {
		n, err := obj.Read(*buf)
		out.Write((*buf)[:n])

		if errors.Is(err, io.EOF) {
			return out.Bytes(), nil
		}

		if err != nil {
			return nil, fmt.Errorf("reading large object %d: %w", oid, err)
		}

		if n == 0 {
			return out.Bytes(), nil
		}
	}
}

// writeLargeObject creates a new object holding payload and returns its oid.
func writeLargeObject(ctx context.Context, objects largeObjects, payload []byte) (uint32, error) {
	oid, err := objects.create(ctx)
	if err != nil {
		return 0, fmt.Errorf("creating large object: %w", err)
	}

	obj, err := objects.open(ctx, oid, true)
	if err != nil {
		return 0, fmt.Errorf("opening large object %d: %w", oid, err)
	}
	defer obj.Close()

	for len(payload) > 0 {
		n := min(largeObjectChunkSize, len(payload))

		if _, err := obj.Write(payload[:n]); err != nil {
			return 0, fmt.Errorf("writing large object %d: %w", oid, err)
		}

		payload = payload[n:]
	}

	return oid, nil
}

// replaceLargeObject writes payload to a new object and unlinks old, if any.
// Both happen in the caller's transaction.
func replaceLargeObject(ctx context.Context, objects largeObjects, old uint32, payload []byte) (uint32, error) {
	oid, err := writeLargeObject(ctx, objects, payload)
	if err != nil {
		return 0, err
	}

	if old != 0 {
		if err := objects.unlink(ctx, old); err != nil {
			return 0, fmt.Errorf("unlinking large object %d: %w", old, err)
		}
	}

	return oid, nil
}
