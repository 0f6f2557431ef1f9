// Package store reads legacy media payloads and writes their converted form back.
//
// PostgreSQL is the production backend and supports both bytea columns and large objects.
// SQLite holds bytea records only and serves local runs and tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/idelchi/recrypt/internal/config"
	"github.com/idelchi/recrypt/internal/encryption"
)

var (
	// ErrPersistence is returned when a read or the atomic replace fails. A failed replace leaves the record untouched.
	ErrPersistence = errors.New("persistence failure")
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")
)

// StorageType tells where a record keeps its payload.
type StorageType string

const (
	// StorageBytea keeps the payload in the encrypted_data column.
	StorageBytea StorageType = "bytea"
	// StorageLargeObject keeps the payload in a PostgreSQL large object referenced by large_object_oid.
	StorageLargeObject StorageType = "large_object"
)

// Record is a media row without its payload.
type Record struct {
	ID               string
	StorageType      StorageType
	OID              uint32
	Filename         string
	FileSize         int64
	EncryptionMethod string
	Metadata         []byte
	CreatedAt        time.Time
}

// Converted reports whether the record is already in the unified format.
func (r Record) Converted() bool {
	return r.EncryptionMethod == encryption.MethodUnified
}

// Store is the persistence seam of the migration.
type Store interface {
	// CountLegacy returns how many records are not yet converted.
	CountLegacy(ctx context.Context) (int, error)
	// ListLegacy returns unconverted records, oldest first.
	ListLegacy(ctx context.Context, limit, offset int) ([]Record, error)
	// Get returns a record regardless of its format.
	Get(ctx context.Context, id string) (Record, error)
	// ReadPayload loads the stored bytes of rec.
	ReadPayload(ctx context.Context, rec Record) ([]byte, error)
	// Replace writes payload, metadata and the unified marker for rec in one transaction.
	Replace(ctx context.Context, rec Record, payload []byte, meta encryption.Metadata) error
	// Close releases the connection.
	Close() error
}

// legacyFilter selects records that still need conversion.
const legacyFilter = `(encryption_method IS NULL OR encryption_method <> 'aes-gcm-unified')`

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Database) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg)
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// inlinePayload checks a payload read from the encrypted_data column. A converted empty
// file has an empty payload, which drivers may scan as nil; a legacy token never does.
func inlinePayload(rec Record, data []byte) ([]byte, error) {
	if data != nil {
		return data, nil
	}

	if rec.Converted() {
		return []byte{}, nil
	}

	return nil, fmt.Errorf("%w: record %s has no payload", ErrPersistence, rec.ID)
}

func storageType(raw *string) StorageType {
	if raw == nil || *raw == "" || *raw == string(StorageBytea) {
		return StorageBytea
	}

	return StorageLargeObject
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}

	return *v
}
