package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/idelchi/recrypt/internal/encryption"
)

// SQLite is a single-file store with the same table layout as production.
// Payloads are always kept inline; large objects are not supported.
type SQLite struct {
	db *sql.DB
}

const createMediaRecords = `
CREATE TABLE IF NOT EXISTS media_records (
	uuid              TEXT    PRIMARY KEY,
	encrypted_data    BLOB,
	large_object_oid  INTEGER,
	storage_type      TEXT    NOT NULL DEFAULT 'bytea',
	filename          TEXT    NOT NULL DEFAULT '',
	file_size         INTEGER,
	original_size     INTEGER,
	encryption_method TEXT,
	chunk_size        INTEGER,
	metadata          TEXT,
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);`

// OpenSQLite opens or creates the database at path and ensures the table exists.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	handle, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if err := handle.PingContext(ctx); err != nil {
		handle.Close()

		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}

	if _, err := handle.ExecContext(ctx, createMediaRecords); err != nil {
		handle.Close()

		return nil, fmt.Errorf("creating media_records: %w", err)
	}

	return &SQLite{db: handle}, nil
}

// Insert adds a record with an inline payload. An empty ID is replaced by a new UUID,
// a zero CreatedAt by the current time.
func (s *SQLite) Insert(ctx context.Context, rec Record, payload []byte) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	if rec.StorageType == "" {
		rec.StorageType = StorageBytea
	}

	if rec.FileSize == 0 {
		rec.FileSize = int64(len(payload))
	}

	var method, metadata any
	if rec.EncryptionMethod != "" {
		method = rec.EncryptionMethod
	}

	if rec.Metadata != nil {
		metadata = string(rec.Metadata)
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO media_records
		(uuid, encrypted_data, storage_type, filename, file_size, encryption_method, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, payload, string(rec.StorageType), rec.Filename, rec.FileSize, method, metadata,
		rec.CreatedAt.UnixMicro(), rec.CreatedAt.UnixMicro())
	if err != nil {
		return Record{}, fmt.Errorf("%w: inserting %s: %w", ErrPersistence, rec.ID, err)
	}

	return rec, nil
}

// CountLegacy implements Store.
func (s *SQLite) CountLegacy(ctx context.Context) (int, error) {
	var count int

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media_records WHERE `+legacyFilter).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting legacy records: %w", ErrPersistence, err)
	}

	return count, nil
}

const sqliteColumns = `uuid, storage_type, large_object_oid, filename, file_size, encryption_method, metadata, created_at`

// ListLegacy implements Store.
func (s *SQLite) ListLegacy(ctx context.Context, limit, offset int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteColumns+` FROM media_records WHERE `+legacyFilter+`
		ORDER BY created_at ASC, uuid ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: listing legacy records: %w", ErrPersistence, err)
	}
	defer rows.Close()

	var records []Record

	for rows.Next() {
		rec, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: reading legacy records: %w", ErrPersistence, err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading legacy records: %w", ErrPersistence, err)
	}

	return records, nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, id string) (Record, error) {
	rec, err := scanSQLite(s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM media_records WHERE uuid = ?`, id))

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case err != nil:
		return Record{}, fmt.Errorf("%w: loading record %s: %w", ErrPersistence, id, err)
	}

	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row scanner) (Record, error) {
	var (
		rec       Record
		storage   *string
		oid       *int64
		filename  *string
		size      *int64
		method    *string
		metadata  *string
		createdAt int64
	)

	if err := row.Scan(&rec.ID, &storage, &oid, &filename, &size, &method, &metadata, &createdAt); err != nil {
		return Record{}, err
	}

	rec.StorageType = storageType(storage)
	rec.OID = uint32(deref(oid)) //nolint:gosec
	rec.Filename = deref(filename)
	rec.FileSize = deref(size)
	rec.EncryptionMethod = deref(method)
	rec.CreatedAt = time.UnixMicro(createdAt)

	if metadata != nil {
		rec.Metadata = []byte(*metadata)
	}

	return rec, nil
}

// ReadPayload implements Store.
func (s *SQLite) ReadPayload(ctx context.Context, rec Record) ([]byte, error) {
	if rec.StorageType != StorageBytea {
		return nil, fmt.Errorf("%w: sqlite does not support %s storage", ErrPersistence, rec.StorageType)
	}

	var data []byte

	if err := s.db.QueryRowContext(ctx, `SELECT encrypted_data FROM media_records WHERE uuid = ?`, rec.ID).
		Scan(&data); err != nil {
		return nil, fmt.Errorf("%w: reading payload of %s: %w", ErrPersistence, rec.ID, err)
	}

	return inlinePayload(rec, data)
}

// Replace implements Store.
func (s *SQLite) Replace(ctx context.Context, rec Record, payload []byte, meta encryption.Metadata) (err error) {
	if rec.StorageType != StorageBytea {
		return fmt.Errorf("%w: sqlite does not support %s storage", ErrPersistence, rec.StorageType)
	}

	metaJSON, err := meta.JSON()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", ErrPersistence, err)
	}

	defer func() {
		if err != nil {
			tx.Rollback() //nolint:errcheck // best-effort rollback
		}
	}()

	result, err := tx.ExecContext(ctx, `UPDATE media_records
		SET encrypted_data = ?,
			file_size = ?,
			original_size = ?,
			encryption_method = ?,
			chunk_size = ?,
			metadata = ?,
			updated_at = ?
		WHERE uuid = ? AND `+legacyFilter,
		payload, meta.EncryptedSize(), meta.FileSize, meta.EncryptionMethod, meta.ChunkSize, string(metaJSON),
		time.Now().UnixMicro(), rec.ID)
	if err != nil {
		return fmt.Errorf("%w: updating %s: %w", ErrPersistence, rec.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: updating %s: %w", ErrPersistence, rec.ID, err)
	}

	if affected != 1 {
		return fmt.Errorf("%w: %w: %s is missing or already converted", ErrPersistence, ErrNotFound, rec.ID)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing %s: %w", ErrPersistence, rec.ID, err)
	}

	return nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}
