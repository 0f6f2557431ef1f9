package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/idelchi/recrypt/internal/config"
	"github.com/idelchi/recrypt/internal/encryption"
)

// Postgres is the production store.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnString renders cfg as a postgres:// URL.
func ConnString(cfg config.Database) string {
	query := url.Values{}
	query.Set("sslmode", cfg.SSLMode)

	if cfg.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout/time.Second)))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}

	return u.String()
}

// OpenPostgres connects and pings the server.
func OpenPostgres(ctx context.Context, cfg config.Database) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parsing connection settings: %w", err)
	}

	poolCfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("pinging postgres at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &Postgres{pool: pool}, nil
}

// CountLegacy implements Store.
func (p *Postgres) CountLegacy(ctx context.Context) (int, error) {
	var count int

	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM media_records WHERE `+legacyFilter).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: counting legacy records: %w", ErrPersistence, err)
	}

	return count, nil
}

const postgresColumns = `uuid::text, storage_type, large_object_oid, filename, file_size,
	encryption_method, metadata::text, created_at`

// ListLegacy implements Store.
func (p *Postgres) ListLegacy(ctx context.Context, limit, offset int) ([]Record, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+postgresColumns+` FROM media_records WHERE `+legacyFilter+`
		ORDER BY created_at ASC, uuid ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: listing legacy records: %w", ErrPersistence, err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		return scanPostgres(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading legacy records: %w", ErrPersistence, err)
	}

	return records, nil
}

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, id string) (Record, error) {
	rec, err := scanPostgres(p.pool.QueryRow(ctx, `SELECT `+postgresColumns+` FROM media_records WHERE uuid = $1`, id))

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case err != nil:
		return Record{}, fmt.Errorf("%w: loading record %s: %w", ErrPersistence, id, err)
	}

	return rec, nil
}

func scanPostgres(row pgx.Row) (Record, error) {
	var (
		rec       Record
		storage   *string
		oid       *uint32
		filename  *string
		size      *int64
		method    *string
		metadata  *string
		createdAt *time.Time
	)

	if err := row.Scan(&rec.ID, &storage, &oid, &filename, &size, &method, &metadata, &createdAt); err != nil {
		return Record{}, err
	}

	rec.StorageType = storageType(storage)
	rec.OID = deref(oid)
	rec.Filename = deref(filename)
	rec.FileSize = deref(size)
	rec.EncryptionMethod = deref(method)
	rec.CreatedAt = deref(createdAt)

	if metadata != nil {
		rec.Metadata = []byte(*metadata)
	}

	return rec, nil
}

// ReadPayload implements Store.
func (p *Postgres) ReadPayload(ctx context.Context, rec Record) ([]byte, error) {
	if rec.StorageType == StorageBytea {
		var data []byte

		err := p.pool.QueryRow(ctx, `SELECT encrypted_data FROM media_records WHERE uuid = $1`, rec.ID).Scan(&data)
		if err != nil {
			return nil, fmt.Errorf("%w: reading bytea of %s: %w", ErrPersistence, rec.ID, err)
		}

		return inlinePayload(rec, data)
	}

	if rec.OID == 0 {
		return nil, fmt.Errorf("%w: record %s has no large object", ErrPersistence, rec.ID)
	}

	var payload []byte

	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		objects := tx.LargeObjects()

		var err error

		payload, err = readLargeObject(ctx, pgxLargeObjects{objects: &objects}, rec.OID)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return payload, nil
}

// Replace implements Store. For large objects a new object is written and the old one
// unlinked inside the same transaction, so a rollback restores the original state.
func (p *Postgres) Replace(ctx context.Context, rec Record, payload []byte, meta encryption.Metadata) error {
	metaJSON, err := meta.JSON()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if rec.StorageType == StorageBytea {
			return updateRecord(ctx, tx, `encrypted_data`, payload, rec, meta, metaJSON)
		}

		objects := tx.LargeObjects()

		oid, err := replaceLargeObject(ctx, pgxLargeObjects{objects: &objects}, rec.OID, payload)
		if err != nil {
			return err
		}

		return updateRecord(ctx, tx, `large_object_oid`, oid, rec, meta, metaJSON)
	})
	if err != nil {
		return fmt.Errorf("%w: replacing %s: %w", ErrPersistence, rec.ID, err)
	}

	return nil
}

func updateRecord(
	ctx context.Context,
	tx pgx.Tx,
	column string,
	value any,
	rec Record,
	meta encryption.Metadata,
	metaJSON []byte,
) error {
	tag, err := tx.Exec(ctx, `UPDATE media_records
		SET `+column+` = $1,
			file_size = $2,
			original_size = $3,
			encryption_method = $4,
			chunk_size = $5,
			metadata = $6,
			updated_at = NOW()
		WHERE uuid = $7 AND `+legacyFilter,
		value, meta.EncryptedSize(), meta.FileSize, meta.EncryptionMethod, meta.ChunkSize, string(metaJSON), rec.ID)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}

	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: %s is missing or already converted", ErrNotFound, rec.ID)
	}

	return nil
}

// Close implements Store.
func (p *Postgres) Close() error {
	p.pool.Close()

	return nil
}
