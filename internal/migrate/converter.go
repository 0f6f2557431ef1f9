// Package migrate converts stored media records from legacy tokens to unified payloads.
package migrate

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/idelchi/recrypt/internal/encryption"
	"github.com/idelchi/recrypt/internal/store"
)

// Converter runs Fetched -> Decoded -> Encrypted -> Persisted for one record at a time.
// It is not safe for concurrent use; records are converted sequentially.
type Converter struct {
	store   store.Store
	legacy  *encryption.Legacy
	unified *encryption.Unified
	log     logrus.FieldLogger

	// Verify decrypts every new payload and compares it with the plaintext before persisting.
	Verify bool
}

// NewConverter binds both codecs to keys the caller derived once for the whole run.
func NewConverter(st store.Store, keys encryption.Keys, log logrus.FieldLogger) (*Converter, error) {
	unified, err := encryption.NewUnified(keys)
	if err != nil {
		return nil, fmt.Errorf("creating unified codec: %w", err)
	}

	return &Converter{
		store:   st,
		legacy:  encryption.NewLegacy(keys),
		unified: unified,
		log:     log,
	}, nil
}

// Convert processes one record. Errors are captured in the Result, never returned,
// so one bad record cannot stop a batch.
func (c *Converter) Convert(ctx context.Context, rec store.Record) Result {
	res := Result{RecordID: rec.ID, Filename: rec.Filename}
	log := c.log.WithFields(logrus.Fields{"record": rec.ID, "storage": rec.StorageType})

	fail := func(err error) Result {
		res.LastStage = res.Stage
		res.Stage = Failed
		res.Err = err

		log.WithField("stage", res.LastStage).WithError(err).Warn("conversion failed")

		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	stored, err := c.store.ReadPayload(ctx, rec)
	if err != nil {
		return fail(fmt.Errorf("reading payload: %w", err))
	}

	res.Stage = Fetched
	res.InputSize = int64(len(stored))

	log.WithField("bytes", res.InputSize).Debug("payload fetched")

	plaintext, err := c.legacy.Decode(stored)
	if err != nil {
		return fail(fmt.Errorf("decoding legacy token: %w", err))
	}

	res.Stage = Decoded
	res.PlainSize = int64(len(plaintext))

	log.WithField("bytes", res.PlainSize).Debug("legacy token decoded")

	payload, meta, err := c.unified.Encrypt(plaintext, encryption.OptimalChunkSize(res.PlainSize))
	if err != nil {
		return fail(fmt.Errorf("encrypting: %w", err))
	}

	if c.Verify {
		if err := c.verify(payload, meta, plaintext); err != nil {
			return fail(err)
		}
	}

	res.Stage = Encrypted
	res.OutputSize = int64(len(payload))
	res.Chunks = meta.TotalChunks

	log.WithFields(logrus.Fields{"bytes": res.OutputSize, "chunks": meta.TotalChunks, "chunk_size": meta.ChunkSize}).
		Debug("payload encrypted")

	if err := c.store.Replace(ctx, rec, payload, meta); err != nil {
		return fail(fmt.Errorf("persisting: %w", err))
	}

	res.Stage = Persisted

	log.Info("converted")

	return res
}

func (c *Converter) verify(payload []byte, meta encryption.Metadata, plaintext []byte) error {
	roundTrip, err := c.unified.Decrypt(payload, meta)
	if err != nil {
		return fmt.Errorf("verifying: %w", err)
	}

	if !bytes.Equal(roundTrip, plaintext) {
		return fmt.Errorf("verifying: %w: round trip differs from plaintext", encryption.ErrCrypto)
	}

	return nil
}

// ConvertBatch converts records in order and summarizes the outcome.
// When ctx is done the remaining records are left out of the summary.
func (c *Converter) ConvertBatch(ctx context.Context, records []store.Record) Summary {
	var summary Summary

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			c.log.WithError(err).Warnf("stopping with %d of %d records left", len(records)-i, len(records))

			break
		}

		c.log.WithFields(logrus.Fields{"record": rec.ID, "file": rec.Filename}).
			Debugf("processing record %d/%d", i+1, len(records))

		summary.Add(c.Convert(ctx, rec))
	}

	return summary
}
