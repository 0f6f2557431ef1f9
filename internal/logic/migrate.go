package logic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/idelchi/recrypt/internal/config"
	"github.com/idelchi/recrypt/internal/encryption"
	"github.com/idelchi/recrypt/internal/migrate"
	"github.com/idelchi/recrypt/internal/store"
)

// ErrRecordsFailed is returned when at least one record could not be converted.
var ErrRecordsFailed = errors.New("records failed to convert")

// RunMigrate converts legacy records in the configured database.
func RunMigrate(ctx context.Context, cfg *config.Config) error {
	log := NewLogger(cfg, os.Stderr)

	log.WithFields(logrus.Fields{"driver": cfg.Database.Driver, "host": cfg.Database.Host}).Debug("connecting")

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	return NewMigrator(cfg, st, log, os.Stdout, os.Stderr).Run(ctx)
}

// Migrator drives the converter over one record, one batch or every batch.
type Migrator struct {
	cfg    *config.Config
	store  store.Store
	log    logrus.FieldLogger
	out    io.Writer
	report io.Writer
}

// NewMigrator writes listings to out and the summary to report.
func NewMigrator(cfg *config.Config, st store.Store, log logrus.FieldLogger, out, report io.Writer) *Migrator {
	return &Migrator{cfg: cfg, store: st, log: log, out: out, report: report}
}

// Run executes the mode selected by the configuration.
func (m *Migrator) Run(ctx context.Context) error {
	start := time.Now()

	legacy, err := m.store.CountLegacy(ctx)
	if err != nil {
		return fmt.Errorf("counting legacy records: %w", err)
	}

	m.log.WithField("count", legacy).Info("legacy records found")

	if m.cfg.Migrate.DryRun {
		listed, err := m.dryRun(ctx)
		if m.cfg.Stats {
			printStats(m.report, stats{scanned: legacy, skipped: legacy - listed, duration: time.Since(start)})
		}

		return err
	}

	conv, err := migrate.NewConverter(m.store, encryption.DeriveKeys(m.cfg.Secret, encryption.DefaultParams()), m.log)
	if err != nil {
		return err
	}

	conv.Verify = m.cfg.Migrate.Verify

	var summary migrate.Summary

	switch {
	case m.cfg.Migrate.UUID != "":
		summary, err = m.one(ctx, conv)
	case m.cfg.Migrate.All:
		summary, err = m.all(ctx, conv, legacy)
	default:
		summary, err = m.batch(ctx, conv, 1, 0)
	}

	if err != nil {
		return err
	}

	m.printSummary(summary)

	if m.cfg.Stats {
		printStats(m.report, stats{
			scanned:    legacy,
			skipped:    legacy - summary.Processed,
			processed:  summary.Succeeded,
			errored:    summary.Failed,
			inputSize:  summary.InputSize,
			outputSize: summary.OutputSize,
			duration:   time.Since(start),
		})
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted after %d records: %w", summary.Processed, err)
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrRecordsFailed, summary.Failed, summary.Processed)
	}

	return nil
}

func (m *Migrator) one(ctx context.Context, conv *migrate.Converter) (migrate.Summary, error) {
	var summary migrate.Summary

	rec, err := m.store.Get(ctx, m.cfg.Migrate.UUID)
	if err != nil {
		return summary, fmt.Errorf("loading record: %w", err)
	}

	if rec.Converted() {
		m.log.WithField("record", rec.ID).Info("record is already converted")

		return summary, nil
	}

	summary.Add(conv.Convert(ctx, rec))

	return summary, nil
}

// batch converts one page of legacy records starting at offset.
func (m *Migrator) batch(ctx context.Context, conv *migrate.Converter, number, offset int) (migrate.Summary, error) {
	records, err := m.store.ListLegacy(ctx, m.cfg.Migrate.BatchSize, offset)
	if err != nil {
		return migrate.Summary{}, fmt.Errorf("listing batch %d: %w", number, err)
	}

	if len(records) == 0 {
		return migrate.Summary{}, nil
	}

	m.log.WithFields(logrus.Fields{"batch": number, "records": len(records)}).Info("processing batch")

	summary := conv.ConvertBatch(ctx, records)

	m.log.WithFields(logrus.Fields{
		"batch":     number,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}).Info("batch complete")

	return summary, nil
}

// all repeats batches until no legacy records remain. Records that fail stay legacy and sort
// before everything not yet attempted, so the offset skips exactly the failures so far.
func (m *Migrator) all(ctx context.Context, conv *migrate.Converter, legacy int) (migrate.Summary, error) {
	var total migrate.Summary

	for number := 1; ; number++ {
		if err := ctx.Err(); err != nil {
			m.log.WithError(err).Warnf("stopping before batch %d", number)

			return total, nil
		}

		summary, err := m.batch(ctx, conv, number, total.Failed)
		if err != nil {
			return total, err
		}

		if summary.Processed == 0 {
			return total, nil
		}

		total.Merge(summary)

		m.log.WithFields(logrus.Fields{
			"processed": total.Processed,
			"total":     legacy,
			"percent":   fmt.Sprintf("%.1f", percent(total.Processed, legacy)),
		}).Info("overall progress")
	}
}

// dryRun lists the records a run would convert and returns how many were listed.
func (m *Migrator) dryRun(ctx context.Context) (int, error) {
	if m.cfg.Migrate.UUID != "" {
		rec, err := m.store.Get(ctx, m.cfg.Migrate.UUID)
		if err != nil {
			return 0, fmt.Errorf("loading record: %w", err)
		}

		if rec.Converted() {
			m.log.WithField("record", rec.ID).Info("record is already converted")

			return 0, nil
		}

		m.printRecord(rec)

		return 1, nil
	}

	batches := 1
	if m.cfg.Migrate.All {
		batches = m.cfg.Migrate.DryRunBatches
	}

	listed := 0

	for number := 1; batches == 0 || number <= batches; number++ {
		records, err := m.store.ListLegacy(ctx, m.cfg.Migrate.BatchSize, listed)
		if err != nil {
			return listed, fmt.Errorf("listing batch %d: %w", number, err)
		}

		if len(records) == 0 {
			break
		}

		for _, rec := range records {
			m.printRecord(rec)
		}

		listed += len(records)
	}

	m.log.WithField("records", listed).Info("dry run complete")

	return listed, nil
}

func (m *Migrator) printRecord(rec store.Record) {
	if m.cfg.Quiet {
		return
	}

	fmt.Fprintf(m.out, "Would convert %s %q (%s, %s)\n", rec.ID, rec.Filename, rec.StorageType, size(rec.FileSize))
}

func (m *Migrator) printSummary(summary migrate.Summary) {
	fmt.Fprintf(m.report, "Converted %d of %d records, %d failed\n", summary.Succeeded, summary.Processed, summary.Failed)

	for _, res := range summary.Failures {
		fmt.Fprintf(m.report, "  - %s (%s): %v\n", res.RecordID, res.Filename, res.Err)
	}
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 100
	}

	return float64(part) / float64(whole) * 100 //nolint:mnd
}
