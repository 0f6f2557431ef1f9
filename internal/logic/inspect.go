package logic

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/idelchi/recrypt/internal/config"
	"github.com/idelchi/recrypt/internal/encryption"
	"github.com/idelchi/recrypt/internal/fileutil"
	"github.com/idelchi/recrypt/internal/media"
	"github.com/idelchi/recrypt/internal/store"
)

const previewBytes = 16

// Report is what inspect learned about one stored payload.
type Report struct {
	Source      string
	Filename    string
	StoredSize  int
	Format      string
	Encoding    encryption.Encoding
	TokenSize   int
	Created     string
	Chunks      int
	PlainSize   int
	Preview     string
	Sniffed     string
	ContentType string
}

// RunInspect decodes one payload from the database or a file and reports what it holds.
func RunInspect(ctx context.Context, cfg *config.Config) error {
	var (
		rec    store.Record
		stored []byte
		err    error
	)

	if cfg.Inspect.UUID != "" {
		rec, stored, err = loadRecord(ctx, cfg)
	} else {
		rec = store.Record{ID: cfg.Inspect.File, Filename: cfg.Inspect.File}
		stored, err = os.ReadFile(cfg.Inspect.File)
	}

	if err != nil {
		return fmt.Errorf("loading payload: %w", err)
	}

	return Inspect(cfg, rec, stored, os.Stdout)
}

func loadRecord(ctx context.Context, cfg *config.Config) (store.Record, []byte, error) {
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return store.Record{}, nil, fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	rec, err := st.Get(ctx, cfg.Inspect.UUID)
	if err != nil {
		return store.Record{}, nil, err
	}

	stored, err := st.ReadPayload(ctx, rec)
	if err != nil {
		return store.Record{}, nil, err
	}

	return rec, stored, nil
}

// Inspect decodes stored, prints the report to out and writes the plaintext if requested.
// The report is printed even when decoding fails, since that is when it is most useful.
func Inspect(cfg *config.Config, rec store.Record, stored []byte, out io.Writer) error {
	keys := encryption.DeriveKeys(cfg.Secret, encryption.DefaultParams())

	report := Report{
		Source:      rec.ID,
		Filename:    rec.Filename,
		StoredSize:  len(stored),
		ContentType: media.ContentType(rec.Filename, "application/octet-stream"),
	}

	plaintext, decodeErr := decode(keys, rec, stored, &report)
	if decodeErr == nil {
		report.PlainSize = len(plaintext)
		report.Preview = hex.EncodeToString(plaintext[:min(previewBytes, len(plaintext))])
		report.Sniffed = media.Sniff(plaintext)
	}

	printReport(out, report, decodeErr)

	if decodeErr != nil {
		return fmt.Errorf("decoding %s: %w", rec.ID, decodeErr)
	}

	if cfg.Inspect.Output == "" {
		return nil
	}

	written, err := writePlaintext(cfg.Inspect.Output, plaintext, cfg.Inspect.Force)
	if err != nil {
		return err
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "Wrote %s to %q\n", size(written), cfg.Inspect.Output)
	}

	return nil
}

func decode(keys encryption.Keys, rec store.Record, stored []byte, report *Report) ([]byte, error) {
	if rec.Converted() {
		report.Format = encryption.MethodUnified

		meta, err := encryption.ParseMetadata(rec.Metadata)
		if err != nil {
			return nil, err
		}

		report.Chunks = meta.TotalChunks

		unified, err := encryption.NewUnified(keys)
		if err != nil {
			return nil, err
		}

		return unified.Decrypt(stored, meta)
	}

	report.Format = "legacy"

	token, encoding := encryption.Normalize(stored)
	report.Encoding = encoding
	report.TokenSize = len(token)

	if ts, err := encryption.Timestamp(token); err == nil {
		report.Created = ts.Format("2006-01-02 15:04:05 MST")
	}

	return encryption.NewLegacy(keys).DecodeToken(token)
}

func printReport(w io.Writer, r Report, err error) {
	fmt.Fprintf(w, "Source:       %s\n", r.Source)
	fmt.Fprintf(w, "Stored size:  %d bytes\n", r.StoredSize)
	fmt.Fprintf(w, "Format:       %s\n", r.Format)

	if r.Encoding != "" {
		fmt.Fprintf(w, "Encoding:     %s\n", r.Encoding)
		fmt.Fprintf(w, "Token size:   %d bytes\n", r.TokenSize)
	}

	if r.Created != "" {
		fmt.Fprintf(w, "Token time:   %s\n", r.Created)
	}

	if r.Chunks > 0 {
		fmt.Fprintf(w, "Chunks:       %d\n", r.Chunks)
	}

	if err != nil {
		fmt.Fprintf(w, "Decryption:   failed: %v\n", err)

		return
	}

	fmt.Fprintf(w, "Decryption:   ok\n")
	fmt.Fprintf(w, "Plain size:   %d bytes (%s)\n", r.PlainSize, size(int64(r.PlainSize)))
	fmt.Fprintf(w, "First bytes:  %s\n", r.Preview)

	detected := r.Sniffed
	if detected == "" {
		detected = "unknown"
	}

	fmt.Fprintf(w, "Detected:     %s\n", detected)
	fmt.Fprintf(w, "Expected:     %s\n", r.ContentType)
}

func writePlaintext(path string, plaintext []byte, overwrite bool) (written int64, err error) {
	out, err := fileutil.CreateAtomic(path, 0o600, "", overwrite)
	if err != nil {
		return 0, fmt.Errorf("preparing atomic write: %w", err)
	}

	defer out.CleanupOnError(&err)

	if _, err = out.Write(plaintext); err != nil {
		return 0, fmt.Errorf("writing plaintext: %w", err)
	}

	written, err = out.Commit()
	if err != nil {
		return 0, fmt.Errorf("finalizing output: %w", err)
	}

	return written, nil
}
