// Package logic implements the commands: record migration, token inspection and codec preprocessing.
package logic

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/idelchi/recrypt/internal/config"
)

// NewLogger builds the progress logger: info by default, debug with --verbose, errors only with --quiet.
func NewLogger(cfg *config.Config, w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.TimeOnly,
	})

	switch {
	case cfg.Quiet:
		log.SetLevel(logrus.ErrorLevel)
	case cfg.Verbose:
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// stats is what printStats reports for a run.
type stats struct {
	scanned    int
	skipped    int
	processed  int
	errored    int
	inputSize  int64
	outputSize int64
	duration   time.Duration
}

func printStats(w io.Writer, s stats) {
	fmt.Fprintf(w, "\nStats\n")
	fmt.Fprintf(w, "  Scanned:   %d\n", s.scanned)
	fmt.Fprintf(w, "  Skipped:   %d\n", s.skipped)
	fmt.Fprintf(w, "  Processed: %d\n", s.processed)
	fmt.Fprintf(w, "  Errors:    %d\n", s.errored)
	fmt.Fprintf(w, "  Read:      %s\n", size(s.inputSize))
	fmt.Fprintf(w, "  Written:   %s\n", size(s.outputSize))
	fmt.Fprintf(w, "  Duration:  %s\n", s.duration.Round(time.Millisecond))
}

// size renders a byte count. Negative values are clamped to zero.
func size(n int64) string {
	return humanize.IBytes(uint64(max(0, n))) //nolint:gosec
}
