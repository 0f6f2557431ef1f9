package logic

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/idelchi/recrypt/internal/config"
	"github.com/idelchi/recrypt/internal/media"
)

// RunCodec probes, and with --convert preprocesses, every video under the configured paths.
func RunCodec(ctx context.Context, cfg *config.Config) error {
	return runCodec(ctx, cfg, media.ExecRunner{}, os.Stdout, os.Stderr)
}

//nolint:cyclop,gocognit // parallel processing pipeline with printer goroutine
func runCodec(ctx context.Context, cfg *config.Config, runner media.Runner, out, report io.Writer) error {
	start := time.Now()
	log := NewLogger(cfg, report)

	files, err := media.Collect(cfg.Codec.Paths)
	if err != nil {
		return fmt.Errorf("resolving files: %w", err)
	}

	kit := media.New(runner, media.Options{
		FFprobe: cfg.Codec.FFprobe,
		FFmpeg:  cfg.Codec.FFmpeg,
		Target:  cfg.Codec.Target,
		Timeout: cfg.Codec.Timeout,
	}, log)

	type result struct {
		outcome media.Outcome
		err     error
	}

	results := make(chan result, len(files))

	group := errgroup.Group{}
	group.SetLimit(cfg.Codec.Parallel)

	printed := make(chan struct{})

	var converted, unchanged, errored int

	var totalSize int64

	go func() {
		defer close(printed)

		for res := range results {
			o := res.outcome

			switch {
			case res.err != nil:
				errored++

				fmt.Fprintf(report, "Error processing %q: %v\n", o.Input, res.err)
			case o.Converted:
				converted++

				totalSize += o.OutputSize

				if !cfg.Quiet {
					fmt.Fprintf(out, "Converted %q (%s) -> %q\n", o.Input, codecName(o.Codec), o.Output)
				}
			default:
				unchanged++

				if !cfg.Quiet {
					fmt.Fprintf(out, "%s %q: codec %s, readable %t%s%s\n",
						verdict(o), o.Input, codecName(o.Codec), o.Readable, hint(o), details(o))
				}
			}
		}
	}()

	for _, file := range files {
		group.Go(func() error {
			var (
				outcome media.Outcome
				err     error
			)

			if cfg.Codec.Convert {
				outcome, err = kit.Preprocess(ctx, file, cfg.Codec.Output, cfg.Codec.Force)
			} else {
				outcome = probe(ctx, kit, file)
			}

			outcome.Input = file
			results <- result{outcome: outcome, err: err}

			return err
		})
	}

	err = group.Wait()

	close(results)

	<-printed

	if cfg.Stats {
		printStats(report, stats{
			scanned:    len(files),
			skipped:    unchanged,
			processed:  converted,
			errored:    errored,
			outputSize: totalSize,
			duration:   time.Since(start),
		})
	}

	if err != nil {
		return fmt.Errorf("preprocessing videos: %w", err)
	}

	return nil
}

// probe reports on a file without converting it.
func probe(ctx context.Context, kit *media.Toolkit, file string) media.Outcome {
	outcome := media.Outcome{Input: file, Output: file}
	outcome.Readable = kit.Readable(ctx, file)
	outcome.Codec, _ = kit.Codec(ctx, file)

	if info, err := kit.Info(ctx, file); err == nil {
		outcome.Video, _ = info.Video()
		outcome.Duration = info.Format.Duration
	}

	return outcome
}

// details renders the probed stream as "; 1920x1080 yuv420p @ 30/1 fps, 12.5s".
func details(o media.Outcome) string {
	var parts []string

	if v := o.Video; v.Width > 0 && v.Height > 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", v.Width, v.Height))
	}

	if o.Video.PixFmt != "" {
		parts = append(parts, o.Video.PixFmt)
	}

	if o.Video.FrameRate != "" {
		parts = append(parts, "@ "+o.Video.FrameRate+" fps")
	}

	line := strings.Join(parts, " ")

	if o.Duration != "" {
		if line != "" {
			line += ", "
		}

		line += o.Duration + "s"
	}

	if line == "" {
		return ""
	}

	return "; " + line
}

func verdict(o media.Outcome) string {
	if o.Readable && !media.Problematic(o.Codec) {
		return "OK"
	}

	return "Needs conversion"
}

func hint(o media.Outcome) string {
	switch {
	case media.Problematic(o.Codec):
		return " (problematic codec)"
	case o.Codec != "" && !media.Supported(o.Codec):
		return " (untested codec)"
	default:
		return ""
	}
}

func codecName(codec string) string {
	if codec == "" {
		return "unknown"
	}

	return codec
}
