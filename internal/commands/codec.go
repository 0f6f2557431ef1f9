package commands

import (
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/idelchi/recrypt/internal/config"
	"github.com/idelchi/recrypt/internal/logic"
)

// NewCodecCommand creates a new cobra command for the codec subcommand.
func NewCodecCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codec [flags] paths...",
		Short: "Probe videos and convert codecs frame readers cannot decode",
		Long: `Reports the codec of every video and whether its first frame decodes.
With --convert, videos using av1 or hevc, or whose first frame fails to decode,
are re-encoded to converted_<name>.mp4.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bind(cmd, cfg, &cfg.Codec); err != nil {
				return err
			}

			cfg.Codec.Paths = args

			return cfg.Validate(&cfg.Codec)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Show {
				return show(cfg)
			}

			return logic.RunCodec(cmd.Context(), cfg)
		},
	}

	cmd.Flags().BoolP("convert", "c", false, "Convert videos that need it")
	cmd.Flags().Bool("force", false, "Convert every video regardless of codec")
	cmd.Flags().StringP("output", "o", "", "Directory for converted videos, defaults to next to the input")
	cmd.Flags().String("target", "libx264", "ffmpeg video encoder for conversions")
	cmd.Flags().Duration("timeout", 5*time.Minute, "Time limit per conversion") //nolint:mnd
	cmd.Flags().IntP("parallel", "j", runtime.NumCPU(), "Number of parallel workers, defaults to number of CPUs")
	cmd.Flags().String("ffprobe", "ffprobe", "Path to ffprobe")
	cmd.Flags().String("ffmpeg", "ffmpeg", "Path to ffmpeg")

	return cmd
}
