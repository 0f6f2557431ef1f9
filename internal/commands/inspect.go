package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/idelchi/recrypt/internal/config"
	"github.com/idelchi/recrypt/internal/logic"
)

// NewInspectCommand creates a new cobra command for the inspect subcommand.
func NewInspectCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [flags]",
		Short: "Decode one stored payload and report what it contains",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := bind(cmd, cfg, &cfg.Inspect); err != nil {
				return err
			}

			if cfg.Inspect.File != "" {
				if err := cfg.Validate(&cfg.Inspect); err != nil {
					return err
				}
			} else if err := withDatabase(cfg, &cfg.Inspect); err != nil {
				return err
			}

			if cfg.Show {
				return nil
			}

			return cfg.ResolveSecret(os.Stdin, os.Stderr)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Show {
				return show(cfg)
			}

			return logic.RunInspect(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("uuid", "", "Read the payload of this record from the database")
	cmd.Flags().StringP("file", "f", "", "Read the payload from a file")
	cmd.Flags().StringP("output", "o", "", "Write the decrypted content to this path")
	cmd.Flags().Bool("force", false, "Overwrite the output if it exists")

	return cmd
}
