package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/idelchi/recrypt/internal/config"
	"github.com/idelchi/recrypt/internal/logic"
)

// NewMigrateCommand creates a new cobra command for the migrate subcommand.
func NewMigrateCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "migrate [flags]",
		Aliases: []string{"mig"},
		Short:   "Convert legacy records to the unified format",
		Long: `Converts one batch of legacy records, oldest first.
Use --all to continue until none remain, or --uuid to convert a single record.
Records that fail are left untouched and reported at the end.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := bind(cmd, cfg, &cfg.Migrate); err != nil {
				return err
			}

			if err := withDatabase(cfg, &cfg.Migrate); err != nil {
				return err
			}

			if cfg.Show || cfg.Migrate.DryRun {
				return nil
			}

			return cfg.ResolveSecret(os.Stdin, os.Stderr)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Show {
				return show(cfg)
			}

			return logic.RunMigrate(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("uuid", "", "Convert only the record with this id")
	cmd.Flags().Bool("all", false, "Convert batches until no legacy records remain")
	cmd.Flags().BoolP("dry-run", "n", false, "List the records that would be converted")
	cmd.Flags().IntP("batch-size", "b", 50, "Number of records per batch") //nolint:mnd
	cmd.Flags().Bool("verify", false, "Decrypt every new payload and compare before writing it")
	cmd.Flags().Int("dry-run-batches", 3, "Batches to list in a dry run with --all, 0 for no limit") //nolint:mnd

	return cmd
}
