// Package commands provides the command-line interface for the recrypt tool.
//
// It implements commands for:
//   - migrating legacy records to the unified format
//   - inspecting a single stored payload
//   - probing and converting video codecs
//
// The package handles command-line parsing, configuration validation,
// and environment variable binding through cobra and viper.
package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idelchi/recrypt/internal/config"
)

// bind resolves flags and environment into the shared settings and the command's section.
// Explicit flags win over the environment, which wins over flag defaults.
func bind(cmd *cobra.Command, cfg *config.Config, section any) error {
	v := viper.New()
	v.SetEnvPrefix("RECRYPT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	if err := v.BindEnv("secret", "RECRYPT_SECRET", "MEDIA_ENCRYPTION_KEY"); err != nil {
		return fmt.Errorf("binding secret: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	if section == nil {
		return nil
	}

	if err := v.Unmarshal(section); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	return nil
}

// withDatabase loads the connection settings and validates them with the command's section.
func withDatabase(cfg *config.Config, section any) error {
	db, err := config.LoadDatabase()
	if err != nil {
		return err
	}

	cfg.Database = db

	return cfg.Validate(section, &cfg.Database)
}

// show prints the resolved configuration instead of running the command.
func show(cfg *config.Config) error {
	out, err := cfg.Display()
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stdout, out)

	return nil
}
