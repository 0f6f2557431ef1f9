// Package config holds the settings of every command and how they are loaded and validated.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// Config holds the settings shared by all commands plus one section per command.
type Config struct {
	// Secret is the media encryption secret both formats derive their keys from.
	// Commands that need it call ResolveSecret.
	Secret string `mapstructure:"secret" yaml:"-"`
	// Show prints the resolved configuration and exits.
	Show bool `mapstructure:"show" yaml:"-"`
	// Quiet suppresses progress output.
	Quiet bool `mapstructure:"quiet" yaml:"quiet" validate:"exclusive=Verbose" label:"--quiet"`
	// Verbose enables per-step logging.
	Verbose bool `mapstructure:"verbose" yaml:"verbose" label:"--verbose"`
	// Stats prints a statistics block after the run.
	Stats bool `mapstructure:"stats" yaml:"stats"`

	// Sections are validated by the command that uses them.
	Database Database `mapstructure:"-" yaml:"database"          validate:"-"`
	Migrate  Migrate  `mapstructure:"-" yaml:"migrate,omitempty" validate:"-"`
	Inspect  Inspect  `mapstructure:"-" yaml:"inspect,omitempty" validate:"-"`
	Codec    Codec    `mapstructure:"-" yaml:"codec,omitempty"   validate:"-"`
}

// Migrate holds the options of the migrate command.
type Migrate struct {
	UUID      string `mapstructure:"uuid"       yaml:"uuid,omitempty" validate:"omitempty,uuid,exclusive=All" label:"--uuid"`
	All       bool   `mapstructure:"all"        yaml:"all"            label:"--all"`
	DryRun    bool   `mapstructure:"dry-run"    yaml:"dry-run"`
	BatchSize int    `mapstructure:"batch-size" yaml:"batch-size"     validate:"min=1,max=10000" label:"--batch-size"`
	Verify    bool   `mapstructure:"verify"     yaml:"verify"`
	// DryRunBatches caps how many batches a dry run lists when combined with --all.
	DryRunBatches int `mapstructure:"dry-run-batches" yaml:"dry-run-batches" validate:"min=0" label:"--dry-run-batches"`
}

// Inspect holds the options of the inspect command.
type Inspect struct {
	UUID   string `mapstructure:"uuid"   yaml:"uuid,omitempty"   validate:"required_without=File,exclusive=File" label:"--uuid"`
	File   string `mapstructure:"file"   yaml:"file,omitempty"   validate:"omitempty,file" label:"--file"`
	Output string `mapstructure:"output" yaml:"output,omitempty"`
	Force  bool   `mapstructure:"force"  yaml:"force"`
}

// Codec holds the options of the codec command.
type Codec struct {
	Paths    []string      `mapstructure:"-"        yaml:"paths"    validate:"min=1" label:"paths"`
	Convert  bool          `mapstructure:"convert"  yaml:"convert"`
	Force    bool          `mapstructure:"force"    yaml:"force"`
	Output   string        `mapstructure:"output"   yaml:"output,omitempty"`
	Target   string        `mapstructure:"target"   yaml:"target"   validate:"required" label:"--target"`
	Timeout  time.Duration `mapstructure:"timeout"  yaml:"timeout"  validate:"min=1s" label:"--timeout"`
	Parallel int           `mapstructure:"parallel" yaml:"parallel" validate:"min=1" label:"--parallel"`
	FFprobe  string        `mapstructure:"ffprobe"  yaml:"ffprobe"  validate:"required"`
	FFmpeg   string        `mapstructure:"ffmpeg"   yaml:"ffmpeg"   validate:"required"`
}

// Validate checks the shared settings and the given command sections.
func (c *Config) Validate(sections ...any) error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := registerExclusive(validate); err != nil {
		return err
	}

	for _, section := range append([]any{c}, sections...) {
		if err := validate.Struct(section); err != nil {
			return fmt.Errorf("validating configuration: %w", describe(err))
		}
	}

	return nil
}

// Display renders the configuration as YAML with the secrets left out.
func (c *Config) Display() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("rendering configuration: %w", err)
	}

	return string(data), nil
}
