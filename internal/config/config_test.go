package config_test

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/idelchi/recrypt/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Secret:  "test-secret",
		Migrate: config.Migrate{BatchSize: 50},
		Codec: config.Codec{
			Paths:    []string{"."},
			Target:   "libx264",
			Timeout:  5 * time.Minute,
			Parallel: 2,
			FFprobe:  "ffprobe",
			FFmpeg:   "ffmpeg",
		},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		section func(c *config.Config) any
		wantErr string
	}{
		{
			name:    "valid migrate",
			mutate:  func(*config.Config) {},
			section: func(c *config.Config) any { return &c.Migrate },
		},
		{
			name:    "quiet and verbose",
			mutate:  func(c *config.Config) { c.Quiet, c.Verbose = true, true },
			section: func(c *config.Config) any { return &c.Migrate },
			wantErr: "--quiet is mutually exclusive with --verbose",
		},
		{
			name: "uuid and all",
			mutate: func(c *config.Config) {
				c.Migrate.UUID = "6f1c1c5e-4c1a-4c55-9b1e-2f0d7f3f9a10"
				c.Migrate.All = true
			},
			section: func(c *config.Config) any { return &c.Migrate },
			wantErr: "--uuid is mutually exclusive with --all",
		},
		{
			name:    "malformed uuid",
			mutate:  func(c *config.Config) { c.Migrate.UUID = "not-a-uuid" },
			section: func(c *config.Config) any { return &c.Migrate },
			wantErr: "--uuid",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *config.Config) { c.Migrate.BatchSize = 0 },
			section: func(c *config.Config) any { return &c.Migrate },
			wantErr: "--batch-size",
		},
		{
			name:    "inspect needs a source",
			mutate:  func(*config.Config) {},
			section: func(c *config.Config) any { return &c.Inspect },
			wantErr: "--uuid is required",
		},
		{
			name:    "valid codec",
			mutate:  func(*config.Config) {},
			section: func(c *config.Config) any { return &c.Codec },
		},
		{
			name:    "codec timeout too small",
			mutate:  func(c *config.Config) { c.Codec.Timeout = time.Millisecond },
			section: func(c *config.Config) any { return &c.Codec },
			wantErr: "--timeout",
		},
		{
			name:    "codec without paths",
			mutate:  func(c *config.Config) { c.Codec.Paths = nil },
			section: func(c *config.Config) any { return &c.Codec },
			wantErr: "paths",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate(tc.section(cfg))

			switch {
			case tc.wantErr == "" && err != nil:
				t.Fatalf("unexpected error: %v", err)
			case tc.wantErr != "" && err == nil:
				t.Fatalf("expected error containing %q", tc.wantErr)
			case tc.wantErr != "" && !strings.Contains(err.Error(), tc.wantErr):
				t.Fatalf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadDatabase(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "6543")
	t.Setenv("POSTGRES_PASSWORD", "hunter2")
	t.Setenv("DB_CONNECT_TIMEOUT", "3s")

	db, err := config.LoadDatabase()
	if err != nil {
		t.Fatalf("loading: %v", err)
	}

	if db.Driver != config.DriverPostgres || db.Host != "db.internal" || db.Port != 6543 {
		t.Fatalf("unexpected settings %+v", db)
	}

	if db.Name != "comfy_media" || db.SSLMode != "disable" || db.ConnectTimeout != 3*time.Second {
		t.Fatalf("defaults not applied: %+v", db)
	}

	cfg := validConfig()
	cfg.Database = db

	if err := cfg.Validate(&cfg.Database); err != nil {
		t.Fatalf("validating: %v", err)
	}

	out, err := cfg.Display()
	if err != nil {
		t.Fatal(err)
	}

	if strings.Contains(out, "hunter2") || strings.Contains(out, "test-secret") {
		t.Fatalf("secrets leaked into display:\n%s", out)
	}

	if !strings.Contains(out, "db.internal") {
		t.Fatalf("display is missing the host:\n%s", out)
	}
}

func TestLoadDatabaseRejectsBadPort(t *testing.T) {
	t.Setenv("POSTGRES_PORT", "not-a-port")

	if _, err := config.LoadDatabase(); err == nil {
		t.Fatal("expected an error")
	}
}

func TestResolveSecret(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		r.Close()
		w.Close()
	})

	var prompt bytes.Buffer

	cfg := &config.Config{}
	if err := cfg.ResolveSecret(r, &prompt); !errors.Is(err, config.ErrNoSecret) {
		t.Fatalf("got %v, want ErrNoSecret", err)
	}

	if prompt.Len() != 0 {
		t.Fatalf("prompted on a pipe: %q", prompt.String())
	}

	cfg.Secret = "configured"
	if err := cfg.ResolveSecret(r, &prompt); err != nil || cfg.Secret != "configured" {
		t.Fatalf("configured secret changed: %q, %v", cfg.Secret, err)
	}
}
