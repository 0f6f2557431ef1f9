package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoSecret is returned when no secret was configured and none can be prompted for.
var ErrNoSecret = errors.New("no encryption secret: set MEDIA_ENCRYPTION_KEY, pass --secret or run interactively")

// ResolveSecret leaves a configured secret alone and otherwise prompts for one on the terminal.
func (c *Config) ResolveSecret(stdin *os.File, prompt io.Writer) error {
	if c.Secret != "" {
		return nil
	}

	fd := int(stdin.Fd()) //nolint:gosec

	if !term.IsTerminal(fd) {
		return ErrNoSecret
	}

	fmt.Fprint(prompt, "Media encryption secret: ")
	defer fmt.Fprintln(prompt)

	raw, err := term.ReadPassword(fd)
	if err != nil {
		return fmt.Errorf("reading secret: %w", err)
	}

	c.Secret = strings.TrimSpace(string(raw))
	clear(raw)

	if c.Secret == "" {
		return ErrNoSecret
	}

	return nil
}
