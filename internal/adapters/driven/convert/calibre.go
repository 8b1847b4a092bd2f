package convert

import (
	"context"
	"fmt"
	"os"

	"github.com/folio-labs/folio-core/internal/core/ports/driven"
)

// DefaultBinary is the Calibre CLI converter.
const DefaultBinary = "ebook-convert"

// Verify interface compliance
var _ driven.Converter = (*Calibre)(nil)

// Calibre converts PDFs to EPUBs by invoking ebook-convert as a
// subprocess. The binary must be on PATH (or configured explicitly);
// no Calibre library binding is involved.
type Calibre struct {
	binary string
	runner Runner
}

// Option configures a Calibre converter.
type Option func(*Calibre)

// WithBinary overrides the converter binary path.
func WithBinary(path string) Option {
	return func(c *Calibre) {
		if path != "" {
			c.binary = path
		}
	}
}

// WithRunner injects a command runner, for tests.
func WithRunner(r Runner) Option {
	return func(c *Calibre) { c.runner = r }
}

// NewCalibre creates a Calibre-backed converter.
func NewCalibre(opts ...Option) *Calibre {
	c := &Calibre{
		binary: DefaultBinary,
		runner: execRunner{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert runs ebook-convert on inputPath, producing outputPath.
// Title and author are stamped into the EPUB metadata when non-empty.
// The caller owns the context deadline; a timeout kills the subprocess.
func (c *Calibre) Convert(ctx context.Context, inputPath, outputPath, title, author string) error {
	args := []string{inputPath, outputPath}
	if title != "" {
		args = append(args, "--title", title)
	}
	if author != "" {
		args = append(args, "--authors", author)
	}

	_, stderr, err := c.runner.Run(ctx, c.binary, args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("conversion timed out: %w", ctx.Err())
		}
		if len(stderr) > 0 {
			return fmt.Errorf("%s: %s", err.Error(), string(stderr))
		}
		return fmt.Errorf("ebook-convert failed: %w", err)
	}

	// A zero exit with no output file still counts as failure.
	if _, statErr := os.Stat(outputPath); statErr != nil {
		return fmt.Errorf("conversion produced no output: %v", statErr)
	}

	return nil
}
