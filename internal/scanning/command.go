package scanning

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/zombor/receipt-ocr/internal/ocr"
)

// Command implements Recognizer by running an external OCR program. The
// program receives the image path as its last argument and prints the word
// list in the result protocol read by ocr.ReadResult.
type Command struct {
	path string
	args []string
}

// NewCommand creates a Command recognizer
func NewCommand(path string, args ...string) (*Command, error) {
	if path == "" {
		return nil, fmt.Errorf("ocr command is required")
	}
	return &Command{path: path, args: args}, nil
}

// Recognize writes the image to a temporary file and runs the program on it
func (c *Command) Recognize(ctx context.Context, png []byte) ([]ocr.WordBox, error) {
	f, err := os.CreateTemp("", "receipt-*.png")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(png); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}

	args := append(append([]string(nil), c.args...), f.Name())
	cmd := exec.CommandContext(ctx, c.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		slog.Error("OCR command failed", "command", c.path, "stderr", stderr.String(), "error", err)
		return nil, fmt.Errorf("running %s: %w", c.path, err)
	}

	words, err := ocr.ReadResult(&stdout)
	if err != nil {
		return nil, fmt.Errorf("reading %s output: %w", c.path, err)
	}
	return words, nil
}

// Close is a no-op
func (c *Command) Close() error {
	return nil
}
