package imaging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

var (
	// ErrConverterUnavailable is returned when no HEIC converter can be run
	ErrConverterUnavailable = errors.New("HEIC converter not available")

	errEmptyImage = errors.New("image has no pixels")
)

// ExecConverter converts HEIC to JPEG with libheif's heif-convert tool
type ExecConverter struct {
	Binary  string
	Quality int
}

// NewExecConverter returns a converter running binary at JPEG quality 92
func NewExecConverter(binary string) *ExecConverter {
	return &ExecConverter{Binary: binary, Quality: 92}
}

// Available reports whether the converter binary is on PATH
func (c *ExecConverter) Available() bool {
	_, err := exec.LookPath(c.Binary)
	return err == nil
}

// Convert implements Converter
func (c *ExecConverter) Convert(ctx context.Context, data []byte) ([]byte, error) {
	bin, err := exec.LookPath(c.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConverterUnavailable, err)
	}

	dir, err := os.MkdirTemp("", "heic-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.heic")
	out := filepath.Join(dir, "out.jpg")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write heic input: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, "-q", strconv.Itoa(c.Quality), in, out)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("heif-convert failed: %w: %s", err, output)
	}

	jpg, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted jpeg: %w", err)
	}
	return jpg, nil
}
