// Package ffmpeg wraps the ffmpeg binary for trim rendering. Progress is
// recovered from the `time=HH:MM:SS.ff` markers ffmpeg prints on stderr.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// progressClamp caps parsed progress until the process actually exits.
const progressClamp = 0.99

var timePattern = regexp.MustCompile(`time=(\d+):(\d+):(\d+(?:\.\d+)?)`)

// ProgressFunc receives render progress in the range [0, 0.99].
type ProgressFunc func(ratio float64)

// Client defines ffmpeg render behaviour.
type Client interface {
	Run(ctx context.Context, args []string, totalSec float64, progress ProgressFunc) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if strings.TrimSpace(binary) != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffmpeg command-line tool.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Run executes ffmpeg with the given arguments, streaming stderr for
// progress markers. totalSec scales the parsed timestamp into a ratio;
// pass zero to disable progress reporting.
func (c *CLI) Run(ctx context.Context, args []string, totalSec float64, progress ProgressFunc) error {
	if len(args) == 0 {
		return errors.New("ffmpeg args required")
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	tail := c.consumeStderr(stderr, totalSec, progress)

	if err := cmd.Wait(); err != nil {
		if tail != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, tail)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

// consumeStderr reads stderr in chunks. ffmpeg rewrites its status line
// with carriage returns, so each chunk may carry several markers; only the
// last one in a chunk reflects current progress. The return value is a
// bounded tail of the output used for error reporting.
func (c *CLI) consumeStderr(r io.Reader, totalSec float64, progress ProgressFunc) string {
	const tailLimit = 4096

	var tail strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			tail.WriteString(chunk)
			if seconds, ok := lastProgressTime(chunk); ok && totalSec > 0 && progress != nil {
				ratio := seconds / totalSec
				if ratio > progressClamp {
					ratio = progressClamp
				}
				if ratio < 0 {
					ratio = 0
				}
				progress(ratio)
			}
		}
		if err != nil {
			break
		}
	}

	out := strings.TrimSpace(tail.String())
	if len(out) > tailLimit {
		out = out[len(out)-tailLimit:]
	}
	return out
}

// lastProgressTime extracts the final time marker from a stderr chunk.
func lastProgressTime(chunk string) (float64, bool) {
	matches := timePattern.FindAllStringSubmatch(chunk, -1)
	if len(matches) == 0 {
		return 0, false
	}
	m := matches[len(matches)-1]
	hours, err1 := strconv.ParseFloat(m[1], 64)
	minutes, err2 := strconv.ParseFloat(m[2], 64)
	seconds, err3 := strconv.ParseFloat(m[3], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return hours*3600 + minutes*60 + seconds, true
}

var _ Client = (*CLI)(nil)
