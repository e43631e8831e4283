// Package capture records user stacks with dtrace and folds them as they stream in.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/foldstack/pkg/collapse"
)

// ErrDtraceNotFound is returned when the dtrace binary is not on PATH.
var ErrDtraceNotFound = errors.New("dtrace not found")

// Options configures a capture session.
type Options struct {
	Duration  time.Duration
	Frequency int // sampling frequency in Hz
	PID       int // 0 = system-wide
	// Frames caps the depth of each recorded stack.
	Frames int
	// Binary overrides the dtrace executable.
	Binary string
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Duration:  10 * time.Second,
		Frequency: 99,
		Frames:    100,
		Binary:    "dtrace",
	}
}

// Result describes a finished capture.
type Result struct {
	Duration time.Duration
	Script   string
}

// Script returns the D program that samples user stacks for opts.
func Script(opts Options) string {
	secs := int(opts.Duration.Seconds())
	if secs < 1 {
		secs = 1
	}
	probe := fmt.Sprintf("profile-%d", opts.Frequency)
	if opts.PID > 0 {
		probe += fmt.Sprintf(" /pid == %d/", opts.PID)
	}
	return fmt.Sprintf("%s { @[ustack()] = count(); } tick-%ds { exit(0); }", probe, secs)
}

// Run starts dtrace, streams its aggregation output through c and writes the
// folded stacks to w.
func Run(ctx context.Context, opts Options, c collapse.Collapser, w io.Writer, logger *logrus.Logger) (*Result, error) {
	if opts.Frequency < 1 {
		return nil, errors.Errorf("frequency must be positive, got %d", opts.Frequency)
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	binary := opts.Binary
	if binary == "" {
		binary = "dtrace"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, ErrDtraceNotFound
	}

	script := Script(opts)
	args := []string{"-n", script}
	if opts.Frames > 0 {
		args = append([]string{"-x", fmt.Sprintf("ustackframes=%d", opts.Frames)}, args...)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "dtrace stdout")
	}

	logger.WithFields(logrus.Fields{
		"pid":       opts.PID,
		"frequency": opts.Frequency,
		"duration":  opts.Duration,
	}).Info("Starting dtrace")

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "start dtrace")
	}

	cerr := c.Collapse(ctx, stdout, w)
	if cerr != nil {
		// stop dtrace so Wait does not block on a full pipe
		cancel()
		_, _ = io.Copy(io.Discard, stdout)
	}
	werr := cmd.Wait()

	if cerr != nil {
		return nil, errors.Wrap(cerr, "collapse dtrace output")
	}
	if werr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, errors.Wrapf(werr, "dtrace failed (%s)", msg)
		}
		return nil, errors.Wrap(werr, "dtrace failed")
	}

	return &Result{
		Duration: time.Since(start),
		Script:   script,
	}, nil
}
