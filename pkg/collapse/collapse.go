// Package collapse provides the shared machinery for folding profiler stack
// samples into the "folded stack" format consumed by flame graph renderers.
package collapse

import (
	"context"
	"io"
	"runtime"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultStacksPerJob is the number of complete stacks sent to a worker at once.
	DefaultStacksPerJob = 100

	// BytesPerStackGuess sizes chunk buffers up front.
	BytesPerStackGuess = 1024
)

// DefaultThreads is the worker count used when none is configured.
var DefaultThreads = runtime.NumCPU()

var (
	// ErrTruncatedStack is returned when the input ends before a stack's count line.
	ErrTruncatedStack = errors.New("input data ends in the middle of a stack")

	// ErrInvalidUTF8 is returned when a line is not valid UTF-8 text.
	ErrInvalidUTF8 = errors.New("stream did not contain valid UTF-8")

	// ErrCountOverflow is returned for a count line that does not fit in a uint64.
	ErrCountOverflow = errors.New("sample count out of range")
)

// Applicability is the result of sniffing a sample of input.
type Applicability int

const (
	// Undetermined means the sample was too short to decide.
	Undetermined Applicability = iota
	NotApplicable
	Applicable
)

func (a Applicability) String() string {
	switch a {
	case Applicable:
		return "applicable"
	case NotApplicable:
		return "not applicable"
	default:
		return "undetermined"
	}
}

// Collapser folds one input format.
type Collapser interface {
	// Collapse reads stack samples from r and writes folded stacks to w.
	Collapse(ctx context.Context, r io.Reader, w io.Writer) error

	// IsApplicable reports whether sample looks like this collapser's input.
	IsApplicable(sample string) Applicability
}

// Stats describes one collapse run.
type Stats struct {
	Bytes    uint64
	Stacks   uint64
	Samples  uint64
	Chunks   uint64
	Unique   int
	Threads  int
	Duration time.Duration
}

// Throughput returns the input rate in MiB/s.
func (s Stats) Throughput() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Bytes) / (1 << 20) / s.Duration.Seconds()
}
