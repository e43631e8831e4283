// Package benchmark measures collapse throughput across thread and chunk sizes.
package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/danpilch/foldstack/pkg/collapse"
)

// Options configures a benchmark run.
type Options struct {
	Iterations   int
	Warmup       int
	Threads      []int
	StacksPerJob []int
}

// DefaultOptions returns sensible benchmark defaults.
func DefaultOptions() Options {
	return Options{
		Iterations:   20,
		Warmup:       3,
		Threads:      []int{1, collapse.DefaultThreads},
		StacksPerJob: []int{collapse.DefaultStacksPerJob},
	}
}

// Factory builds a collapser for one benchmark configuration.
type Factory func(threads, stacksPerJob int) (collapse.Collapser, error)

// Result holds benchmark results for a single configuration.
type Result struct {
	Threads      int
	StacksPerJob int
	Latencies    []time.Duration
	P50          time.Duration
	P95          time.Duration
	P99          time.Duration
	// MiBPerSec is the input rate at the median latency.
	MiBPerSec  float64
	OutputSize int
}

// Overhead holds the tool's own resource usage.
type Overhead struct {
	AllocBytes uint64
	AllocCount uint64
	GCPauses   uint32
}

var (
	bmTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	bmHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	bmDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Run collapses input repeatedly for every (threads, stacks per job) pair.
func Run(ctx context.Context, input []byte, newCollapser Factory, opts Options) ([]Result, error) {
	if opts.Iterations < 1 {
		return nil, errors.Errorf("iterations must be at least 1, got %d", opts.Iterations)
	}

	var results []Result
	for _, threads := range opts.Threads {
		for _, perJob := range opts.StacksPerJob {
			c, err := newCollapser(threads, perJob)
			if err != nil {
				return nil, errors.Wrapf(err, "threads=%d stacks-per-job=%d", threads, perJob)
			}
			r, err := runOne(ctx, c, input, opts)
			if err != nil {
				return nil, errors.Wrapf(err, "threads=%d stacks-per-job=%d", threads, perJob)
			}
			r.Threads = threads
			r.StacksPerJob = perJob
			results = append(results, r)
		}
	}
	return results, nil
}

func runOne(ctx context.Context, c collapse.Collapser, input []byte, opts Options) (Result, error) {
	var out bytes.Buffer

	for i := 0; i < opts.Warmup; i++ {
		out.Reset()
		if err := c.Collapse(ctx, bytes.NewReader(input), &out); err != nil {
			return Result{}, err
		}
	}

	latencies := make([]time.Duration, opts.Iterations)
	for i := 0; i < opts.Iterations; i++ {
		out.Reset()
		start := time.Now()
		if err := c.Collapse(ctx, bytes.NewReader(input), &out); err != nil {
			return Result{}, err
		}
		latencies[i] = time.Since(start)
	}

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	r := Result{
		Latencies:  latencies,
		P50:        percentile(latencies, 0.50),
		P95:        percentile(latencies, 0.95),
		P99:        percentile(latencies, 0.99),
		OutputSize: out.Len(),
	}
	if r.P50 > 0 {
		r.MiBPerSec = float64(len(input)) / (1 << 20) / r.P50.Seconds()
	}
	return r, nil
}

// MeasureOverhead returns the tool's memory overhead so far.
func MeasureOverhead() Overhead {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return Overhead{
		AllocBytes: m.TotalAlloc,
		AllocCount: m.Mallocs,
		GCPauses:   m.NumGC,
	}
}

// RenderResults outputs styled benchmark results.
func RenderResults(w io.Writer, inputSize int, results []Result, overhead Overhead) {
	fmt.Fprintln(w, bmTitle.Render("Collapse Benchmark Results"))
	fmt.Fprintln(w, bmDim.Render(strings.Repeat("═", 76)))
	fmt.Fprintf(w, "  input: %s\n", formatBytes(uint64(inputSize)))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s %s %s %s %s\n",
		bmHeader.Render("THREADS"),
		bmHeader.Render("PER JOB"),
		bmHeader.Render("P50        "),
		bmHeader.Render("P95        "),
		bmHeader.Render("P99        "),
		bmHeader.Render("MiB/s     "))
	fmt.Fprintln(w, "  "+bmDim.Render(strings.Repeat("─", 76)))

	for _, r := range results {
		fmt.Fprintf(w, "  %-9d %-9d %-13v %-13v %-13v %.1f\n",
			r.Threads, r.StacksPerJob, r.P50, r.P95, r.P99, r.MiBPerSec)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, bmTitle.Render("Tool Overhead"))
	fmt.Fprintln(w, bmDim.Render(strings.Repeat("─", 40)))
	fmt.Fprintf(w, "  Memory allocated: %s\n", lipgloss.NewStyle().Bold(true).Render(formatBytes(overhead.AllocBytes)))
	fmt.Fprintf(w, "  Allocations:      %s\n", lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%d", overhead.AllocCount)))
	fmt.Fprintf(w, "  GC pauses:        %s\n", lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%d", overhead.GCPauses)))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
