package dtrace

import (
	"bufio"
	"context"
	"io"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/foldstack/pkg/collapse"
)

const (
	readBufferSize = 64 << 10

	// how many lines the single-threaded loop reads between context checks
	ctxCheckInterval = 4096
)

// Folder collapses DTrace stacks. A Folder may be reused for several inputs,
// one at a time.
type Folder struct {
	opt          Options
	stacksPerJob int
	occurrences  collapse.Occurrences
	logger       *logrus.Logger

	stats   collapse.Stats
	stacks  atomic.Uint64
	samples atomic.Uint64
}

var _ collapse.Collapser = (*Folder)(nil)

// NewFolder creates a folder. A nil logger logs warnings to stderr.
func NewFolder(opt Options, logger *logrus.Logger) *Folder {
	if opt.Threads < 1 {
		opt.Threads = 1
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Folder{
		opt:          opt,
		stacksPerJob: collapse.DefaultStacksPerJob,
		occurrences:  collapse.NewOccurrences(opt.Threads),
		logger:       logger,
	}
}

// Options returns the effective options.
func (f *Folder) Options() Options {
	return f.opt
}

// SetStacksPerJob sets how many stacks each worker chunk holds.
func (f *Folder) SetStacksPerJob(n int) error {
	if n < 1 {
		return errors.Errorf("stacks per job must be at least 1, got %d", n)
	}
	f.stacksPerJob = n
	return nil
}

// SetThreads changes the worker count and resets the occurrence table.
func (f *Folder) SetThreads(n int) {
	if n < 1 {
		n = 1
	}
	f.opt.Threads = n
	f.occurrences = collapse.NewOccurrences(n)
}

// Stats returns statistics for the last call to Collapse.
func (f *Folder) Stats() collapse.Stats {
	return f.stats
}

// Collapse reads DTrace output from r and writes folded stacks to w. On error
// nothing is written and the occurrence table is cleared.
func (f *Folder) Collapse(ctx context.Context, r io.Reader, w io.Writer) error {
	start := time.Now()
	f.stats = collapse.Stats{Threads: f.opt.Threads}
	f.stacks.Store(0)
	f.samples.Store(0)

	br := bufio.NewReaderSize(r, readBufferSize)
	found, err := f.skipHeader(br)
	if err != nil {
		return err
	}
	if !found {
		f.logger.Warn("Input ended while skipping headers")
		f.stats.Duration = time.Since(start)
		return nil
	}

	if f.occurrences.IsConcurrent() {
		err = f.collapseMultiThreaded(ctx, br)
	} else {
		err = f.collapseSingleThreaded(ctx, br)
	}
	if err != nil {
		collapse.Clear(f.occurrences)
		return err
	}

	f.stats.Stacks = f.stacks.Load()
	f.stats.Samples = f.samples.Load()
	f.stats.Unique = f.occurrences.Len()
	if err := f.occurrences.WriteAndClear(w); err != nil {
		// a partial drain leaves later shards filled
		collapse.Clear(f.occurrences)
		return err
	}
	f.stats.Duration = time.Since(start)

	f.logger.WithFields(logrus.Fields{
		"threads": f.stats.Threads,
		"stacks":  f.stats.Stacks,
		"unique":  f.stats.Unique,
		"bytes":   f.stats.Bytes,
	}).Debug("Collapsed dtrace stacks")
	return nil
}

// skipHeader consumes lines up to and including the first blank one.
func (f *Folder) skipHeader(r *bufio.Reader) (bool, error) {
	var scratch []byte
	for {
		line, buf, err := collapse.ReadLine(r, scratch)
		scratch = buf
		f.stats.Bytes += uint64(len(line))
		if len(line) > 0 {
			if !utf8.Valid(line) {
				return false, collapse.ErrInvalidUTF8
			}
			if len(collapse.TrimSpace(line)) == 0 {
				return true, nil
			}
		}
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, errors.Wrap(err, "read input")
		}
	}
}

func (f *Folder) collapseSingleThreaded(ctx context.Context, r *bufio.Reader) error {
	sb := newStackBuilder(f.opt, f.occurrences.Add)
	var scratch []byte
	for n := 1; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		line, buf, err := collapse.ReadLine(r, scratch)
		scratch = buf
		f.stats.Bytes += uint64(len(line))
		if len(line) > 0 {
			if lerr := sb.line(line); lerr != nil {
				return lerr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "read input")
		}
	}
	f.stacks.Add(sb.stacks)
	f.samples.Add(sb.samples)
	return sb.finish()
}

func (f *Folder) collapseMultiThreaded(ctx context.Context, r *bufio.Reader) error {
	pool := collapse.Pool{
		Threads:      f.opt.Threads,
		StacksPerJob: f.stacksPerJob,
		Logger:       f.logger,
	}
	stats, err := pool.Run(ctx, r, f.newWorker)
	f.stats.Bytes += stats.Bytes
	f.stats.Chunks = stats.Chunks
	return err
}

// newWorker returns a chunk folder with its own parser state. Each chunk is
// folded into a private table first so that a failing chunk leaves nothing
// behind in the shared one.
func (f *Folder) newWorker() collapse.ChunkFunc {
	local := make(map[string]uint64)
	add := func(stack string, count uint64) {
		local[stack] += count
	}
	return func(chunk []byte) error {
		sb := newStackBuilder(f.opt, add)
		err := collapse.ForEachLine(chunk, sb.line)
		if err == nil {
			err = sb.finish()
		}
		if err != nil {
			clear(local)
			return err
		}
		for stack, count := range local {
			f.occurrences.Add(stack, count)
		}
		clear(local)
		f.stacks.Add(sb.stacks)
		f.samples.Add(sb.samples)
		return nil
	}
}
