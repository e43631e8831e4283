package collapse

import (
	"bufio"
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ChunkFunc folds one chunk of input. A chunk always holds a whole number of
// stacks. Each worker owns its ChunkFunc, so implementations need no locking
// beyond what their shared Occurrences provide.
type ChunkFunc func(chunk []byte) error

// Pool cuts input into stack-aligned chunks and folds them on a fixed set of
// worker goroutines.
type Pool struct {
	Threads      int
	StacksPerJob int
	Logger       *logrus.Logger
}

// Run reads r to the end and hands chunks of StacksPerJob stacks to workers
// built by newWorker. The first worker error cancels the other workers and is
// returned as is. Stats carries the byte and chunk counts.
func (p *Pool) Run(ctx context.Context, r *bufio.Reader, newWorker func() ChunkFunc) (Stats, error) {
	var stats Stats
	if p.StacksPerJob < 1 {
		return stats, errors.Errorf("stacks per job must be at least 1, got %d", p.StacksPerJob)
	}
	threads := p.Threads
	if threads < 1 {
		threads = 1
	}
	logger := p.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	stats.Threads = threads

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan []byte, 2*threads)

	for i := 0; i < threads; i++ {
		worker := newWorker()
		id := i
		g.Go(func() error {
			for {
				select {
				case chunk, ok := <-jobs:
					if !ok {
						return nil
					}
					if err := worker(chunk); err != nil {
						logger.WithFields(logrus.Fields{
							"worker": id,
							"error":  err,
						}).Debug("Worker failed, cancelling peers")
						return err
					}
				case <-gctx.Done():
					return nil
				}
			}
		})
	}

	g.Go(func() error {
		defer close(jobs)

		bufCap := nextPowerOfTwo(BytesPerStackGuess * p.StacksPerJob)
		buf := make([]byte, 0, bufCap)
		nstacks := 0

		send := func() error {
			stats.Chunks++
			logger.WithFields(logrus.Fields{
				"chunk": stats.Chunks,
				"bytes": len(buf),
			}).Trace("Dispatching chunk")
			select {
			case jobs <- buf:
			case <-gctx.Done():
				return gctx.Err()
			}
			buf = make([]byte, 0, bufCap)
			nstacks = 0
			return nil
		}

		for {
			start := len(buf)
			var err error
			for {
				var frag []byte
				frag, err = r.ReadSlice('\n')
				buf = append(buf, frag...)
				if err != bufio.ErrBufferFull {
					break
				}
			}
			if err != nil && err != io.EOF {
				return errors.Wrap(err, "read input")
			}
			stats.Bytes += uint64(len(buf) - start)

			if IsEndOfStack(buf[start:]) {
				nstacks++
			}
			if err == io.EOF {
				if len(buf) > 0 {
					return send()
				}
				return nil
			}
			if nstacks == p.StacksPerJob {
				if err := send(); err != nil {
					return err
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	// workers may have stopped on the caller's cancellation with chunks still queued
	return stats, ctx.Err()
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
