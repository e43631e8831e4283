package collapse

import (
	"bufio"
	"io"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// Occurrences counts how many times each folded stack was sampled.
type Occurrences interface {
	// Add increments the count for stack, inserting it if absent.
	Add(stack string, count uint64)

	// IsConcurrent reports whether Add may be called from several goroutines.
	IsConcurrent() bool

	// Len returns the number of distinct stacks.
	Len() int

	// WriteAndClear writes "<stack> <count>\n" for every stack to w and empties the table.
	WriteAndClear(w io.Writer) error
}

// NewOccurrences returns a plain table for a single thread and a sharded,
// lock-protected table otherwise.
func NewOccurrences(threads int) Occurrences {
	if threads <= 1 {
		return &singleOccurrences{m: make(map[string]uint64)}
	}
	return newShardedOccurrences(threads)
}

type singleOccurrences struct {
	m map[string]uint64
}

func (o *singleOccurrences) Add(stack string, count uint64) {
	o.m[stack] += count
}

func (o *singleOccurrences) IsConcurrent() bool { return false }

func (o *singleOccurrences) Len() int { return len(o.m) }

func (o *singleOccurrences) WriteAndClear(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var scratch []byte
	for k, v := range o.m {
		scratch = appendLine(scratch[:0], k, v)
		if _, err := bw.Write(scratch); err != nil {
			return errors.Wrap(err, "write folded stacks")
		}
	}
	clear(o.m)
	return errors.Wrap(bw.Flush(), "write folded stacks")
}

type shard struct {
	mu sync.Mutex
	m  map[string]uint64
}

type shardedOccurrences struct {
	shards []shard
	mask   uint64
}

func newShardedOccurrences(threads int) *shardedOccurrences {
	n := 1
	for n < threads*4 {
		n <<= 1
	}
	o := &shardedOccurrences{
		shards: make([]shard, n),
		mask:   uint64(n - 1),
	}
	for i := range o.shards {
		o.shards[i].m = make(map[string]uint64)
	}
	return o
}

func (o *shardedOccurrences) shardFor(stack string) *shard {
	return &o.shards[xxhash.Sum64String(stack)&o.mask]
}

func (o *shardedOccurrences) Add(stack string, count uint64) {
	s := o.shardFor(stack)
	s.mu.Lock()
	s.m[stack] += count
	s.mu.Unlock()
}

func (o *shardedOccurrences) IsConcurrent() bool { return true }

func (o *shardedOccurrences) Len() int {
	n := 0
	for i := range o.shards {
		s := &o.shards[i]
		s.mu.Lock()
		n += len(s.m)
		s.mu.Unlock()
	}
	return n
}

func (o *shardedOccurrences) WriteAndClear(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var scratch []byte
	for i := range o.shards {
		s := &o.shards[i]
		s.mu.Lock()
		for k, v := range s.m {
			scratch = appendLine(scratch[:0], k, v)
			if _, err := bw.Write(scratch); err != nil {
				s.mu.Unlock()
				return errors.Wrap(err, "write folded stacks")
			}
		}
		clear(s.m)
		s.mu.Unlock()
	}
	return errors.Wrap(bw.Flush(), "write folded stacks")
}

// Clear empties the table without writing it.
func Clear(o Occurrences) {
	switch t := o.(type) {
	case *singleOccurrences:
		clear(t.m)
	case *shardedOccurrences:
		for i := range t.shards {
			s := &t.shards[i]
			s.mu.Lock()
			clear(s.m)
			s.mu.Unlock()
		}
	default:
		_ = o.WriteAndClear(io.Discard)
	}
}

func appendLine(dst []byte, stack string, count uint64) []byte {
	dst = append(dst, stack...)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, count, 10)
	return append(dst, '\n')
}
