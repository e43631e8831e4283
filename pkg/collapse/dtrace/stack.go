package dtrace

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/danpilch/foldstack/pkg/collapse"
)

// stackBuilder assembles the frames of one stack at a time. It is owned by a
// single goroutine.
type stackBuilder struct {
	opt Options
	add func(stack string, count uint64)

	// frames holds the current stack leaf first, i.e. in input order.
	frames  []string
	inlines []string
	size    int

	stacks  uint64
	samples uint64
}

func newStackBuilder(opt Options, add func(string, uint64)) *stackBuilder {
	return &stackBuilder{opt: opt, add: add}
}

// line consumes one raw input line.
func (s *stackBuilder) line(raw []byte) error {
	if !utf8.Valid(raw) {
		return collapse.ErrInvalidUTF8
	}
	line := collapse.TrimSpace(raw)
	if len(line) == 0 {
		return nil
	}
	count, isCount, err := collapse.ParseCount(line)
	if err != nil {
		return err
	}
	if isCount {
		s.onStackEnd(count)
		return nil
	}
	if line = bytes.TrimSpace(line); len(line) == 0 {
		return nil
	}
	s.onStackLine(string(line))
	return nil
}

// onStackLine handles one frame line such as
//
//	genunix`syscall_mstate+0x5d
func (s *stackBuilder) onStackLine(line string) {
	s.inlines = s.opt.frames(line, s.inlines[:0])
	// frames is leaf first, so a root-to-leaf inline group goes in reversed
	for i := len(s.inlines) - 1; i >= 0; i-- {
		s.frames = append(s.frames, s.inlines[i])
		s.size += len(s.inlines[i]) + 1
	}
}

// onStackEnd folds the current stack with its count. A count with no frames
// before it is recorded under the empty stack.
func (s *stackBuilder) onStackEnd(count uint64) {
	var b strings.Builder
	b.Grow(s.size)
	for i := len(s.frames) - 1; i >= 0; i-- {
		e := s.frames[i]
		if i != len(s.frames)-1 {
			b.WriteByte(';')
		}
		// offsets are kept on every frame but the leaf
		if s.opt.IncludeOffset && i == 0 {
			_, _, _, e = removeOffset(e)
		}
		b.WriteString(e)
	}

	s.add(b.String(), count)
	s.stacks++
	s.samples += count
	s.reset()
}

func (s *stackBuilder) reset() {
	clear(s.frames)
	s.frames = s.frames[:0]
	s.size = 0
}

// finish reports whether input ended cleanly between stacks.
func (s *stackBuilder) finish() error {
	if len(s.frames) != 0 || s.size != 0 {
		return collapse.ErrTruncatedStack
	}
	return nil
}
