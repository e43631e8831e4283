// Package input opens profiler output files, transparently decompressing them.
package input

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

const peekSize = 4

var (
	gzipMagic = []byte{0x1f, 0x8b}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Compression identifies how an input stream is encoded.
type Compression int

const (
	None Compression = iota
	Gzip
	LZ4
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case LZ4:
		return "lz4"
	default:
		return "none"
	}
}

// File is an opened input.
type File struct {
	io.Reader
	Compression Compression

	closers []io.Closer
}

// Close releases the decompressor and the underlying file.
func (f *File) Close() error {
	var first error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	f.closers = nil
	return first
}

// Open opens path, or stdin for "-" or "", and detects gzip or lz4 framing.
func Open(path string) (*File, error) {
	if path == "" || path == Stdin {
		return Wrap(os.Stdin)
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	adviseSequential(fh)

	f, err := Wrap(fh)
	if err != nil {
		fh.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	f.closers = append([]io.Closer{fh}, f.closers...)
	return f, nil
}

// Wrap sniffs r and returns a reader yielding the decompressed bytes.
func Wrap(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(peekSize)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "read input header")
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		return &File{Reader: zr, Compression: Gzip, closers: []io.Closer{zr}}, nil
	case bytes.HasPrefix(head, lz4Magic):
		return &File{Reader: lz4.NewReader(br), Compression: LZ4}, nil
	default:
		return &File{Reader: br, Compression: None}, nil
	}
}
