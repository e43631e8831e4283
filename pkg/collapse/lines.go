package collapse

import (
	"bufio"
	"bytes"
)

// ReadLine returns the next line from r including its trailing newline.
// Lines longer than r's buffer are assembled in scratch, which is returned
// for reuse. The returned line is only valid until the next read.
func ReadLine(r *bufio.Reader, scratch []byte) (line, buf []byte, err error) {
	line, err = r.ReadSlice('\n')
	if err != bufio.ErrBufferFull {
		return line, scratch, err
	}
	scratch = append(scratch[:0], line...)
	for err == bufio.ErrBufferFull {
		line, err = r.ReadSlice('\n')
		scratch = append(scratch, line...)
	}
	return scratch, scratch, err
}

// ForEachLine calls fn for every line of chunk, stopping at the first error.
func ForEachLine(chunk []byte, fn func(line []byte) error) error {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		var line []byte
		if i < 0 {
			line, chunk = chunk, nil
		} else {
			line, chunk = chunk[:i+1], chunk[i+1:]
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return nil
}
