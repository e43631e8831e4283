package collapse

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLineLongerThanBuffer(t *testing.T) {
	long := strings.Repeat("x", 100)
	r := bufio.NewReaderSize(strings.NewReader("short\n"+long+"\nend"), 16)

	var (
		scratch []byte
		lines   []string
	)
	for {
		line, buf, err := ReadLine(r, scratch)
		scratch = buf
		if len(line) > 0 {
			lines = append(lines, string(line))
		}
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"short\n", long + "\n", "end"}, lines)
}

func TestForEachLine(t *testing.T) {
	var lines []string
	err := ForEachLine([]byte("a\nb\n\nc"), func(line []byte) error {
		lines = append(lines, string(line))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a\n", "b\n", "\n", "c"}, lines)

	calls := 0
	err = ForEachLine([]byte("a\nb\n"), func([]byte) error {
		calls++
		return io.ErrUnexpectedEOF
	})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 1, calls)
}

func TestStatsThroughput(t *testing.T) {
	assert.Zero(t, Stats{Bytes: 10}.Throughput())
	s := Stats{Bytes: 4 << 20, Duration: 2e9}
	assert.InDelta(t, 2.0, s.Throughput(), 1e-9)
}
