package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/foldstack/pkg/collapse"
)

func TestObserve(t *testing.T) {
	c := New()
	c.Observe("dtrace", collapse.Stats{
		Bytes:    2048,
		Stacks:   10,
		Samples:  40,
		Chunks:   3,
		Unique:   4,
		Duration: 20 * time.Millisecond,
	})
	c.Observe("dtrace", collapse.Stats{Bytes: 1, Stacks: 1, Samples: 1, Unique: 1})
	c.ObserveError("dtrace")

	assert.Equal(t, float64(2049), testutil.ToFloat64(c.bytes))
	assert.Equal(t, float64(11), testutil.ToFloat64(c.stacks))
	assert.Equal(t, float64(41), testutil.ToFloat64(c.samples))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.chunks))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.unique))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.runs.WithLabelValues("dtrace", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.runs.WithLabelValues("dtrace", "error")))
}

func TestWriteTextfile(t *testing.T) {
	c := New()
	c.Observe("dtrace", collapse.Stats{Stacks: 5})

	path := filepath.Join(t.TempDir(), "foldstack.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "foldstack_stacks_total 5"))
}
