package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/foldstack/pkg/collapse"
)

const stacks = "CPU     ID                    FUNCTION:NAME\n" +
	"  0  64091                        :tick-60s\n" +
	"\n" +
	"              libc.so.1`__write+0x8\n" +
	"              app`flush+0x20\n" +
	"              app`main+0x11\n" +
	"                9\n" +
	"\n" +
	"              app`main+0x11\n" +
	"                4\n" +
	"\n" +
	"              libc.so.1`__write+0x8\n" +
	"              app`flush+0x24\n" +
	"              app`main+0x11\n" +
	"                1\n"

type result struct {
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func sortedLines(s string) []string {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	sort.Strings(lines)
	return lines
}

func TestCollapseStdin(t *testing.T) {
	want := []string{
		"app`main 4",
		"app`main;app`flush;libc.so.1`__write 10",
	}
	for _, threads := range []string{"1", "4"} {
		r := run(t, stacks, "--threads", threads, "--stacks-per-job", "1")
		require.NoError(t, r.err, r.stderr)
		assert.Equal(t, want, sortedLines(r.stdout), "threads %s", threads)
	}
}

func TestCollapseFileIncludeOffset(t *testing.T) {
	path := writeFile(t, "out.stacks", stacks)
	r := run(t, "", "--includeoffset", "-n", "1", path)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, []string{
		"app`main 4",
		"app`main+0x11;app`flush+0x20;libc.so.1`__write 9",
		"app`main+0x11;app`flush+0x24;libc.so.1`__write 1",
	}, sortedLines(r.stdout))
}

func TestCollapseTruncated(t *testing.T) {
	r := run(t, "header\n\n  app`main+0x1\n", "-n", "2")
	require.Error(t, r.err)
	assert.True(t, errors.Is(r.err, collapse.ErrTruncatedStack))
	assert.Empty(t, r.stdout)
	assert.Contains(t, r.stderr, "middle of a stack")
}

func TestCollapseStatsAndMetrics(t *testing.T) {
	metricsPath := filepath.Join(t.TempDir(), "foldstack.prom")
	r := run(t, stacks, "--stats", "--metrics-textfile", metricsPath)
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stderr, "Collapse Report")

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "foldstack_stacks_total 3")
	assert.Contains(t, string(data), "foldstack_samples_total 14")
}

func TestCollapseWithPprof(t *testing.T) {
	r := run(t, stacks, "--pprof", "127.0.0.1:0")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "app`main 4\n")
}

func TestCollapseRejectsBadFlags(t *testing.T) {
	r := run(t, stacks, "--stacks-per-job", "0")
	assert.ErrorContains(t, r.err, "stacks per job must be at least 1")

	r = run(t, stacks, "--threads", "-1")
	assert.ErrorContains(t, r.err, "must not be negative")

	r = run(t, stacks, "--verbose", "--quiet")
	assert.ErrorContains(t, r.err, "mutually exclusive")
}

func TestEnvironmentDefaults(t *testing.T) {
	t.Setenv("FOLDSTACK_INCLUDE_OFFSET", "true")
	r := run(t, stacks)
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "app`main+0x11;app`flush+0x20;libc.so.1`__write 9\n")

	t.Setenv("FOLDSTACK_STACKS_PER_JOB", "0")
	r = run(t, stacks)
	assert.ErrorContains(t, r.err, "FOLDSTACK_STACKS_PER_JOB")
}

func TestDetect(t *testing.T) {
	r := run(t, stacks, "detect")
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, "dtrace\n", r.stdout)

	r = run(t, "hello\n\nworld\n", "detect")
	assert.ErrorContains(t, r.err, "not applicable")
	assert.ErrorContains(t, r.err, "among dtrace")

	r = run(t, "header only\n", "detect")
	assert.ErrorContains(t, r.err, "undetermined")
}

func TestBench(t *testing.T) {
	path := writeFile(t, "out.stacks", stacks)
	r := run(t, "", "bench", path, "--threads", "1,2", "--stacks-per-job", "1", "--iterations", "2", "--warmup", "0")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "Collapse Benchmark Results")
}

func TestRecord(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	fake := writeFile(t, "dtrace", "#!/bin/sh\ncat <<'EOF'\n"+stacks+"EOF\n")
	require.NoError(t, os.Chmod(fake, 0o755))

	r := run(t, "", "record", "--dtrace", fake, "--duration", "1s", "--pid", "42")
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "app`main;app`flush;libc.so.1`__write 10\n")

	r = run(t, "", "record", "--dtrace", fake, "--duration", "0s")
	assert.ErrorContains(t, r.err, "duration must be greater than 0")
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	a := &app{stdout: io.Discard, stderr: io.Discard, logger: logger}
	a.cfg.StacksPerJob = collapse.DefaultStacksPerJob
	a.cfg.Threads = 2
	return a
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestMCPCollapse(t *testing.T) {
	a := newTestApp(t)
	path := writeFile(t, "out.stacks", stacks)

	text, isErr := callTool(t, a.handleCollapse, map[string]any{"file_path": path, "top_n": 1})
	require.False(t, isErr, text)
	assert.Contains(t, text, "Unique stacks: 2")
	assert.Contains(t, text, "app`main;app`flush;libc.so.1`__write 10\n")
	assert.Contains(t, text, "... 1 more")
	assert.NotContains(t, text, "app`main 4")

	text, isErr = callTool(t, a.handleCollapse, map[string]any{"file_path": path, "include_offset": true})
	require.False(t, isErr, text)
	lines := strings.Split(text, "\n")
	idx := func(s string) int {
		for i, l := range lines {
			if l == s {
				return i
			}
		}
		return -1
	}
	// ordered by count, then by stack
	assert.Less(t, idx("app`main+0x11;app`flush+0x20;libc.so.1`__write 9"), idx("app`main 4"))
	assert.Less(t, idx("app`main 4"), idx("app`main+0x11;app`flush+0x24;libc.so.1`__write 1"))

	text, isErr = callTool(t, a.handleCollapse, map[string]any{})
	assert.True(t, isErr, text)

	text, isErr = callTool(t, a.handleCollapse, map[string]any{"file_path": filepath.Join(t.TempDir(), "missing")})
	assert.True(t, isErr, text)
}

func TestMCPDetect(t *testing.T) {
	a := newTestApp(t)
	path := writeFile(t, "out.stacks", stacks)
	text, isErr := callTool(t, a.handleDetect, map[string]any{"file_path": path})
	require.False(t, isErr)
	assert.Equal(t, "dtrace", text)

	other := writeFile(t, "other.txt", "hello\n\nworld\n")
	text, isErr = callTool(t, a.handleDetect, map[string]any{"file_path": other})
	require.False(t, isErr)
	assert.Contains(t, text, "no known format")
}

func TestParseFolded(t *testing.T) {
	got := parseFolded("a;b 3\nc 10\n\nbroken\n")
	assert.Equal(t, []foldedLine{{"a;b", 3}, {"c", 10}}, got)
}
