package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/danpilch/foldstack/internal/config"
	"github.com/danpilch/foldstack/pkg/collapse"
	"github.com/danpilch/foldstack/pkg/collapse/dtrace"
	"github.com/danpilch/foldstack/pkg/debug"
	"github.com/danpilch/foldstack/pkg/input"
	"github.com/danpilch/foldstack/pkg/metrics"
)

const formatDtrace = "dtrace"

var examples = []string{
	"  Fold a saved aggregation:        $ foldstack out.stacks > out.folded",
	"  Fold from a pipe with 8 workers: $ cat out.stacks | foldstack -n 8",
	"  Demangle C++ and Rust symbols:   $ foldstack --demangle out.stacks.gz",
	"  Sample a process for 30 seconds: $ sudo foldstack record --pid 4242 --duration 30s",
}

// app holds the state shared by every subcommand. Flags write straight into
// cfg, so cfg holds the environment defaults overridden by the command line.
type app struct {
	cfg    config.Config
	cfgErr error
	logger *logrus.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	stats           bool
	metricsTextfile string
	pprofAddr       string
	verbose         bool
	quiet           bool
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		logger: logrus.New(),
	}
	a.logger.SetOutput(stderr)
	a.cfg, a.cfgErr = config.Load()
	if a.cfgErr != nil {
		a.cfg = config.Config{StacksPerJob: collapse.DefaultStacksPerJob, LogLevel: "warn"}
	}

	root := &cobra.Command{
		Use:   "foldstack [flags] [infile]",
		Short: "Collapse DTrace stacks into the folded format",
		Long: "foldstack reads the output of a DTrace ustack() aggregation and writes one line per " +
			"unique stack, frames joined root first with ';' and followed by the sample count.\n\n" +
			"Environment:\n" + config.Usage(),
		Example:           strings.Join(examples, "\n"),
		Version:           version,
		Args:              cobra.MaximumNArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initialize,
		RunE:              a.runCollapse,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.BoolVar(&a.cfg.Demangle, "demangle", a.cfg.Demangle, "demangle function names")
	pf.BoolVar(&a.cfg.IncludeOffset, "includeoffset", a.cfg.IncludeOffset, "include function offset (except leafs)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "only log errors")

	a.addRunFlags(root)

	root.AddCommand(
		a.newDetectCmd(),
		a.newRecordCmd(),
		a.newBenchCmd(),
		a.newMCPCmd(),
	)
	return root
}

// addRunFlags registers the flags of commands that perform one collapse run.
func (a *app) addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVarP(&a.cfg.Threads, "threads", "n", a.cfg.Threads, "number of worker threads, 0 for one per CPU")
	f.IntVar(&a.cfg.StacksPerJob, "stacks-per-job", a.cfg.StacksPerJob, "stacks handed to a worker at once")
	f.BoolVar(&a.stats, "stats", false, "print a run summary to stderr")
	f.StringVar(&a.metricsTextfile, "metrics-textfile", "", "write prometheus metrics to this file")
	f.StringVar(&a.pprofAddr, "pprof", "", "serve net/http/pprof on this address while running")
}

func (a *app) initialize(cmd *cobra.Command, _ []string) error {
	if a.cfgErr != nil {
		return a.fail(a.cfgErr)
	}
	level, err := logrus.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		return a.fail(err)
	}
	switch {
	case a.verbose && a.quiet:
		return a.fail(errors.New("--verbose and --quiet are mutually exclusive"))
	case a.verbose:
		level = logrus.DebugLevel
	case a.quiet:
		level = logrus.ErrorLevel
	}
	a.logger.SetLevel(level)
	return nil
}

// fail reports err on stderr and returns it so cobra exits non-zero.
func (a *app) fail(err error) error {
	a.logger.Error(err)
	return err
}

func (a *app) newFolder(threads, stacksPerJob int) (*dtrace.Folder, error) {
	if threads < 0 {
		return nil, errors.Errorf("threads must not be negative, got %d", threads)
	}
	f := dtrace.NewFolder(dtrace.Options{
		Demangle:      a.cfg.Demangle,
		IncludeOffset: a.cfg.IncludeOffset,
		Threads:       threads,
	}, a.logger)
	if err := f.SetStacksPerJob(stacksPerJob); err != nil {
		return nil, err
	}
	return f, nil
}

func (a *app) newRegistry() (*collapse.Registry, error) {
	f, err := a.newFolder(a.cfg.EffectiveThreads(), collapse.DefaultStacksPerJob)
	if err != nil {
		return nil, err
	}
	r := collapse.NewRegistry()
	r.Register(formatDtrace, f)
	return r, nil
}

// openInput opens path, refusing to block on an interactive terminal.
func (a *app) openInput(args []string) (*input.File, error) {
	path := input.Stdin
	if len(args) > 0 {
		path = args[0]
	}
	if path != input.Stdin {
		return input.Open(path)
	}
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return nil, errors.New("refusing to read stacks from a terminal, pass a file or pipe input")
	}
	return input.Wrap(a.stdin)
}

func (a *app) runCollapse(cmd *cobra.Command, args []string) error {
	if a.cfg.Threads < 0 {
		return a.fail(errors.Errorf("threads must not be negative, got %d", a.cfg.Threads))
	}
	in, err := a.openInput(args)
	if err != nil {
		return a.fail(err)
	}
	defer in.Close()

	folder, err := a.newFolder(a.cfg.EffectiveThreads(), a.cfg.StacksPerJob)
	if err != nil {
		return a.fail(err)
	}
	return a.collapseRun(formatDtrace, folder, func(w io.Writer) error {
		return folder.Collapse(cmd.Context(), in, w)
	})
}

// collapseRun runs fn against buffered stdout and handles the reporting
// flags around it.
func (a *app) collapseRun(format string, folder *dtrace.Folder, fn func(w io.Writer) error) error {
	if a.pprofAddr != "" {
		srv, err := debug.StartPprofServer(a.pprofAddr, a.logger)
		if err != nil {
			return a.fail(err)
		}
		defer srv.Stop()
	}

	m := metrics.New()
	out := bufio.NewWriter(a.stdout)
	err := fn(out)
	if err == nil {
		err = errors.Wrap(out.Flush(), "write output")
	}
	if err != nil {
		m.ObserveError(format)
		a.writeMetrics(m)
		return a.fail(err)
	}

	s := folder.Stats()
	m.Observe(format, s)
	a.writeMetrics(m)
	if a.stats {
		debug.RenderStats(a.stderr, format, s)
	}
	return nil
}

func (a *app) writeMetrics(m *metrics.Collapse) {
	if a.metricsTextfile == "" {
		return
	}
	if err := m.WriteTextfile(a.metricsTextfile); err != nil {
		a.logger.WithError(err).Warn("Failed to write metrics")
	}
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
