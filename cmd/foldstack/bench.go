package main

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/danpilch/foldstack/pkg/benchmark"
	"github.com/danpilch/foldstack/pkg/collapse"
)

func (a *app) newBenchCmd() *cobra.Command {
	opts := benchmark.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "bench FILE",
		Short: "Measure collapse throughput across thread counts and chunk sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBench(cmd, args, opts)
		},
	}
	f := cmd.Flags()
	f.IntSliceVar(&opts.Threads, "threads", opts.Threads, "thread counts to try")
	f.IntSliceVar(&opts.StacksPerJob, "stacks-per-job", opts.StacksPerJob, "stacks per job to try")
	f.IntVar(&opts.Iterations, "iterations", opts.Iterations, "timed runs per configuration")
	f.IntVar(&opts.Warmup, "warmup", opts.Warmup, "untimed runs per configuration")
	return cmd
}

func (a *app) runBench(cmd *cobra.Command, args []string, opts benchmark.Options) error {
	in, err := a.openInput(args)
	if err != nil {
		return a.fail(err)
	}
	data, err := io.ReadAll(in)
	in.Close()
	if err != nil {
		return a.fail(errors.Wrap(err, "read input"))
	}

	factory := func(threads, perJob int) (collapse.Collapser, error) {
		f, err := a.newFolder(threads, perJob)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	results, err := benchmark.Run(cmd.Context(), data, factory, opts)
	if err != nil {
		return a.fail(err)
	}
	benchmark.RenderResults(a.stdout, len(data), results, benchmark.MeasureOverhead())
	return nil
}
