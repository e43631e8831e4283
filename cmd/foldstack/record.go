package main

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/danpilch/foldstack/pkg/capture"
)

func (a *app) newRecordCmd() *cobra.Command {
	opts := capture.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Sample user stacks with dtrace and print them folded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runRecord(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.DurationVar(&opts.Duration, "duration", opts.Duration, "how long to sample")
	f.IntVar(&opts.Frequency, "frequency", opts.Frequency, "samples per second")
	f.IntVar(&opts.PID, "pid", 0, "process to sample, 0 for all")
	f.IntVar(&opts.Frames, "frames", opts.Frames, "maximum user stack depth")
	f.StringVar(&opts.Binary, "dtrace", opts.Binary, "dtrace executable")
	a.addRunFlags(cmd)
	return cmd
}

func (a *app) runRecord(cmd *cobra.Command, opts capture.Options) error {
	if opts.Duration <= 0 {
		return a.fail(errors.New("duration must be greater than 0"))
	}
	folder, err := a.newFolder(a.cfg.EffectiveThreads(), a.cfg.StacksPerJob)
	if err != nil {
		return a.fail(err)
	}
	return a.collapseRun(formatDtrace, folder, func(w io.Writer) error {
		res, err := capture.Run(cmd.Context(), opts, folder, w, a.logger)
		if err != nil {
			return err
		}
		a.logger.WithField("duration", res.Duration).Debug("Capture finished")
		return nil
	})
}
