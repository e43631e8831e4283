package main

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/danpilch/foldstack/pkg/collapse"
)

// sniffSize is how much input detection looks at.
const sniffSize = 64 << 10

func (a *app) newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [infile]",
		Short: "Print the profiler format of the input",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runDetect,
	}
}

func (a *app) runDetect(_ *cobra.Command, args []string) error {
	in, err := a.openInput(args)
	if err != nil {
		return a.fail(err)
	}
	defer in.Close()

	sample, err := io.ReadAll(io.LimitReader(in, sniffSize))
	if err != nil {
		return a.fail(errors.Wrap(err, "read input"))
	}
	name, err := a.detect(string(sample))
	if err != nil {
		return a.fail(err)
	}
	printf(a.stdout, "%s\n", name)
	return nil
}

func (a *app) detect(sample string) (string, error) {
	reg, err := a.newRegistry()
	if err != nil {
		return "", err
	}
	name, verdict := reg.Detect(sample)
	if verdict != collapse.Applicable {
		return "", errors.Errorf("no known format detected among %s (%s)", strings.Join(reg.Names(), ", "), verdict)
	}
	return name, nil
}
