package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/danpilch/foldstack/pkg/collapse/dtrace"
	"github.com/danpilch/foldstack/pkg/input"
)

const defaultTopN = 20

func (a *app) newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the collapser as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := server.ServeStdio(a.newMCPServer()); err != nil {
				return a.fail(errors.Wrap(err, "mcp server"))
			}
			return nil
		},
	}
}

func (a *app) newMCPServer() *server.MCPServer {
	s := server.NewMCPServer(
		"foldstack",
		version,
		server.WithLogging(),
	)

	collapseTool := mcp.NewTool("collapse_dtrace",
		mcp.WithDescription("Fold a DTrace ustack() aggregation file and return the hottest stacks, root frame first, with their sample counts"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path to the dtrace output, optionally gzip or lz4 compressed"),
		),
		mcp.WithBoolean("demangle",
			mcp.Description("Demangle C++ and Rust function names (default: false)"),
		),
		mcp.WithBoolean("include_offset",
			mcp.Description("Keep function offsets on non-leaf frames (default: false)"),
		),
		mcp.WithNumber("top_n",
			mcp.Description(fmt.Sprintf("Number of stacks to return (default: %d)", defaultTopN)),
		),
	)
	s.AddTool(collapseTool, a.handleCollapse)

	detectTool := mcp.NewTool("detect_format",
		mcp.WithDescription("Report whether a file looks like DTrace ustack() output"),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path to the profiler output"),
		),
	)
	s.AddTool(detectTool, a.handleDetect)

	return s
}

type foldedLine struct {
	stack string
	count uint64
}

func (a *app) handleCollapse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	topN := request.GetInt("top_n", defaultTopN)
	if topN < 1 {
		return mcp.NewToolResultError("top_n must be at least 1"), nil
	}

	folder := dtrace.NewFolder(dtrace.Options{
		Demangle:      request.GetBool("demangle", a.cfg.Demangle),
		IncludeOffset: request.GetBool("include_offset", a.cfg.IncludeOffset),
		Threads:       a.cfg.EffectiveThreads(),
	}, a.logger)
	if err := folder.SetStacksPerJob(a.cfg.StacksPerJob); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	in, err := input.Open(filePath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer in.Close()

	var out bytes.Buffer
	if err := folder.Collapse(ctx, in, &out); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to collapse %s: %v", filePath, err)), nil
	}

	lines := parseFolded(out.String())
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].count != lines[j].count {
			return lines[i].count > lines[j].count
		}
		return lines[i].stack < lines[j].stack
	})

	s := folder.Stats()
	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s\nStacks: %d\nUnique stacks: %d\nSamples: %d\n\n", filePath, s.Stacks, s.Unique, s.Samples)
	if len(lines) == 0 {
		sb.WriteString("No stacks found.\n")
	}
	for i, l := range lines {
		if i == topN {
			fmt.Fprintf(&sb, "... %d more\n", len(lines)-topN)
			break
		}
		fmt.Fprintf(&sb, "%s %d\n", l.stack, l.count)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (a *app) handleDetect(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in, err := input.Open(filePath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer in.Close()

	sample, err := io.ReadAll(io.LimitReader(in, sniffSize))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := a.detect(string(sample))
	if err != nil {
		return mcp.NewToolResultText(err.Error()), nil
	}
	return mcp.NewToolResultText(name), nil
}

// parseFolded splits folded output into stacks and counts.
func parseFolded(s string) []foldedLine {
	var lines []foldedLine
	for _, line := range strings.Split(s, "\n") {
		i := strings.LastIndexByte(line, ' ')
		if i < 0 {
			continue
		}
		n, err := strconv.ParseUint(line[i+1:], 10, 64)
		if err != nil {
			continue
		}
		lines = append(lines, foldedLine{stack: line[:i], count: n})
	}
	return lines
}
