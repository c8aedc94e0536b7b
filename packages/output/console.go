package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/snot/packages/core/runner"
	"github.com/abdul-hamid-achik/snot/packages/metrics"
)

// firstLine returns the first line of s, truncated to maxLen.
func firstLine(s string, maxLen int) string {
	line, _, _ := strings.Cut(s, "\n")
	if len(line) > maxLen {
		return line[:maxLen] + "..."
	}
	return line
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func statusLabel(s runner.Status) string {
	return strings.ReplaceAll(strings.ToLower(s.String()), "_", " ")
}

func symbol(rec *runner.ResultRecord) string {
	if rec.Status != runner.Finished {
		return cyan("○")
	}
	switch rec.Outcome {
	case runner.Pass:
		return green("✓")
	case runner.PassedOnRetry:
		return yellow("↻")
	case runner.Fail:
		return red("✗")
	case runner.BrokenTest:
		return red("x")
	default:
		return yellow("-")
	}
}

func (f *ConsoleFormatter) FormatResult(rec *runner.ResultRecord) {
	if rec.Status != runner.Finished {
		fmt.Fprintf(f.writer, "  %s %s %s\n", symbol(rec), rec.Name, cyan("("+statusLabel(rec.Status)+")"))
		return
	}

	fmt.Fprintf(f.writer, "  %s %s %s", symbol(rec), rec.Name, cyan(fmt.Sprintf("(%dms)", rec.DurationMillis)))
	switch rec.Outcome {
	case runner.Skipped, runner.NotTested:
		if rec.Reason != "" {
			fmt.Fprintf(f.writer, " %s", yellow("("+firstLine(rec.Reason, 80)+")"))
		}
	case runner.PassedOnRetry:
		fmt.Fprintf(f.writer, " %s", yellow("(passed on retry)"))
	}
	fmt.Fprintf(f.writer, "\n")

	if rec.Outcome.Failed() && rec.Reason != "" {
		lines := strings.Split(rec.Reason, "\n")
		if !f.verbose && len(lines) > 5 {
			lines = append(lines[:5], fmt.Sprintf("... %d more lines", len(lines)-5))
		}
		for i, line := range lines {
			if i == 0 {
				fmt.Fprintf(f.writer, "    %s %s\n", red("→"), line)
				continue
			}
			fmt.Fprintf(f.writer, "      %s\n", line)
		}
	}

	if f.verbose {
		fmt.Fprintf(f.writer, "    Result: %s\n", rec.ID)
		if rec.GroupKey != "" {
			fmt.Fprintf(f.writer, "    Group: %s\n", rec.GroupKey)
		}
		if len(rec.Requirements) > 0 {
			fmt.Fprintf(f.writer, "    Requirements: %s\n", strings.Join(rec.Requirements, ", "))
		}
		for _, file := range rec.Files {
			fmt.Fprintf(f.writer, "    File: %s\n", file.Filename)
		}
		for _, link := range rec.Links {
			fmt.Fprintf(f.writer, "    Link: %s %s\n", link.Name, link.URL)
		}
	}
}

// Flush prints the totals of the run.
func (f *ConsoleFormatter) Flush(summary *metrics.Summary, totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Tests: ")
	if summary.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", summary.Passed)))
	}
	if summary.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", summary.Failed)))
	}
	if n := summary.Outcomes[runner.Skipped] + summary.Outcomes[runner.NotTested]; n > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", n)))
	}
	if summary.Unfinished > 0 {
		fmt.Fprintf(f.writer, "%s, ", cyan(fmt.Sprintf("%d not run", summary.Unfinished)))
	}
	fmt.Fprintf(f.writer, "%d total\n", summary.Total)

	if summary.Total > summary.Unfinished {
		fmt.Fprintf(f.writer, "Durations: p50 %s, p95 %s, p99 %s, max %s\n",
			summary.P50, summary.P95, summary.P99, summary.Max)
	}
	if f.verbose {
		for _, g := range summary.Groups {
			key := g.Key
			if key == "" {
				key = "(default)"
			}
			fmt.Fprintf(f.writer, "  %s: %d results, %d failed, p95 %s\n", key, g.Total, g.Failed, g.P95)
		}
	}
	fmt.Fprintf(f.writer, "Time:  %dms\n", totalDuration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
	return nil
}

func (f *ConsoleFormatter) FormatError(err error) {
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	fmt.Fprintf(f.writer, "%s %s\n\n", bold("snot"), version)
}
