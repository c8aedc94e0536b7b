package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/snot/packages/core/runner"
	"github.com/abdul-hamid-achik/snot/packages/metrics"
)

// TAPFormatter formats results in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer  io.Writer
	results []*runner.ResultRecord
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(rec *runner.ResultRecord) {
	f.results = append(f.results, rec)
}

func (f *TAPFormatter) FormatError(err error) {
	// Errors are reported on the results
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(_ *metrics.Summary, _ time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", len(f.results))

	for i, rec := range f.results {
		n := i + 1
		switch {
		case rec.Status != runner.Finished:
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", n, rec.Name, statusLabel(rec.Status))
		case rec.Outcome == runner.Skipped || rec.Outcome == runner.NotTested:
			reason := firstLine(rec.Reason, 200)
			if reason == "" {
				reason = rec.Outcome.String()
			}
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", n, rec.Name, reason)
		case rec.Outcome.Failed():
			fmt.Fprintf(f.writer, "not ok %d - %s\n", n, rec.Name)
			fmt.Fprintf(f.writer, "  ---\n")
			fmt.Fprintf(f.writer, "  outcome: %s\n", rec.Outcome)
			if rec.Reason != "" {
				fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(firstLine(rec.Reason, 200)))
			}
			if rec.Outcome == runner.BrokenTest {
				fmt.Fprintf(f.writer, "  severity: error\n")
			}
			fmt.Fprintf(f.writer, "  ...\n")
		default:
			fmt.Fprintf(f.writer, "ok %d - %s\n", n, rec.Name)
		}
	}

	fmt.Fprintln(f.writer)
	return nil
}

func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		return "\"" + s + "\""
	}
	return s
}
