package gotest

import (
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/snot/packages/core/runner"
)

type outputLine struct {
	text   string
	millis int64
}

type testState struct {
	identity string
	active   *runner.Active
	started  bool
	done     bool

	lines    []outputLine
	panicked bool

	notTested     bool
	skipReason    string
	passedOnRetry bool
}

type packageState struct {
	output      []string
	ranTests    bool
	failed      bool
	failedBuild string
}

var frameworkPrefixes = []string{
	"=== RUN", "=== PAUSE", "=== CONT", "=== NAME",
	"--- PASS", "--- FAIL", "--- SKIP",
}

// isFrameworkLine reports lines go test prints around a test's own output.
func isFrameworkLine(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	for _, p := range frameworkPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// split separates t.Log output, which go test indents, from what the test
// wrote to stdout.
func (s *testState) split() (logs, stdout []string) {
	for _, l := range s.lines {
		if strings.HasPrefix(l.text, " ") || strings.HasPrefix(l.text, "\t") {
			logs = append(logs, l.text)
		} else {
			stdout = append(stdout, l.text)
		}
	}
	return dedent(logs), stdout
}

func (s *testState) texts() []string {
	out := make([]string, len(s.lines))
	for i, l := range s.lines {
		out[i] = l.text
	}
	return out
}

// failure describes a failed test. A panic is reported with the panic value
// as message and the goroutine dump as trace.
func (s *testState) failure() *runner.FailureInfo {
	if s.panicked {
		all := s.texts()
		for i, line := range all {
			if !strings.HasPrefix(line, "panic: ") {
				continue
			}
			return &runner.FailureInfo{
				Kind:    "panic",
				Message: strings.TrimPrefix(line, "panic: "),
				Trace:   strings.Join(all[i+1:], "\n"),
				Output:  strings.Join(all[:i], "\n"),
			}
		}
	}

	logs, stdout := s.split()
	f := &runner.FailureInfo{
		Message: strings.TrimSpace(strings.Join(logs, "\n")),
		Output:  strings.Join(stdout, "\n"),
	}
	if f.Message == "" {
		f.Message = "test failed"
	}
	return f
}

var locationPrefix = regexp.MustCompile(`^\S+\.go:\d+: `)

// skipped describes a skipped test: the not-tested reason if given, else the
// last message logged, which is where t.Skip puts its arguments.
func (s *testState) skipped() *runner.FailureInfo {
	if s.skipReason != "" {
		return &runner.FailureInfo{Message: s.skipReason}
	}
	logs, _ := s.split()
	if len(logs) == 0 {
		return nil
	}
	msg := locationPrefix.ReplaceAllString(strings.TrimSpace(logs[len(logs)-1]), "")
	return &runner.FailureInfo{Message: msg}
}

func (s *testState) incomplete() *runner.FailureInfo {
	return &runner.FailureInfo{
		Kind:    "incomplete",
		Message: "test did not report a result",
		Output:  strings.Join(s.texts(), "\n"),
	}
}

func (p *packageState) failure() *runner.FailureInfo {
	msg := "package failed before running tests"
	if p.failedBuild != "" {
		msg = "build failed: " + p.failedBuild
	}
	return &runner.FailureInfo{
		Kind:    "build",
		Message: msg,
		Output:  strings.Join(p.output, "\n"),
	}
}

// dedent removes the indentation common to all lines.
func dedent(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	margin := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if margin < 0 || n < margin {
			margin = n
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if len(l) >= margin && margin > 0 {
			out[i] = l[margin:]
		} else {
			out[i] = strings.TrimLeft(l, " \t")
		}
	}
	return out
}
