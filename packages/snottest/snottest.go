// Package snottest lets tests run by the snot driver talk to it. Each helper
// logs a directive line through the test's own log, which the driver reads
// back from the go test -json stream and attributes to that test.
//
//	func TestCheckout(t *testing.T) {
//		snottest.AttachFile(t, "testdata/receipt.pdf")
//		snottest.AttachLink(t, "Order", "https://shop.example.com/orders/42")
//		...
//	}
//
// Outside the driver the directives are ordinary log lines.
package snottest

import (
	"path/filepath"
	"strings"
	"testing"
)

// Prefix starts every directive.
const Prefix = "snot::"

const separator = "::"

// Directive kinds.
const (
	KindAttachFile    = "attach-file"
	KindAttachLink    = "attach-link"
	KindGroupFile     = "group-file"
	KindGroupLink     = "group-link"
	KindNotTested     = "not-tested"
	KindPassedOnRetry = "passed-on-retry"
)

// Directive is one parsed directive line.
type Directive struct {
	Kind string
	Args []string
}

// Arg returns the i-th argument or "".
func (d Directive) Arg(i int) string {
	if i < len(d.Args) {
		return d.Args[i]
	}
	return ""
}

// String renders d as the line the driver recognizes.
func (d Directive) String() string {
	return Prefix + strings.Join(append([]string{d.Kind}, d.Args...), separator)
}

// ParseDirective finds a directive in one line of test output. The line may
// carry the file:line prefix and indentation testing adds to log output.
func ParseDirective(line string) (Directive, bool) {
	i := strings.Index(line, Prefix)
	if i < 0 {
		return Directive{}, false
	}
	rest := strings.TrimRight(line[i+len(Prefix):], "\r\n")
	parts := strings.Split(rest, separator)
	if parts[0] == "" {
		return Directive{}, false
	}
	d := Directive{Kind: parts[0]}
	if len(parts) > 1 {
		d.Args = parts[1:]
	}
	// URLs contain "::" only in IPv6 literals; rejoin anything past the expected arity.
	switch d.Kind {
	case KindAttachFile, KindGroupFile, KindNotTested:
		if len(d.Args) > 1 {
			d.Args = []string{strings.Join(d.Args, separator)}
		}
	case KindAttachLink, KindGroupLink:
		if len(d.Args) > 2 {
			d.Args = []string{d.Args[0], strings.Join(d.Args[1:], separator)}
		}
	}
	return d, true
}

func emit(t testing.TB, kind string, args ...string) {
	t.Helper()
	t.Log(Directive{Kind: kind, Args: args}.String())
}

func absolute(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// AttachFile uploads path to the result of the running test. Relative paths
// are resolved against the package directory.
func AttachFile(t testing.TB, path string) {
	t.Helper()
	emit(t, KindAttachFile, absolute(path))
}

// AttachLink adds a named link to the result of the running test.
func AttachLink(t testing.TB, name, url string) {
	t.Helper()
	emit(t, KindAttachLink, name, url)
}

// AttachFileToGroup uploads path to the test run holding the running test.
func AttachFileToGroup(t testing.TB, path string) {
	t.Helper()
	emit(t, KindGroupFile, absolute(path))
}

// AttachLinkToGroup adds a named link to the test run holding the running test.
func AttachLinkToGroup(t testing.TB, name, url string) {
	t.Helper()
	emit(t, KindGroupLink, name, url)
}

// NotTested skips the test and records it as not tested rather than skipped.
func NotTested(t testing.TB, reason string) {
	t.Helper()
	emit(t, KindNotTested, reason)
	t.Skip(reason)
}

// PassedOnRetry records a passing test as having passed only after retrying
// internally.
func PassedOnRetry(t testing.TB) {
	t.Helper()
	emit(t, KindPassedOnRetry)
}
