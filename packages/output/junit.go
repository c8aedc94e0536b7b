package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/snot/packages/core/runner"
	"github.com/abdul-hamid-achik/snot/packages/metrics"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite holds the results of one test run group
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents a single result
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents a broken test
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitSkipped represents a skipped or unfinished test
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats results as JUnit XML, one suite per group
type JUnitFormatter struct {
	writer io.Writer
	suites map[string]*JUnitTestSuite
	order  []string
	now    func() time.Time
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer: os.Stdout,
		suites: make(map[string]*JUnitTestSuite),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) suite(key string) *JUnitTestSuite {
	if s, ok := f.suites[key]; ok {
		return s
	}
	name := key
	if name == "" {
		name = "snot"
	}
	s := &JUnitTestSuite{Name: name}
	f.suites[key] = s
	f.order = append(f.order, key)
	return s
}

// className is the source file of the result, taken from its automation key.
func className(rec *runner.ResultRecord) string {
	if file, _, ok := strings.Cut(rec.AutomationKey, ":"); ok {
		return file
	}
	return rec.Identity
}

func (f *JUnitFormatter) FormatResult(rec *runner.ResultRecord) {
	suite := f.suite(rec.GroupKey)
	tc := JUnitTestCase{
		Name:      rec.Name,
		ClassName: className(rec),
		Time:      rec.Duration().Seconds(),
	}

	switch {
	case rec.Status != runner.Finished:
		suite.Skipped++
		tc.Skipped = &JUnitSkipped{Message: "not run: " + statusLabel(rec.Status)}
	case rec.Outcome == runner.Skipped || rec.Outcome == runner.NotTested:
		suite.Skipped++
		tc.Skipped = &JUnitSkipped{Message: rec.Reason}
	case rec.Outcome == runner.BrokenTest:
		suite.Errors++
		tc.Error = &JUnitError{
			Message: firstLine(rec.Reason, 200),
			Type:    rec.Outcome.String(),
			Content: rec.Reason,
		}
	case rec.Outcome == runner.Fail:
		suite.Failures++
		tc.Failure = &JUnitFailure{
			Message: firstLine(rec.Reason, 200),
			Type:    rec.Outcome.String(),
			Content: rec.Reason,
		}
	}

	suite.Tests++
	suite.Time += tc.Time
	suite.TestCases = append(suite.TestCases, tc)
}

func (f *JUnitFormatter) FormatError(err error) {
	// Errors are reported on the results
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit XML
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush(_ *metrics.Summary, totalDuration time.Duration) error {
	suites := JUnitTestSuites{
		Name:      "snot",
		Time:      totalDuration.Seconds(),
		Timestamp: f.now().Format(time.RFC3339),
	}
	for _, key := range f.order {
		s := f.suites[key]
		suites.Tests += s.Tests
		suites.Failures += s.Failures
		suites.Errors += s.Errors
		suites.Skipped += s.Skipped
		suites.TestSuites = append(suites.TestSuites, *s)
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	return encoder.Encode(suites)
}
