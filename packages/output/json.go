package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/snot/packages/core/runner"
	"github.com/abdul-hamid-achik/snot/packages/metrics"
	"github.com/abdul-hamid-achik/snot/packages/slick"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Tests    []JSONTest  `json:"tests"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

// JSONSummary represents the run summary
type JSONSummary struct {
	Total      int64            `json:"total"`
	Passed     int64            `json:"passed"`
	Failed     int64            `json:"failed"`
	Unfinished int64            `json:"unfinished"`
	PassRate   float64          `json:"passRate"`
	Outcomes   map[string]int64 `json:"outcomes"`
	P50        float64          `json:"p50"`
	P95        float64          `json:"p95"`
	P99        float64          `json:"p99"`
	Max        float64          `json:"max"`
}

// JSONTest represents a single result
type JSONTest struct {
	Identity     string            `json:"identity"`
	Name         string            `json:"name"`
	ResultID     string            `json:"resultId,omitempty"`
	Status       string            `json:"status"`
	Outcome      string            `json:"outcome,omitempty"`
	Group        string            `json:"group,omitempty"`
	Duration     float64           `json:"duration"`
	Reason       string            `json:"reason,omitempty"`
	Requirements []string          `json:"requirements,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Files        []string          `json:"files,omitempty"`
	Links        []slick.Link      `json:"links,omitempty"`
}

// JSONFormatter formats results as JSON
type JSONFormatter struct {
	writer  io.Writer
	results []JSONTest
	now     func() time.Time
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONTest, 0),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(rec *runner.ResultRecord) {
	test := JSONTest{
		Identity:     rec.Identity,
		Name:         rec.Name,
		ResultID:     rec.ID,
		Status:       rec.Status.String(),
		Group:        rec.GroupKey,
		Duration:     float64(rec.DurationMillis),
		Reason:       rec.Reason,
		Requirements: rec.Requirements,
		Attributes:   rec.Attributes,
		Links:        rec.Links,
	}
	if rec.Status == runner.Finished {
		test.Outcome = rec.Outcome.String()
	}
	for _, file := range rec.Files {
		test.Files = append(test.Files, file.Filename)
	}
	f.results = append(f.results, test)
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are reported on the results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(summary *metrics.Summary, totalDuration time.Duration) error {
	outcomes := make(map[string]int64, len(summary.Outcomes))
	for o, n := range summary.Outcomes {
		outcomes[o.String()] = n
	}

	output := JSONOutput{
		Summary: JSONSummary{
			Total:      summary.Total,
			Passed:     summary.Passed,
			Failed:     summary.Failed,
			Unfinished: summary.Unfinished,
			PassRate:   summary.PassRate,
			Outcomes:   outcomes,
			P50:        ms(summary.P50),
			P95:        ms(summary.P95),
			P99:        ms(summary.P99),
			Max:        ms(summary.Max),
		},
		Tests:    f.results,
		Duration: ms(totalDuration),
		Time:     f.now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
