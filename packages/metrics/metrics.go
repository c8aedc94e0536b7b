// Package metrics aggregates result durations and outcomes of a run.
package metrics

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/snot/packages/core/runner"
)

const (
	minMillis = 1
	maxMillis = 3_600_000 // one hour
)

// Metrics collects the durations of finished results, overall and per group.
type Metrics struct {
	mu sync.Mutex

	histogram  *hdrhistogram.Histogram
	outcomes   map[runner.Outcome]int64
	groups     map[string]*GroupMetrics
	total      int64
	unfinished int64
}

// GroupMetrics holds the metrics of one test run group.
type GroupMetrics struct {
	Key       string
	Total     int64
	Failed    int64
	Histogram *hdrhistogram.Histogram
}

func newHistogram() *hdrhistogram.Histogram {
	// 1ms to 1h, 3 significant digits
	return hdrhistogram.New(minMillis, maxMillis, 3)
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{
		histogram: newHistogram(),
		outcomes:  make(map[runner.Outcome]int64),
		groups:    make(map[string]*GroupMetrics),
	}
}

// FromRecords collects every record.
func FromRecords(records []*runner.ResultRecord) *Metrics {
	m := NewMetrics()
	for _, rec := range records {
		m.Record(rec)
	}
	return m
}

// Record adds one result. Results that have not finished are only counted.
func (m *Metrics) Record(rec *runner.ResultRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if rec.Status != runner.Finished {
		m.unfinished++
		return
	}
	m.outcomes[rec.Outcome]++

	ms := clamp(rec.DurationMillis)
	_ = m.histogram.RecordValue(ms)

	g, ok := m.groups[rec.GroupKey]
	if !ok {
		g = &GroupMetrics{Key: rec.GroupKey, Histogram: newHistogram()}
		m.groups[rec.GroupKey] = g
	}
	g.Total++
	if rec.Outcome.Failed() {
		g.Failed++
	}
	_ = g.Histogram.RecordValue(ms)
}

func clamp(ms int64) int64 {
	if ms < minMillis {
		return minMillis
	}
	if ms > maxMillis {
		return maxMillis
	}
	return ms
}

// Summary is the final view of a run.
type Summary struct {
	Total      int64
	Unfinished int64
	Outcomes   map[runner.Outcome]int64

	Passed   int64
	Failed   int64
	PassRate float64

	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration

	Groups []*GroupSummary
}

// GroupSummary is the summary of one group.
type GroupSummary struct {
	Key    string
	Total  int64
	Failed int64
	P50    time.Duration
	P95    time.Duration
	Max    time.Duration
}

func millis(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// GetSummary returns the summary of everything recorded so far.
func (m *Metrics) GetSummary() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Summary{
		Total:      m.total,
		Unfinished: m.unfinished,
		Outcomes:   make(map[runner.Outcome]int64, len(m.outcomes)),
	}
	for o, n := range m.outcomes {
		s.Outcomes[o] = n
		switch {
		case o.Passed():
			s.Passed += n
		case o.Failed():
			s.Failed += n
		}
	}
	if finished := m.total - m.unfinished; finished > 0 {
		s.PassRate = float64(s.Passed) / float64(finished)
	}

	if m.histogram.TotalCount() > 0 {
		s.P50 = millis(m.histogram.ValueAtQuantile(50))
		s.P95 = millis(m.histogram.ValueAtQuantile(95))
		s.P99 = millis(m.histogram.ValueAtQuantile(99))
		s.Min = millis(m.histogram.Min())
		s.Max = millis(m.histogram.Max())
		s.Mean = time.Duration(m.histogram.Mean() * float64(time.Millisecond))
	}

	for _, g := range m.groups {
		s.Groups = append(s.Groups, &GroupSummary{
			Key:    g.Key,
			Total:  g.Total,
			Failed: g.Failed,
			P50:    millis(g.Histogram.ValueAtQuantile(50)),
			P95:    millis(g.Histogram.ValueAtQuantile(95)),
			Max:    millis(g.Histogram.Max()),
		})
	}
	sort.Slice(s.Groups, func(i, j int) bool { return s.Groups[i].Key < s.Groups[j].Key })
	return s
}

// Thresholds fail a run whose results are too slow or fail too often.
type Thresholds struct {
	P95         time.Duration
	P99         time.Duration
	MaxDuration time.Duration
	MinPassRate float64
}

type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}

// EvaluateThresholds checks every non-zero threshold.
func (m *Metrics) EvaluateThresholds(t Thresholds) []ThresholdResult {
	summary := m.GetSummary()
	var results []ThresholdResult

	if t.P95 > 0 {
		results = append(results, ThresholdResult{
			Name:     "p95",
			Passed:   summary.P95 <= t.P95,
			Expected: "< " + t.P95.String(),
			Actual:   summary.P95.String(),
		})
	}
	if t.P99 > 0 {
		results = append(results, ThresholdResult{
			Name:     "p99",
			Passed:   summary.P99 <= t.P99,
			Expected: "< " + t.P99.String(),
			Actual:   summary.P99.String(),
		})
	}
	if t.MaxDuration > 0 {
		results = append(results, ThresholdResult{
			Name:     "max duration",
			Passed:   summary.Max <= t.MaxDuration,
			Expected: "< " + t.MaxDuration.String(),
			Actual:   summary.Max.String(),
		})
	}
	if t.MinPassRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "pass rate",
			Passed:   summary.PassRate >= t.MinPassRate,
			Expected: "> " + FormatPercent(t.MinPassRate),
			Actual:   FormatPercent(summary.PassRate),
		})
	}
	return results
}

// FormatPercent renders a 0..1 ratio as a percentage.
func FormatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a comma separated list such as
// "p95<2s,max<30s,passRate>90%".
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := thresholdPattern.FindStringSubmatch(part)
		if m == nil {
			return t, fmt.Errorf("invalid threshold format: %s", part)
		}
		name, op, value := strings.ToLower(m[1]), m[2], strings.TrimSpace(m[3])

		if name == "passrate" {
			if !strings.HasPrefix(op, ">") {
				return t, fmt.Errorf("passRate threshold must use > or >=")
			}
			f, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
			if err != nil {
				return t, fmt.Errorf("invalid percentage for passRate: %s", value)
			}
			t.MinPassRate = f / 100
			continue
		}

		var dst *time.Duration
		switch name {
		case "p95":
			dst = &t.P95
		case "p99":
			dst = &t.P99
		case "max":
			dst = &t.MaxDuration
		default:
			return t, fmt.Errorf("unknown threshold metric: %s", m[1])
		}
		if !strings.HasPrefix(op, "<") {
			return t, fmt.Errorf("%s threshold must use < or <=", name)
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return t, fmt.Errorf("invalid duration for %s: %s", name, value)
		}
		*dst = d
	}
	return t, nil
}
