package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/snot/packages/core/runner"
	runmetrics "github.com/abdul-hamid-achik/snot/packages/metrics"
)

func sampleRun() ([]*runner.ResultRecord, *runmetrics.Summary) {
	records := []*runner.ResultRecord{
		{Status: runner.Finished, Outcome: runner.Pass, DurationMillis: 100},
		{Status: runner.Finished, Outcome: runner.Pass, DurationMillis: 300},
		{Status: runner.Finished, Outcome: runner.Fail, DurationMillis: 50},
		{Status: runner.Scheduled},
	}
	return records, runmetrics.FromRecords(records).GetSummary()
}

func newTestExporter() *Exporter {
	return NewExporter("Checkout", WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
}

func TestExporter_Observe(t *testing.T) {
	e := newTestExporter()
	records, summary := sampleRun()
	e.Observe(records, summary, 2*time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(e.results.WithLabelValues("Checkout", "PASS")))
	assert.Equal(t, float64(1), testutil.ToFloat64(e.results.WithLabelValues("Checkout", "FAIL")))
	assert.Equal(t, float64(1), testutil.ToFloat64(e.unfinished.WithLabelValues("Checkout")))
	assert.Equal(t, float64(2), testutil.ToFloat64(e.runDuration.WithLabelValues("Checkout")))
	assert.Equal(t, float64(1700000000), testutil.ToFloat64(e.lastRun.WithLabelValues("Checkout")))
	assert.Equal(t, float64(1), testutil.ToFloat64(e.runsTotal.WithLabelValues("Checkout", "failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(e.testDuration))
}

func TestExporter_ObserveReplacesOutcomes(t *testing.T) {
	e := newTestExporter()
	records, summary := sampleRun()
	e.Observe(records, summary, time.Second)

	passing := []*runner.ResultRecord{{Status: runner.Finished, Outcome: runner.Pass, DurationMillis: 10}}
	e.Observe(passing, runmetrics.FromRecords(passing).GetSummary(), time.Second)

	assert.Equal(t, 1, testutil.CollectAndCount(e.results))
	assert.Equal(t, float64(1), testutil.ToFloat64(e.runsTotal.WithLabelValues("Checkout", "passed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(e.runsTotal.WithLabelValues("Checkout", "failed")))
}

func TestExporter_WriteTextfile(t *testing.T) {
	e := newTestExporter()
	records, summary := sampleRun()
	e.Observe(records, summary, time.Second)

	path := filepath.Join(t.TempDir(), "snot.prom")
	require.NoError(t, e.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `snot_results{outcome="PASS",project="Checkout"} 2`)
	assert.Contains(t, string(data), "# TYPE snot_test_duration_seconds histogram")
}

func TestExporter_Push(t *testing.T) {
	var method, path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := newTestExporter()
	records, summary := sampleRun()
	e.Observe(records, summary, time.Second)

	require.NoError(t, e.Push(context.Background(), srv.URL, "snot"))
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/snot/project/Checkout", path)
	assert.NotEmpty(t, body)
}

func TestExporter_Handler(t *testing.T) {
	e := newTestExporter()
	records, summary := sampleRun()
	e.Observe(records, summary, time.Second)

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "snot_pass_rate"))
}
