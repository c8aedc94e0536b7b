package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/snot/packages/core/runner"
	"github.com/abdul-hamid-achik/snot/packages/metrics"
	"github.com/abdul-hamid-achik/snot/packages/slick"
)

type recordingNotifier struct {
	calls []*RunSummary
	err   error
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(_ context.Context, s *RunSummary) error {
	r.calls = append(r.calls, s)
	return r.err
}

func TestManager_Policies(t *testing.T) {
	passed := func() *RunSummary { return &RunSummary{Total: 2, Passed: 2} }
	failed := func() *RunSummary { return &RunSummary{Total: 2, Passed: 1, Failed: 1} }

	tests := []struct {
		on   NotifyOn
		runs []*RunSummary
		want int
	}{
		{NotifyAlways, []*RunSummary{passed(), failed()}, 2},
		{NotifyFailure, []*RunSummary{passed(), failed()}, 1},
		{NotifySuccess, []*RunSummary{passed(), failed()}, 1},
		{NotifyRecovery, []*RunSummary{passed(), failed(), passed(), passed()}, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.on), func(t *testing.T) {
			rec := &recordingNotifier{}
			m := NewManager(tt.on, rec)
			for _, s := range tt.runs {
				require.NoError(t, m.Notify(context.Background(), s))
			}
			assert.Len(t, rec.calls, tt.want)
		})
	}
}

func TestManager_RecoveryFlag(t *testing.T) {
	rec := &recordingNotifier{}
	m := NewManager(NotifyRecovery, rec)
	require.NoError(t, m.Notify(context.Background(), &RunSummary{Failed: 1}))
	require.NoError(t, m.Notify(context.Background(), &RunSummary{Passed: 1}))
	require.Len(t, rec.calls, 2)
	assert.True(t, rec.calls[1].IsRecovery)
	assert.Equal(t, "Tests recovered", rec.calls[1].title())
}

func TestManager_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingNotifier{}
	m := NewManager(NotifyAlways, &recordingNotifier{err: boom}, ok)
	err := m.Notify(context.Background(), &RunSummary{})
	require.ErrorIs(t, err, boom)
	assert.Len(t, ok.calls, 1)
}

func TestParseNotifyOn(t *testing.T) {
	on, err := ParseNotifyOn("")
	require.NoError(t, err)
	assert.Equal(t, NotifyFailure, on)

	on, err = ParseNotifyOn("recovery")
	require.NoError(t, err)
	assert.Equal(t, NotifyRecovery, on)

	_, err = ParseNotifyOn("sometimes")
	assert.Error(t, err)
}

func TestNewRunSummary(t *testing.T) {
	records := []*runner.ResultRecord{
		{Name: "Login", Status: runner.Finished, Outcome: runner.Pass, DurationMillis: 10},
		{Name: "Cart", AutomationKey: "shop/cart_test.go:TestCart", Status: runner.Finished, Outcome: runner.Fail, Reason: "expected 3\ncart_test.go:20"},
		{Name: "DB", Status: runner.Finished, Outcome: runner.Skipped},
		{Name: "Later", Status: runner.Scheduled},
	}
	groups := []*runner.TestRunGroup{{Run: &slick.TestRun{ID: "tr1", Name: "Nightly"}}}
	cfg := runner.Config{Project: "Checkout", Release: "2.1", Build: "17"}

	s := NewRunSummary(cfg, records, groups, metrics.FromRecords(records).GetSummary(), time.Second)
	assert.Equal(t, int64(4), s.Total)
	assert.Equal(t, int64(1), s.Failed)
	assert.Equal(t, int64(1), s.Skipped)
	assert.Equal(t, int64(1), s.NotRun)
	assert.Equal(t, []TestRun{{Name: "Nightly", ID: "tr1"}}, s.TestRuns)
	require.Len(t, s.Failures, 1)
	assert.Equal(t, "expected 3", s.Failures[0].Reason)
	assert.Equal(t, "FAIL", s.Failures[0].Outcome)
	assert.Equal(t, "Checkout 2.1 build 17", s.subject())
}

func TestSlackNotifier(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, WithSlackChannel("#ci"))
	err := n.Notify(context.Background(), &RunSummary{
		Project: "Checkout", Total: 2, Passed: 1, Failed: 1,
		Failures: []Failure{{Name: "Cart", Outcome: "FAIL", Reason: "expected 3"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "#ci", got["channel"])
	attachment := got["attachments"].([]any)[0].(map[string]any)
	assert.Equal(t, "danger", attachment["color"])
	assert.Equal(t, "Checkout: 1 test(s) failed", attachment["title"])
	assert.Contains(t, attachment["text"], "`Cart` FAIL: expected 3")
}

func TestTeamsNotifier(t *testing.T) {
	var got teamsMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewTeamsNotifier(srv.URL)
	require.NoError(t, n.Notify(context.Background(), &RunSummary{Total: 1, Passed: 1}))

	require.Len(t, got.Attachments, 1)
	body := got.Attachments[0].Content.Body
	assert.Equal(t, "All tests passed", body[0].Text)
	assert.Equal(t, "good", body[0].Color)
	assert.Equal(t, "Total", body[1].Facts[0].Title)
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such hook", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewSlackNotifier(srv.URL).Notify(context.Background(), &RunSummary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
