package slick

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, handler http.Handler, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]ClientOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewClient(server.URL+"/slickij/", opts...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_SendsTokenAndHeaders(t *testing.T) {
	var got http.Header
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		assert.Equal(t, "/slickij/api/results/r1", r.URL.Path)
		writeJSON(w, Result{ID: "r1"})
	}), WithToken("secret"), WithDefaultHeader("X-Team", "qa"))

	r, err := client.FetchResult(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", r.ID)
	assert.Equal(t, "Bearer secret", got.Get("Authorization"))
	assert.Equal(t, "qa", got.Get("X-Team"))
	assert.Equal(t, "application/json", got.Get("Accept"))
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such result", http.StatusNotFound)
	}))

	_, err := client.FetchResult(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.MethodGet, apiErr.Method)
	assert.Contains(t, apiErr.Error(), "no such result")
}

func TestClient_CreateOrFetchResult_NewTestCase(t *testing.T) {
	var (
		mu       sync.Mutex
		savedTC  TestCase
		postedRs Result
	)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /slickij/api/testcases", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pkg_test.go:TestLogin", r.URL.Query().Get("automationKey"))
		assert.Equal(t, "Checkout", r.URL.Query().Get("project.name"))
		writeJSON(w, []TestCase{})
	})
	mux.HandleFunc("POST /slickij/api/testcases", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&savedTC))
		savedTC.ID = "tc1"
		writeJSON(w, savedTC)
	})
	mux.HandleFunc("GET /slickij/api/results", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "run1", r.URL.Query().Get("testrun.id"))
		assert.Equal(t, "tc1", r.URL.Query().Get("testcase.testcaseId"))
		writeJSON(w, []Result{})
	})
	mux.HandleFunc("POST /slickij/api/results", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&postedRs))
		postedRs.ID = "res1"
		writeJSON(w, postedRs)
	})
	client := newTestClient(t, mux)

	res, err := client.CreateOrFetchResult(context.Background(), ResultRequest{
		TestCase: &TestCase{
			Name:          "Login",
			Project:       &ProjectReference{Name: "Checkout"},
			AutomationKey: "pkg_test.go:TestLogin",
			Steps:         []Step{{Name: "open", ExpectedResult: "shown"}},
		},
		TestRun:      &TestRun{ID: "run1", Name: "nightly"},
		RunStatus:    RunStatusToBeRun,
		Build:        "42",
		Requirements: []string{"a", "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, "res1", res.ID)
	assert.Equal(t, "tc1", res.TestCase.TestCaseID)
	assert.Equal(t, RunStatusToBeRun, postedRs.RunStatus)
	assert.Equal(t, RunStatusNoResult, postedRs.Status)
	assert.Equal(t, "run1", postedRs.TestRun.TestRunID)
	assert.Equal(t, "42", postedRs.Build.Name)
	assert.Equal(t, fixedNow.UnixMilli(), postedRs.Recorded)
	assert.Equal(t, []string{"a", "b"}, postedRs.Requirements)
	assert.Equal(t, []Step{{Name: "open", ExpectedResult: "shown"}}, savedTC.Steps)
}

func TestClient_CreateOrFetchResult_ExistingResult(t *testing.T) {
	posted := false
	mux := http.NewServeMux()
	mux.HandleFunc("GET /slickij/api/testcases", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []TestCase{{ID: "tc1", Name: "Old name", AutomationKey: "k"}})
	})
	mux.HandleFunc("PUT /slickij/api/testcases/tc1", func(w http.ResponseWriter, r *http.Request) {
		var tc TestCase
		require.NoError(t, json.NewDecoder(r.Body).Decode(&tc))
		assert.Equal(t, "New name", tc.Name)
		writeJSON(w, tc)
	})
	mux.HandleFunc("GET /slickij/api/results", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []Result{{ID: "existing", RunStatus: RunStatusScheduled}})
	})
	mux.HandleFunc("POST /slickij/api/results", func(w http.ResponseWriter, r *http.Request) {
		posted = true
	})
	client := newTestClient(t, mux)

	res, err := client.CreateOrFetchResult(context.Background(), ResultRequest{
		TestCase: &TestCase{Name: "New name", AutomationKey: "k"},
		TestRun:  &TestRun{ID: "run1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "existing", res.ID)
	assert.False(t, posted)
}

func TestClient_CreateOrFetchTestRun(t *testing.T) {
	t.Run("reuses unfinished run", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			writeJSON(w, []TestRun{
				{ID: "done", Name: "nightly", State: TestRunFinished},
				{ID: "open", Name: "nightly", State: TestRunRunning},
			})
		}))

		run, err := client.CreateOrFetchTestRun(context.Background(), TestRun{Name: "nightly"})
		require.NoError(t, err)
		assert.Equal(t, "open", run.ID)
	})

	t.Run("creates when none is open", func(t *testing.T) {
		var created TestRun
		mux := http.NewServeMux()
		mux.HandleFunc("GET /slickij/api/testruns", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, []TestRun{{ID: "done", State: TestRunFinished}})
		})
		mux.HandleFunc("POST /slickij/api/testruns", func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			created.ID = "new"
			writeJSON(w, created)
		})
		client := newTestClient(t, mux)

		run, err := client.CreateOrFetchTestRun(context.Background(), TestRun{
			Name:    "nightly",
			Project: &ProjectReference{Name: "Checkout"},
		})
		require.NoError(t, err)
		assert.Equal(t, "new", run.ID)
		assert.Equal(t, TestRunRunning, created.State)
		assert.Equal(t, fixedNow.UnixMilli(), created.RunStarted)
	})
}

func TestClient_FinishTestRun(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/slickij/api/testruns/run1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.FinishTestRun(context.Background(), "run1"))
	assert.Equal(t, TestRunFinished, body["state"])
	assert.EqualValues(t, fixedNow.UnixMilli(), body["runFinished"])
}

func TestClient_UploadFile(t *testing.T) {
	var content []byte
	var meta FileReference
	mux := http.NewServeMux()
	mux.HandleFunc("POST /slickij/api/files", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&meta))
		writeJSON(w, map[string]any{"id": "f1", "filename": meta.Filename})
	})
	mux.HandleFunc("POST /slickij/api/files/f1/content", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		content, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})
	client := newTestClient(t, mux)

	ref, err := client.UploadFile(context.Background(), "/tmp/out/Captured Output.txt", "", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "f1", ref.ID)
	assert.Equal(t, "Captured Output.txt", meta.Filename)
	assert.Contains(t, meta.Mimetype, "text/plain")
	assert.EqualValues(t, 5, meta.Length)
	assert.Equal(t, "hello", string(content))
}

func TestClient_UploadFileMissingID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{})
	}))

	_, err := client.UploadFile(context.Background(), "a.txt", "text/plain", nil)
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestClient_AddLogEntry(t *testing.T) {
	var entries []LogEntry
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/slickij/api/results/r1/log", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&entries))
	}))

	require.NoError(t, client.AddLogEntry(context.Background(), "r1"))
	assert.Nil(t, entries, "no request without entries")

	err := client.AddLogEntry(context.Background(), "r1", LogEntry{Level: "INFO", LoggerName: "stdout", Message: "hi"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hi", entries[0].Message)
}

func TestClient_RateLimit(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, Result{ID: "r"})
	}), WithRateLimit(1, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.FetchResult(ctx, "r")
	require.NoError(t, err)
	_, err = client.FetchResult(ctx, "r")
	require.Error(t, err, "second request must wait longer than the deadline")
	assert.Equal(t, 1, calls)
}

func TestClient_UpdateResultRequiresID(t *testing.T) {
	client := NewClient("http://unused")
	_, err := client.UpdateResult(context.Background(), &Result{})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestClient_ValidateSSL(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, TestRun{ID: "run-1", Name: "nightly"})
	}))
	t.Cleanup(server.Close)

	_, err := NewClient(server.URL).FetchTestRun(context.Background(), "run-1")
	require.Error(t, err, "self-signed certificate is rejected by default")

	run, err := NewClient(server.URL, WithValidateSSL(false)).FetchTestRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "nightly", run.Name)
}

func TestClient_Proxy(t *testing.T) {
	var host, path string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, path = r.Host, r.URL.Path
		writeJSON(w, TestRun{ID: "run-1"})
	}))
	t.Cleanup(proxy.Close)

	client := NewClient("http://slick.internal/slickij", WithProxy(proxy.URL))
	_, err := client.FetchTestRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "slick.internal", host)
	assert.Equal(t, "/slickij/api/testruns/run-1", path)
}
