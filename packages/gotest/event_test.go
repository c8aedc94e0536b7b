package gotest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvents(t *testing.T) {
	input := strings.Join([]string{
		`{"Time":"2024-01-02T03:04:05Z","Action":"start","Package":"example.com/app"}`,
		`# example.com/app [build]`,
		``,
		`{"Action":"run","Package":"example.com/app","Test":"TestA"}`,
		`{"Action":"output","Package":"example.com/app","Test":"TestA","Output":"    a_test.go:5: hi\n"}`,
		`{"Package":"example.com/app"}`,
		`{"Action":"pass","Package":"example.com/app","Test":"TestA","Elapsed":0.01}`,
		`{"Action":"build-fail","ImportPath":"example.com/app/broken","FailedBuild":"example.com/app/broken"}`,
	}, "\n")

	var events []Event
	malformed, err := ParseEvents(strings.NewReader(input), func(e Event) error {
		events = append(events, e)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, malformed)
	require.Len(t, events, 5)

	assert.Equal(t, ActionStart, events[0].Action)
	assert.Equal(t, 2024, events[0].Time.Year())
	assert.Equal(t, "    a_test.go:5: hi\n", events[2].Output)
	assert.InDelta(t, 0.01, events[3].Elapsed, 1e-9)
	assert.Equal(t, "example.com/app/broken", events[4].Pkg())
	assert.Equal(t, "example.com/app", events[1].Pkg())
}

func TestParseEvents_StopsOnCallbackError(t *testing.T) {
	input := `{"Action":"run","Test":"A"}` + "\n" + `{"Action":"run","Test":"B"}` + "\n"
	boom := errors.New("boom")

	calls := 0
	_, err := ParseEvents(strings.NewReader(input), func(Event) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestIsFrameworkLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"=== RUN   TestA", true},
		{"=== PAUSE TestA", true},
		{"=== CONT  TestA", true},
		{"--- FAIL: TestA (0.00s)", true},
		{"    --- PASS: TestA/sub (0.00s)", true},
		{"    a_test.go:5: hello", false},
		{"hello", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, isFrameworkLine(tt.line))
		})
	}
}

func TestFailure(t *testing.T) {
	st := &testState{lines: []outputLine{
		{text: "starting"},
		{text: "    login_test.go:12: expected 200"},
		{text: "        got 500"},
	}}
	f := st.failure()
	assert.Equal(t, "login_test.go:12: expected 200\n    got 500", f.Message)
	assert.Equal(t, "starting", f.Output)
	assert.Empty(t, f.Kind)

	st = &testState{panicked: true, lines: []outputLine{
		{text: "before"},
		{text: "panic: runtime error: index out of range"},
		{text: "goroutine 7 [running]:"},
	}}
	f = st.failure()
	assert.Equal(t, "panic", f.Kind)
	assert.Equal(t, "runtime error: index out of range", f.Message)
	assert.Equal(t, "goroutine 7 [running]:", f.Trace)
	assert.Equal(t, "before", f.Output)

	assert.Equal(t, "test failed", (&testState{}).failure().Message)
}

func TestSkipped(t *testing.T) {
	st := &testState{lines: []outputLine{{text: "    db_test.go:9: no database"}}}
	assert.Equal(t, "no database", st.skipped().Message)

	st.skipReason = "covered manually"
	assert.Equal(t, "covered manually", st.skipped().Message)

	assert.Nil(t, (&testState{}).skipped())
}
