package gotest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Event actions of go test -json.
const (
	ActionStart       = "start"
	ActionRun         = "run"
	ActionPause       = "pause"
	ActionCont        = "cont"
	ActionPass        = "pass"
	ActionFail        = "fail"
	ActionSkip        = "skip"
	ActionOutput      = "output"
	ActionBench       = "bench"
	ActionBuildOutput = "build-output"
	ActionBuildFail   = "build-fail"
)

// Event is one line of go test -json output.
type Event struct {
	Time        time.Time `json:"Time"`
	Action      string    `json:"Action"`
	Package     string    `json:"Package"`
	Test        string    `json:"Test"`
	Elapsed     float64   `json:"Elapsed"`
	Output      string    `json:"Output"`
	ImportPath  string    `json:"ImportPath"`
	FailedBuild string    `json:"FailedBuild"`
}

// Pkg is the package the event belongs to. Build events only carry ImportPath.
func (e Event) Pkg() string {
	if e.Package != "" {
		return e.Package
	}
	return e.ImportPath
}

// ParseEvents reads go test -json NDJSON from r and calls fn for each event.
// Lines that are not JSON events are counted and skipped. An error from fn
// stops parsing and is returned.
func ParseEvents(r io.Reader, fn func(Event) error) (malformed int, err error) {
	scanner := bufio.NewScanner(r)
	// test output lines can be long
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil || event.Action == "" {
			malformed++
			continue
		}
		if err := fn(event); err != nil {
			return malformed, err
		}
	}
	if err := scanner.Err(); err != nil {
		return malformed, fmt.Errorf("scanning test output: %w", err)
	}
	return malformed, nil
}
