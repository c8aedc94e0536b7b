package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/snot/packages/logging"
	"github.com/abdul-hamid-achik/snot/packages/slick"
)

// fakeService is an in-memory ResultService.
type fakeService struct {
	mu sync.Mutex

	results  map[string]*slick.Result
	runs     map[string]*slick.TestRun
	requests []slick.ResultRequest
	updates  []slick.Result
	files    map[string][]byte
	logs     map[string][]slick.LogEntry
	finished []string
	nextID   int

	failOn map[string]error // method name -> error
}

func newFakeService() *fakeService {
	return &fakeService{
		results: make(map[string]*slick.Result),
		runs:    make(map[string]*slick.TestRun),
		files:   make(map[string][]byte),
		logs:    make(map[string][]slick.LogEntry),
		failOn:  make(map[string]error),
	}
}

func (f *fakeService) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakeService) fail(method string) error {
	return f.failOn[method]
}

func (f *fakeService) CreateOrFetchResult(_ context.Context, req slick.ResultRequest) (*slick.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateOrFetchResult"); err != nil {
		return nil, err
	}
	f.requests = append(f.requests, req)
	r := &slick.Result{
		ID:           f.id("res"),
		TestCase:     req.TestCase.Reference(),
		RunStatus:    req.RunStatus,
		Status:       slick.RunStatusNoResult,
		Attributes:   req.Attributes,
		Requirements: req.Requirements,
	}
	if req.TestRun != nil {
		r.TestRun = req.TestRun.Reference()
	}
	f.results[r.ID] = r
	return r, nil
}

func (f *fakeService) UpdateResult(_ context.Context, r *slick.Result) (*slick.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateResult"); err != nil {
		return nil, err
	}
	cp := *r
	f.updates = append(f.updates, cp)
	f.results[r.ID] = &cp
	return &cp, nil
}

func (f *fakeService) FetchResult(_ context.Context, id string) (*slick.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *r
	return &cp, nil
}

func (f *fakeService) CreateOrFetchTestRun(_ context.Context, spec slick.TestRun) (*slick.TestRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateOrFetchTestRun"); err != nil {
		return nil, err
	}
	for _, run := range f.runs {
		if run.Name == spec.Name && run.State != slick.TestRunFinished {
			return run, nil
		}
	}
	spec.ID = f.id("run")
	spec.State = slick.TestRunRunning
	f.runs[spec.ID] = &spec
	return &spec, nil
}

func (f *fakeService) FetchTestRun(_ context.Context, id string) (*slick.TestRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return run, nil
}

func (f *fakeService) UpdateTestRun(_ context.Context, run *slick.TestRun) (*slick.TestRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	f.runs[run.ID] = &cp
	return &cp, nil
}

func (f *fakeService) FinishTestRun(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("FinishTestRun"); err != nil {
		return err
	}
	f.finished = append(f.finished, id)
	if run, ok := f.runs[id]; ok {
		run.State = slick.TestRunFinished
	}
	return nil
}

func (f *fakeService) UploadFile(_ context.Context, filename, _ string, content []byte) (*slick.FileReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UploadFile"); err != nil {
		return nil, err
	}
	id := f.id("file")
	f.files[filename] = content
	return &slick.FileReference{ID: id, Filename: filename, Length: int64(len(content))}, nil
}

func (f *fakeService) AddLogEntry(_ context.Context, resultID string, entries ...slick.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[resultID] = append(f.logs[resultID], entries...)
	return nil
}

// lastUpdate returns the last pushed state of result id.
func (f *fakeService) lastUpdate(id string) *slick.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.updates) - 1; i >= 0; i-- {
		if f.updates[i].ID == id {
			return &f.updates[i]
		}
	}
	return nil
}

// stepClock advances by step on every call.
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func newTestCoordinator(svc ResultService, cfg Config) (*Coordinator, *stepClock) {
	clock := &stepClock{now: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), step: 250 * time.Millisecond}
	c := NewCoordinator(svc, cfg, WithLogger(logging.Discard()), WithClock(clock.Now))
	return c, clock
}
