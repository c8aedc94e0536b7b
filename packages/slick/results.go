package slick

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"

	"github.com/tidwall/gjson"
)

// ResultRequest describes a result to file.
type ResultRequest struct {
	TestCase     *TestCase
	TestRun      *TestRun
	RunStatus    string
	Release      string
	Build        string
	Environment  string
	Hostname     string
	Attributes   map[string]string
	Requirements []string
}

// CreateOrFetchResult saves the test case and files a result for it in the
// requested test run. When the run already holds a result for that test case,
// the existing result is returned instead.
func (c *Client) CreateOrFetchResult(ctx context.Context, req ResultRequest) (*Result, error) {
	if req.TestCase == nil {
		return nil, fmt.Errorf("create result: missing test case")
	}
	tc, err := c.SaveTestCase(ctx, req.TestCase)
	if err != nil {
		return nil, fmt.Errorf("save test case %q: %w", req.TestCase.Name, err)
	}

	if req.TestRun != nil && req.TestRun.ID != "" {
		existing, err := c.findResult(ctx, req.TestRun.ID, tc.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	result := &Result{
		TestCase:     tc.Reference(),
		Project:      tc.Project,
		Component:    tc.Component,
		Status:       RunStatusNoResult,
		RunStatus:    req.RunStatus,
		Recorded:     c.now().UnixMilli(),
		Hostname:     req.Hostname,
		Attributes:   req.Attributes,
		Requirements: req.Requirements,
	}
	if req.TestRun != nil {
		result.TestRun = req.TestRun.Reference()
	}
	if req.Release != "" {
		result.Release = &NamedReference{Name: req.Release}
	}
	if req.Build != "" {
		result.Build = &NamedReference{Name: req.Build}
	}
	if req.Environment != "" {
		result.Config = &NamedReference{Name: req.Environment}
	}

	created := &Result{}
	body, err := c.sendJSON(ctx, http.MethodPost, "/results", result, created)
	if err != nil {
		return nil, err
	}
	if err := requireID(body); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) findResult(ctx context.Context, testRunID, testCaseID string) (*Result, error) {
	body, err := c.getJSON(ctx, "/results", neturl.Values{
		"testrun.id":          {testRunID},
		"testcase.testcaseId": {testCaseID},
	})
	if err != nil {
		return nil, err
	}
	first := gjson.GetBytes(body, "0")
	if !first.Exists() {
		return nil, nil
	}
	var r Result
	if err := json.Unmarshal([]byte(first.Raw), &r); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &r, nil
}

// FetchResult loads an existing result by id.
func (c *Client) FetchResult(ctx context.Context, id string) (*Result, error) {
	body, err := c.getJSON(ctx, "/results/"+neturl.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var r Result
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", id, err)
	}
	return &r, nil
}

// UpdateResult pushes the full state of r.
func (c *Client) UpdateResult(ctx context.Context, r *Result) (*Result, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("update result: %w", ErrMissingID)
	}
	updated := &Result{}
	if _, err := c.sendJSON(ctx, http.MethodPut, "/results/"+neturl.PathEscape(r.ID), r, updated); err != nil {
		return nil, err
	}
	if updated.ID == "" {
		*updated = *r
	}
	return updated, nil
}

// AddLogEntry appends entries to a result's log.
func (c *Client) AddLogEntry(ctx context.Context, resultID string, entries ...LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := c.sendJSON(ctx, http.MethodPost, "/results/"+neturl.PathEscape(resultID)+"/log", entries, nil)
	return err
}
