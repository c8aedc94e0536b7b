package slick

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"

	"github.com/tidwall/gjson"
)

// CreateOrFetchTestRun returns the unfinished test run with spec's name in
// spec's project, creating it when there is none.
func (c *Client) CreateOrFetchTestRun(ctx context.Context, spec TestRun) (*TestRun, error) {
	query := neturl.Values{"name": {spec.Name}}
	if spec.Project != nil {
		query.Set("project.name", spec.Project.Name)
	}
	body, err := c.getJSON(ctx, "/testruns", query)
	if err != nil {
		return nil, err
	}

	if open := gjson.GetBytes(body, `#(state!="`+TestRunFinished+`")`); open.Exists() {
		var run TestRun
		if err := json.Unmarshal([]byte(open.Raw), &run); err != nil {
			return nil, fmt.Errorf("decode test run: %w", err)
		}
		return &run, nil
	}

	spec.ID = ""
	spec.State = TestRunRunning
	spec.RunStarted = c.now().UnixMilli()

	created := &TestRun{}
	body, err = c.sendJSON(ctx, http.MethodPost, "/testruns", spec, created)
	if err != nil {
		return nil, err
	}
	if err := requireID(body); err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Client) FetchTestRun(ctx context.Context, id string) (*TestRun, error) {
	body, err := c.getJSON(ctx, "/testruns/"+neturl.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var run TestRun
	if err := json.Unmarshal(body, &run); err != nil {
		return nil, fmt.Errorf("decode test run %s: %w", id, err)
	}
	return &run, nil
}

// UpdateTestRun pushes the full state of run, used for run level files and links.
func (c *Client) UpdateTestRun(ctx context.Context, run *TestRun) (*TestRun, error) {
	if run.ID == "" {
		return nil, fmt.Errorf("update test run: %w", ErrMissingID)
	}
	updated := &TestRun{}
	if _, err := c.sendJSON(ctx, http.MethodPut, "/testruns/"+neturl.PathEscape(run.ID), run, updated); err != nil {
		return nil, err
	}
	if updated.ID == "" {
		*updated = *run
	}
	return updated, nil
}

// FinishTestRun marks the run finished.
func (c *Client) FinishTestRun(ctx context.Context, id string) error {
	_, err := c.sendJSON(ctx, http.MethodPut, "/testruns/"+neturl.PathEscape(id), map[string]any{
		"state":       TestRunFinished,
		"runFinished": c.now().UnixMilli(),
	}, nil)
	return err
}
