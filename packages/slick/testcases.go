package slick

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"

	"github.com/tidwall/gjson"
)

// FindTestCase looks up a test case by automation key within a project.
// It returns nil when none exists.
func (c *Client) FindTestCase(ctx context.Context, project, automationKey string) (*TestCase, error) {
	query := neturl.Values{"automationKey": {automationKey}}
	if project != "" {
		query.Set("project.name", project)
	}
	body, err := c.getJSON(ctx, "/testcases", query)
	if err != nil {
		return nil, err
	}

	first := gjson.GetBytes(body, "0")
	if !first.Exists() {
		return nil, nil
	}
	var tc TestCase
	if err := json.Unmarshal([]byte(first.Raw), &tc); err != nil {
		return nil, fmt.Errorf("decode test case: %w", err)
	}
	return &tc, nil
}

// SaveTestCase creates tc or, when a test case with the same automation key
// already exists, updates it with tc's documentation.
func (c *Client) SaveTestCase(ctx context.Context, tc *TestCase) (*TestCase, error) {
	if tc.ID == "" && tc.AutomationKey != "" {
		project := ""
		if tc.Project != nil {
			project = tc.Project.Name
		}
		existing, err := c.FindTestCase(ctx, project, tc.AutomationKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			tc.ID = existing.ID
		}
	}

	saved := &TestCase{}
	if tc.ID == "" {
		body, err := c.sendJSON(ctx, http.MethodPost, "/testcases", tc, saved)
		if err != nil {
			return nil, err
		}
		if err := requireID(body); err != nil {
			return nil, err
		}
		return saved, nil
	}

	if _, err := c.sendJSON(ctx, http.MethodPut, "/testcases/"+neturl.PathEscape(tc.ID), tc, saved); err != nil {
		return nil, err
	}
	if saved.ID == "" {
		saved.ID = tc.ID
	}
	return saved, nil
}

func requireID(body []byte) error {
	if gjson.GetBytes(body, "id").String() == "" {
		return ErrMissingID
	}
	return nil
}
