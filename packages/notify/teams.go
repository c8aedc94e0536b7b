package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// TeamsNotifier sends notifications to Microsoft Teams via webhook
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

// TeamsOption is a functional option for TeamsNotifier
type TeamsOption func(*TeamsNotifier)

// WithTeamsHTTPClient replaces the HTTP client used to post.
func WithTeamsHTTPClient(c *http.Client) TeamsOption {
	return func(t *TeamsNotifier) {
		t.client = c
	}
}

// NewTeamsNotifier creates a new Teams notifier
func NewTeamsNotifier(webhookURL string, opts ...TeamsOption) *TeamsNotifier {
	t := &TeamsNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: defaultWebhookTimeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TeamsNotifier) Name() string {
	return "teams"
}

// teamsMessage carries one Adaptive Card.
type teamsMessage struct {
	Type        string      `json:"type"`
	Attachments []teamsCard `json:"attachments"`
}

type teamsCard struct {
	ContentType string           `json:"contentType"`
	Content     teamsCardContent `json:"content"`
}

type teamsCardContent struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []teamsBlock `json:"body"`
}

type teamsBlock struct {
	Type      string      `json:"type"`
	Size      string      `json:"size,omitempty"`
	Weight    string      `json:"weight,omitempty"`
	Text      string      `json:"text,omitempty"`
	Color     string      `json:"color,omitempty"`
	Wrap      bool        `json:"wrap,omitempty"`
	Facts     []teamsFact `json:"facts,omitempty"`
	Separator bool        `json:"separator,omitempty"`
}

type teamsFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// Notify posts summary as an Adaptive Card with a fact set.
func (t *TeamsNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	color := "good"
	if summary.Failed > 0 {
		color = "attention"
	}

	title := summary.title()
	if subject := summary.subject(); subject != "" {
		title = subject + ": " + title
	}

	facts := []teamsFact{
		{Title: "Total", Value: fmt.Sprint(summary.Total)},
		{Title: "Passed", Value: fmt.Sprint(summary.Passed)},
		{Title: "Failed", Value: fmt.Sprint(summary.Failed)},
		{Title: "Skipped", Value: fmt.Sprint(summary.Skipped)},
		{Title: "Not run", Value: fmt.Sprint(summary.NotRun)},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String()},
	}
	if summary.Environment != "" {
		facts = append(facts, teamsFact{Title: "Environment", Value: summary.Environment})
	}
	for _, run := range summary.TestRuns {
		facts = append(facts, teamsFact{Title: "Test run", Value: fmt.Sprintf("%s (%s)", run.Name, run.ID)})
	}

	body := []teamsBlock{
		{Type: "TextBlock", Size: "Large", Weight: "Bolder", Text: title, Color: color, Wrap: true},
		{Type: "FactSet", Facts: facts, Separator: true},
	}
	for _, f := range summary.Failures {
		text := fmt.Sprintf("- `%s` %s", f.Name, f.Outcome)
		if f.Reason != "" {
			text += ": " + f.Reason
		}
		body = append(body, teamsBlock{Type: "TextBlock", Text: text, Wrap: true})
	}

	msg := teamsMessage{
		Type: "message",
		Attachments: []teamsCard{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: teamsCardContent{
				Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
				Type:    "AdaptiveCard",
				Version: "1.2",
				Body:    body,
			},
		}},
	}
	return postJSON(ctx, t.client, "Teams", t.webhookURL, msg, http.StatusOK, http.StatusAccepted)
}
