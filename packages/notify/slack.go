package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SlackNotifier sends notifications to Slack via webhook
type SlackNotifier struct {
	webhookURL string
	channel    string
	username   string
	client     *http.Client
	now        func() time.Time
}

// SlackOption is a functional option for SlackNotifier
type SlackOption func(*SlackNotifier)

// WithSlackChannel sets the Slack channel
func WithSlackChannel(channel string) SlackOption {
	return func(s *SlackNotifier) {
		s.channel = channel
	}
}

// WithSlackHTTPClient replaces the HTTP client used to post.
func WithSlackHTTPClient(c *http.Client) SlackOption {
	return func(s *SlackNotifier) {
		s.client = c
	}
}

// NewSlackNotifier creates a new Slack notifier
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	s := &SlackNotifier{
		webhookURL: webhookURL,
		username:   "snot",
		client:     &http.Client{Timeout: defaultWebhookTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Username    string            `json:"username,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	Footer string       `json:"footer,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notify posts summary as one attachment.
func (s *SlackNotifier) Notify(ctx context.Context, summary *RunSummary) error {
	color := "good"
	if summary.Failed > 0 {
		color = "danger"
	}

	fields := []slackField{
		{Title: "Total", Value: fmt.Sprint(summary.Total), Short: true},
		{Title: "Passed", Value: fmt.Sprint(summary.Passed), Short: true},
		{Title: "Failed", Value: fmt.Sprint(summary.Failed), Short: true},
		{Title: "Skipped", Value: fmt.Sprint(summary.Skipped), Short: true},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String(), Short: true},
	}
	if summary.Environment != "" {
		fields = append(fields, slackField{Title: "Environment", Value: summary.Environment, Short: true})
	}
	for _, run := range summary.TestRuns {
		fields = append(fields, slackField{Title: "Test run", Value: fmt.Sprintf("%s (%s)", run.Name, run.ID)})
	}

	var text strings.Builder
	for _, f := range summary.Failures {
		fmt.Fprintf(&text, "• `%s` %s", f.Name, f.Outcome)
		if f.Reason != "" {
			fmt.Fprintf(&text, ": %s", f.Reason)
		}
		text.WriteString("\n")
	}

	title := summary.title()
	if subject := summary.subject(); subject != "" {
		title = subject + ": " + title
	}

	msg := slackMessage{
		Channel:  s.channel,
		Username: s.username,
		Attachments: []slackAttachment{{
			Color:  color,
			Title:  title,
			Text:   text.String(),
			Fields: fields,
			Footer: "snot",
			TS:     s.now().Unix(),
		}},
	}
	return postJSON(ctx, s.client, "Slack", s.webhookURL, msg, http.StatusOK)
}
