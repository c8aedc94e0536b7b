// Package notify posts a summary of a finished run to chat webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/snot/packages/core/runner"
	"github.com/abdul-hamid-achik/snot/packages/metrics"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when tests fail
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when tests pass
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first
	// passing run after one
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a --notify-on value.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(s); on {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	case "":
		return NotifyFailure, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q (use always, failure, success or recovery)", s)
	}
}

// TestRun names a Slick test run that holds results of the run.
type TestRun struct {
	Name string
	ID   string
}

// Failure is one failed result.
type Failure struct {
	Name          string
	AutomationKey string
	Outcome       string
	Reason        string
}

// RunSummary is what gets posted.
type RunSummary struct {
	Project     string
	Release     string
	Build       string
	Environment string

	Total   int64
	Passed  int64
	Failed  int64
	Skipped int64
	NotRun  int64

	Duration   time.Duration
	TestRuns   []TestRun
	Failures   []Failure
	IsRecovery bool
}

// maxFailures bounds the failures listed in one message.
const maxFailures = 10

// NewRunSummary builds the summary of a run from its records.
func NewRunSummary(cfg runner.Config, records []*runner.ResultRecord, groups []*runner.TestRunGroup, s *metrics.Summary, d time.Duration) *RunSummary {
	summary := &RunSummary{
		Project:     cfg.Project,
		Release:     cfg.Release,
		Build:       cfg.Build,
		Environment: cfg.Environment,
		Total:       s.Total,
		Passed:      s.Passed,
		Failed:      s.Failed,
		Skipped:     s.Outcomes[runner.Skipped] + s.Outcomes[runner.NotTested],
		NotRun:      s.Unfinished,
		Duration:    d,
	}
	for _, g := range groups {
		if g.Run != nil {
			summary.TestRuns = append(summary.TestRuns, TestRun{Name: g.Run.Name, ID: g.Run.ID})
		}
	}
	for _, rec := range records {
		if rec.Status != runner.Finished || !rec.Outcome.Failed() {
			continue
		}
		if len(summary.Failures) == maxFailures {
			break
		}
		summary.Failures = append(summary.Failures, Failure{
			Name:          rec.Name,
			AutomationKey: rec.AutomationKey,
			Outcome:       rec.Outcome.String(),
			Reason:        firstLine(rec.Reason),
		})
	}
	return summary
}

func (s *RunSummary) title() string {
	switch {
	case s.Failed > 0:
		return fmt.Sprintf("%d test(s) failed", s.Failed)
	case s.IsRecovery:
		return "Tests recovered"
	default:
		return "All tests passed"
	}
}

func (s *RunSummary) subject() string {
	subject := s.Project
	if s.Release != "" {
		subject += " " + s.Release
	}
	if s.Build != "" {
		subject += " build " + s.Build
	}
	return subject
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

// Notifier is the interface for notification services
type Notifier interface {
	Notify(ctx context.Context, summary *RunSummary) error
	Name() string
}

// Manager manages multiple notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true,
	}
}

// Len is the number of configured notifiers.
func (m *Manager) Len() int {
	return len(m.notifiers)
}

// Notify sends notifications based on the configured policy. Every notifier
// is tried; their errors are joined.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	currentSuccess := summary.Failed == 0
	shouldNotify := false

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !currentSuccess
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		if !currentSuccess {
			shouldNotify = true
		}
	}
	m.lastState = currentSuccess

	if !shouldNotify {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
