package runner

import (
	"context"
	"fmt"
	"maps"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abdul-hamid-achik/snot/packages/core/parser"
	"github.com/abdul-hamid-achik/snot/packages/logging"
	"github.com/abdul-hamid-achik/snot/packages/rehydrate"
	"github.com/abdul-hamid-achik/snot/packages/slick"
)

// DefaultAutomationTool is recorded on test cases that do not name their tool.
const DefaultAutomationTool = "snot"

type Config struct {
	Project     string
	Release     string
	Build       string
	Environment string
	TestPlan    string
	TestRunName string
	Hostname    string

	// ScheduleOnly files results as Scheduled and never runs them.
	ScheduleOnly bool

	// AttachTestRunID reuses an existing remote run for the default group.
	// It is only finished once every result in it has finished.
	AttachTestRunID string
	// ResultIDs maps identities to existing remote results to fetch instead
	// of creating new ones.
	ResultIDs map[string]string

	// GroupBy names the metadata field whose value selects the test run.
	GroupBy string

	Requirements   []string
	Attributes     map[string]string
	AutomationTool string
}

// Coordinator drives every result of a run through its lifecycle. Hooks are
// expected to be called from one goroutine, one test at a time.
type Coordinator struct {
	service  ResultService
	config   Config
	registry *Registry
	logger   *log.Logger
	now      func() time.Time

	groups     map[string]*TestRunGroup
	groupOrder []string

	mu      sync.Mutex
	active  *Active
	current *TestRunGroup
}

type Option func(*Coordinator)

func WithLogger(logger *log.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func NewCoordinator(service ResultService, cfg Config, opts ...Option) *Coordinator {
	if cfg.AutomationTool == "" {
		cfg.AutomationTool = DefaultAutomationTool
	}
	if cfg.Hostname == "" {
		cfg.Hostname, _ = os.Hostname()
	}
	c := &Coordinator{
		service:  service,
		config:   cfg,
		registry: NewRegistry(),
		logger:   logging.New("coordinator"),
		now:      time.Now,
		groups:   make(map[string]*TestRunGroup),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Config() Config {
	return c.config
}

// Records returns every registered record in registration order.
func (c *Coordinator) Records() []*ResultRecord {
	return c.registry.All()
}

// Record returns the record of identity.
func (c *Coordinator) Record(identity string) (*ResultRecord, bool) {
	return c.registry.Get(identity)
}

// Prepare declares every leaf case of root, in traversal order.
func (c *Coordinator) Prepare(ctx context.Context, root Node) error {
	cases := Flatten(root)
	c.logger.Info("preparing results", "tests", len(cases), "scheduleOnly", c.config.ScheduleOnly)
	for _, tc := range cases {
		if _, err := c.Declare(ctx, tc); err != nil {
			return err
		}
	}
	return nil
}

// Declare files the result of one case and registers it. Declaring an
// identity twice returns the existing record. Only transport failures are
// returned; metadata problems are logged and the result is filed anyway.
func (c *Coordinator) Declare(ctx context.Context, tc *Case) (*ResultRecord, error) {
	if rec, ok := c.registry.Get(tc.Identity); ok {
		return rec, nil
	}

	rec, testCase := c.shape(tc)

	group, err := c.group(ctx, rec.GroupKey)
	if err != nil {
		return nil, err
	}

	var remote *slick.Result
	if id := c.config.ResultIDs[tc.Identity]; id != "" {
		remote, err = c.service.FetchResult(ctx, id)
		if err != nil {
			return nil, &TransportError{Op: "fetch result " + id, Err: err}
		}
		rec.Status = ParseStatus(remote.RunStatus)
		if rec.Status == NoResult {
			rec.Status = ToBeRun
		}
		rec.Attributes = mergeAttributes(remote.Attributes, rec.Attributes)
		rec.Files = remote.Files
		rec.Links = remote.Links
	} else {
		remote, err = c.service.CreateOrFetchResult(ctx, slick.ResultRequest{
			TestCase:     testCase,
			TestRun:      group.Run,
			RunStatus:    rec.Status.String(),
			Release:      c.config.Release,
			Build:        c.config.Build,
			Environment:  c.config.Environment,
			Hostname:     c.config.Hostname,
			Attributes:   maps.Clone(rec.Attributes),
			Requirements: rec.Requirements,
		})
		if err != nil {
			return nil, &TransportError{Op: "create result for " + tc.Identity, Err: err}
		}
	}

	rec.ID = remote.ID
	rec.remote = remote
	c.registry.Put(rec)
	c.logger.Debug("declared", "test", tc.Identity, "result", rec.ID, "status", rec.Status, "group", rec.GroupKey)
	return rec, nil
}

// shape computes the record and the test case of tc. Every stage recovers
// on its own so a failure keeps what the earlier stages computed.
func (c *Coordinator) shape(tc *Case) (*ResultRecord, *slick.TestCase) {
	rec := &ResultRecord{
		Identity:   tc.Identity,
		Name:       parser.Normalize(tc.Function),
		DataDriven: tc.DataDriven,
		Status:     ToBeRun,
	}
	if c.config.ScheduleOnly {
		rec.Status = Scheduled
	}
	if rec.Name == "" {
		rec.Name = tc.Identity
	}
	meta := &parser.TestMetadata{Name: rec.Name}

	c.shapeStage(tc, "metadata", func() error {
		parsed, diags := parser.ParseWithDiagnostics(tc.Doc, tc.Function)
		for _, d := range diags {
			c.logger.Warn("documentation field skipped", "test", tc.Identity, "error", d)
		}
		if tc.DataDriven {
			parsed.Name = formatPlaceholders(parsed.Name, tc.Args)
		}
		if parsed.Name != "" {
			meta = parsed
			rec.Name = parsed.Name
		}
		rec.Steps = meta.StepPairs()
		return nil
	})
	rec.Metadata = meta

	c.shapeStage(tc, "automation key", func() error {
		if key, ok := meta.Field(parser.FieldAutomationKey); ok {
			rec.AutomationKey = key
			return nil
		}
		rec.AutomationKey = tc.File + ":" + tc.QualifiedName
		return nil
	})

	c.shapeStage(tc, "requirements", func() error {
		field, _ := meta.Field(parser.FieldRequirements)
		rec.Requirements = MergeRequirements(SplitRequirements(field), c.config.Requirements, tc.Requirements)
		return nil
	})

	c.shapeStage(tc, "attributes", func() error {
		rec.Attributes = maps.Clone(c.config.Attributes)
		if !tc.DataDriven {
			return nil
		}
		d, err := replayDescriptor(tc)
		if err != nil || d == nil {
			return err
		}
		attrs, err := d.Attributes()
		if err != nil {
			return err
		}
		for k, v := range attrs {
			rec.setAttribute(k, v)
		}
		return nil
	})

	c.shapeStage(tc, "group", func() error {
		rec.GroupKey = groupKey(meta, c.config.GroupBy)
		return nil
	})

	testCase := &slick.TestCase{Name: rec.Name, Automated: true, AutomationKey: rec.AutomationKey}
	c.shapeStage(tc, "test case", func() error {
		testCase = c.testCase(rec, meta)
		return nil
	})
	return rec, testCase
}

func (c *Coordinator) shapeStage(tc *Case, stage string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return fn()
	}()
	if err != nil {
		c.logger.Warn("result shaping failed", "error", &ShapingError{Identity: tc.Identity, Stage: stage, Err: err})
	}
}

func (c *Coordinator) testCase(rec *ResultRecord, meta *parser.TestMetadata) *slick.TestCase {
	tc := &slick.TestCase{
		Name:          rec.Name,
		Purpose:       meta.Purpose,
		Tags:          meta.Tags,
		Automated:     true,
		AutomationKey: rec.AutomationKey,
		Requirements:  rec.Requirements,
	}
	for _, s := range rec.Steps {
		tc.Steps = append(tc.Steps, slick.Step{Name: s.Name, ExpectedResult: s.ExpectedResult})
	}
	if c.config.Project != "" {
		tc.Project = &slick.ProjectReference{Name: c.config.Project}
	}
	if meta.Component != "" {
		tc.Component = &slick.NamedReference{Name: meta.Component}
	}
	tc.Author, _ = meta.Field(parser.FieldAuthor)
	tc.AutomationID, _ = meta.Field(parser.FieldAutomationID)
	tc.AutomationConfiguration, _ = meta.Field(parser.FieldAutomationConfiguration)
	if tool, ok := meta.Field(parser.FieldAutomationTool); ok {
		tc.AutomationTool = tool
	} else {
		tc.AutomationTool = c.config.AutomationTool
	}
	return tc
}

func replayDescriptor(tc *Case) (*rehydrate.Descriptor, error) {
	if tc.Replay != nil {
		return tc.Replay, nil
	}
	if tc.Package == "" && tc.Dir == "" {
		return nil, nil
	}
	d, err := rehydrate.NewDescriptor(tc.Dir, tc.Package, tc.Function, tc.Args, tc.ReceiverType, tc.Receiver)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

var placeholderPattern = regexp.MustCompile(`\{(\d+)\}`)

// formatPlaceholders replaces {0}, {1}, ... with the matching argument.
// Placeholders without an argument are kept.
func formatPlaceholders(name string, args []any) string {
	if len(args) == 0 {
		return name
	}
	return placeholderPattern.ReplaceAllStringFunc(name, func(m string) string {
		i, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || i >= len(args) {
			return m
		}
		return fmt.Sprint(args[i])
	})
}

func mergeAttributes(base, over map[string]string) map[string]string {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]string, len(over))
	}
	maps.Copy(out, over)
	return out
}

// BeforeExecution reports whether the test may run. It is false for every
// test in schedule-only mode; the host then reports the test as skipped.
func (c *Coordinator) BeforeExecution(identity string) bool {
	if c.config.ScheduleOnly {
		c.logger.Debug("schedule only, not running", "test", identity)
		return false
	}
	return true
}

// OnStart marks the result running and makes it the active result.
// Unknown identities are logged and yield a nil handle.
func (c *Coordinator) OnStart(ctx context.Context, identity string) (*Active, error) {
	return c.OnStartAt(ctx, identity, time.Time{})
}

// OnStartAt is OnStart for a host that knows when the test started. A zero
// at means now.
func (c *Coordinator) OnStartAt(ctx context.Context, identity string, at time.Time) (*Active, error) {
	rec, ok := c.registry.Get(identity)
	if !ok {
		c.logger.Warn("start of undeclared test", "test", identity)
		return nil, nil
	}
	if c.config.ScheduleOnly {
		return nil, nil
	}

	rec.Status = Running
	rec.Outcome = OutcomeNone
	rec.StartedAt = c.at(at)
	rec.FinishedAt = time.Time{}
	rec.DurationMillis = 0
	rec.Reason = ""

	if err := c.push(ctx, rec); err != nil {
		return nil, err
	}

	active := &Active{coordinator: c, record: rec}
	c.mu.Lock()
	c.active = active
	c.current = c.groups[rec.GroupKey]
	c.mu.Unlock()
	return active, nil
}

// OnFinish finishes the result with outcome. A pass of a retried test
// becomes PassedOnRetry. Without a preceding OnStart the start time is the
// finish time and the duration zero.
func (c *Coordinator) OnFinish(ctx context.Context, identity string, outcome Outcome, failure *FailureInfo) error {
	return c.OnFinishAt(ctx, identity, time.Time{}, outcome, failure)
}

// OnFinishAt is OnFinish for a host that knows when the test finished. A
// zero at means now.
func (c *Coordinator) OnFinishAt(ctx context.Context, identity string, at time.Time, outcome Outcome, failure *FailureInfo) error {
	rec, ok := c.registry.Get(identity)
	if !ok {
		c.logger.Warn("finish of undeclared test", "test", identity)
		return nil
	}
	if c.config.ScheduleOnly {
		return nil
	}
	defer c.release(rec)

	if outcome == Pass && rec.Retried() {
		outcome = PassedOnRetry
	}
	rec.Status = Finished
	rec.Outcome = outcome
	rec.FinishedAt = c.at(at)
	if rec.StartedAt.IsZero() || rec.StartedAt.After(rec.FinishedAt) {
		rec.StartedAt = rec.FinishedAt
	}
	rec.DurationMillis = rec.FinishedAt.Sub(rec.StartedAt).Milliseconds()

	reason, captured := renderFailure(failure)
	rec.Reason = reason
	if captured != "" {
		ref, err := c.service.UploadFile(ctx, CapturedOutputFilename, "text/plain", []byte(captured))
		if err != nil {
			return &TransportError{Op: "upload captured output of " + identity, Err: err}
		}
		rec.Files = append(rec.Files, *ref)
	}

	c.logger.Debug("finished", "test", identity, "outcome", rec.Outcome, "duration", rec.Duration())
	return c.push(ctx, rec)
}

func (c *Coordinator) at(t time.Time) time.Time {
	if t.IsZero() {
		return c.now()
	}
	return t
}

// OnSuccess finishes a passing test.
func (c *Coordinator) OnSuccess(ctx context.Context, identity string) error {
	return c.OnFinish(ctx, identity, Pass, nil)
}

// OnFailure finishes a test whose checks failed.
func (c *Coordinator) OnFailure(ctx context.Context, identity string, failure *FailureInfo) error {
	return c.OnFinish(ctx, identity, Fail, failure)
}

// OnError finishes a test that ended abnormally.
func (c *Coordinator) OnError(ctx context.Context, identity string, reason AbnormalReason, notTested bool, failure *FailureInfo) error {
	return c.OnFinish(ctx, identity, ClassifyAbnormalOutcome(reason, notTested), failure)
}

// MarkRetry flags the result as retried so a later pass is recorded as
// PassedOnRetry, and reopens it if it already finished.
func (c *Coordinator) MarkRetry(identity string) {
	rec, ok := c.registry.Get(identity)
	if !ok {
		return
	}
	rec.setAttribute(RetryAttribute, "true")
	if rec.Status == Finished {
		rec.Status = ToBeRun
		rec.Outcome = OutcomeNone
	}
}

// Log forwards entries to the log of identity's result.
func (c *Coordinator) Log(ctx context.Context, identity string, entries ...slick.LogEntry) error {
	rec, ok := c.registry.Get(identity)
	if !ok || rec.ID == "" || len(entries) == 0 {
		return nil
	}
	if err := c.service.AddLogEntry(ctx, rec.ID, entries...); err != nil {
		return &TransportError{Op: "add log entries to " + identity, Err: err}
	}
	return nil
}

func (c *Coordinator) push(ctx context.Context, rec *ResultRecord) error {
	updated, err := c.service.UpdateResult(ctx, rec.toRemote())
	if err != nil {
		return &TransportError{Op: "update result of " + rec.Identity, Err: err}
	}
	rec.remote = updated
	return nil
}

func (c *Coordinator) release(rec *ResultRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && c.active.record == rec {
		c.active = nil
	}
}

// Summary counts finished records by outcome.
func (c *Coordinator) Summary() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, rec := range c.registry.All() {
		counts[rec.Outcome]++
	}
	return counts
}

// groupKey reads the grouping value of meta. The component and tags fields
// are recognized; tags group by their first tag.
func groupKey(meta *parser.TestMetadata, field string) string {
	if field == "" || meta == nil {
		return ""
	}
	switch {
	case strings.EqualFold(field, parser.FieldComponent):
		return meta.Component
	case strings.EqualFold(field, parser.FieldTags):
		if len(meta.Tags) > 0 {
			return meta.Tags[0]
		}
		return ""
	}
	v, _ := meta.Field(field)
	return v
}
