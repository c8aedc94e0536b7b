// Package gotest hosts the lifecycle coordinator on top of go test -json:
// discovered tests are declared up front, the event stream drives their
// start and finish, and failed tests can be rerun.
package gotest

import (
	"context"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abdul-hamid-achik/snot/packages/core/runner"
	"github.com/abdul-hamid-achik/snot/packages/discover"
	"github.com/abdul-hamid-achik/snot/packages/logging"
	"github.com/abdul-hamid-achik/snot/packages/slick"
	"github.com/abdul-hamid-achik/snot/packages/snottest"
)

// Options configure a Driver.
type Options struct {
	Dir           string   // directory go test runs in, usually the module root
	Flags         []string // extra go test flags, e.g. -race or -count=1
	Retries       int      // reruns of failed tests
	ForwardOutput bool     // forward test output as result log entries
}

// Driver runs go test for a set of discovered packages and reports every
// event to a Coordinator.
type Driver struct {
	coordinator *runner.Coordinator
	executor    Executor
	opts        Options
	logger      *log.Logger

	cases    map[string]*runner.Case
	pkgOf    map[string]string // identity -> import path
	order    []string          // identities in declaration order
	packages []string

	// state of the current pass
	tests  map[string]*testState
	pkgs   map[string]*packageState
	filter map[string]bool
}

type Option func(*Driver)

func WithLogger(logger *log.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

func New(c *runner.Coordinator, executor Executor, opts Options, options ...Option) *Driver {
	d := &Driver{
		coordinator: c,
		executor:    executor,
		opts:        opts,
		logger:      logging.New("gotest"),
		cases:       make(map[string]*runner.Case),
		pkgOf:       make(map[string]string),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Run declares every test of pkgs, runs them and finalizes the coordinator.
// In schedule-only mode nothing runs. Only transport errors and failures to
// run go itself are returned; test failures are recorded on the results.
func (d *Driver) Run(ctx context.Context, pkgs []*discover.Package) error {
	if err := d.coordinator.Prepare(ctx, d.index(pkgs)); err != nil {
		return err
	}
	if d.coordinator.Config().ScheduleOnly {
		return d.coordinator.Finalize(ctx)
	}

	if err := d.pass(ctx, d.packages, "", nil); err != nil {
		return err
	}
	for attempt := 1; attempt <= d.opts.Retries; attempt++ {
		failed := d.failed()
		if len(failed) == 0 {
			break
		}
		d.logger.Info("rerunning failed tests", "attempt", attempt, "tests", len(failed))
		if err := d.rerun(ctx, failed); err != nil {
			return err
		}
	}
	return d.coordinator.Finalize(ctx)
}

func (d *Driver) index(pkgs []*discover.Package) runner.Node {
	root := &runner.Group{}
	for _, p := range pkgs {
		d.packages = append(d.packages, p.ImportPath)
		node := p.Node()
		for _, tc := range runner.Flatten(node) {
			d.track(tc, p.ImportPath)
		}
		root.Children = append(root.Children, node)
	}
	return root
}

func (d *Driver) track(tc *runner.Case, importPath string) {
	if _, ok := d.cases[tc.Identity]; !ok {
		d.order = append(d.order, tc.Identity)
	}
	d.cases[tc.Identity] = tc
	d.pkgOf[tc.Identity] = importPath
}

// failed lists the finished results that failed, in declaration order.
func (d *Driver) failed() []string {
	var ids []string
	for _, id := range d.order {
		rec, ok := d.coordinator.Record(id)
		if ok && rec.Status == runner.Finished && rec.Outcome.Failed() {
			ids = append(ids, id)
		}
	}
	return ids
}

// rerun runs the top-level tests holding each failed identity again, one go
// test invocation per package, and only applies events of those identities.
func (d *Driver) rerun(ctx context.Context, failed []string) error {
	filter := make(map[string]bool, len(failed))
	tops := make(map[string][]string)
	for _, id := range failed {
		d.coordinator.MarkRetry(id)
		filter[id] = true

		pkg := d.pkgOf[id]
		top, _, _ := strings.Cut(strings.TrimPrefix(id, pkg+"."), "/")
		pattern := regexp.QuoteMeta(top)
		if !contains(tops[pkg], pattern) {
			tops[pkg] = append(tops[pkg], pattern)
		}
	}

	for _, pkg := range d.packages {
		names := tops[pkg]
		if len(names) == 0 {
			continue
		}
		run := "^(" + strings.Join(names, "|") + ")$"
		if err := d.pass(ctx, []string{pkg}, run, filter); err != nil {
			return err
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// pass runs go test once. filter, when set, limits which identities the
// events may touch.
func (d *Driver) pass(ctx context.Context, pkgs []string, run string, filter map[string]bool) error {
	args := []string{"test", "-json"}
	args = append(args, d.opts.Flags...)
	if run != "" {
		args = append(args, "-run", run)
	}
	args = append(args, pkgs...)

	d.tests = make(map[string]*testState)
	d.pkgs = make(map[string]*packageState)
	d.filter = filter

	err := d.executor.Exec(ctx, d.opts.Dir, args, func(r io.Reader) error {
		malformed, err := ParseEvents(r, func(ev Event) error {
			return d.handle(ctx, ev)
		})
		if malformed > 0 {
			d.logger.Debug("skipped lines that are not test events", "count", malformed)
		}
		return err
	})
	if err != nil {
		return err
	}
	return d.settle(ctx, pkgs)
}

func (d *Driver) handle(ctx context.Context, ev Event) error {
	if ev.Action == ActionBuildOutput {
		p := d.pkg(ev.Pkg())
		p.output = append(p.output, strings.TrimRight(ev.Output, "\n"))
		return nil
	}
	if ev.Test == "" {
		d.handlePackage(ev)
		return nil
	}
	if ev.Action == ActionRun {
		d.pkg(ev.Package).ranTests = true
	}

	st, err := d.test(ctx, ev)
	if err != nil || st == nil {
		return err
	}

	switch ev.Action {
	case ActionRun:
		return d.start(ctx, st, ev.Time)
	case ActionOutput:
		return d.output(ctx, st, ev)
	case ActionPass, ActionFail, ActionSkip:
		return d.finish(ctx, st, ev)
	}
	return nil
}

func (d *Driver) handlePackage(ev Event) {
	p := d.pkg(ev.Package)
	switch ev.Action {
	case ActionOutput:
		if line := strings.TrimRight(ev.Output, "\n"); line != "" {
			p.output = append(p.output, line)
		}
	case ActionFail:
		p.failed = true
		p.failedBuild = ev.FailedBuild
	}
}

func (d *Driver) pkg(importPath string) *packageState {
	p, ok := d.pkgs[importPath]
	if !ok {
		p = &packageState{}
		d.pkgs[importPath] = p
	}
	return p
}

// test returns the state of the event's test, declaring subtests of known
// tests on first sight. Tests that are neither known nor subtests of a
// known test are not tracked.
func (d *Driver) test(ctx context.Context, ev Event) (*testState, error) {
	id := discover.Identity(ev.Package, ev.Test)
	if st, ok := d.tests[id]; ok {
		return st, nil
	}
	if d.filter != nil && !d.filter[id] {
		return nil, nil
	}
	if _, ok := d.cases[id]; !ok {
		declared, err := d.declareSubtest(ctx, ev.Package, ev.Test)
		if err != nil || !declared {
			return nil, err
		}
	}
	st := &testState{identity: id}
	d.tests[id] = st
	return st, nil
}

// declareSubtest declares a t.Run subtest as a data-driven case of its
// parent. The subtest name is its first argument, so a {0} in the parent's
// title is replaced by it.
func (d *Driver) declareSubtest(ctx context.Context, pkg, test string) (bool, error) {
	i := strings.LastIndex(test, "/")
	if i < 0 {
		return false, nil
	}
	parent, ok := d.cases[discover.Identity(pkg, test[:i])]
	if !ok {
		return false, nil
	}
	sub := test[i+1:]
	tc := &runner.Case{
		Identity:      discover.Identity(pkg, test),
		File:          parent.File,
		QualifiedName: parent.QualifiedName + "/" + sub,
		Function:      parent.Function + "_" + sub,
		Doc:           parent.Doc,
		DataDriven:    true,
		Args:          []any{sub},
		Requirements:  parent.Requirements,
	}
	if _, err := d.coordinator.Declare(ctx, tc); err != nil {
		return false, err
	}
	d.track(tc, pkg)
	return true, nil
}

func (d *Driver) start(ctx context.Context, st *testState, at time.Time) error {
	active, err := d.coordinator.OnStartAt(ctx, st.identity, at)
	if err != nil {
		return err
	}
	st.active = active
	st.started = true
	return nil
}

func (d *Driver) output(ctx context.Context, st *testState, ev Event) error {
	line := strings.TrimRight(ev.Output, "\n")
	if line == "" || isFrameworkLine(line) {
		return nil
	}
	if dir, ok := snottest.ParseDirective(line); ok {
		return d.directive(ctx, st, dir)
	}
	if strings.HasPrefix(line, "panic: ") {
		st.panicked = true
	}
	st.lines = append(st.lines, outputLine{text: line, millis: slick.Millis(ev.Time)})
	return nil
}

func (d *Driver) directive(ctx context.Context, st *testState, dir snottest.Directive) error {
	c := d.coordinator
	switch dir.Kind {
	case snottest.KindAttachFile:
		if st.active == nil {
			return nil
		}
		return d.attachErr(dir, st.active.AttachFile(ctx, dir.Arg(0), nil))
	case snottest.KindAttachLink:
		if st.active != nil {
			st.active.AttachLink(dir.Arg(0), dir.Arg(1))
		}
	case snottest.KindGroupFile:
		return d.attachErr(dir, c.AttachFileToGroup(ctx, dir.Arg(0), nil))
	case snottest.KindGroupLink:
		return d.attachErr(dir, c.AttachLinkToGroup(ctx, dir.Arg(0), dir.Arg(1)))
	case snottest.KindNotTested:
		st.notTested = true
		st.skipReason = dir.Arg(0)
	case snottest.KindPassedOnRetry:
		st.passedOnRetry = true
	default:
		d.logger.Warn("unknown directive", "test", st.identity, "kind", dir.Kind)
	}
	return nil
}

// attachErr keeps transport errors and logs the rest; a missing file must
// not abort the run.
func (d *Driver) attachErr(dir snottest.Directive, err error) error {
	if err == nil || runner.IsTransportError(err) {
		return err
	}
	d.logger.Warn("attachment failed", "kind", dir.Kind, "error", err)
	return nil
}

// finish records the outcome of a terminal event at the time go test
// reported it.
func (d *Driver) finish(ctx context.Context, st *testState, ev Event) error {
	if st.done {
		return nil
	}
	var (
		outcome runner.Outcome
		failure *runner.FailureInfo
	)
	switch ev.Action {
	case ActionPass:
		outcome = runner.Pass
		if st.passedOnRetry {
			outcome = runner.ClassifyAbnormalOutcome(runner.ReasonPassedOnRetry, false)
		}
	case ActionFail:
		outcome = runner.Fail
		if st.panicked {
			outcome = runner.ClassifyAbnormalOutcome(runner.ReasonError, false)
		}
		failure = st.failure()
	case ActionSkip:
		outcome = runner.ClassifyAbnormalOutcome(runner.ReasonSkip, st.notTested)
		failure = st.skipped()
	default:
		return nil
	}
	if err := d.coordinator.OnFinishAt(ctx, st.identity, ev.Time, outcome, failure); err != nil {
		return err
	}
	st.done = true
	return d.forward(ctx, st)
}

func (d *Driver) forward(ctx context.Context, st *testState) error {
	if !d.opts.ForwardOutput || len(st.lines) == 0 {
		return nil
	}
	entries := make([]slick.LogEntry, 0, len(st.lines))
	for _, l := range st.lines {
		entries = append(entries, slick.LogEntry{
			EntryTime:  l.millis,
			Level:      "INFO",
			LoggerName: "go test",
			Message:    l.text,
		})
	}
	return d.coordinator.Log(ctx, st.identity, entries...)
}

// settle finishes what the stream left open: tests that started but never
// reported, and tests of packages that failed before running any test.
func (d *Driver) settle(ctx context.Context, pkgs []string) error {
	inPass := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		inPass[p] = true
	}

	for _, id := range d.order {
		if !inPass[d.pkgOf[id]] || (d.filter != nil && !d.filter[id]) {
			continue
		}
		st := d.tests[id]
		p := d.pkgs[d.pkgOf[id]]

		var err error
		switch {
		case st != nil && st.started && !st.done:
			err = d.coordinator.OnError(ctx, id, runner.ReasonError, false, st.incomplete())
			st.done = true
		case (st == nil || !st.started) && p != nil && p.failed && !p.ranTests:
			err = d.coordinator.OnError(ctx, id, runner.ReasonError, false, p.failure())
		}
		if err != nil {
			return err
		}
	}
	return nil
}
