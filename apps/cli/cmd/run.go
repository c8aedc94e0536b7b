package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/snot/packages/core/config"
	"github.com/abdul-hamid-achik/snot/packages/core/runner"
	"github.com/abdul-hamid-achik/snot/packages/discover"
	exportmetrics "github.com/abdul-hamid-achik/snot/packages/export/metrics"
	"github.com/abdul-hamid-achik/snot/packages/gotest"
	"github.com/abdul-hamid-achik/snot/packages/journal"
	"github.com/abdul-hamid-achik/snot/packages/logging"
	"github.com/abdul-hamid-achik/snot/packages/metrics"
	"github.com/abdul-hamid-achik/snot/packages/notify"
	"github.com/abdul-hamid-achik/snot/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run [packages]",
	Short: "Run Go tests and file their results in Slick",
	Long: `Run the tests of the given packages (default ./...) with go test and
file one Slick result per test. Results are scheduled before the first
test starts, so the whole run is visible in Slick while it executes.

Examples:
  snot run --url https://slick.example.com --project Checkout
  snot run ./shop/... --run 'TestLogin|TestCart' --release 2.1 --build 17
  snot run --group-by component -o console,junit --output-file report.xml
  snot run --rerun-failed 2 --forward-output
  snot run --attach latest                 # run a scheduled session
  snot run --threshold "p95<2s,passRate>=95%"
  snot run --notify slack --notify-on recovery --slack-webhook $HOOK
  snot run --metrics-file /var/lib/node_exporter/snot.prom`,
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	outputFlag        string
	outputFileFlag    string
	rerunFailedFlag   int
	forwardOutputFlag bool
	attachFlag        string
	watchFlag         bool
	thresholdFlag     string

	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string

	metricsFileFlag string
	pushgatewayFlag string
	metricsAddrFlag string
)

// runSinks receive the outcome of every run of one invocation.
type runSinks struct {
	thresholds metrics.Thresholds
	notifier   *notify.Manager
	exporter   *exportmetrics.Exporter
}

func init() {
	addResultFlags(runCmd)

	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("SNOT_OUTPUT", ""), "Reporters, comma separated: console, json, junit, tap (env: SNOT_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("SNOT_OUTPUT_FILE", ""), "Write the report of a single file reporter here (env: SNOT_OUTPUT_FILE)")
	runCmd.Flags().IntVar(&rerunFailedFlag, "rerun-failed", getEnvInt("SNOT_RERUN_FAILED", 0), "Rerun failed tests up to N times (env: SNOT_RERUN_FAILED)")
	runCmd.Flags().BoolVar(&forwardOutputFlag, "forward-output", getEnvBool("SNOT_FORWARD_OUTPUT", false), "Forward test output to Slick as result logs (env: SNOT_FORWARD_OUTPUT)")
	runCmd.Flags().StringVar(&attachFlag, "attach", "", "Run against the results of a scheduled session (id or \"latest\")")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch test files for changes and re-run")
	runCmd.Flags().StringVar(&thresholdFlag, "threshold", getEnvString("SNOT_THRESHOLD", ""), "Pass/fail thresholds, e.g. \"p95<2s,passRate>=95%\" (env: SNOT_THRESHOLD)")

	// Notification flags
	runCmd.Flags().StringVar(&notifyFlag, "notify", getEnvString("SNOT_NOTIFY", ""), "Post a run summary to: slack, teams (comma separated) (env: SNOT_NOTIFY)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("SNOT_NOTIFY_ON", "failure"), "When to notify: always, failure, success, recovery (env: SNOT_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK_URL", ""), "Slack incoming webhook URL (env: SLACK_WEBHOOK_URL)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK_URL", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK_URL)")

	// Metrics flags
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", getEnvString("SNOT_METRICS_FILE", ""), "Write Prometheus metrics of the run to a textfile (env: SNOT_METRICS_FILE)")
	runCmd.Flags().StringVar(&pushgatewayFlag, "pushgateway", getEnvString("SNOT_PUSHGATEWAY", ""), "Push Prometheus metrics of the run to this Pushgateway URL (env: SNOT_PUSHGATEWAY)")
	runCmd.Flags().StringVar(&metricsAddrFlag, "metrics-addr", getEnvString("SNOT_METRICS_ADDR", ""), "Serve Prometheus metrics on this address while watching, e.g. :9090 (env: SNOT_METRICS_ADDR)")
}

// Formatter is implemented by every reporter in the output package.
type Formatter interface {
	FormatResult(rec *runner.ResultRecord)
	FormatError(err error)
	FormatHeader(version string)
	Flush(summary *metrics.Summary, totalDuration time.Duration) error
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sinks := &runSinks{}
	if thresholdFlag != "" {
		if sinks.thresholds, err = metrics.ParseThresholds(thresholdFlag); err != nil {
			return withCode(ExitUsageError, err)
		}
	}
	if sinks.notifier, err = newNotifier(); err != nil {
		return err
	}
	if metricsFileFlag != "" || pushgatewayFlag != "" || metricsAddrFlag != "" {
		sinks.exporter = exportmetrics.NewExporter(cfg.Project)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddrFlag != "" && watchFlag {
		go func() {
			if err := sinks.exporter.Serve(ctx, metricsAddrFlag); err != nil {
				logging.New("metrics").Error("metrics server stopped", "err", err)
			}
		}()
	}

	patterns := args
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	run := func() error {
		return execute(ctx, cmd, cfg, patterns, sinks)
	}
	if !watchFlag {
		return run()
	}
	return watch(ctx, cmd, run)
}

// execute performs one run: discovery, scheduling, go test and reporting.
func execute(ctx context.Context, cmd *cobra.Command, cfg *config.Config, patterns []string, sinks *runSinks) error {
	start := time.Now()
	logger := logging.New("run")

	opts := discover.Options{}
	if runFlag != "" {
		re, err := regexp.Compile(runFlag)
		if err != nil {
			return withCode(ExitUsageError, fmt.Errorf("invalid --run pattern: %w", err))
		}
		opts.Run = re
	}
	mod, pkgs, err := discover.Discover(".", patterns, opts)
	if err != nil {
		return withCode(ExitParseError, err)
	}
	if len(pkgs) == 0 {
		return withCode(ExitParseError, fmt.Errorf("no tests found in %s", strings.Join(patterns, " ")))
	}

	jr, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer jr.Close()

	rc := coordinatorConfig(cfg)
	session, err := startSession(ctx, jr, &rc)
	if err != nil {
		return err
	}
	logger.Debug("session started", "id", session.ID, "packages", len(pkgs))

	reporters, closeReporters, err := newReporters(cmd.OutOrStdout(), cfg)
	if err != nil {
		return err
	}
	defer closeReporters()
	for _, r := range reporters {
		r.FormatHeader(version)
	}

	coordinator := runner.NewCoordinator(newClient(cfg), rc, runner.WithLogger(logging.New("coordinator")))
	driver := gotest.New(coordinator,
		&gotest.ExecExecutor{Stderr: cmd.ErrOrStderr(), Logger: logging.New("go")},
		gotest.Options{
			Dir:           mod.Root,
			Flags:         goTestFlags(),
			Retries:       cfg.RerunFailed,
			ForwardOutput: cfg.GetForwardOutput(),
		},
		gotest.WithLogger(logging.New("gotest")),
	)
	runErr := driver.Run(ctx, pkgs)

	records := coordinator.Records()
	if err := jr.Record(ctx, session.ID, records); err != nil {
		logger.Warn("cannot record session", "err", err)
	}
	for _, g := range coordinator.Groups() {
		if g.Key == "" && g.Run != nil && g.Run.ID != session.TestRunID {
			if err := jr.SetTestRun(ctx, session.ID, g.Run.ID); err != nil {
				logger.Warn("cannot record test run", "err", err)
			}
		}
	}

	m := metrics.FromRecords(records)
	summary := m.GetSummary()
	for _, r := range reporters {
		for _, rec := range records {
			r.FormatResult(rec)
		}
		if runErr != nil {
			r.FormatError(runErr)
		}
		if err := r.Flush(summary, time.Since(start)); err != nil {
			return fmt.Errorf("cannot write report: %w", err)
		}
	}

	if !rc.ScheduleOnly {
		sinks.publish(ctx, rc, coordinator, summary, time.Since(start))
	}

	if runErr != nil {
		return runErr
	}

	failed := summary.Failed > 0
	for _, res := range m.EvaluateThresholds(sinks.thresholds) {
		if !res.Passed {
			logger.Error("threshold failed", "name", res.Name, "expected", res.Expected, "actual", res.Actual)
			failed = true
		}
	}
	if failed {
		return withCode(ExitTestFailure, nil)
	}
	return nil
}

// publish hands a finished run to the notifier and the metrics exporter.
// Their failures are logged and never fail the run.
func (s *runSinks) publish(ctx context.Context, rc runner.Config, c *runner.Coordinator, summary *metrics.Summary, d time.Duration) {
	logger := logging.New("run")
	records := c.Records()

	if s.notifier != nil {
		ns := notify.NewRunSummary(rc, records, c.Groups(), summary, d)
		if err := s.notifier.Notify(ctx, ns); err != nil {
			logger.Warn("failed to send notification", "err", err)
		}
	}

	if s.exporter == nil {
		return
	}
	s.exporter.Observe(records, summary, d)
	if metricsFileFlag != "" {
		if err := s.exporter.WriteTextfile(metricsFileFlag); err != nil {
			logger.Warn("cannot export metrics", "err", err)
		}
	}
	if pushgatewayFlag != "" {
		if err := s.exporter.Push(ctx, pushgatewayFlag, "snot"); err != nil {
			logger.Warn("cannot export metrics", "err", err)
		}
	}
}

// newNotifier returns nil when no notification service is selected.
func newNotifier() (*notify.Manager, error) {
	services := splitList(notifyFlag)
	if len(services) == 0 {
		return nil, nil
	}
	on, err := notify.ParseNotifyOn(notifyOnFlag)
	if err != nil {
		return nil, withCode(ExitUsageError, err)
	}

	var notifiers []notify.Notifier
	for _, service := range services {
		switch strings.ToLower(service) {
		case "slack":
			if slackWebhookFlag == "" {
				return nil, withCode(ExitConfigError, fmt.Errorf("--notify slack needs --slack-webhook or SLACK_WEBHOOK_URL"))
			}
			var opts []notify.SlackOption
			if slackChannelFlag != "" {
				opts = append(opts, notify.WithSlackChannel(slackChannelFlag))
			}
			notifiers = append(notifiers, notify.NewSlackNotifier(slackWebhookFlag, opts...))
		case "teams":
			if teamsWebhookFlag == "" {
				return nil, withCode(ExitConfigError, fmt.Errorf("--notify teams needs --teams-webhook or TEAMS_WEBHOOK_URL"))
			}
			notifiers = append(notifiers, notify.NewTeamsNotifier(teamsWebhookFlag))
		default:
			return nil, withCode(ExitUsageError, fmt.Errorf("unknown notification service %q (use slack or teams)", service))
		}
	}
	return notify.NewManager(on, notifiers...), nil
}

func goTestFlags() []string {
	flags := append([]string(nil), goFlags...)
	if runFlag != "" {
		flags = append(flags, "-run", runFlag)
	}
	return flags
}

func openJournal(cfg *config.Config) (*journal.Journal, error) {
	path := cfg.Journal
	if path == "" {
		path = journal.DefaultPath
	}
	jr, err := journal.Open(path)
	if err != nil {
		return nil, withCode(ExitConfigError, err)
	}
	return jr, nil
}

// startSession opens a new journal session, or with --attach resumes a
// recorded one: its results are fetched instead of created and its default
// test run is reused.
func startSession(ctx context.Context, jr *journal.Journal, rc *runner.Config) (*journal.Session, error) {
	if attachFlag == "" {
		return jr.NewSession(ctx, journal.Session{
			Project:      rc.Project,
			TestRunName:  rc.TestRunName,
			ScheduleOnly: rc.ScheduleOnly,
		})
	}

	session, err := jr.Session(ctx, attachFlag)
	if err != nil {
		if errors.Is(err, journal.ErrSessionNotFound) {
			return nil, withCode(ExitUsageError, fmt.Errorf("session %q: %w", attachFlag, err))
		}
		return nil, err
	}
	ids, err := jr.ResultIDs(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	rc.ResultIDs = ids
	rc.AttachTestRunID = session.TestRunID
	rc.ScheduleOnly = false
	return session, nil
}

// newReporters builds the configured reporters. The console reporter always
// writes to out; a single file reporter writes to the output file when one
// is configured.
func newReporters(out io.Writer, cfg *config.Config) ([]Formatter, func(), error) {
	names := cfg.Reporters
	if len(names) == 0 {
		names = []string{"console"}
	}

	var fileWriter io.Writer = out
	closeFn := func() {}
	if cfg.OutputFile != "" {
		fileReporters := 0
		for _, name := range names {
			if !strings.EqualFold(name, "console") {
				fileReporters++
			}
		}
		if fileReporters > 1 {
			return nil, nil, withCode(ExitUsageError, fmt.Errorf("--output-file takes a single file reporter, got %s", strings.Join(names, ",")))
		}
		f, err := os.Create(cfg.OutputFile)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot create output file: %w", err)
		}
		fileWriter = f
		closeFn = func() { _ = f.Close() }
	}

	var formatters []Formatter
	for _, name := range names {
		switch strings.ToLower(name) {
		case "console":
			formatters = append(formatters, output.NewConsoleFormatter(
				output.WithWriter(out),
				output.WithVerbose(cfg.GetVerbose()),
				output.WithNoColor(cfg.GetNoColor() || quietFlag),
			))
		case "json":
			formatters = append(formatters, output.NewJSONFormatter(output.JSONWithWriter(fileWriter)))
		case "junit":
			formatters = append(formatters, output.NewJUnitFormatter(output.JUnitWithWriter(fileWriter)))
		case "tap":
			formatters = append(formatters, output.NewTAPFormatter(output.TAPWithWriter(fileWriter)))
		default:
			closeFn()
			return nil, nil, withCode(ExitUsageError, fmt.Errorf("unknown reporter %q (use console, json, junit or tap)", name))
		}
	}
	return formatters, closeFn, nil
}

// watch runs once, then again after every change to a Go test file below
// the working directory, until ctx is cancelled.
func watch(ctx context.Context, cmd *cobra.Command, run func() error) error {
	report := func() {
		if err := run(); err != nil {
			if msg := err.Error(); msg != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", msg)
			}
		}
	}
	report()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != "." && (strings.HasPrefix(d.Name(), ".") || d.Name() == "vendor" || d.Name() == "testdata") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("failed to watch: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	changed := make(chan string, 1)
	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasSuffix(event.Name, "_test.go") {
				continue
			}
			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				select {
				case changed <- name:
				default:
				}
			})
		case name := <-changed:
			fmt.Fprintf(cmd.OutOrStdout(), "\nFile changed: %s\nRe-running tests...\n\n", name)
			report()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.New("watch").Warn("watcher error", "err", err)
		}
	}
}
