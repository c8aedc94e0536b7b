package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/snot/packages/core/config"
	"github.com/abdul-hamid-achik/snot/packages/core/env"
	"github.com/abdul-hamid-achik/snot/packages/core/runner"
	"github.com/abdul-hamid-achik/snot/packages/logging"
	"github.com/abdul-hamid-achik/snot/packages/slick"
)

// Flags shared by run and schedule.
var (
	urlFlag          string
	tokenFlag        string
	projectFlag      string
	releaseFlag      string
	buildFlag        string
	environmentFlag  string
	testPlanFlag     string
	testRunNameFlag  string
	groupByFlag      string
	requirementsFlag []string
	attributesFlag   map[string]string
	timeoutFlag      string
	rateLimitFlag    float64
	journalFlag      string
	proxyFlag        string
	insecureFlag     bool
	runFlag          string
	goFlags          []string
)

func addResultFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&urlFlag, "url", getEnvString("SNOT_URL", ""), "Slick base URL (env: SNOT_URL)")
	f.StringVar(&tokenFlag, "token", getEnvString("SNOT_TOKEN", ""), "Slick API token (env: SNOT_TOKEN)")
	f.StringVar(&projectFlag, "project", getEnvString("SNOT_PROJECT", ""), "Project name (env: SNOT_PROJECT)")
	f.StringVar(&releaseFlag, "release", getEnvString("SNOT_RELEASE", ""), "Release name (env: SNOT_RELEASE)")
	f.StringVar(&buildFlag, "build", getEnvString("SNOT_BUILD", ""), "Build name (env: SNOT_BUILD)")
	f.StringVar(&environmentFlag, "environment", getEnvString("SNOT_ENVIRONMENT", ""), "Environment (configuration) name (env: SNOT_ENVIRONMENT)")
	f.StringVar(&testPlanFlag, "test-plan", getEnvString("SNOT_TEST_PLAN", ""), "Test plan id (env: SNOT_TEST_PLAN)")
	f.StringVar(&testRunNameFlag, "test-run-name", getEnvString("SNOT_TEST_RUN_NAME", ""), "Test run name, may use {{...}} templates (env: SNOT_TEST_RUN_NAME)")
	f.StringVar(&groupByFlag, "group-by", getEnvString("SNOT_GROUP_BY", ""), "Documentation field that splits results into test runs, e.g. component (env: SNOT_GROUP_BY)")
	f.StringSliceVar(&requirementsFlag, "requirement", nil, "Requirement added to every result (repeatable)")
	f.StringToStringVar(&attributesFlag, "attribute", nil, "Attribute added to every result, key=value (repeatable)")
	f.StringVar(&timeoutFlag, "timeout", getEnvString("SNOT_TIMEOUT", ""), "Request timeout, e.g. 30s (env: SNOT_TIMEOUT)")
	f.Float64Var(&rateLimitFlag, "rate-limit", getEnvFloat("SNOT_RATE_LIMIT", 0), "Maximum Slick requests per second, 0 for no limit (env: SNOT_RATE_LIMIT)")
	f.StringVar(&journalFlag, "journal", getEnvString("SNOT_JOURNAL", ""), "Journal database, sqlite://path or a file path (env: SNOT_JOURNAL)")
	f.StringVar(&proxyFlag, "proxy", getEnvString("SNOT_PROXY", ""), "Proxy URL for Slick requests (env: SNOT_PROXY)")
	f.BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("SNOT_INSECURE", false), "Disable SSL certificate validation (env: SNOT_INSECURE)")
	f.StringVar(&runFlag, "run", "", "Only run tests matching the regular expression, as go test -run")
	f.StringArrayVar(&goFlags, "go-flag", nil, "Extra go test flag, e.g. --go-flag=-race (repeatable)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadConfig reads the config file and applies the flags of cmd over it.
// Boolean flags only apply when set on the command line or through their
// environment variable.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, withCode(ExitConfigError, err)
	}

	cli := &config.Config{
		URL:          urlFlag,
		Token:        tokenFlag,
		Project:      projectFlag,
		Release:      releaseFlag,
		Build:        buildFlag,
		Environment:  environmentFlag,
		TestPlan:     testPlanFlag,
		TestRunName:  testRunNameFlag,
		GroupBy:      groupByFlag,
		Requirements: requirementsFlag,
		Attributes:   attributesFlag,
		RateLimit:    rateLimitFlag,
		Journal:      journalFlag,
		Proxy:        proxyFlag,
		OutputFile:   outputFileFlag,
		RerunFailed:  rerunFailedFlag,
		Reporters:    splitList(outputFlag),
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, withCode(ExitUsageError, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err))
		}
		cli.Timeout = int(d.Milliseconds())
	}

	for name, dst := range map[string]**bool{
		"forward-output": &cli.ForwardOutput,
		"no-color":       &cli.NoColor,
	} {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if f.Changed || os.Getenv(envName(name)) != "" {
			v, _ := strconv.ParseBool(f.Value.String())
			*dst = config.BoolPtr(v)
		}
	}
	if f := cmd.Flags().Lookup("insecure"); f != nil && (f.Changed || os.Getenv(envName("insecure")) != "") {
		cli.ValidateSSL = config.BoolPtr(!insecureFlag)
	}
	if verboseFlag > 0 {
		cli.Verbose = config.BoolPtr(true)
	}

	cfg := fileConfig.Merge(cli)
	if cfg.URL == "" {
		return nil, withCode(ExitConfigError, fmt.Errorf("no Slick URL configured (use --url, SNOT_URL or the url config field)"))
	}
	return cfg, nil
}

// envName is the environment variable a flag defaults from.
func envName(flag string) string {
	return "SNOT_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// coordinatorConfig resolves the templates of cfg into the settings of one run.
func coordinatorConfig(cfg *config.Config) runner.Config {
	logger := logging.New("config")
	resolver := env.NewResolver()
	resolver.SetVariables(env.RunVariables(cfg))
	resolver.SetWarnFunc(func(format string, args ...any) {
		logger.Warnf(format, args...)
	})

	hostname, _ := os.Hostname()
	return runner.Config{
		Project:        cfg.Project,
		Release:        resolver.Resolve(cfg.Release),
		Build:          resolver.Resolve(cfg.Build),
		Environment:    resolver.Resolve(cfg.Environment),
		TestPlan:       cfg.TestPlan,
		TestRunName:    resolver.Resolve(cfg.TestRunName),
		Hostname:       hostname,
		ScheduleOnly:   cfg.GetScheduleOnly(),
		GroupBy:        cfg.GroupBy,
		Requirements:   runner.MergeRequirements(cfg.Requirements),
		Attributes:     resolver.ResolveAll(cfg.Attributes),
		AutomationTool: runner.DefaultAutomationTool,
	}
}

func newClient(cfg *config.Config) *slick.Client {
	opts := []slick.ClientOption{
		slick.WithDefaultHeaders(cfg.Headers),
		slick.WithValidateSSL(cfg.GetValidateSSL()),
		slick.WithLogger(logging.New("slick")),
	}
	if cfg.Proxy != "" {
		opts = append(opts, slick.WithProxy(cfg.Proxy))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, slick.WithTimeout(time.Duration(cfg.Timeout)*time.Millisecond))
	}
	if cfg.Token != "" {
		opts = append(opts, slick.WithToken(cfg.Token))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, slick.WithRateLimit(cfg.RateLimit, max(1, int(cfg.RateLimit))))
	}
	return slick.NewClient(cfg.URL, opts...)
}
