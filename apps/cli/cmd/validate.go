package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/snot/packages/core/config"
	"github.com/abdul-hamid-achik/snot/packages/core/env"
	"github.com/abdul-hamid-achik/snot/packages/core/parser"
)

var validateCmd = &cobra.Command{
	Use:   "validate [packages]",
	Short: "Check test documentation for malformed fields",
	Long: `Parse the documentation of every test in the given packages (default
./...) and report fields that could not be read, without running anything.
Templates in the config file that cannot be resolved are reported too.

Examples:
  snot validate
  snot validate ./shop/...`,
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	pkgs, err := discoverPackages(args, "")
	if err != nil {
		return err
	}

	problems := 0
	for _, pkg := range pkgs {
		for _, t := range pkg.Tests {
			_, diags := parser.ParseWithDiagnostics(t.Doc, t.Function)
			for _, d := range diags {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s:%d: %s: %v\n", t.File, t.Line, t.Name, d)
				problems++
			}
		}
	}

	problems += validateTemplates(cmd)

	if problems > 0 {
		return withCode(ExitParseError, fmt.Errorf("validation failed: %d problems", problems))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Valid: %d packages\n", len(pkgs))
	return nil
}

// validateTemplates reports config values whose templates cannot be resolved
// in the current environment.
func validateTemplates(cmd *cobra.Command) int {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "config: %v\n", err)
		return 1
	}

	resolver := env.NewResolver()
	resolver.SetVariables(env.RunVariables(cfg))

	values := map[string]string{
		"release":     cfg.Release,
		"build":       cfg.Build,
		"environment": cfg.Environment,
		"testRunName": cfg.TestRunName,
	}
	for k, v := range cfg.Attributes {
		values["attributes."+k] = v
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	problems := 0
	for _, k := range keys {
		for _, name := range resolver.GetUnresolvedVariables(values[k]) {
			fmt.Fprintf(cmd.ErrOrStderr(), "config: %s: unresolved template {{%s}}\n", k, name)
			problems++
		}
	}
	return problems
}
