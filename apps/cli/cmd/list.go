package cmd

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/snot/packages/core/parser"
	"github.com/abdul-hamid-achik/snot/packages/discover"
)

var listRunFlag string

var listCmd = &cobra.Command{
	Use:   "list [packages]",
	Short: "List the tests snot would file",
	Long: `List the tests of the given packages (default ./...) with the test
case details parsed from their documentation.

Examples:
  snot list
  snot list ./shop/... --run TestLogin`,
	RunE: listCommand,
}

func init() {
	listCmd.Flags().StringVar(&listRunFlag, "run", "", "Only list tests matching the regular expression")
}

// discoverPackages discovers the packages matched by args, filtered by run.
func discoverPackages(args []string, run string) ([]*discover.Package, error) {
	patterns := args
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	opts := discover.Options{}
	if run != "" {
		re, err := regexp.Compile(run)
		if err != nil {
			return nil, withCode(ExitUsageError, fmt.Errorf("invalid --run pattern: %w", err))
		}
		opts.Run = re
	}
	_, pkgs, err := discover.Discover(".", patterns, opts)
	if err != nil {
		return nil, withCode(ExitParseError, err)
	}
	if len(pkgs) == 0 {
		return nil, withCode(ExitParseError, fmt.Errorf("no tests found in %s", strings.Join(patterns, " ")))
	}
	return pkgs, nil
}

func listCommand(cmd *cobra.Command, args []string) error {
	pkgs, err := discoverPackages(args, listRunFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	total := 0
	for _, pkg := range pkgs {
		fmt.Fprintf(out, "\n%s:\n", pkg.ImportPath)
		for _, t := range pkg.Tests {
			meta := parser.Parse(t.Doc, t.Function)
			fmt.Fprintf(out, "  - %s  %s\n", t.Name, meta.Name)
			if meta.Component != "" {
				fmt.Fprintf(out, "    component: %s\n", meta.Component)
			}
			if len(meta.Tags) > 0 {
				fmt.Fprintf(out, "    tags: %s\n", strings.Join(meta.Tags, ", "))
			}
			if reqs, ok := meta.Field(parser.FieldRequirements); ok {
				fmt.Fprintf(out, "    requirements: %s\n", reqs)
			}
			total++
		}
	}
	fmt.Fprintf(out, "\n%d tests in %d packages\n", total, len(pkgs))
	return nil
}
