package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/snot/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter snot.yaml",
	Long: `Write snot.yaml in the current directory with the Slick coordinates of
a run. Values may use {{...}} templates, resolved from SNOT_* environment
variables (without the prefix) and built-in functions like {{date()}}.

Examples:
  snot init
  snot init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing snot.yaml")
}

const exampleDoc = `// Add an item to the cart
//
// Checks that the cart total follows the item price.
//
// :component: Checkout
// :tags: smoke, cart
// :requirements: REQ-12
// :steps:
//     1. Add one item priced 3.50
// :expectedResults:
//     1. The cart total is 3.50
func TestCartTotal(t *testing.T) { ... }`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "snot.yaml")
	if !forceInit {
		if _, err := os.Stat(configFile); err == nil {
			return withCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", configFile))
		}
	}

	starter := &config.Config{
		URL:         "https://slick.example.com",
		Project:     filepath.Base(cwd),
		Release:     "{{RELEASE}}",
		Build:       "{{BUILD}}",
		Environment: "ci",
		TestRunName: "{{project}} {{date()}}",
		GroupBy:     "component",
		Timeout:     30000,
		Reporters:   []string{"console"},
		Journal:     ".snot/journal.db",
	}

	data, err := yaml.Marshal(starter)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(configFile, data, 0644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nDocument a test to fill in its Slick test case:\n\n%s\n", exampleDoc)
	fmt.Fprintf(cmd.OutOrStdout(), "\nRun 'snot list' to see the discovered tests, then 'snot run'.\n")
	return nil
}
