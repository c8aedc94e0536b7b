// Package cmd implements the snot CLI commands using Cobra.
//
// Available commands:
//   - run: Run Go tests and file one Slick result per test
//   - schedule: Create results in state "to be run" without running tests
//   - list: Display the discovered tests and their documentation
//   - validate: Check test documentation without running anything
//   - sessions: Inspect and prune the local journal of sessions
//   - init: Write a starter snot.yaml
//   - version: Show snot version information
//
// Flags default from SNOT_* environment variables, then from the config
// file, so CI jobs can be configured without touching the command line.
package cmd
