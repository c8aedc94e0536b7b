// Package output provides formatters for the results of a run.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol format
//
// Formatters receive every result record as it finishes and write their
// totals, including duration percentiles, when flushed.
package output
