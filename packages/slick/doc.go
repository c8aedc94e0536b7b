// Package slick is a client for the Slick test-management REST API.
//
// It covers the part of the API needed to file automated results:
//   - Test cases, looked up by automation key and created or updated in place
//   - Test runs, created lazily and finished at the end of a run
//   - Results, created per test and updated as the test progresses
//   - Stored files and result log entries
//
// Requests go through a single reusable Client that can be rate limited.
package slick
