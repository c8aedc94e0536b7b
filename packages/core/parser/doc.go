// Package parser extracts structured test metadata from test documentation.
//
// Test documentation is a small reStructuredText subset:
//
//	Title paragraph
//
//	Purpose paragraph, possibly
//	spanning several lines.
//
//	:component: File Upload
//	:author: Jason Corbett
//	:steps:
//	    1. Call AttachFile with the current file
//	:expectedResults:
//	    1. The file is uploaded
//	:tags: smoke, upload
//
// The parser handles:
//   - An optional leading title paragraph (falls back to Normalize)
//   - Purpose paragraphs
//   - Field lists, with ordered lists nested in field bodies
//   - Recovery from malformed fields, which are skipped and reported
package parser
