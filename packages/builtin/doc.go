// Package builtin provides the functions available in snot name templates
// such as the test run name.
//
// Available functions:
//   - now(): Current time in RFC 3339
//   - timestamp(), timestampMs(): Current Unix time
//   - date(layout): Current date formatted with a Go time layout
//   - uuid(), shortId(): Random identifiers
//   - hostname(): Name of the machine running the tests
//   - env(name, fallback): Environment variable value
//   - upper(value), lower(value): Case conversion
//
// Functions are invoked using the {{name(args)}} syntax.
package builtin
