// Package env handles environment files and template resolution for snot.
//
// It provides functionality for:
//   - Loading .env files given with --env-file
//   - Template interpolation using {{variable}} syntax
//   - Built-in function evaluation (date, uuid, hostname, etc.)
//   - Exposing SNOT_* environment variables and run coordinates to templates
package env
