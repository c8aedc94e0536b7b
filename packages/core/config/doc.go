// Package config handles configuration loading and management for snot.
//
// It provides functionality for:
//   - Loading configuration from .snot.json, snot.json, snot.yaml or snot.yml
//   - Validating configuration files against an embedded JSON schema
//   - Default configuration values and flag/file merging
package config
