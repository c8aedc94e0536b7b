package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the snot configuration
type Config struct {
	URL          string            `json:"url,omitempty" yaml:"url,omitempty"`
	Token        string            `json:"token,omitempty" yaml:"token,omitempty"`
	Project      string            `json:"project,omitempty" yaml:"project,omitempty"`
	Release      string            `json:"release,omitempty" yaml:"release,omitempty"`
	Build        string            `json:"build,omitempty" yaml:"build,omitempty"`
	Environment  string            `json:"environment,omitempty" yaml:"environment,omitempty"`
	TestPlan     string            `json:"testPlan,omitempty" yaml:"testPlan,omitempty"`
	TestRunName  string            `json:"testRunName,omitempty" yaml:"testRunName,omitempty"` // may contain {{...}} templates
	GroupBy      string            `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`         // metadata field that selects the test run
	Requirements []string          `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Timeout      int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`     // milliseconds
	RateLimit    float64           `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"` // requests per second, 0 disables
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Proxy        string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Reporters    []string          `json:"reporters,omitempty" yaml:"reporters,omitempty"`
	OutputFile   string            `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
	Journal      string            `json:"journal,omitempty" yaml:"journal,omitempty"` // sqlite database path
	RerunFailed  int               `json:"rerunFailed,omitempty" yaml:"rerunFailed,omitempty"`

	ValidateSSL   *bool `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	ForwardOutput *bool `json:"forwardOutput,omitempty" yaml:"forwardOutput,omitempty"`
	ScheduleOnly  *bool `json:"scheduleOnly,omitempty" yaml:"scheduleOnly,omitempty"`
	Verbose       *bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor       *bool `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetForwardOutput returns the forward output setting, defaulting to false
func (c *Config) GetForwardOutput() bool {
	return getBool(c.ForwardOutput, false)
}

// GetScheduleOnly returns the schedule only setting, defaulting to false
func (c *Config) GetScheduleOnly() bool {
	return getBool(c.ScheduleOnly, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".snot.json",
	"snot.json",
	"snot.yaml",
	"snot.yml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if isYAML(path) {
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := Validate(data); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return config, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return json.Marshal(doc)
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	for _, f := range []struct{ dst *string; src string }{
		{&result.URL, other.URL},
		{&result.Token, other.Token},
		{&result.Project, other.Project},
		{&result.Release, other.Release},
		{&result.Build, other.Build},
		{&result.Environment, other.Environment},
		{&result.TestPlan, other.TestPlan},
		{&result.TestRunName, other.TestRunName},
		{&result.GroupBy, other.GroupBy},
		{&result.OutputFile, other.OutputFile},
		{&result.Journal, other.Journal},
		{&result.Proxy, other.Proxy},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}

	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.RerunFailed > 0 {
		result.RerunFailed = other.RerunFailed
	}

	// Boolean flags - only override if explicitly set in other config
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.ForwardOutput != nil {
		result.ForwardOutput = other.ForwardOutput
	}
	if other.ScheduleOnly != nil {
		result.ScheduleOnly = other.ScheduleOnly
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	result.Headers = mergeMap(c.Headers, other.Headers)
	result.Attributes = mergeMap(c.Attributes, other.Attributes)

	if len(other.Requirements) > 0 {
		result.Requirements = append(append([]string(nil), c.Requirements...), other.Requirements...)
	}
	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}

	return &result
}

func mergeMap(base, over map[string]string) map[string]string {
	if len(over) == 0 {
		return base
	}
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]string, len(over))
	}
	maps.Copy(out, over)
	return out
}

// SaveConfig saves the configuration to a file, as YAML when the extension asks for it
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
