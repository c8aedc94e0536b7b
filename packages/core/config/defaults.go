package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		URL:         "http://localhost:8080/slickij",
		TestRunName: "{{$USER}} {{date(2006-01-02 15:04)}}",
		Timeout:     30000, // 30 seconds
		Reporters:   []string{"console"},
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.URL == defaults.URL &&
		c.Token == "" &&
		c.Project == "" &&
		c.Release == "" &&
		c.Build == "" &&
		c.Environment == "" &&
		c.TestPlan == "" &&
		c.TestRunName == defaults.TestRunName &&
		c.GroupBy == "" &&
		len(c.Requirements) == 0 &&
		len(c.Attributes) == 0 &&
		c.Timeout == defaults.Timeout &&
		c.RateLimit == 0 &&
		len(c.Headers) == 0 &&
		c.OutputFile == "" &&
		c.Journal == "" &&
		c.RerunFailed == 0 &&
		c.ForwardOutput == nil &&
		c.ScheduleOnly == nil &&
		c.Verbose == nil &&
		c.NoColor == nil
}
