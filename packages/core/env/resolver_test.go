package env

import (
	"testing"

	"github.com/abdul-hamid-achik/snot/packages/core/config"
)

func TestResolverHasUnresolvedVariables(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]any
		expected  bool
	}{
		{
			name:      "no variables",
			input:     "hello world",
			variables: nil,
			expected:  false,
		},
		{
			name:      "resolved variable",
			input:     "{{foo}}",
			variables: map[string]any{"foo": "bar"},
			expected:  false,
		},
		{
			name:      "unresolved variable",
			input:     "{{foo}}",
			variables: nil,
			expected:  true,
		},
		{
			name:      "mixed resolved and unresolved",
			input:     "{{foo}} and {{bar}}",
			variables: map[string]any{"foo": "hello"},
			expected:  true,
		},
		{
			name:      "all resolved",
			input:     "{{foo}} and {{bar}}",
			variables: map[string]any{"foo": "hello", "bar": "world"},
			expected:  false,
		},
		{
			name:      "nested path unresolved",
			input:     "{{setupProject.projectId}}",
			variables: nil,
			expected:  true,
		},
		{
			name:      "builtin function resolves",
			input:     "run {{date(2006)}}",
			variables: nil,
			expected:  false,
		},
		{
			name:      "unknown function",
			input:     "{{nope()}}",
			variables: nil,
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			if tt.variables != nil {
				r.SetVariables(tt.variables)
			}

			got := r.HasUnresolvedVariables(tt.input)
			if got != tt.expected {
				t.Errorf("HasUnresolvedVariables(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolverGetUnresolvedVariables(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]any
		expected  []string
	}{
		{
			name:      "no variables",
			input:     "hello world",
			variables: nil,
			expected:  nil,
		},
		{
			name:      "resolved variable",
			input:     "{{foo}}",
			variables: map[string]any{"foo": "bar"},
			expected:  nil,
		},
		{
			name:      "single unresolved variable",
			input:     "{{foo}}",
			variables: nil,
			expected:  []string{"foo"},
		},
		{
			name:      "multiple unresolved variables",
			input:     "{{foo}} and {{bar}}",
			variables: nil,
			expected:  []string{"foo", "bar"},
		},
		{
			name:      "mixed resolved and unresolved",
			input:     "{{foo}} and {{bar}} and {{baz}}",
			variables: map[string]any{"bar": "middle"},
			expected:  []string{"foo", "baz"},
		},
		{
			name:      "nested path unresolved",
			input:     "{{setupProject.projectId}}/tasks",
			variables: nil,
			expected:  []string{"setupProject.projectId"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			if tt.variables != nil {
				r.SetVariables(tt.variables)
			}

			got := r.GetUnresolvedVariables(tt.input)

			if tt.expected == nil {
				if got != nil {
					t.Errorf("GetUnresolvedVariables(%q) = %v, want nil", tt.input, got)
				}
				return
			}

			if len(got) != len(tt.expected) {
				t.Errorf("GetUnresolvedVariables(%q) returned %d vars, want %d", tt.input, len(got), len(tt.expected))
				return
			}

			for i, v := range tt.expected {
				if got[i] != v {
					t.Errorf("GetUnresolvedVariables(%q)[%d] = %q, want %q", tt.input, i, got[i], v)
				}
			}
		})
	}
}

func TestResolverResolve(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		variables map[string]any
		env       map[string]string
		expected  string
	}{
		{
			name:     "no variables",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:      "simple variable",
			input:     "hello {{name}}",
			variables: map[string]any{"name": "world"},
			expected:  "hello world",
		},
		{
			name:      "multiple variables",
			input:     "{{greeting}} {{name}}!",
			variables: map[string]any{"greeting": "Hello", "name": "World"},
			expected:  "Hello World!",
		},
		{
			name:     "environment variable",
			input:    "build {{$SNOT_RESOLVER_BUILD}}",
			env:      map[string]string{"SNOT_RESOLVER_BUILD": "42"},
			expected: "build 42",
		},
		{
			name:     "unset environment variable stays as-is",
			input:    "build {{$SNOT_RESOLVER_MISSING}}",
			expected: "build {{$SNOT_RESOLVER_MISSING}}",
		},
		{
			name:     "function call",
			input:    "{{upper(nightly)}} run",
			expected: "NIGHTLY run",
		},
		{
			name:     "unresolved stays as-is",
			input:    "hello {{unknown}}",
			expected: "hello {{unknown}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			if tt.variables != nil {
				r.SetVariables(tt.variables)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got := r.Resolve(tt.input)
			if got != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolverWarnsOnUnresolved(t *testing.T) {
	r := NewResolver()
	var warnings []string
	r.SetWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, format)
	})

	r.Resolve("{{missing}} {{also}}")
	if len(warnings) != 2 {
		t.Errorf("got %d warnings, want 2", len(warnings))
	}
}

func TestRunVariables(t *testing.T) {
	t.Setenv("SNOT_BRANCH", "main")
	t.Setenv("SNOT_PROJECT", "from-env")

	vars := RunVariables(&config.Config{Project: "Checkout", Build: "17"})

	if vars["BRANCH"] != "main" {
		t.Errorf("BRANCH = %v, want main", vars["BRANCH"])
	}
	if vars["project"] != "Checkout" || vars["build"] != "17" {
		t.Errorf("run coordinates missing: %v", vars)
	}
	if _, ok := vars["release"]; ok {
		t.Error("empty coordinates should not be exposed")
	}

	r := NewResolver()
	r.SetVariables(vars)
	if got := r.Resolve("{{project}} #{{build}} on {{BRANCH}}"); got != "Checkout #17 on main" {
		t.Errorf("Resolve() = %q", got)
	}
}
