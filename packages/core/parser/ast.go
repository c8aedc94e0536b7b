package parser

import (
	"fmt"
	"maps"
	"slices"
)

// Recognized field names. Any other field ends up in TestMetadata.Fields.
const (
	FieldSteps           = "steps"
	FieldExpectedResults = "expectedResults"
	FieldTags            = "tags"
	FieldComponent       = "component"

	FieldAuthor                  = "author"
	FieldRequirements            = "requirements"
	FieldAutomationKey           = "automationKey"
	FieldAutomationID            = "automationId"
	FieldAutomationTool          = "automationTool"
	FieldAutomationConfiguration = "automationConfiguration"
)

// TestMetadata is the structured form of a test's documentation.
// Name is always set; everything else is optional.
type TestMetadata struct {
	Name            string
	Purpose         string
	Steps           []string
	ExpectedResults []string
	Tags            []string
	Component       string
	Fields          map[string]string
}

// Step pairs a step with the expected result at the same position.
type Step struct {
	Name           string
	ExpectedResult string
}

// Field returns an additional scalar field.
func (m *TestMetadata) Field(name string) (string, bool) {
	if m == nil || m.Fields == nil {
		return "", false
	}
	v, ok := m.Fields[name]
	return v, ok
}

// StepPairs pairs Steps with ExpectedResults positionally. Steps without a
// matching expected result get an empty one; surplus expected results are
// dropped.
func (m *TestMetadata) StepPairs() []Step {
	if m == nil || len(m.Steps) == 0 {
		return nil
	}
	pairs := make([]Step, len(m.Steps))
	for i, s := range m.Steps {
		pairs[i].Name = s
		if i < len(m.ExpectedResults) {
			pairs[i].ExpectedResult = m.ExpectedResults[i]
		}
	}
	return pairs
}

// Clone returns a deep copy.
func (m *TestMetadata) Clone() *TestMetadata {
	if m == nil {
		return nil
	}
	c := *m
	c.Steps = slices.Clone(m.Steps)
	c.ExpectedResults = slices.Clone(m.ExpectedResults)
	c.Tags = slices.Clone(m.Tags)
	c.Fields = maps.Clone(m.Fields)
	return &c
}

func (m *TestMetadata) setField(name, value string) {
	if m.Fields == nil {
		m.Fields = make(map[string]string)
	}
	m.Fields[name] = value
}

// ParseError describes a field that was skipped because its shape did not
// match what the field requires.
type ParseError struct {
	Field   string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d: field %q: %s", e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}
