package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_FullDocumentation(t *testing.T) {
	input := `Login with a valid account

Make sure a registered user can sign in
from the landing page.

:component: Authentication
:tags: smoke, login
:author: jdoe
:steps:
    1. Open the landing page
    2. Enter valid credentials
       and press submit
:expectedResults:
    1. The login form is shown
    2. The dashboard is shown`

	meta, errs := ParseWithDiagnostics(input, "test_login")
	require.Empty(t, errs)

	assert.Equal(t, "Login with a valid account", meta.Name)
	assert.Equal(t, "Make sure a registered user can sign in\nfrom the landing page.", meta.Purpose)
	assert.Equal(t, "Authentication", meta.Component)
	assert.Equal(t, []string{"smoke", "login"}, meta.Tags)
	assert.Equal(t, []string{"Open the landing page", "Enter valid credentials and press submit"}, meta.Steps)
	assert.Equal(t, []string{"The login form is shown", "The dashboard is shown"}, meta.ExpectedResults)

	author, ok := meta.Field("author")
	require.True(t, ok)
	assert.Equal(t, "jdoe", author)
}

func TestParser_NoDocumentation(t *testing.T) {
	for _, doc := range []string{"", "   ", "\n\t\n"} {
		meta := Parse(doc, "test_function_name")
		assert.Equal(t, "Function name", meta.Name)
		assert.Empty(t, meta.Purpose)
		assert.Empty(t, meta.Steps)
		assert.Empty(t, meta.Tags)
		assert.Empty(t, meta.Fields)
	}
}

func TestParser_TitleOnly(t *testing.T) {
	meta := Parse("Checks the happy path", "TestHappyPath")
	assert.Equal(t, "Checks the happy path", meta.Name)
	assert.Empty(t, meta.Purpose)
}

func TestParser_FieldListFirst(t *testing.T) {
	input := `:component: Billing
:tags: invoice`

	meta := Parse(input, "testCreateInvoice")
	assert.Equal(t, "Create invoice", meta.Name)
	assert.Equal(t, "Billing", meta.Component)
	assert.Equal(t, []string{"invoice"}, meta.Tags)
}

func TestParser_MultiplePurposeParagraphs(t *testing.T) {
	input := `Title

First paragraph.

Second paragraph
spans lines.`

	meta := Parse(input, "x")
	assert.Equal(t, "Title", meta.Name)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph\nspans lines.", meta.Purpose)
}

func TestParser_StepsWithoutListSkipped(t *testing.T) {
	input := `Title

:steps: just some text
:component: Core`

	meta, errs := ParseWithDiagnostics(input, "x")
	assert.Empty(t, meta.Steps)
	assert.Equal(t, "Core", meta.Component)
	require.Len(t, errs, 1)
	assert.Equal(t, "steps", errs[0].Field)
	assert.Contains(t, errs[0].Error(), "ordered list")
}

func TestParser_EmptyScalarSkipped(t *testing.T) {
	input := `Title

:component:
:author: someone`

	meta, errs := ParseWithDiagnostics(input, "x")
	assert.Empty(t, meta.Component)
	author, _ := meta.Field("author")
	assert.Equal(t, "someone", author)
	require.Len(t, errs, 1)
	assert.Equal(t, "component", errs[0].Field)
}

func TestParser_TagsTrimmedAndEmptiesDropped(t *testing.T) {
	meta := Parse(":tags: a,  b, , c ", "x")
	assert.Equal(t, []string{"a", "b", "c"}, meta.Tags)
}

func TestParser_FieldNamesCaseInsensitive(t *testing.T) {
	input := `Title

:Steps:
    1. one
:ExpectedResults:
    1. uno
:Component: Core`

	meta := Parse(input, "x")
	assert.Equal(t, []string{"one"}, meta.Steps)
	assert.Equal(t, []string{"uno"}, meta.ExpectedResults)
	assert.Equal(t, "Core", meta.Component)
}

func TestParser_BlankLinesInsideFieldBody(t *testing.T) {
	input := `Title

:steps:

    1. one

    2. two

Trailing paragraph.`

	meta := Parse(input, "x")
	assert.Equal(t, []string{"one", "two"}, meta.Steps)
	assert.Equal(t, "Trailing paragraph.", meta.Purpose)
}

func TestParser_ScalarContinuation(t *testing.T) {
	input := `Title

:requirements: REQ-1,
    REQ-2`

	meta := Parse(input, "x")
	v, ok := meta.Field(FieldRequirements)
	require.True(t, ok)
	assert.Equal(t, "REQ-1, REQ-2", v)
}

func TestParser_TopLevelListIgnored(t *testing.T) {
	input := `Title

1. stray item
2. another`

	meta, errs := ParseWithDiagnostics(input, "x")
	assert.Equal(t, "Title", meta.Name)
	assert.Empty(t, meta.Purpose)
	assert.Empty(t, meta.Steps)
	require.Len(t, errs, 1)
}

func TestParser_TopLevelListBeforeFields(t *testing.T) {
	input := `Checkout totals

Covers two cases:

1. empty cart
2. full cart

More purpose.

:component: Billing
:author: jdoe`

	meta, errs := ParseWithDiagnostics(input, "x")
	assert.Equal(t, "Checkout totals", meta.Name)
	assert.Equal(t, "Covers two cases:\n\nMore purpose.", meta.Purpose)
	assert.Equal(t, "Billing", meta.Component)
	author, ok := meta.Field("author")
	require.True(t, ok)
	assert.Equal(t, "jdoe", author)
	require.Len(t, errs, 1)
}

func TestParser_TopLevelListEndsAtText(t *testing.T) {
	input := `Title

1. one
   continued
Next paragraph.
:tags: a`

	meta := Parse(input, "x")
	assert.Equal(t, "Next paragraph.", meta.Purpose)
	assert.Equal(t, []string{"a"}, meta.Tags)
}

func TestParser_HashNumberedList(t *testing.T) {
	input := `:steps:
    #. first
    #) second`

	meta := Parse(input, "x")
	assert.Equal(t, []string{"first", "second"}, meta.Steps)
}

func TestParser_CommonIndentRemoved(t *testing.T) {
	input := "    Title\n\n    :steps:\n        1. one\n    :component: Core\n"

	meta := Parse(input, "x")
	assert.Equal(t, "Title", meta.Name)
	assert.Equal(t, []string{"one"}, meta.Steps)
	assert.Equal(t, "Core", meta.Component)
}

func TestParser_TabsAndCRLF(t *testing.T) {
	input := "Title\r\n\r\n\t:component: Core\r\n\t:steps:\r\n\t\t1. one\r\n"

	meta := Parse(input, "x")
	assert.Equal(t, "Core", meta.Component)
	assert.Equal(t, []string{"one"}, meta.Steps)
}

func TestParser_Idempotent(t *testing.T) {
	input := `Title

Purpose.

:tags: a, b
:steps:
    1. one`

	first := Parse(input, "test_x")
	second := Parse(input, "test_x")
	assert.Equal(t, first, second)
}

func TestTestMetadata_StepPairs(t *testing.T) {
	meta := &TestMetadata{
		Steps:           []string{"a", "b", "c"},
		ExpectedResults: []string{"1", "2", "3", "4"},
	}
	pairs := meta.StepPairs()
	require.Len(t, pairs, 3)
	assert.Equal(t, Step{Name: "c", ExpectedResult: "3"}, pairs[2])

	meta.ExpectedResults = []string{"1"}
	pairs = meta.StepPairs()
	assert.Equal(t, Step{Name: "b"}, pairs[1])
}

func TestTestMetadata_Clone(t *testing.T) {
	meta := Parse(":tags: a\n:author: me", "x")
	c := meta.Clone()
	c.Tags[0] = "changed"
	c.Fields["author"] = "you"

	assert.Equal(t, "a", meta.Tags[0])
	v, _ := meta.Field("author")
	assert.Equal(t, "me", v)
}
