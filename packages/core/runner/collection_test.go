package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	root := &Group{Name: "pkg", Children: []Node{
		&Case{Identity: "a"},
		&Group{Name: "suite", Children: []Node{
			&Case{Identity: "b"},
			&Generator{
				Template: Case{Identity: "gen", QualifiedName: "Suite.TestGen", Requirements: []string{"T"}},
				Invocations: Invocations(
					Invocation{Args: []any{1}},
					Invocation{Name: "named", Args: []any{2}, Requirements: []string{"I"}},
				),
			},
		}},
		&Generator{Template: Case{Identity: "empty"}},
		nil,
	}}

	cases := Flatten(root)
	ids := make([]string, 0, len(cases))
	for _, c := range cases {
		ids = append(ids, c.Identity)
	}
	assert.Equal(t, []string{"a", "b", "gen/0", "gen/named"}, ids)

	gen0, named := cases[2], cases[3]
	assert.True(t, gen0.DataDriven)
	assert.False(t, cases[0].DataDriven)
	assert.Equal(t, "Suite.TestGen/0", gen0.QualifiedName)
	assert.Equal(t, []any{2}, named.Args)
	assert.Equal(t, []string{"T"}, gen0.Requirements)
	assert.Equal(t, []string{"T", "I"}, named.Requirements)
}

func TestFlatten_TemplateNotShared(t *testing.T) {
	gen := &Generator{
		Template: Case{Identity: "g", Requirements: []string{"T"}},
		Invocations: Invocations(
			Invocation{Requirements: []string{"A"}},
			Invocation{Requirements: []string{"B"}},
		),
	}
	cases := Flatten(gen)
	require.Len(t, cases, 2)
	assert.Equal(t, []string{"T", "A"}, cases[0].Requirements)
	assert.Equal(t, []string{"T", "B"}, cases[1].Requirements)
	assert.Equal(t, []string{"T"}, gen.Template.Requirements)

	again := Flatten(gen)
	assert.Len(t, again, 2, "invocations can be ranged over again")
}

func TestFlatten_InvocationRunOverridesTemplate(t *testing.T) {
	var got []int
	gen := &Generator{
		Template: Case{Identity: "g", Run: func(context.Context) error {
			got = append(got, -1)
			return nil
		}},
		Invocations: Invocations(
			Invocation{Run: func(context.Context) error {
				got = append(got, 1)
				return nil
			}},
			Invocation{},
		),
	}
	for _, c := range Flatten(gen) {
		require.NoError(t, c.Run(context.Background()))
	}
	assert.Equal(t, []int{1, -1}, got)
}

func TestFormatPlaceholders(t *testing.T) {
	assert.Equal(t, "Test: a and 2", formatPlaceholders("Test: {0} and {1}", []any{"a", 2}))
	assert.Equal(t, "Test: a {3}", formatPlaceholders("Test: {0} {3}", []any{"a"}))
	assert.Equal(t, "Test: {0}", formatPlaceholders("Test: {0}", nil))
}
