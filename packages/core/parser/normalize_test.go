package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		identifier string
		want       string
	}{
		{"test_function_name", "Function name"},
		{"testCamelCase", "Camel case"},
		{"this_is_a_simple_test", "This is a simple"},
		{"TestUserLogin", "User login"},
		{"TestHTTPServer", "Http server"},
		{"test", "Test"},
		{"contest_entry", "Contest entry"},
		{"latest", "Latest"},
		{"already words", "Already words"},
		{"TestÜber", "Über"},
		{"testÄrgerMelden", "Ärger melden"},
		{"_", "_"},
		{"__", "__"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.identifier, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.identifier))
		})
	}
}
