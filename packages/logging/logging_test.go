package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetDefaults(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		log.SetLevel(log.InfoLevel)
		log.SetOutput(os.Stderr)
		log.SetFormatter(log.TextFormatter)
	})
}

func TestSetup_Levels(t *testing.T) {
	tests := []struct {
		name     string
		verbose  bool
		quiet    bool
		expected log.Level
	}{
		{"default", false, false, log.InfoLevel},
		{"verbose", true, false, log.DebugLevel},
		{"quiet", false, true, log.ErrorLevel},
		{"quiet wins", true, true, log.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetDefaults(t)
			Setup(tt.verbose, tt.quiet, false)
			assert.Equal(t, tt.expected, log.GetLevel())
		})
	}
}

func TestNew_JSONCarriesPrefix(t *testing.T) {
	resetDefaults(t)

	var buf bytes.Buffer
	Setup(false, false, true)
	SetOutput(&buf)

	logger := New("runner")
	logger.Info("declared result", "identity", "pkg.TestA")

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &parsed))
	assert.Equal(t, "runner", parsed["prefix"])
	assert.Equal(t, "declared result", parsed["msg"])
	assert.Equal(t, "pkg.TestA", parsed["identity"])
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	require.NotNil(t, logger)
	logger.Error("nothing to see")
}
