package snottest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirective(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Directive
		ok   bool
	}{
		{"plain", "snot::attach-file::/tmp/a.png", Directive{Kind: KindAttachFile, Args: []string{"/tmp/a.png"}}, true},
		{"log prefix", "    checkout_test.go:14: snot::attach-link::Order::https://x/42\n", Directive{Kind: KindAttachLink, Args: []string{"Order", "https://x/42"}}, true},
		{"ipv6 url", "snot::group-link::dash::http://[::1]:8080/", Directive{Kind: KindGroupLink, Args: []string{"dash", "http://[::1]:8080/"}}, true},
		{"reason with separator", "snot::not-tested::needs a::b", Directive{Kind: KindNotTested, Args: []string{"needs a::b"}}, true},
		{"no args", "snot::passed-on-retry", Directive{Kind: KindPassedOnRetry}, true},
		{"no kind", "snot::", Directive{}, false},
		{"not a directive", "=== RUN   TestX", Directive{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDirective(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirectiveString(t *testing.T) {
	d := Directive{Kind: KindAttachLink, Args: []string{"logs", "http://l"}}
	assert.Equal(t, "snot::attach-link::logs::http://l", d.String())

	back, ok := ParseDirective(d.String())
	require.True(t, ok)
	assert.Equal(t, d, back)
	assert.Equal(t, "", back.Arg(5))
}

// recorder captures what the helpers log.
type recorder struct {
	testing.TB
	logs    []string
	skipped bool
}

func (r *recorder) Helper() {}

func (r *recorder) Log(args ...any) {
	r.logs = append(r.logs, args[0].(string))
}

func (r *recorder) Skip(args ...any) {
	r.skipped = true
}

func TestHelpers(t *testing.T) {
	r := &recorder{TB: t}

	AttachFile(r, "testdata/a.txt")
	AttachLinkToGroup(r, "ci", "http://ci/1")
	NotTested(r, "manual")
	PassedOnRetry(r)

	require.Len(t, r.logs, 4)
	d, ok := ParseDirective(r.logs[0])
	require.True(t, ok)
	assert.True(t, filepath.IsAbs(d.Arg(0)))
	assert.Equal(t, "snot::group-link::ci::http://ci/1", r.logs[1])
	assert.Equal(t, "snot::not-tested::manual", r.logs[2])
	assert.True(t, r.skipped)
	assert.Equal(t, "snot::passed-on-retry", r.logs[3])
}
