package runner

import (
	"regexp"
	"strings"
)

// CapturedOutputFilename is the name captured test output is uploaded under.
const CapturedOutputFilename = "Captured Output.txt"

// FailureInfo describes why a test did not pass.
type FailureInfo struct {
	Kind    string // error type or category, e.g. "panic"
	Message string
	Trace   string
	Output  string // output captured while the test ran
}

var capturedMarker = regexp.MustCompile(`(?m)^-*\s*>>\s*begin captured`)

// renderFailure formats f into a reason and the captured output to upload.
// Captured output appended after the error, delimited by a ">> begin
// captured ... <<" banner, is moved out of the reason.
func renderFailure(f *FailureInfo) (reason, captured string) {
	if f == nil {
		return "", ""
	}

	var b strings.Builder
	switch {
	case f.Kind != "" && f.Message != "":
		b.WriteString(f.Kind + ": " + f.Message)
	case f.Kind != "":
		b.WriteString(f.Kind)
	default:
		b.WriteString(f.Message)
	}
	if f.Trace != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strings.TrimRight(f.Trace, "\n"))
	}

	reason = b.String()
	var parts []string
	if loc := capturedMarker.FindStringIndex(reason); loc != nil {
		parts = append(parts, strings.TrimSpace(reason[loc[0]:]))
		reason = reason[:loc[0]]
	}
	if out := strings.TrimSpace(f.Output); out != "" {
		parts = append(parts, out)
	}
	return strings.TrimSpace(reason), strings.Join(parts, "\n\n")
}
