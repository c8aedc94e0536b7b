package runner

import (
	"fmt"

	"github.com/abdul-hamid-achik/snot/packages/slick"
)

// Status is where a result is in its lifecycle, independent of pass or fail.
type Status int

const (
	NoResult Status = iota
	Scheduled
	ToBeRun
	Running
	Finished
)

var statusNames = map[Status]string{
	NoResult:  slick.RunStatusNoResult,
	Scheduled: slick.RunStatusScheduled,
	ToBeRun:   slick.RunStatusToBeRun,
	Running:   slick.RunStatusRunning,
	Finished:  slick.RunStatusFinished,
}

// String returns the wire name, e.g. TO_BE_RUN.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus reads a wire name. Unknown names map to NoResult.
func ParseStatus(name string) Status {
	for s, n := range statusNames {
		if n == name {
			return s
		}
	}
	return NoResult
}

// Outcome is the verdict of a finished result. OutcomeNone until Finished.
type Outcome int

const (
	OutcomeNone Outcome = iota
	Pass
	Fail
	BrokenTest
	Skipped
	NotTested
	PassedOnRetry
)

var outcomeNames = map[Outcome]string{
	OutcomeNone:   "NO_RESULT",
	Pass:          "PASS",
	Fail:          "FAIL",
	BrokenTest:    "BROKEN_TEST",
	Skipped:       "SKIPPED",
	NotTested:     "NOT_TESTED",
	PassedOnRetry: "PASSED_ON_RETRY",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// ParseOutcome reads a wire name. Unknown names map to OutcomeNone.
func ParseOutcome(name string) Outcome {
	for o, n := range outcomeNames {
		if n == name {
			return o
		}
	}
	return OutcomeNone
}

// Passed reports whether o counts as a pass.
func (o Outcome) Passed() bool {
	return o == Pass || o == PassedOnRetry
}

// Failed reports whether o should fail the run.
func (o Outcome) Failed() bool {
	return o == Fail || o == BrokenTest
}

// AbnormalReason is why a test ended other than by passing.
type AbnormalReason int

const (
	// ReasonSkip is a test that asked to be skipped.
	ReasonSkip AbnormalReason = iota
	// ReasonPassedOnRetry is a test that reports it only passed after retrying.
	ReasonPassedOnRetry
	// ReasonError is anything unexpected: a panic, a missing body, a broken fixture.
	ReasonError
	// ReasonAssertion is a failed check inside the test.
	ReasonAssertion
)

func (r AbnormalReason) String() string {
	switch r {
	case ReasonSkip:
		return "skip"
	case ReasonPassedOnRetry:
		return "passed on retry"
	case ReasonError:
		return "error"
	case ReasonAssertion:
		return "assertion"
	default:
		return fmt.Sprintf("AbnormalReason(%d)", int(r))
	}
}

// ClassifyAbnormalOutcome maps an abnormal ending to an outcome. notTested
// only matters for skips.
func ClassifyAbnormalOutcome(reason AbnormalReason, notTested bool) Outcome {
	switch reason {
	case ReasonSkip:
		if notTested {
			return NotTested
		}
		return Skipped
	case ReasonPassedOnRetry:
		return PassedOnRetry
	case ReasonAssertion:
		return Fail
	default:
		return BrokenTest
	}
}
