package runner

import (
	"errors"
	"fmt"
)

// TransportError wraps a failed call to the result service. It is the only
// error that aborts a run.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err, or anything it wraps, is a TransportError.
func IsTransportError(err error) bool {
	var terr *TransportError
	return errors.As(err, &terr)
}

// ShapingError is a failure turning a test's metadata into a result. It is
// logged and the result is filed with what could be computed.
type ShapingError struct {
	Identity string
	Stage    string
	Err      error
}

func (e *ShapingError) Error() string {
	return fmt.Sprintf("shaping %s (%s): %v", e.Identity, e.Stage, e.Err)
}

func (e *ShapingError) Unwrap() error {
	return e.Err
}

// AbnormalError lets an in-process test body end with an abnormal reason
// instead of a plain failure.
type AbnormalError struct {
	Reason    AbnormalReason
	NotTested bool
	Message   string
}

func (e *AbnormalError) Error() string {
	if e.Message == "" {
		return e.Reason.String()
	}
	return e.Reason.String() + ": " + e.Message
}

// Skip ends a test as Skipped.
func Skip(msg string) error {
	return &AbnormalError{Reason: ReasonSkip, Message: msg}
}

// SkipNotTested ends a test as NotTested.
func SkipNotTested(msg string) error {
	return &AbnormalError{Reason: ReasonSkip, NotTested: true, Message: msg}
}

// PassOnRetry ends a test as PassedOnRetry.
func PassOnRetry(msg string) error {
	return &AbnormalError{Reason: ReasonPassedOnRetry, Message: msg}
}
