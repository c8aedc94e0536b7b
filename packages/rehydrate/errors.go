package rehydrate

import (
	"errors"
	"fmt"
	"strings"
)

// RehydrationError reports a descriptor that cannot be turned back into a call.
type RehydrationError struct {
	Module   string
	Function string
	Reason   string
	Err      error
}

func (e *RehydrationError) Error() string {
	var b strings.Builder
	b.WriteString("rehydrate")
	if e.Module != "" {
		fmt.Fprintf(&b, " %s", e.Module)
	}
	if e.Function != "" {
		fmt.Fprintf(&b, " %s", e.Function)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RehydrationError) Unwrap() error {
	return e.Err
}

// IsRehydrationError reports whether err, or anything it wraps, is a RehydrationError.
func IsRehydrationError(err error) bool {
	var rerr *RehydrationError
	return errors.As(err, &rerr)
}
