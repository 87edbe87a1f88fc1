package engine

import (
	"errors"
	"fmt"
)

// FatalError wraps an engine step failure. A context that failed a step cannot
// be safely continued.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("engine %s failed: %v", e.Op, e.Err) }

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// dependencyUnavailableError signals a missing native runtime (e.g., llama.cpp
// libraries or a build without the 'llama' tag).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}

// StatusError reports a non-zero status returned by a native engine call.
type StatusError struct {
	Call   string
	Status int32
}

func (e *StatusError) Error() string {
	if e.Status == 1 {
		return fmt.Sprintf("%s: no memory slot for batch (status 1)", e.Call)
	}
	return fmt.Sprintf("%s returned status %d", e.Call, e.Status)
}

// checkStatus maps a native status code to an error. Zero is success.
func checkStatus(call string, rc int32) error {
	if rc == 0 {
		return nil
	}
	return &StatusError{Call: call, Status: rc}
}

// checkCopied reports a state transfer that moved fewer bytes than expected.
func checkCopied(call string, n uint64, want int) error {
	if n != uint64(want) {
		return fmt.Errorf("%s copied %d of %d bytes", call, n, want)
	}
	return nil
}
