// Package apperrors defines the error taxonomy shared by every stage of an
// application lifecycle. Each stage wraps its underlying cause in an *Error
// carrying the Kind, so callers can tell "never became ready" apart from
// "crashed" or "did not build" with errors.Is.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a lifecycle error.
type Kind string

const (
	// KindGeneration is a scaffolding or descriptor customization failure.
	KindGeneration Kind = "GenerationFailed"
	// KindBuild is a non-zero exit of the build tool.
	KindBuild Kind = "BuildFailed"
	// KindDeploy is a manifest submission or process launch failure.
	KindDeploy Kind = "DeployFailed"
	// KindWaitTimeout means the readiness poller exhausted its attempts.
	KindWaitTimeout Kind = "WaitTimeout"
	// KindApplicationFailed means the failure detector observed a crash.
	KindApplicationFailed Kind = "ApplicationFailed"
	// KindTeardown is a deletion failure. It is only ever logged.
	KindTeardown Kind = "TeardownError"
	// KindInvalidTransition is a lifecycle operation called in the wrong phase.
	KindInvalidTransition Kind = "InvalidTransition"
)

// Sentinels usable as errors.Is targets.
var (
	ErrGeneration        = &Error{Kind: KindGeneration}
	ErrBuild             = &Error{Kind: KindBuild}
	ErrDeploy            = &Error{Kind: KindDeploy}
	ErrWaitTimeout       = &Error{Kind: KindWaitTimeout}
	ErrApplicationFailed = &Error{Kind: KindApplicationFailed}
	ErrTeardown          = &Error{Kind: KindTeardown}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
)

// Error is a classified lifecycle error.
type Error struct {
	Kind Kind
	// App is the name of the application the error belongs to.
	App string
	// Op names the step that failed, e.g. "archetype:generate".
	Op string
	// LogFile points at the captured build log, when there is one.
	LogFile string
	Err     error
}

// New creates a classified error.
func New(kind Kind, app, op string, err error) *Error {
	return &Error{Kind: kind, App: app, Op: op, Err: err}
}

// Newf creates a classified error with a formatted cause.
func Newf(kind Kind, app, op, format string, args ...interface{}) *Error {
	return New(kind, app, op, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.App != "" {
		msg += " [" + e.App + "]"
	}
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.LogFile != "" {
		msg += " (log: " + e.LogFile + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, which makes the package sentinels
// work with errors.Is regardless of the App/Op/Err details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// LogFileOf returns the log file attached to err, if any.
func LogFileOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.LogFile
	}
	return ""
}
