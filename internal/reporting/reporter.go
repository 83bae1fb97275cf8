// Package reporting carries lifecycle updates of applications to the console,
// to an in-memory state store and to any other registered reporter.
package reporting

import (
	"fmt"
	"time"
)

// State is the lifecycle state of an application.
type State string

const (
	StateCreated   State = "Created"
	StateGenerated State = "Generated"
	StateBuilt     State = "Built"
	StateDeploying State = "Deploying"
	StateReady     State = "Ready"
	StateFailed    State = "Failed"
	StateTornDown  State = "TornDown"
)

// String makes State satisfy the fmt.Stringer interface.
func (s State) String() string {
	return string(s)
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateTornDown
}

// Update is one lifecycle event of an application. It is either a state
// transition (State differs from Previous) or the outcome of a step that
// did not change the state, e.g. a failed build.
type Update struct {
	Timestamp time.Time
	App       string
	Target    string

	Previous State
	State    State
	// Step names the lifecycle operation that produced the update,
	// e.g. "build" or "wait".
	Step     string
	Duration time.Duration
	Message  string
	Endpoint string
	Err      error
}

// Transition reports whether the update changed the application's state.
func (u Update) Transition() bool {
	return u.Previous != u.State
}

func (u Update) String() string {
	return fmt.Sprintf("Update(App: %s, %s -> %s, Step: %s, Duration: %s, Err: %v)",
		u.App, u.Previous, u.State, u.Step, u.Duration, u.Err)
}

// Reporter receives lifecycle updates. Implementations must be safe for
// concurrent use; several applications report at once.
type Reporter interface {
	Report(update Update)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(update Update)

// Report calls f.
func (f ReporterFunc) Report(update Update) {
	f(update)
}

type multiReporter []Reporter

func (m multiReporter) Report(update Update) {
	for _, r := range m {
		r.Report(update)
	}
}

// Multi fans updates out to every non-nil reporter.
func Multi(reporters ...Reporter) Reporter {
	var m multiReporter
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

// Nop discards updates.
var Nop Reporter = ReporterFunc(func(Update) {})
