// Package wait is the single retry primitive of integctl. Every readiness
// check (an endpoint answering, the expected number of instances being ready)
// is a Predicate evaluated under a Policy.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	kwait "k8s.io/apimachinery/pkg/util/wait"

	"integctl/pkg/logging"
)

// ErrTimeout is matched by every *TimeoutError.
var ErrTimeout = errors.New("wait timed out")

// Predicate reports whether the awaited condition holds. Predicates are called
// repeatedly and must not have side effects.
type Predicate func() bool

// Policy bounds a wait: the predicate is called at most Attempts times with
// Interval between consecutive calls.
type Policy struct {
	Attempts    int           `yaml:"attempts"`
	Interval    time.Duration `yaml:"interval"`
	Description string        `yaml:"description,omitempty"`
}

// NewPolicy creates a Policy.
func NewPolicy(attempts int, interval time.Duration, description string) Policy {
	return Policy{Attempts: attempts, Interval: interval, Description: description}
}

// MaxWait is the worst-case blocking time of the policy, Attempts x Interval.
func (p Policy) MaxWait() time.Duration {
	if p.Attempts <= 0 {
		return 0
	}
	return time.Duration(p.Attempts) * p.Interval
}

// Validate rejects policies that could never call the predicate.
func (p Policy) Validate() error {
	if p.Attempts < 1 {
		return fmt.Errorf("wait policy %q: attempts must be at least 1, got %d", p.Description, p.Attempts)
	}
	if p.Interval < 0 {
		return fmt.Errorf("wait policy %q: interval must not be negative", p.Description)
	}
	return nil
}

func (p Policy) String() string {
	return fmt.Sprintf("%s (%d x %s)", p.Description, p.Attempts, p.Interval)
}

// TimeoutError is returned when no attempt satisfied the predicate. It
// wraps the backoff loop's timeout.
type TimeoutError struct {
	Policy   Policy
	Attempts int
	err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out: %s: condition not met after %d attempts", e.Policy.Description, e.Attempts)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

func (e *TimeoutError) Unwrap() error {
	return e.err
}

// Poller evaluates predicates on apimachinery's backoff loop with a
// constant interval.
type Poller struct {
	// Interval replaces every policy's interval when positive.
	Interval time.Duration
}

// Until calls pred at most policy.Attempts times, Interval apart, and returns
// nil on the first true result. There is no sleep after the last attempt. A
// policy with fewer than one attempt is invalid. Cancelling ctx ends the wait
// early with the context's error.
func (p Poller) Until(ctx context.Context, pred Predicate, policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	interval := policy.Interval
	if p.Interval > 0 {
		interval = p.Interval
	}

	attempt := 0
	backoff := kwait.Backoff{Duration: interval, Factor: 1, Steps: policy.Attempts}
	err := kwait.ExponentialBackoffWithContext(ctx, backoff, func(context.Context) (bool, error) {
		attempt++
		if pred() {
			logging.Debug("Wait", "%s: satisfied on attempt %d/%d", policy.Description, attempt, policy.Attempts)
			return true, nil
		}
		logging.Debug("Wait", "%s: attempt %d/%d not satisfied", policy.Description, attempt, policy.Attempts)
		return false, nil
	})
	switch {
	case err == nil:
		return nil
	case kwait.Interrupted(err) && ctx.Err() == nil:
		return &TimeoutError{Policy: policy, Attempts: attempt, err: err}
	default:
		return fmt.Errorf("%s: %w", policy.Description, err)
	}
}

// For waits with the default Poller.
func For(ctx context.Context, pred Predicate, policy Policy) error {
	return Poller{}.Until(ctx, pred, policy)
}
