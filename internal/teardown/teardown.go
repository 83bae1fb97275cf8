// Package teardown removes every remote resource of an application. It is
// best effort: each resource class is deleted independently and errors are
// recorded and logged, never returned.
package teardown

import (
	"context"
	"time"

	"integctl/internal/apperrors"
	"integctl/internal/cluster"
	"integctl/pkg/logging"
)

// GroupResult is the outcome of deleting one resource class.
type GroupResult struct {
	Class   cluster.ResourceClass
	Deleted int
	Err     error
}

// Report summarizes a teardown.
type Report struct {
	App      string
	Groups   []GroupResult
	Duration time.Duration
}

// Deleted is the total number of deleted resources.
func (r Report) Deleted() int {
	n := 0
	for _, g := range r.Groups {
		n += g.Deleted
	}
	return n
}

// Errors returns the per-group errors, each classified as TeardownError.
func (r Report) Errors() []error {
	var errs []error
	for _, g := range r.Groups {
		if g.Err != nil {
			errs = append(errs, g.Err)
		}
	}
	return errs
}

// Controller deletes resources through the cluster API.
type Controller struct {
	api cluster.API
}

// NewController creates a controller.
func NewController(api cluster.API) *Controller {
	return &Controller{api: api}
}

// Teardown deletes build, compute and network resources labelled with sel,
// in that order.
func (c *Controller) Teardown(ctx context.Context, app string, sel cluster.Selector) Report {
	start := time.Now()
	report := Report{App: app}

	for _, class := range cluster.TeardownOrder {
		n, err := c.api.Delete(ctx, sel, class)
		result := GroupResult{Class: class, Deleted: n}
		if err != nil {
			result.Err = apperrors.New(apperrors.KindTeardown, app, "delete "+string(class), err)
			logging.Error("Teardown", err, "Failed to delete %s resources of %s", class, app)
		} else if n > 0 {
			logging.Info("Teardown", "Deleted %d %s resources of %s", n, class, app)
		}
		report.Groups = append(report.Groups, result)
	}

	report.Duration = time.Since(start)
	logging.Info("Teardown", "Undeployed %s (%d resources)", app, report.Deleted())
	return report
}
