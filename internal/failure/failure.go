// Package failure classifies why a remote application is not healthy. It
// looks at two independent origins, the deploy-time build and the running
// workload instances, and never turns a probe error into a failure: an
// absent resource is Unknown, not Failed.
package failure

import (
	"context"
	"errors"
	"fmt"

	"integctl/internal/cluster"
	"integctl/pkg/logging"
)

// Verdict is the outcome of one probe.
type Verdict int

const (
	// Unknown means there was nothing to inspect or the probe failed.
	Unknown Verdict = iota
	Healthy
	Failed
)

func (v Verdict) String() string {
	switch v {
	case Healthy:
		return "healthy"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Report combines both failure origins.
type Report struct {
	Build    Verdict
	Workload Verdict
	// Reason describes the first failure found, if any.
	Reason string
}

// Failed reports whether either origin failed.
func (r Report) Failed() bool {
	return r.Build == Failed || r.Workload == Failed
}

// Detector inspects cluster state for one application.
type Detector struct {
	api cluster.API
}

// NewDetector creates a detector.
func NewDetector(api cluster.API) *Detector {
	return &Detector{api: api}
}

// Build inspects the latest build labelled with sel, whichever build config
// started it.
func (d *Detector) Build(ctx context.Context, sel cluster.Selector) (Verdict, string) {
	b, err := d.api.LastBuild(ctx, sel)
	if err != nil {
		if !errors.Is(err, cluster.ErrNotFound) {
			logging.Debug("Failure", "Could not inspect builds with %s: %v", sel, err)
		}
		return Unknown, ""
	}
	if b.Failed() {
		return Failed, fmt.Sprintf("build %s ended in phase %s", b.Name, b.Phase)
	}
	return Healthy, ""
}

// Workload inspects every instance matching sel. One error-terminated
// instance is enough for Failed.
func (d *Detector) Workload(ctx context.Context, sel cluster.Selector) (Verdict, string) {
	instances, err := d.api.ListInstances(ctx, sel)
	if err != nil {
		logging.Debug("Failure", "Could not list instances with %s: %v", sel, err)
		return Unknown, ""
	}
	if len(instances) == 0 {
		return Unknown, ""
	}
	for _, inst := range instances {
		if inst.Failed {
			return Failed, fmt.Sprintf("pod %s terminated with an error (%d restarts)", inst.Name, inst.Restarts)
		}
	}
	return Healthy, ""
}

// Check evaluates both origins and combines them.
func (d *Detector) Check(ctx context.Context, name string, sel cluster.Selector) Report {
	var r Report
	var buildReason, workloadReason string
	r.Build, buildReason = d.Build(ctx, sel)
	r.Workload, workloadReason = d.Workload(ctx, sel)

	switch {
	case r.Build == Failed:
		r.Reason = buildReason
	case r.Workload == Failed:
		r.Reason = workloadReason
	}
	if r.Failed() {
		logging.Warn("Failure", "Application %s failed: %s", name, r.Reason)
	}
	return r
}
