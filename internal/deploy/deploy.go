// Package deploy runs built applications on a target: a managed local
// process or a remote OpenShift cluster. A target deploys, answers
// readiness and failure probes, and tears its resources down again.
package deploy

import (
	"context"

	"integctl/internal/logs"
	"integctl/internal/spec"
	"integctl/internal/wait"
)

// Request is the input of a deployment.
type Request struct {
	Spec spec.ApplicationSpec
	// ProjectDir is the generated project. Empty when a pre-built artifact
	// is deployed.
	ProjectDir string
	Logs       *logs.Handle
}

// Target is one execution environment for a single application.
type Target interface {
	// Deploy starts the application and returns its endpoint.
	Deploy(ctx context.Context, req Request) (Endpoint, error)
	// Ready is the readiness predicate polled under WaitPolicy. It must be
	// free of side effects.
	Ready(ctx context.Context) bool
	// Failed reports whether the application is known to have failed, and why.
	Failed(ctx context.Context) (bool, string)
	// WaitPolicy bounds the readiness wait.
	WaitPolicy() wait.Policy
	// Teardown releases everything Deploy created. It never fails; problems
	// are logged.
	Teardown(ctx context.Context)
	// Kind names the target.
	Kind() spec.Target
}
