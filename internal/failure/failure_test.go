package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"integctl/internal/cluster"
)

// fakeAPI serves canned build and instance state.
type fakeAPI struct {
	cluster.API
	build     cluster.BuildInfo
	buildErr  error
	instances []cluster.Instance
	listErr   error
	buildSel  cluster.Selector
}

func (f *fakeAPI) LastBuild(_ context.Context, sel cluster.Selector) (cluster.BuildInfo, error) {
	f.buildSel = sel
	return f.build, f.buildErr
}

func (f *fakeAPI) ListInstances(context.Context, cluster.Selector) ([]cluster.Instance, error) {
	return f.instances, f.listErr
}

func TestCheck(t *testing.T) {
	notFound := fmt.Errorf("build config demo: %w", cluster.ErrNotFound)
	tests := []struct {
		name         string
		api          *fakeAPI
		wantBuild    Verdict
		wantWorkload Verdict
		wantFailed   bool
		wantReason   string
	}{
		{
			name:         "nothing created yet",
			api:          &fakeAPI{buildErr: notFound},
			wantBuild:    Unknown,
			wantWorkload: Unknown,
		},
		{
			name:         "connection errors are not failures",
			api:          &fakeAPI{buildErr: errors.New("connection refused"), listErr: errors.New("connection refused")},
			wantBuild:    Unknown,
			wantWorkload: Unknown,
		},
		{
			name:         "healthy",
			api:          &fakeAPI{build: cluster.BuildInfo{Name: "demo-1", Phase: "Complete"}, instances: []cluster.Instance{{Name: "demo-a", Ready: true}}},
			wantBuild:    Healthy,
			wantWorkload: Healthy,
		},
		{
			name:         "jkube s2i build failed",
			api:          &fakeAPI{build: cluster.BuildInfo{Name: "demo-s2i-3", Phase: "Failed"}},
			wantBuild:    Failed,
			wantWorkload: Unknown,
			wantFailed:   true,
			wantReason:   "build demo-s2i-3 ended in phase Failed",
		},
		{
			name:         "build failed",
			api:          &fakeAPI{build: cluster.BuildInfo{Name: "demo-2", Phase: "Failed"}},
			wantBuild:    Failed,
			wantWorkload: Unknown,
			wantFailed:   true,
			wantReason:   "build demo-2 ended in phase Failed",
		},
		{
			name: "one of several instances crashed",
			api: &fakeAPI{buildErr: notFound, instances: []cluster.Instance{
				{Name: "demo-a", Ready: true},
				{Name: "demo-b", Failed: true, Restarts: 2},
			}},
			wantBuild:    Unknown,
			wantWorkload: Failed,
			wantFailed:   true,
			wantReason:   "pod demo-b terminated with an error (2 restarts)",
		},
		{
			name: "build failure reported first",
			api: &fakeAPI{
				build:     cluster.BuildInfo{Name: "demo-1", Phase: "Error"},
				instances: []cluster.Instance{{Name: "demo-a", Failed: true}},
			},
			wantBuild:    Failed,
			wantWorkload: Failed,
			wantFailed:   true,
			wantReason:   "build demo-1 ended in phase Error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewDetector(tt.api).Check(context.Background(), "demo", cluster.AppSelector("demo"))
			assert.Equal(t, tt.wantBuild, r.Build)
			assert.Equal(t, tt.wantWorkload, r.Workload)
			assert.Equal(t, tt.wantFailed, r.Failed())
			assert.Equal(t, tt.wantReason, r.Reason)
			assert.Equal(t, cluster.AppSelector("demo"), tt.api.buildSel)
		})
	}
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "healthy", Healthy.String())
	assert.Equal(t, "failed", Failed.String())
}
