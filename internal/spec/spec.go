// Package spec holds the immutable description of one test application:
// which runtime to generate, how to scaffold it, where to run it, and what to
// inject into its project descriptor.
package spec

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Runtime is the application framework of the generated project.
type Runtime string

const (
	RuntimeQuarkus    Runtime = "quarkus"
	RuntimeSpringBoot Runtime = "spring-boot"
)

// Strategy selects how the project skeleton is produced.
type Strategy string

const (
	// StrategyPlugin scaffolds through a build-tool plugin goal from
	// group/artifact/version coordinates.
	StrategyPlugin Strategy = "plugin"
	// StrategyArchetype scaffolds through a build-tool archetype.
	StrategyArchetype Strategy = "archetype"
	// StrategyScript scaffolds through an external generator script.
	StrategyScript Strategy = "script"
	// StrategyGit checks out an existing project from a git repository.
	StrategyGit Strategy = "git"
)

// Target is where the built application runs.
type Target string

const (
	TargetLocal     Target = "local"
	TargetOpenShift Target = "openshift"
)

// IsRemote reports whether the target is a remote cluster.
func (t Target) IsRemote() bool {
	return t == TargetOpenShift
}

// Dependency is a build descriptor dependency coordinate.
type Dependency struct {
	GroupID    string `yaml:"groupId"`
	ArtifactID string `yaml:"artifactId"`
	Version    string `yaml:"version,omitempty"`
	Type       string `yaml:"type,omitempty"`
	Scope      string `yaml:"scope,omitempty"`
}

// Key identifies the dependency independent of its version.
func (d Dependency) Key() string {
	return d.GroupID + ":" + d.ArtifactID
}

func (d Dependency) String() string {
	s := d.Key()
	if d.Version != "" {
		s += ":" + d.Version
	}
	return s
}

// ParseDependency parses "groupId:artifactId[:version[:scope]]".
func ParseDependency(coordinate string) (Dependency, error) {
	parts := strings.Split(strings.TrimSpace(coordinate), ":")
	if len(parts) < 2 || len(parts) > 4 || parts[0] == "" || parts[1] == "" {
		return Dependency{}, fmt.Errorf("invalid dependency %q, expected groupId:artifactId[:version[:scope]]", coordinate)
	}
	dep := Dependency{GroupID: parts[0], ArtifactID: parts[1]}
	if len(parts) > 2 {
		dep.Version = parts[2]
	}
	if len(parts) > 3 {
		dep.Scope = parts[3]
	}
	return dep, nil
}

// PluginExecution binds plugin goals to a build.
type PluginExecution struct {
	ID    string   `yaml:"id,omitempty"`
	Phase string   `yaml:"phase,omitempty"`
	Goals []string `yaml:"goals,omitempty"`
}

// Plugin is a build descriptor plugin coordinate.
type Plugin struct {
	GroupID    string            `yaml:"groupId"`
	ArtifactID string            `yaml:"artifactId"`
	Version    string            `yaml:"version,omitempty"`
	Executions []PluginExecution `yaml:"executions,omitempty"`
}

// Key identifies the plugin independent of its version.
func (p Plugin) Key() string {
	return p.GroupID + ":" + p.ArtifactID
}

// GitSource locates a project in a git repository.
type GitSource struct {
	Repository string `yaml:"repository"`
	// Branch defaults to the remote's HEAD.
	Branch string `yaml:"branch,omitempty"`
	// Subdirectory holds the project when it is not the repository root.
	Subdirectory string `yaml:"subdirectory,omitempty"`
	// Artifact is the runnable artifact relative to the project, for
	// projects whose artifact name does not follow the application name.
	Artifact string `yaml:"artifact,omitempty"`
	// SkipRun stops the lifecycle once the project is built.
	SkipRun bool `yaml:"skipRun,omitempty"`
}

// ApplicationSpec describes one application. It is created once per test
// session and never mutated after the lifecycle starts.
type ApplicationSpec struct {
	Name     string   `yaml:"name"`
	Runtime  Runtime  `yaml:"runtime"`
	Strategy Strategy `yaml:"strategy"`
	Target   Target   `yaml:"target,omitempty"`

	Dependencies []Dependency `yaml:"dependencies,omitempty"`
	Plugins      []Plugin     `yaml:"plugins,omitempty"`

	// Properties are passed to the running application as name=value pairs.
	Properties map[string]string `yaml:"properties,omitempty"`
	// Sources are extra project files keyed by path relative to the project root.
	Sources map[string]string `yaml:"sources,omitempty"`
	// XMLContexts are XML route definitions keyed by resource file name. They
	// are imported by the Spring Boot main class.
	XMLContexts map[string]string `yaml:"xmlContexts,omitempty"`

	// Git is the project source of the git strategy.
	Git *GitSource `yaml:"git,omitempty"`

	// ExistingArtifact points at a pre-built runnable artifact. Generation and
	// build are skipped when it is set.
	ExistingArtifact string `yaml:"existingArtifact,omitempty"`

	// Replicas is the number of workload instances expected on a remote target.
	Replicas int `yaml:"replicas,omitempty"`
}

var namePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// Validate checks the spec for combinations no generator or target supports.
func (s ApplicationSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if len(s.Name) > 63 || !namePattern.MatchString(s.Name) {
		return fmt.Errorf("application name %q must be a lowercase DNS label", s.Name)
	}
	switch s.Runtime {
	case RuntimeQuarkus, RuntimeSpringBoot:
	default:
		return fmt.Errorf("unknown runtime %q", s.Runtime)
	}
	switch s.Strategy {
	case StrategyPlugin:
		if s.Runtime != RuntimeQuarkus {
			return fmt.Errorf("strategy %q requires runtime %q", s.Strategy, RuntimeQuarkus)
		}
	case StrategyArchetype:
		if s.Runtime != RuntimeSpringBoot {
			return fmt.Errorf("strategy %q requires runtime %q", s.Strategy, RuntimeSpringBoot)
		}
	case StrategyScript:
	case StrategyGit:
		if s.Runtime != RuntimeSpringBoot {
			return fmt.Errorf("strategy %q requires runtime %q", s.Strategy, RuntimeSpringBoot)
		}
		if s.Git == nil || s.Git.Repository == "" {
			return fmt.Errorf("strategy %q requires a git repository", s.Strategy)
		}
	default:
		return fmt.Errorf("unknown strategy %q", s.Strategy)
	}
	if s.Git != nil && s.Strategy != StrategyGit {
		return fmt.Errorf("a git source requires strategy %q", StrategyGit)
	}
	if len(s.XMLContexts) > 0 && s.Strategy != StrategyArchetype {
		return fmt.Errorf("xml contexts require strategy %q", StrategyArchetype)
	}
	for name := range s.XMLContexts {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("xml context name %q must be a plain file name", name)
		}
	}
	switch s.Target {
	case TargetLocal, TargetOpenShift:
	default:
		return fmt.Errorf("unknown target %q", s.Target)
	}
	if s.ExistingArtifact != "" && s.Target.IsRemote() {
		return fmt.Errorf("existing artifacts are only supported on the %q target", TargetLocal)
	}
	if s.Replicas < 0 {
		return fmt.Errorf("replicas must not be negative")
	}
	for _, d := range s.Dependencies {
		if d.GroupID == "" || d.ArtifactID == "" {
			return fmt.Errorf("dependency %q is missing groupId or artifactId", d.String())
		}
	}
	for _, p := range s.Plugins {
		if p.GroupID == "" || p.ArtifactID == "" {
			return fmt.Errorf("plugin %q is missing groupId or artifactId", p.Key())
		}
	}
	return nil
}

// ShouldRun reports whether the application is deployed once built.
func (s ApplicationSpec) ShouldRun() bool {
	return s.Git == nil || !s.Git.SkipRun
}

// ExpectedReplicas returns Replicas, defaulting to one instance.
func (s ApplicationSpec) ExpectedReplicas() int {
	if s.Replicas <= 0 {
		return 1
	}
	return s.Replicas
}

// SortedProperties returns the property names in a stable order.
func (s ApplicationSpec) SortedProperties() []string {
	keys := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WithDefaults fills unset fields: the target falls back to defaultTarget.
func (s ApplicationSpec) WithDefaults(defaultTarget Target) ApplicationSpec {
	if s.Target == "" {
		s.Target = defaultTarget
	}
	return s
}

// WithUniqueName appends a short random suffix to the name, so concurrent
// sessions using the same spec file do not collide on disk or in the cluster.
func (s ApplicationSpec) WithUniqueName() ApplicationSpec {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	base := s.Name
	if limit := 63 - len(suffix) - 1; len(base) > limit {
		base = strings.TrimRight(base[:limit], "-")
	}
	s.Name = base + "-" + suffix
	return s
}

// Load reads an ApplicationSpec from a YAML file.
func Load(path string) (ApplicationSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ApplicationSpec{}, fmt.Errorf("failed to read application spec %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes an ApplicationSpec from YAML.
func Parse(data []byte) (ApplicationSpec, error) {
	var s ApplicationSpec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return ApplicationSpec{}, fmt.Errorf("failed to parse application spec: %w", err)
	}
	return s, nil
}
