// Package generator produces a customized project directory for an
// application: it scaffolds a skeleton with one of the generation strategies
// and then rewrites the project descriptor for the application and target.
package generator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"integctl/internal/apperrors"
	"integctl/internal/build"
	"integctl/internal/config"
	"integctl/internal/logs"
	"integctl/internal/spec"
	"integctl/pkg/logging"
)

// Capabilities is the result of probing the host for optional tooling. It is
// computed once by the caller and handed to the generator, so tests can
// construct it directly.
type Capabilities struct {
	ScriptName      string
	ScriptAvailable bool
	ScriptPath      string
}

// ProbeScript looks up the generator script on PATH.
func ProbeScript(name string) Capabilities {
	c := Capabilities{ScriptName: name}
	path, err := exec.LookPath(name)
	if err != nil {
		logging.Debug("Generator", "Script %q not found on PATH", name)
		return c
	}
	c.ScriptAvailable = true
	c.ScriptPath = path
	return c
}

// Config carries everything the generator needs besides the spec.
type Config struct {
	// AppLocation is the on-disk directory the filesystem is rooted at.
	AppLocation  string
	GroupID      string
	Version      string
	Quarkus      config.QuarkusSettings
	SpringBoot   config.SpringBootConfig
	Capabilities Capabilities
}

// Project is a generated project directory.
type Project struct {
	Name string
	// Dir is the absolute project directory on disk.
	Dir string
}

// DescriptorPath returns the project's pom.xml.
func (p Project) DescriptorPath() string {
	return filepath.Join(p.Dir, "pom.xml")
}

// Generator scaffolds and customizes projects.
type Generator struct {
	cfg    Config
	fs     billy.Filesystem
	maven  build.Invoker
	script build.Invoker
	cloner Cloner
}

// New creates a generator. fs must be rooted at cfg.AppLocation; maven runs
// plugin and archetype goals and script runs the external generator. Git
// projects are cloned with GitCloner.
func New(cfg Config, fs billy.Filesystem, maven, script build.Invoker) *Generator {
	return &Generator{cfg: cfg, fs: fs, maven: maven, script: script, cloner: GitCloner{}}
}

// Generate produces the project for s. An existing project directory of the
// same name is replaced.
func (g *Generator) Generate(ctx context.Context, s spec.ApplicationSpec) (Project, error) {
	project := Project{Name: s.Name, Dir: filepath.Join(g.cfg.AppLocation, s.Name)}

	scaffold, err := g.scaffolder(s)
	if err != nil {
		return project, apperrors.New(apperrors.KindGeneration, s.Name, "scaffold", err)
	}

	if _, err := g.fs.Stat(s.Name); err == nil {
		logging.Info("Generator", "Removing previous project directory %s", project.Dir)
		if err := util.RemoveAll(g.fs, s.Name); err != nil {
			return project, apperrors.New(apperrors.KindGeneration, s.Name, "clean", err)
		}
	}
	if err := os.MkdirAll(g.cfg.AppLocation, 0755); err != nil {
		return project, apperrors.New(apperrors.KindGeneration, s.Name, "scaffold", err)
	}

	logging.Info("Generator", "Creating %s application project %s (%s strategy)", s.Runtime, s.Name, s.Strategy)
	if err := scaffold(ctx, s); err != nil {
		return project, generationError(s.Name, "scaffold", err)
	}
	if _, err := g.fs.Stat(descriptorPath(s.Name)); err != nil {
		return project, apperrors.Newf(apperrors.KindGeneration, s.Name, "scaffold", "no project descriptor was generated: %v", err)
	}

	if err := g.writeSources(s); err != nil {
		return project, apperrors.New(apperrors.KindGeneration, s.Name, "sources", err)
	}
	if err := g.Customize(s); err != nil {
		return project, err
	}
	return project, nil
}

type scaffoldFunc func(ctx context.Context, s spec.ApplicationSpec) error

func (g *Generator) scaffolder(s spec.ApplicationSpec) (scaffoldFunc, error) {
	switch s.Strategy {
	case spec.StrategyPlugin:
		if s.Runtime != spec.RuntimeQuarkus {
			return nil, fmt.Errorf("plugin strategy is not available for %s", s.Runtime)
		}
		return g.scaffoldWithPlugin, nil
	case spec.StrategyArchetype:
		if s.Runtime != spec.RuntimeSpringBoot {
			return nil, fmt.Errorf("archetype strategy is not available for %s", s.Runtime)
		}
		return g.scaffoldWithArchetype, nil
	case spec.StrategyScript:
		// Checked before any work is done.
		if !g.cfg.Capabilities.ScriptAvailable {
			return nil, fmt.Errorf("the script strategy requires a script named %q on PATH", g.cfg.Capabilities.ScriptName)
		}
		return g.scaffoldWithScript, nil
	case spec.StrategyGit:
		if s.Git == nil || s.Git.Repository == "" {
			return nil, fmt.Errorf("git strategy requires a repository")
		}
		return g.scaffoldWithGit, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", s.Strategy)
	}
}

// writeSources writes the spec's extra project files. The script strategy
// copies them during export instead, and cloned projects are used as they
// are.
func (g *Generator) writeSources(s spec.ApplicationSpec) error {
	if s.Strategy == spec.StrategyScript || s.Strategy == spec.StrategyGit {
		return nil
	}
	for _, rel := range sortedKeys(s.Sources) {
		path := g.fs.Join(s.Name, filepath.ToSlash(rel))
		if err := g.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := util.WriteFile(g.fs, path, []byte(s.Sources[rel]), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", rel, err)
		}
		logging.Debug("Generator", "Wrote %s", path)
	}
	return nil
}

func (g *Generator) generateRequest(s spec.ApplicationSpec) build.Request {
	return build.Request{
		WorkDir: g.cfg.AppLocation,
		LogFile: logs.PhaseLogPath(g.cfg.AppLocation, s.Name, logs.PhaseGenerate),
		Marker:  logs.NewMarker(s.Name, logs.PhaseGenerate),
	}
}

func generationError(app, op string, err error) error {
	genErr := apperrors.New(apperrors.KindGeneration, app, op, err)
	genErr.LogFile = apperrors.LogFileOf(err)
	return genErr
}

func descriptorPath(name string) string {
	return filepath.Join(name, "pom.xml")
}
