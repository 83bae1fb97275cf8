package generator

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5/util"

	"integctl/internal/apperrors"
	"integctl/internal/descriptor"
	"integctl/internal/spec"
	"integctl/pkg/logging"
)

// OpenShiftProfile is the profile id that deploys a Spring Boot project.
const OpenShiftProfile = "openshift"

var (
	quarkusPlaceholders    = []string{"GreetingResource.java"}
	springBootPlaceholders = []string{"MySpringBean.java", "MySpringBootRouter.java"}

	// Dropped from every Spring Boot project.
	springBootAlwaysStripped = []string{"camel-stream-starter"}
	// Dropped when the target does not need a web layer, so the
	// application does not claim a port it never serves.
	springBootWebLayer = []string{"spring-boot-starter-web", "spring-boot-starter-undertow", "spring-boot-starter-actuator"}
	quarkusWebLayer    = []string{"quarkus-resteasy-reactive"}

	// Loads XML route definitions in a Spring Boot application.
	xmlStarter = spec.Dependency{GroupID: "org.apache.camel.springboot", ArtifactID: "camel-spring-boot-xml-starter"}
)

// Customize rewrites a scaffolded project for s: it removes sample sources
// and generated tests, strips unwanted dependencies and injects the spec's
// dependencies, plugins and profiles. Running it again on a customized
// project changes nothing. A cloned project only gets what deploying it
// needs.
func (g *Generator) Customize(s spec.ApplicationSpec) error {
	if s.Strategy == spec.StrategyGit {
		return g.customizeCloned(s)
	}

	placeholders := quarkusPlaceholders
	if s.Runtime == spec.RuntimeSpringBoot {
		placeholders = springBootPlaceholders
	}
	if err := g.removeSamples(s.Name, placeholders); err != nil {
		return apperrors.New(apperrors.KindGeneration, s.Name, "remove samples", err)
	}

	d, err := g.loadDescriptor(s.Name)
	if err != nil {
		return apperrors.New(apperrors.KindGeneration, s.Name, "load descriptor", err)
	}

	switch s.Runtime {
	case spec.RuntimeQuarkus:
		g.customizeQuarkus(d, s)
	case spec.RuntimeSpringBoot:
		g.customizeSpringBoot(d, s)
	}

	if err := g.writeDescriptor(s.Name, d); err != nil {
		return apperrors.New(apperrors.KindGeneration, s.Name, "write descriptor", err)
	}
	if err := g.importXMLContexts(s); err != nil {
		return apperrors.New(apperrors.KindGeneration, s.Name, "xml contexts", err)
	}
	logging.Info("Generator", "Customized project descriptor of %s", s.Name)
	return nil
}

func (g *Generator) customizeCloned(s spec.ApplicationSpec) error {
	if !s.Target.IsRemote() {
		return nil
	}
	d, err := g.loadDescriptor(s.Name)
	if err != nil {
		return apperrors.New(apperrors.KindGeneration, s.Name, "load descriptor", err)
	}
	g.addOpenShiftProfile(d, s.Name)
	if err := g.writeDescriptor(s.Name, d); err != nil {
		return apperrors.New(apperrors.KindGeneration, s.Name, "write descriptor", err)
	}
	return nil
}

func (g *Generator) customizeQuarkus(d *descriptor.Descriptor, s spec.ApplicationSpec) {
	q := g.cfg.Quarkus
	d.SetManagedDependency(spec.Dependency{
		GroupID:    q.CamelPlatformGroupID,
		ArtifactID: q.CamelPlatformArtifactID,
		Version:    q.CamelPlatformVersion,
		Type:       "pom",
		Scope:      "import",
	})
	if !s.Target.IsRemote() {
		// Remote builds keep it, manifest generation depends on it.
		removeArtifacts(d, quarkusWebLayer)
	}
	removeTestScoped(d)
	injectDependencies(d, s.Dependencies)
	injectPlugins(d, s.Plugins)
}

func (g *Generator) customizeSpringBoot(d *descriptor.Descriptor, s spec.ApplicationSpec) {
	stripped := append([]string{}, springBootAlwaysStripped...)
	if !s.Target.IsRemote() {
		stripped = append(stripped, springBootWebLayer...)
	}
	// Before injection, so web dependencies the spec asks for survive.
	removeArtifacts(d, stripped)
	removeTestScoped(d)
	injectDependencies(d, s.Dependencies)
	if len(s.XMLContexts) > 0 {
		injectDependencies(d, []spec.Dependency{xmlStarter})
	}
	g.addOpenShiftProfile(d, s.Name)
	injectPlugins(d, s.Plugins)
}

func (g *Generator) addOpenShiftProfile(d *descriptor.Descriptor, name string) {
	sb := g.cfg.SpringBoot
	if d.AddProfileIfAbsent(descriptor.Profile{
		ID:          OpenShiftProfile,
		DefaultGoal: "install",
		Plugins: []spec.Plugin{{
			GroupID:    sb.OpenShiftPluginGroupID,
			ArtifactID: sb.OpenShiftPluginArtifactID,
			Version:    sb.OpenShiftPluginVersion,
			Executions: []spec.PluginExecution{{
				ID:    "deploy",
				Phase: "install",
				Goals: []string{"resource", "build", "apply"},
			}},
		}},
	}) {
		logging.Debug("Generator", "Added %s profile to %s", OpenShiftProfile, name)
	}
}

// importXMLContexts writes the spec's XML contexts as resources and imports
// them from the Spring Boot main class.
func (g *Generator) importXMLContexts(s spec.ApplicationSpec) error {
	if len(s.XMLContexts) == 0 {
		return nil
	}
	resources := g.fs.Join(s.Name, "src", "main", "resources")
	if err := g.fs.MkdirAll(resources, 0755); err != nil {
		return err
	}
	names := sortedKeys(s.XMLContexts)
	for _, name := range names {
		if err := util.WriteFile(g.fs, g.fs.Join(resources, name), []byte(s.XMLContexts[name]), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	mainPath := g.fs.Join(g.packageDir(s.Name), springBootMainClass+".java")
	source, err := util.ReadFile(g.fs, mainPath)
	if err != nil {
		return fmt.Errorf("failed to read main class: %w", err)
	}
	annotated, err := importResources(string(source), names)
	if err != nil {
		return fmt.Errorf("%s: %w", mainPath, err)
	}
	if annotated == string(source) {
		return nil
	}
	logging.Debug("Generator", "Importing %s in %s", strings.Join(names, ", "), mainPath)
	return util.WriteFile(g.fs, mainPath, []byte(annotated), 0644)
}

func removeArtifacts(d *descriptor.Descriptor, artifactIDs []string) {
	n := d.RemoveDependencies(func(dep spec.Dependency) bool {
		for _, id := range artifactIDs {
			if dep.ArtifactID == id {
				return true
			}
		}
		return false
	})
	if n > 0 {
		logging.Debug("Generator", "Removed %d dependencies (%s)", n, strings.Join(artifactIDs, ", "))
	}
}

func removeTestScoped(d *descriptor.Descriptor) {
	d.RemoveDependencies(func(dep spec.Dependency) bool {
		return dep.Scope == "test"
	})
}

func injectDependencies(d *descriptor.Descriptor, deps []spec.Dependency) {
	for _, dep := range deps {
		if d.AddDependency(dep) {
			logging.Debug("Generator", "Added dependency %s", dep)
		}
	}
}

func injectPlugins(d *descriptor.Descriptor, plugins []spec.Plugin) {
	for _, p := range plugins {
		if d.AddPlugin(p) {
			logging.Debug("Generator", "Added plugin %s", p.Key())
		}
	}
}

// removeSamples deletes the scaffold's sample classes and generated tests.
func (g *Generator) removeSamples(name string, placeholders []string) error {
	if err := util.RemoveAll(g.fs, g.fs.Join(name, "src", "test")); err != nil {
		return err
	}
	pkgDir := g.packageDir(name)
	for _, f := range placeholders {
		path := g.fs.Join(pkgDir, f)
		if err := g.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// packageDir is the source directory of the configured group id.
func (g *Generator) packageDir(name string) string {
	return g.fs.Join(append([]string{name, "src", "main", "java"}, strings.Split(g.cfg.GroupID, ".")...)...)
}

func (g *Generator) loadDescriptor(name string) (*descriptor.Descriptor, error) {
	f, err := g.fs.Open(descriptorPath(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return descriptor.Read(f)
}

func (g *Generator) writeDescriptor(name string, d *descriptor.Descriptor) error {
	f, err := g.fs.Create(descriptorPath(name))
	if err != nil {
		return err
	}
	if _, err := d.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
