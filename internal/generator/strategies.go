package generator

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-git/go-billy/v5/util"

	"integctl/internal/spec"
	"integctl/pkg/logging"
)

// scaffoldWithPlugin runs the Quarkus plugin create goal.
func (g *Generator) scaffoldWithPlugin(ctx context.Context, s spec.ApplicationSpec) error {
	q := g.cfg.Quarkus
	req := g.generateRequest(s)
	req.Goals = []string{fmt.Sprintf("%s:quarkus-maven-plugin:%s:create", q.PlatformGroupID, q.PlatformVersion)}

	extensions := ""
	if s.Target.IsRemote() {
		extensions = "openshift"
	}
	req.Properties = map[string]string{
		"projectGroupId":     g.cfg.GroupID,
		"projectArtifactId":  s.Name,
		"projectVersion":     g.cfg.Version,
		"platformGroupId":    q.PlatformGroupID,
		"platformArtifactId": q.PlatformArtifactID,
		"platformVersion":    q.PlatformVersion,
		"extensions":         extensions,
	}
	for k, v := range q.Properties {
		req.Properties[k] = v
	}

	_, err := g.maven.Invoke(ctx, req)
	return err
}

// scaffoldWithArchetype runs archetype:generate with the Spring Boot archetype.
func (g *Generator) scaffoldWithArchetype(ctx context.Context, s spec.ApplicationSpec) error {
	sb := g.cfg.SpringBoot
	req := g.generateRequest(s)
	req.Goals = []string{"archetype:generate"}
	req.Properties = map[string]string{
		"archetypeGroupId":    sb.ArchetypeGroupID,
		"archetypeArtifactId": sb.ArchetypeArtifactID,
		"archetypeVersion":    sb.ArchetypeVersion,
		"archetypeCatalog":    "internal",
		"groupId":             g.cfg.GroupID,
		"artifactId":          s.Name,
		"version":             g.cfg.Version,
		"package":             g.cfg.GroupID,
	}

	_, err := g.maven.Invoke(ctx, req)
	return err
}

// scaffoldWithScript stages the spec's sources and runs the script's export
// command over them.
func (g *Generator) scaffoldWithScript(ctx context.Context, s spec.ApplicationSpec) error {
	staging := s.Name + "-sources"
	defer func() {
		if err := util.RemoveAll(g.fs, staging); err != nil {
			logging.Warn("Generator", "Failed to remove staging directory %s: %v", staging, err)
		}
	}()

	var files []string
	for _, rel := range sortedKeys(s.Sources) {
		path := g.fs.Join(staging, filepath.ToSlash(rel))
		if err := g.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := util.WriteFile(g.fs, path, []byte(s.Sources[rel]), 0644); err != nil {
			return fmt.Errorf("failed to stage %s: %w", rel, err)
		}
		files = append(files, filepath.Join(g.cfg.AppLocation, path))
	}

	req := g.generateRequest(s)
	req.Goals = []string{"export"}
	req.Args = append(scriptArgs(s, g.cfg), files...)

	_, err := g.script.Invoke(ctx, req)
	return err
}

func scriptArgs(s spec.ApplicationSpec, cfg Config) []string {
	args := []string{
		"--gav", fmt.Sprintf("%s:%s:%s", cfg.GroupID, s.Name, cfg.Version),
		"--directory", s.Name,
		"--runtime", string(s.Runtime),
	}
	switch s.Runtime {
	case spec.RuntimeQuarkus:
		args = append(args,
			"--quarkus-group-id", cfg.Quarkus.PlatformGroupID,
			"--quarkus-artifact-id", cfg.Quarkus.PlatformArtifactID,
			"--quarkus-version", cfg.Quarkus.PlatformVersion,
		)
		if s.Target.IsRemote() {
			args = append(args, "--dep", "io.quarkus:quarkus-openshift")
		}
	case spec.RuntimeSpringBoot:
		args = append(args, "--package-name", cfg.GroupID)
	}
	return args
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
