// Package descriptor edits Maven project descriptors (pom.xml) in place.
//
// The document is kept as an XML tree, so elements the editor does not know
// about survive a load/save round trip untouched. Dependencies, plugins and
// profiles are exposed as ordered collections keyed by their coordinate.
package descriptor

import (
	"fmt"
	"io"
	"os"

	"github.com/beevik/etree"

	"integctl/internal/spec"
)

// Descriptor is a loaded pom.xml.
type Descriptor struct {
	doc *etree.Document
}

// Load reads a descriptor from a file.
func Load(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open descriptor %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a descriptor from r.
func Read(r io.Reader) (*Descriptor, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor: %w", err)
	}
	if doc.Root() == nil || doc.Root().Tag != "project" {
		return nil, fmt.Errorf("descriptor has no <project> root element")
	}
	return &Descriptor{doc: doc}, nil
}

// Write saves the descriptor to a file.
func (d *Descriptor) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create descriptor %s: %w", path, err)
	}
	if _, err := d.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write descriptor %s: %w", path, err)
	}
	return f.Close()
}

// WriteTo serializes the descriptor to w.
func (d *Descriptor) WriteTo(w io.Writer) (int64, error) {
	d.doc.Indent(4)
	return d.doc.WriteTo(w)
}

// String renders the descriptor.
func (d *Descriptor) String() string {
	d.doc.Indent(4)
	s, _ := d.doc.WriteToString()
	return s
}

func (d *Descriptor) project() *etree.Element {
	return d.doc.Root()
}

// ArtifactID returns the project's artifactId.
func (d *Descriptor) ArtifactID() string {
	return childText(d.project(), "artifactId")
}

// Dependencies returns the project's direct dependencies in document order.
func (d *Descriptor) Dependencies() []spec.Dependency {
	return readDependencies(d.project().SelectElement("dependencies"))
}

// HasDependency reports whether a dependency with the same key is declared.
func (d *Descriptor) HasDependency(key string) bool {
	for _, dep := range d.Dependencies() {
		if dep.Key() == key {
			return true
		}
	}
	return false
}

// AddDependency appends dep unless a dependency with the same key exists.
// It reports whether the descriptor changed.
func (d *Descriptor) AddDependency(dep spec.Dependency) bool {
	deps := ensureChild(d.project(), "dependencies")
	for _, el := range deps.SelectElements("dependency") {
		if dependencyFrom(el).Key() == dep.Key() {
			return false
		}
	}
	writeDependency(deps.CreateElement("dependency"), dep)
	return true
}

// RemoveDependencies deletes every direct dependency matching pred and
// returns how many were removed.
func (d *Descriptor) RemoveDependencies(pred func(spec.Dependency) bool) int {
	return removeMatching(d.project().SelectElement("dependencies"), pred)
}

// ManagedDependencies returns the dependencyManagement entries.
func (d *Descriptor) ManagedDependencies() []spec.Dependency {
	dm := d.project().SelectElement("dependencyManagement")
	if dm == nil {
		return nil
	}
	return readDependencies(dm.SelectElement("dependencies"))
}

// SetManagedDependency places dep in dependencyManagement, replacing any entry
// with the same artifactId. Replaced entries are removed and dep is appended.
func (d *Descriptor) SetManagedDependency(dep spec.Dependency) {
	deps := ensureChild(ensureChild(d.project(), "dependencyManagement"), "dependencies")
	removeMatching(deps, func(existing spec.Dependency) bool {
		return existing.ArtifactID == dep.ArtifactID
	})
	writeDependency(deps.CreateElement("dependency"), dep)
}

// Plugins returns the build plugins in document order.
func (d *Descriptor) Plugins() []spec.Plugin {
	return readPlugins(d.project().FindElement("build/plugins"))
}

// AddPlugin appends p to build/plugins unless a plugin with the same key
// exists. It reports whether the descriptor changed.
func (d *Descriptor) AddPlugin(p spec.Plugin) bool {
	plugins := ensureChild(ensureChild(d.project(), "build"), "plugins")
	return addPlugin(plugins, p)
}

// Profile is a build profile that contributes plugins.
type Profile struct {
	ID          string
	DefaultGoal string
	Plugins     []spec.Plugin
}

// ProfileIDs returns the ids of all declared profiles.
func (d *Descriptor) ProfileIDs() []string {
	profiles := d.project().SelectElement("profiles")
	if profiles == nil {
		return nil
	}
	var ids []string
	for _, p := range profiles.SelectElements("profile") {
		ids = append(ids, childText(p, "id"))
	}
	return ids
}

// HasProfile reports whether a profile with the id exists.
func (d *Descriptor) HasProfile(id string) bool {
	for _, existing := range d.ProfileIDs() {
		if existing == id {
			return true
		}
	}
	return false
}

// AddProfileIfAbsent adds p unless a profile with the same id exists. It
// reports whether the descriptor changed.
func (d *Descriptor) AddProfileIfAbsent(p Profile) bool {
	if d.HasProfile(p.ID) {
		return false
	}
	profile := ensureChild(d.project(), "profiles").CreateElement("profile")
	profile.CreateElement("id").SetText(p.ID)
	build := profile.CreateElement("build")
	if p.DefaultGoal != "" {
		build.CreateElement("defaultGoal").SetText(p.DefaultGoal)
	}
	plugins := build.CreateElement("plugins")
	for _, plugin := range p.Plugins {
		addPlugin(plugins, plugin)
	}
	return true
}

// ProfilePlugins returns the plugins declared in the build of profile id.
func (d *Descriptor) ProfilePlugins(id string) []spec.Plugin {
	profiles := d.project().SelectElement("profiles")
	if profiles == nil {
		return nil
	}
	for _, p := range profiles.SelectElements("profile") {
		if childText(p, "id") == id {
			return readPlugins(p.FindElement("build/plugins"))
		}
	}
	return nil
}

func ensureChild(parent *etree.Element, tag string) *etree.Element {
	if el := parent.SelectElement(tag); el != nil {
		return el
	}
	return parent.CreateElement(tag)
}

func childText(parent *etree.Element, tag string) string {
	if parent == nil {
		return ""
	}
	if el := parent.SelectElement(tag); el != nil {
		return el.Text()
	}
	return ""
}

func setChild(parent *etree.Element, tag, value string) {
	if value == "" {
		return
	}
	ensureChild(parent, tag).SetText(value)
}

func dependencyFrom(el *etree.Element) spec.Dependency {
	return spec.Dependency{
		GroupID:    childText(el, "groupId"),
		ArtifactID: childText(el, "artifactId"),
		Version:    childText(el, "version"),
		Type:       childText(el, "type"),
		Scope:      childText(el, "scope"),
	}
}

func writeDependency(el *etree.Element, dep spec.Dependency) {
	setChild(el, "groupId", dep.GroupID)
	setChild(el, "artifactId", dep.ArtifactID)
	setChild(el, "version", dep.Version)
	setChild(el, "type", dep.Type)
	setChild(el, "scope", dep.Scope)
}

func readDependencies(deps *etree.Element) []spec.Dependency {
	if deps == nil {
		return nil
	}
	var out []spec.Dependency
	for _, el := range deps.SelectElements("dependency") {
		out = append(out, dependencyFrom(el))
	}
	return out
}

func removeMatching(deps *etree.Element, pred func(spec.Dependency) bool) int {
	if deps == nil {
		return 0
	}
	removed := 0
	for _, el := range deps.SelectElements("dependency") {
		if pred(dependencyFrom(el)) {
			deps.RemoveChild(el)
			removed++
		}
	}
	return removed
}

func pluginFrom(el *etree.Element) spec.Plugin {
	p := spec.Plugin{
		GroupID:    childText(el, "groupId"),
		ArtifactID: childText(el, "artifactId"),
		Version:    childText(el, "version"),
	}
	if p.GroupID == "" {
		// Maven's implicit plugin group.
		p.GroupID = "org.apache.maven.plugins"
	}
	if execs := el.SelectElement("executions"); execs != nil {
		for _, ex := range execs.SelectElements("execution") {
			exec := spec.PluginExecution{
				ID:    childText(ex, "id"),
				Phase: childText(ex, "phase"),
			}
			if goals := ex.SelectElement("goals"); goals != nil {
				for _, g := range goals.SelectElements("goal") {
					exec.Goals = append(exec.Goals, g.Text())
				}
			}
			p.Executions = append(p.Executions, exec)
		}
	}
	return p
}

func readPlugins(plugins *etree.Element) []spec.Plugin {
	if plugins == nil {
		return nil
	}
	var out []spec.Plugin
	for _, el := range plugins.SelectElements("plugin") {
		out = append(out, pluginFrom(el))
	}
	return out
}

func addPlugin(plugins *etree.Element, p spec.Plugin) bool {
	for _, el := range plugins.SelectElements("plugin") {
		if pluginFrom(el).Key() == p.Key() {
			return false
		}
	}
	el := plugins.CreateElement("plugin")
	setChild(el, "groupId", p.GroupID)
	setChild(el, "artifactId", p.ArtifactID)
	setChild(el, "version", p.Version)
	if len(p.Executions) > 0 {
		execs := el.CreateElement("executions")
		for _, ex := range p.Executions {
			exEl := execs.CreateElement("execution")
			setChild(exEl, "id", ex.ID)
			setChild(exEl, "phase", ex.Phase)
			if len(ex.Goals) > 0 {
				goals := exEl.CreateElement("goals")
				for _, g := range ex.Goals {
					goals.CreateElement("goal").SetText(g)
				}
			}
		}
	}
	return true
}
