package descriptor

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"integctl/internal/spec"
)

const samplePom = `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
    <modelVersion>4.0.0</modelVersion>
    <groupId>com.test</groupId>
    <artifactId>demo</artifactId>
    <version>1.0.0-SNAPSHOT</version>
    <dependencyManagement>
        <dependencies>
            <dependency>
                <groupId>io.quarkus.platform</groupId>
                <artifactId>quarkus-bom</artifactId>
                <version>3.0.0</version>
                <type>pom</type>
                <scope>import</scope>
            </dependency>
        </dependencies>
    </dependencyManagement>
    <dependencies>
        <dependency>
            <groupId>io.quarkus</groupId>
            <artifactId>quarkus-resteasy</artifactId>
        </dependency>
        <dependency>
            <groupId>io.quarkus</groupId>
            <artifactId>quarkus-arc</artifactId>
        </dependency>
    </dependencies>
    <build>
        <plugins>
            <plugin>
                <artifactId>maven-surefire-plugin</artifactId>
                <version>3.0.0</version>
            </plugin>
        </plugins>
    </build>
</project>
`

func mustRead(t *testing.T, content string) *Descriptor {
	t.Helper()
	d, err := Read(strings.NewReader(content))
	require.NoError(t, err)
	return d
}

func TestRead(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "valid project", content: samplePom},
		{name: "not xml", content: "not xml at all <", wantErr: true},
		{name: "wrong root", content: "<settings></settings>", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Read(strings.NewReader(tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "demo", d.ArtifactID())
		})
	}
}

func TestDependencies(t *testing.T) {
	d := mustRead(t, samplePom)

	deps := d.Dependencies()
	require.Len(t, deps, 2)
	assert.Equal(t, "io.quarkus:quarkus-resteasy", deps[0].Key())
	assert.Equal(t, "io.quarkus:quarkus-arc", deps[1].Key())
	assert.True(t, d.HasDependency("io.quarkus:quarkus-arc"))
	assert.False(t, d.HasDependency("io.quarkus:quarkus-jackson"))
}

func TestAddDependency(t *testing.T) {
	d := mustRead(t, samplePom)

	added := d.AddDependency(spec.Dependency{GroupID: "org.apache.camel.quarkus", ArtifactID: "camel-quarkus-jms", Version: "3.0.0"})
	assert.True(t, added)

	// Same key with another version is not added twice.
	added = d.AddDependency(spec.Dependency{GroupID: "org.apache.camel.quarkus", ArtifactID: "camel-quarkus-jms", Version: "3.1.0"})
	assert.False(t, added)

	deps := d.Dependencies()
	require.Len(t, deps, 3)
	assert.Equal(t, "3.0.0", deps[2].Version)
}

func TestAddDependencyCreatesSection(t *testing.T) {
	d := mustRead(t, `<project><artifactId>bare</artifactId></project>`)

	assert.True(t, d.AddDependency(spec.Dependency{GroupID: "g", ArtifactID: "a"}))
	assert.Equal(t, []spec.Dependency{{GroupID: "g", ArtifactID: "a"}}, d.Dependencies())
}

func TestRemoveDependencies(t *testing.T) {
	d := mustRead(t, samplePom)

	removed := d.RemoveDependencies(func(dep spec.Dependency) bool {
		return strings.Contains(dep.ArtifactID, "resteasy")
	})
	assert.Equal(t, 1, removed)
	require.Len(t, d.Dependencies(), 1)
	assert.Equal(t, "quarkus-arc", d.Dependencies()[0].ArtifactID)

	assert.Equal(t, 0, d.RemoveDependencies(func(spec.Dependency) bool { return false }))
}

func TestSetManagedDependency(t *testing.T) {
	d := mustRead(t, samplePom)

	d.SetManagedDependency(spec.Dependency{
		GroupID: "com.redhat.quarkus.platform", ArtifactID: "quarkus-bom", Version: "3.2.0", Type: "pom", Scope: "import",
	})
	d.SetManagedDependency(spec.Dependency{
		GroupID: "io.quarkus.platform", ArtifactID: "quarkus-camel-bom", Version: "3.2.0", Type: "pom", Scope: "import",
	})

	managed := d.ManagedDependencies()
	require.Len(t, managed, 2)
	assert.Equal(t, "com.redhat.quarkus.platform", managed[0].GroupID)
	assert.Equal(t, "3.2.0", managed[0].Version)
	assert.Equal(t, "quarkus-camel-bom", managed[1].ArtifactID)
}

func TestPlugins(t *testing.T) {
	d := mustRead(t, samplePom)

	plugins := d.Plugins()
	require.Len(t, plugins, 1)
	assert.Equal(t, "org.apache.maven.plugins:maven-surefire-plugin", plugins[0].Key())

	p := spec.Plugin{
		GroupID:    "org.apache.camel",
		ArtifactID: "camel-maven-plugin",
		Version:    "4.0.0",
		Executions: []spec.PluginExecution{{ID: "gen", Phase: "generate-sources", Goals: []string{"generate"}}},
	}
	assert.True(t, d.AddPlugin(p))
	assert.False(t, d.AddPlugin(p))

	plugins = d.Plugins()
	require.Len(t, plugins, 2)
	assert.Equal(t, p, plugins[1])
}

func TestAddProfileIfAbsent(t *testing.T) {
	d := mustRead(t, samplePom)

	profile := Profile{
		ID:          "openshift",
		DefaultGoal: "install",
		Plugins: []spec.Plugin{{
			GroupID:    "org.eclipse.jkube",
			ArtifactID: "openshift-maven-plugin",
			Version:    "1.17.0",
			Executions: []spec.PluginExecution{{ID: "deploy", Phase: "install", Goals: []string{"resource", "build", "apply"}}},
		}},
	}
	assert.False(t, d.HasProfile("openshift"))
	assert.True(t, d.AddProfileIfAbsent(profile))
	assert.True(t, d.HasProfile("openshift"))
	assert.False(t, d.AddProfileIfAbsent(profile))

	assert.Equal(t, []string{"openshift"}, d.ProfileIDs())
	assert.Equal(t, profile.Plugins, d.ProfilePlugins("openshift"))
	assert.Nil(t, d.ProfilePlugins("missing"))
}

func TestRoundTripIsIdempotent(t *testing.T) {
	d := mustRead(t, samplePom)
	dep := spec.Dependency{GroupID: "io.quarkus", ArtifactID: "quarkus-openshift"}
	d.AddDependency(dep)

	path := filepath.Join(t.TempDir(), "pom.xml")
	require.NoError(t, d.Write(path))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.False(t, reloaded.AddDependency(dep))
	assert.Equal(t, d.Dependencies(), reloaded.Dependencies())

	var first, second bytes.Buffer
	_, err = d.WriteTo(&first)
	require.NoError(t, err)
	_, err = reloaded.WriteTo(&second)
	require.NoError(t, err)
	assert.Equal(t, first.String(), second.String())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}
