package app

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"integctl/internal/logs"
	"integctl/internal/reporting"
	"integctl/internal/spec"
)

// writeConfig writes a configuration rooted in a temp dir whose kubeconfig
// does not exist, so no cluster is connected.
func writeConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	appLocation := filepath.Join(dir, "apps")
	content := fmt.Sprintf(`
global:
  appLocation: %s
openshift:
  kubeconfig: %s
%s`, appLocation, filepath.Join(dir, "missing-kubeconfig"), extra)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path, appLocation
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(true, "/tmp/config.yaml")
	assert.True(t, cfg.Debug)
	assert.Equal(t, "/tmp/config.yaml", cfg.ConfigPath)
	assert.Equal(t, os.Stdout, cfg.Output)
	assert.Nil(t, cfg.IntegctlConfig, "loaded during bootstrap")
}

func TestNewApplicationWithoutCluster(t *testing.T) {
	path, appLocation := writeConfig(t, "")
	cfg := NewConfig(false, path)
	cfg.Output = &bytes.Buffer{}
	cfg.Target = spec.TargetLocal

	a, err := NewApplication(cfg)
	require.NoError(t, err)
	assert.Nil(t, a.Services().Cluster)
	assert.Equal(t, appLocation, cfg.IntegctlConfig.Global.AppLocation)
	assert.Equal(t, spec.TargetLocal, cfg.IntegctlConfig.Global.Target)

	err = a.TeardownRemote(context.Background(), "demo")
	assert.ErrorIs(t, err, ErrNoCluster)
}

func TestNewApplicationRequiresCluster(t *testing.T) {
	path, _ := writeConfig(t, "")
	cfg := NewConfig(false, path)
	cfg.RequireCluster = true

	_, err := NewApplication(cfg)
	assert.Error(t, err)
}

func TestNewApplicationBadConfigPath(t *testing.T) {
	_, err := NewApplication(NewConfig(false, filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestRunExistingArtifact(t *testing.T) {
	scripts := t.TempDir()
	java := filepath.Join(scripts, "java")
	require.NoError(t, os.WriteFile(java, []byte("#!/bin/sh\necho \"Started DemoApplication in 0.9 seconds\"\nexec sleep 30\n"), 0755))
	artifact := filepath.Join(scripts, "demo.jar")
	require.NoError(t, os.WriteFile(artifact, []byte("jar"), 0644))

	path, appLocation := writeConfig(t, fmt.Sprintf(`local:
  javaCommand: %s
  port: %d
  stopTimeout: 2s
wait:
  local:
    attempts: 50
    interval: 100ms
`, java, closedPort(t)))

	var out bytes.Buffer
	cfg := NewConfig(false, path)
	cfg.Output = &out
	cfg.Quiet = true
	a, err := NewApplication(cfg)
	require.NoError(t, err)

	err = a.Run(context.Background(), spec.ApplicationSpec{
		Name:             "demo",
		Runtime:          spec.RuntimeSpringBoot,
		Strategy:         spec.StrategyArchetype,
		Target:           spec.TargetLocal,
		ExistingArtifact: artifact,
	})
	require.NoError(t, err)

	snapshot, ok := a.Services().Store.Get("demo")
	require.True(t, ok)
	assert.Equal(t, reporting.StateTornDown, snapshot.State)
	assert.Contains(t, out.String(), "Ready")

	data, err := os.ReadFile(logs.SavedLogPath(appLocation, "demo"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Started DemoApplication")
}
