package config

import (
	"time"

	"integctl/internal/spec"
	"integctl/internal/wait"
)

// IntegctlConfig is the top-level configuration structure for integctl.
type IntegctlConfig struct {
	Global     GlobalSettings   `yaml:"global"`
	Build      BuildSettings    `yaml:"build"`
	Quarkus    QuarkusSettings  `yaml:"quarkus"`
	SpringBoot SpringBootConfig `yaml:"springBoot"`
	Script     ScriptSettings   `yaml:"script"`
	OpenShift  OpenShiftConfig  `yaml:"openshift"`
	Local      LocalSettings    `yaml:"local"`
	Wait       WaitSettings     `yaml:"wait"`
}

// GlobalSettings apply to every application of a session.
type GlobalSettings struct {
	AppLocation string      `yaml:"appLocation,omitempty"` // Directory that receives generated projects and logs
	AppGroupID  string      `yaml:"appGroupId,omitempty"`  // groupId (and base Java package) of generated projects
	AppVersion  string      `yaml:"appVersion,omitempty"`  // version of generated projects
	Target      spec.Target `yaml:"target,omitempty"`      // Default target for specs that do not set one
	LogLevel    string      `yaml:"logLevel,omitempty"`
}

// BuildSettings configure the build tool invocation.
type BuildSettings struct {
	Command    string            `yaml:"command,omitempty"`    // Build tool executable, e.g. "mvn"
	Properties map[string]string `yaml:"properties,omitempty"` // Extra -D properties for every invocation
	BatchMode  bool              `yaml:"batchMode"`
}

// QuarkusSettings hold the platform coordinates for Quarkus projects.
type QuarkusSettings struct {
	PlatformGroupID         string `yaml:"platformGroupId,omitempty"`
	PlatformArtifactID      string `yaml:"platformArtifactId,omitempty"`
	PlatformVersion         string `yaml:"platformVersion,omitempty"`
	CamelPlatformGroupID    string `yaml:"camelPlatformGroupId,omitempty"`
	CamelPlatformArtifactID string `yaml:"camelPlatformArtifactId,omitempty"`
	CamelPlatformVersion    string `yaml:"camelPlatformVersion,omitempty"`
	Native                  bool   `yaml:"native"`
	// Properties are passed to every Quarkus build, e.g. quarkus.native.builder-image.
	Properties map[string]string `yaml:"properties,omitempty"`
}

// SpringBootConfig holds the archetype and deployment plugin coordinates.
type SpringBootConfig struct {
	ArchetypeGroupID          string `yaml:"archetypeGroupId,omitempty"`
	ArchetypeArtifactID       string `yaml:"archetypeArtifactId,omitempty"`
	ArchetypeVersion          string `yaml:"archetypeVersion,omitempty"`
	OpenShiftPluginGroupID    string `yaml:"openshiftPluginGroupId,omitempty"`
	OpenShiftPluginArtifactID string `yaml:"openshiftPluginArtifactId,omitempty"`
	OpenShiftPluginVersion    string `yaml:"openshiftPluginVersion,omitempty"`
}

// ScriptSettings configure the script-driven generator.
type ScriptSettings struct {
	Name string `yaml:"name,omitempty"` // Executable looked up on PATH, e.g. "camel"
}

// OpenShiftConfig selects the remote cluster.
type OpenShiftConfig struct {
	Kubeconfig string `yaml:"kubeconfig,omitempty"`
	Context    string `yaml:"context,omitempty"`
	Namespace  string `yaml:"namespace,omitempty"`
}

// LocalSettings configure the local process target.
type LocalSettings struct {
	JavaCommand    string        `yaml:"javaCommand,omitempty"`
	Port           int           `yaml:"port,omitempty"`
	StopTimeout    time.Duration `yaml:"stopTimeout,omitempty"`
	CleanArtifacts bool          `yaml:"cleanArtifacts"`
}

// WaitSettings are the readiness policies per target kind.
type WaitSettings struct {
	Local  wait.Policy `yaml:"local"`
	Remote wait.Policy `yaml:"remote"`
}
