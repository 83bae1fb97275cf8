package config

import (
	"time"

	"integctl/internal/spec"
	"integctl/internal/wait"
)

// GetDefaultConfig returns the built-in configuration layer.
func GetDefaultConfig() IntegctlConfig {
	return IntegctlConfig{
		Global: GlobalSettings{
			AppLocation: "target/apps",
			AppGroupID:  "com.test",
			AppVersion:  "1.0.0-SNAPSHOT",
			Target:      spec.TargetLocal,
			LogLevel:    "info",
		},
		Build: BuildSettings{
			Command:    "mvn",
			Properties: map[string]string{},
			BatchMode:  true,
		},
		Quarkus: QuarkusSettings{
			PlatformGroupID:         "io.quarkus.platform",
			PlatformArtifactID:      "quarkus-bom",
			PlatformVersion:         "3.15.1",
			CamelPlatformGroupID:    "io.quarkus.platform",
			CamelPlatformArtifactID: "quarkus-camel-bom",
			CamelPlatformVersion:    "3.15.1",
			Properties:              map[string]string{},
		},
		SpringBoot: SpringBootConfig{
			ArchetypeGroupID:          "org.apache.camel.archetypes",
			ArchetypeArtifactID:       "camel-archetype-spring-boot",
			ArchetypeVersion:          "4.8.0",
			OpenShiftPluginGroupID:    "org.eclipse.jkube",
			OpenShiftPluginArtifactID: "openshift-maven-plugin",
			OpenShiftPluginVersion:    "1.17.0",
		},
		Script: ScriptSettings{
			Name: "camel",
		},
		Local: LocalSettings{
			JavaCommand:    "java",
			StopTimeout:    10 * time.Second,
			CleanArtifacts: true,
		},
		Wait: WaitSettings{
			Local:  wait.NewPolicy(10, time.Second, "Waiting for endpoint readiness"),
			Remote: wait.NewPolicy(6, 10*time.Second, "Waiting for application deployed"),
		},
	}
}
