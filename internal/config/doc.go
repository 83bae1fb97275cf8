// Package config provides configuration management for integctl.
//
// This package implements a layered configuration system. Configuration is
// loaded from multiple sources and merged in a specific order, with later
// sources overriding earlier ones.
//
// # Configuration Layers
//
//  1. Default Configuration (embedded in binary)
//     - Platform coordinates, wait policies and paths that work out-of-the-box
//
//  2. User Configuration (~/.config/integctl/config.yaml)
//     - Personal overrides, e.g. a newer Quarkus platform version
//
//  3. Project Configuration (./.integctl/config.yaml)
//     - Settings shared by a test suite through version control
//
// A single explicit file can be used instead with LoadConfigFromPath.
//
// # Configuration Structure
//
//	global:
//	  appLocation: target/apps     # where projects are generated
//	  appGroupId: com.test
//	  appVersion: 1.0.0-SNAPSHOT
//	  target: local                # or openshift
//
//	build:
//	  command: mvn
//	  properties:
//	    maven.repo.local: /tmp/m2
//
//	quarkus:
//	  platformVersion: 3.15.1
//	  native: false
//
//	openshift:
//	  context: my-cluster
//	  namespace: integration-tests
//
//	wait:
//	  local:  {attempts: 10, interval: 1s}
//	  remote: {attempts: 6, interval: 10s}
//
// Only the keys present in a layer override the layer below it; maps are
// merged key by key.
package config
