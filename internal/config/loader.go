package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/integctl"
	projectConfigDir = ".integctl"
	configFileName   = "config.yaml"
)

// LoadConfig loads the integctl configuration by layering default, user, and project settings.
func LoadConfig() (IntegctlConfig, error) {
	// 1. Start with the default configuration
	config := GetDefaultConfig()

	// 2. Determine user-specific configuration path
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// Log this error but don't fail; user config is optional
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
		if err := overlayConfigFromFile(&config, userConfigPath); err != nil {
			return IntegctlConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
		}
	}

	// 3. Determine project-specific configuration path
	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else if _, err := os.Stat(projectConfigPath); !os.IsNotExist(err) {
		if err := overlayConfigFromFile(&config, projectConfigPath); err != nil {
			return IntegctlConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
		}
	}

	return config, validate(config)
}

// LoadConfigFromPath loads the defaults overlaid with a single explicit file.
func LoadConfigFromPath(path string) (IntegctlConfig, error) {
	config := GetDefaultConfig()
	if err := overlayConfigFromFile(&config, path); err != nil {
		return IntegctlConfig{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	return config, validate(config)
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// overlayConfigFromFile decodes filePath on top of config. yaml.v3 only
// assigns the keys present in the document, so absent keys keep the value of
// the layer below and maps are merged key by key.
func overlayConfigFromFile(config *IntegctlConfig, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

func validate(config IntegctlConfig) error {
	if config.Global.AppLocation == "" {
		return fmt.Errorf("global.appLocation must not be empty")
	}
	if config.Build.Command == "" {
		return fmt.Errorf("build.command must not be empty")
	}
	if err := config.Wait.Local.Validate(); err != nil {
		return fmt.Errorf("wait.local: %w", err)
	}
	if err := config.Wait.Remote.Validate(); err != nil {
		return fmt.Errorf("wait.remote: %w", err)
	}
	return nil
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
