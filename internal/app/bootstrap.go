package app

import (
	"fmt"
	"os"

	"integctl/internal/config"
	"integctl/pkg/logging"
)

// Application is the bootstrapped integctl: configuration loaded, logging
// set up and services wired.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads the configuration and initializes the services.
func NewApplication(cfg *Config) (*Application, error) {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	if err := loadConfig(cfg); err != nil {
		return nil, err
	}

	appLogLevel, err := logging.ParseLevel(cfg.IntegctlConfig.Global.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	logging.InitForCLI(appLogLevel, os.Stderr)

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services returns the wired services.
func (a *Application) Services() *Services {
	return a.services
}

func loadConfig(cfg *Config) error {
	var loaded config.IntegctlConfig
	var err error

	if cfg.ConfigPath != "" {
		loaded, err = config.LoadConfigFromPath(cfg.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load integctl configuration from path %s: %w", cfg.ConfigPath, err)
		}
		logging.Debug("Bootstrap", "Loaded configuration from custom path: %s", cfg.ConfigPath)
	} else {
		loaded, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load integctl configuration: %w", err)
		}
		logging.Debug("Bootstrap", "Loaded configuration using layered approach")
	}

	if cfg.Target != "" {
		loaded.Global.Target = cfg.Target
	}
	cfg.IntegctlConfig = &loaded
	return nil
}
