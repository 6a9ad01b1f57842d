package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is the name of the project-level config file,
	// searched upward from the working directory.
	ProjectConfigFile = "osw.yaml"

	// UserConfigDir is the directory for user-level config, relative to
	// the home directory.
	UserConfigDir = ".config/osw"

	// UserConfigFile is the name of the user-level config file.
	UserConfigFile = "config.yaml"
)

// Environment variables recognized by the loader. They override every
// file layer.
const (
	EnvDomain       = "OSW_DOMAIN"
	EnvCredFilepath = "OSW_CRED_FILEPATH"
)

// Loader loads configuration with layered precedence.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load assembles the configuration, later layers winning:
//  1. defaults
//  2. user config (~/.config/osw/config.yaml)
//  3. project config (osw.yaml in current or parent directories)
//  4. environment variables (OSW_DOMAIN, OSW_CRED_FILEPATH)
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfig, err := LoadFromFile(userConfigPath); err == nil {
		l.logger.Debug("loaded user config", "path", userConfigPath)
		config.Merge(userConfig)
	} else if !os.IsNotExist(err) {
		l.logger.Warn("could not load user config", "path", userConfigPath, "error", err)
	}

	if projectConfigPath := l.findProjectConfig(); projectConfigPath != "" {
		if projectConfig, err := LoadFromFile(projectConfigPath); err == nil {
			l.logger.Debug("loaded project config", "path", projectConfigPath)
			config.Merge(projectConfig)
		} else {
			l.logger.Warn("could not load project config", "path", projectConfigPath, "error", err)
		}
	}

	applyEnv(config)

	if config.Wiki.CredFilepath == "" {
		config.Wiki.CredFilepath = l.defaultCredFilepath()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overlays recognized environment variables.
func applyEnv(config *Config) {
	if domain := os.Getenv(EnvDomain); domain != "" {
		config.Wiki.Domain = domain
	}
	if credPath := os.Getenv(EnvCredFilepath); credPath != "" {
		config.Wiki.CredFilepath = credPath
	}
}

// EnsureUserConfig creates the user config file with defaults if it
// does not exist yet.
func (l *Loader) EnsureUserConfig() error {
	userConfigPath := l.userConfigPath()
	if _, err := os.Stat(userConfigPath); err == nil {
		return nil
	}
	config := DefaultConfig()
	if err := config.SaveToFile(userConfigPath); err != nil {
		return err
	}
	l.logger.Info("created default user config", "path", userConfigPath)
	return nil
}

func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// defaultCredFilepath places credentials next to the user config.
func (l *Loader) defaultCredFilepath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, "accounts.yaml")
}

// findProjectConfig searches for osw.yaml in the current and parent
// directories.
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
