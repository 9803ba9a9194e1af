package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigDir = "/etc/gpusnap"
	systemConfigFile = "config.yaml"
	userConfigDir    = ".gpusnap"
	userConfigFile   = "config.yaml"
)

// Environment overrides, applied after all config files
const (
	EnvConfigDir  = "GPUSNAP_CONFIG_DIR"
	EnvBackend    = "GPUSNAP_BACKEND"
	EnvFixture    = "GPUSNAP_FIXTURE"
	EnvLogLevel   = "GPUSNAP_LOG_LEVEL"
	EnvLogFile    = "GPUSNAP_LOG_FILE"
	EnvReportPath = "GPUSNAP_REPORT_PATH"
	EnvTextfile   = "GPUSNAP_TEXTFILE"
)

// Load loads and merges configuration from system and user files
// Priority: defaults < system config < user config < environment
func Load() (Config, error) {
	cfg, err := Merge("")
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Check()
}

// LoadFrom loads configuration from a specific file path.
// Environment overrides still apply on top.
func LoadFrom(path string) (Config, error) {
	cfg, err := Merge(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Check()
}

// Merge layers config files and environment without validating, so callers
// with a higher-priority layer (flags) can apply it before calling Check.
// An empty path means the system and user config files.
func Merge(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := mergeConfigFile(&cfg, path); err != nil {
			return cfg, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		applyEnv(&cfg)
		return cfg, nil
	}

	systemPath := SystemConfigPath()
	if err := mergeConfigFile(&cfg, systemPath); err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to load system config: %w", err)
		}
	}

	if userPath := UserConfigPath(); userPath != "" {
		if err := mergeConfigFile(&cfg, userPath); err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to load user config: %w", err)
			}
		}
	}

	applyEnv(&cfg)

	return cfg, nil
}

// mergeConfigFile reads a YAML file and merges it into the existing config
func mergeConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path is constructed from trusted sources
	if err != nil {
		return err
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	mergeConfig(cfg, &overlay)

	return nil
}

// mergeConfig merges non-zero values from src into dst
func mergeConfig(dst, src *Config) {
	if src.Backend != "" {
		dst.Backend = src.Backend
	}
	if src.FixturePath != "" {
		dst.FixturePath = src.FixturePath
	}
	if src.ReportPath != "" {
		dst.ReportPath = src.ReportPath
	}
	if src.TextfilePath != "" {
		dst.TextfilePath = src.TextfilePath
	}
	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if src.Logging.File != "" {
		dst.Logging.File = src.Logging.File
	}
}

// applyEnv overlays GPUSNAP_* environment variables
func applyEnv(cfg *Config) {
	overlay := Config{
		Backend:      strings.ToLower(strings.TrimSpace(os.Getenv(EnvBackend))),
		FixturePath:  strings.TrimSpace(os.Getenv(EnvFixture)),
		ReportPath:   strings.TrimSpace(os.Getenv(EnvReportPath)),
		TextfilePath: strings.TrimSpace(os.Getenv(EnvTextfile)),
		Logging: LoggingConfig{
			Level: strings.ToLower(strings.TrimSpace(os.Getenv(EnvLogLevel))),
			File:  strings.TrimSpace(os.Getenv(EnvLogFile)),
		},
	}
	mergeConfig(cfg, &overlay)
}

// formatValidationErrors formats validation errors for display
func formatValidationErrors(errors []ValidationError) string {
	if len(errors) == 0 {
		return ""
	}
	if len(errors) == 1 {
		return errors[0].Error()
	}
	result := fmt.Sprintf("%d validation errors:\n", len(errors))
	for _, err := range errors {
		result += "  - " + err.Error() + "\n"
	}
	return result
}

// ConfigDir resolves the system configuration directory respecting overrides
func ConfigDir() string {
	if env := os.Getenv(EnvConfigDir); env != "" {
		if abs, err := filepath.Abs(env); err == nil {
			return abs
		}
	}
	return defaultConfigDir
}

// SystemConfigPath returns the path to the system configuration file
func SystemConfigPath() string {
	return filepath.Join(ConfigDir(), systemConfigFile)
}

// UserConfigPath returns the path to the user configuration file
func UserConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, userConfigDir, userConfigFile)
}
