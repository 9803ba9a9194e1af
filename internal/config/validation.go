package config

import (
	"fmt"
	"path/filepath"

	"gpusnap/internal/logging"
)

const (
	// BackendNVML reads GPUs through the NVIDIA management library.
	BackendNVML = "nvml"
	// BackendFixture reads simulated GPUs from a YAML fixture file.
	BackendFixture = "fixture"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateBackend()...)
	errors = append(errors, c.validateOutputs()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// Check validates the configuration and folds all problems into one error
func (c *Config) Check() error {
	if validationErrors := c.Validate(); len(validationErrors) > 0 {
		return fmt.Errorf("config.validation.error: %v", formatValidationErrors(validationErrors))
	}
	return nil
}

func (c *Config) validateBackend() []ValidationError {
	switch c.Backend {
	case BackendNVML:
		return nil
	case BackendFixture:
		if c.FixturePath != "" {
			return nil
		}
		return []ValidationError{{
			Path:    "fixture_path",
			Message: fmt.Sprintf("required when backend is '%s'", BackendFixture),
		}}
	default:
		return []ValidationError{{
			Path:    "backend",
			Message: fmt.Sprintf("must be '%s' or '%s', got '%s'", BackendNVML, BackendFixture, c.Backend),
		}}
	}
}

func (c *Config) validateOutputs() []ValidationError {
	var errors []ValidationError

	// node_exporter only picks up *.prom files
	if c.TextfilePath != "" && filepath.Ext(c.TextfilePath) != ".prom" {
		errors = append(errors, ValidationError{
			Path:    "textfile_path",
			Message: fmt.Sprintf("must end in .prom, got '%s'", c.TextfilePath),
		})
	}

	if c.ReportPath != "" && filepath.Clean(c.ReportPath) == filepath.Clean(c.TextfilePath) {
		errors = append(errors, ValidationError{
			Path:    "report_path",
			Message: "must differ from textfile_path",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	if _, err := logging.ParseLevel(c.Logging.Level); err == nil {
		return nil
	}

	return []ValidationError{{
		Path:    "logging.level",
		Message: fmt.Sprintf("must be one of debug, info, warn (warning), error, got '%s'", c.Logging.Level),
	}}
}
