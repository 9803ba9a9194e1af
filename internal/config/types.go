package config

// Config represents the complete gpusnap configuration.
// ReportPath receives a copy of the JSON report; TextfilePath receives
// Prometheus gauges for the node_exporter textfile collector.
type Config struct {
	Backend      string        `yaml:"backend"`
	FixturePath  string        `yaml:"fixture_path"`
	ReportPath   string        `yaml:"report_path"`
	TextfilePath string        `yaml:"textfile_path"`
	Logging      LoggingConfig `yaml:"logging"`
}

// LoggingConfig represents logging configuration.
// An empty File means stderr.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}
