package config

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Backend: BackendNVML,
		Logging: LoggingConfig{
			// stdout carries the report; keep stderr quiet unless something is wrong
			Level: "warn",
		},
	}
}
