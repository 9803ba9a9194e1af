package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"gpusnap/internal/config"
	"gpusnap/internal/export"
	"gpusnap/internal/fsutil"
	"gpusnap/internal/gpu"
	"gpusnap/internal/logging"
	"gpusnap/internal/metrics"
)

const version = "0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath  string
	backend     string
	fixture     string
	logLevel    string
	save        string
	textfile    string
	showVersion bool
	help        bool
}

// run writes exactly one JSON document to stdout and returns the exit code.
// --help and --version are the only paths that print something else.
func run(args []string, stdout, stderr io.Writer) int {
	var opts options

	flagSet := pflag.NewFlagSet("gpusnap", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.configPath, "config", "", "path to a config file (default: system and user config)")
	flagSet.StringVar(&opts.backend, "backend", "", "hardware backend: nvml or fixture")
	flagSet.StringVar(&opts.fixture, "fixture", "", "YAML fixture describing simulated GPUs (implies --backend fixture)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level for stderr: debug, info, warn, error")
	flagSet.StringVar(&opts.save, "save", "", "also write the report to this file")
	flagSet.StringVar(&opts.textfile, "textfile", "", "also write Prometheus gauges to this .prom file (node_exporter textfile collector)")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	flagSet.BoolVarP(&opts.help, "help", "h", false, "show help")

	bootstrap := logging.NewWriterLogger(logging.LevelWarn, stderr)

	if err := flagSet.Parse(args); err != nil {
		bootstrap.Error("cli.flags.invalid", "Invalid command line", map[string]interface{}{
			"error": err.Error(),
		})
		return emitFailure(stdout, bootstrap, err.Error())
	}

	if opts.help {
		printUsage(stderr, flagSet)
		return 0
	}

	if opts.showVersion {
		fmt.Fprintf(stdout, "gpusnap version %s\n", version)
		return 0
	}

	if rest := flagSet.Args(); len(rest) > 0 {
		return emitFailure(stdout, bootstrap, fmt.Sprintf("unexpected argument: %s", rest[0]))
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		bootstrap.Error("config.load.failed", "Failed to load configuration", map[string]interface{}{
			"error": err.Error(),
		})
		return emitFailure(stdout, bootstrap, err.Error())
	}

	logger := newLogger(cfg.Logging, stderr, bootstrap)
	defer fsutil.CloseWithError(logger.Close, bootstrap, "log file")

	iface, err := openBackend(cfg)
	if err != nil {
		logger.Error("backend.open.failed", "Failed to set up hardware backend", map[string]interface{}{
			"backend": cfg.Backend,
			"error":   err.Error(),
		})
		return emitFailure(stdout, logger, err.Error())
	}

	report, collectErr := metrics.NewCollector(iface, logger).Collect()

	writer := metrics.NewWriter(logger)
	if err := writer.Write(report, stdout); err != nil {
		logger.Error("snapshot.write.failed", "Failed to write report", map[string]interface{}{
			"error": err.Error(),
		})
		return 1
	}

	if cfg.ReportPath != "" {
		if err := writer.SaveFile(report, cfg.ReportPath); err != nil {
			logger.Warn("snapshot.save.failed", "Failed to save report copy", map[string]interface{}{
				"filepath": cfg.ReportPath,
				"error":    err.Error(),
			})
		}
	}

	if cfg.TextfilePath != "" {
		textfile := export.NewTextfile()
		textfile.Observe(report)
		if err := textfile.WriteFile(cfg.TextfilePath); err != nil {
			logger.Warn("snapshot.textfile.failed", "Failed to write textfile metrics", map[string]interface{}{
				"filepath": cfg.TextfilePath,
				"error":    err.Error(),
			})
		}
	}

	if collectErr != nil {
		return 1
	}
	return 0
}

// loadConfig merges config files, environment and flags, in that order,
// and validates only the final result
func loadConfig(opts options) (config.Config, error) {
	cfg, err := config.Merge(opts.configPath)
	if err != nil {
		return cfg, err
	}

	if opts.fixture != "" {
		cfg.FixturePath = opts.fixture
		cfg.Backend = config.BackendFixture
	}
	if opts.backend != "" {
		cfg.Backend = strings.ToLower(opts.backend)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(opts.logLevel)
	}
	if opts.save != "" {
		cfg.ReportPath = opts.save
	}
	if opts.textfile != "" {
		cfg.TextfilePath = opts.textfile
	}

	return cfg, cfg.Check()
}

// newLogger builds the configured logger, falling back to stderr when the
// log file cannot be opened
func newLogger(cfg config.LoggingConfig, stderr io.Writer, fallback *logging.Logger) *logging.Logger {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		fallback.Warn("logging.level.invalid", "Unknown log level, using info", map[string]interface{}{
			"level": cfg.Level,
		})
	}

	if cfg.File == "" {
		return logging.NewWriterLogger(level, stderr)
	}

	logger, err := logging.NewFileLogger(level, cfg.File)
	if err != nil {
		fallback.Warn("logging.file.failed", "Failed to open log file, logging to stderr", map[string]interface{}{
			"file":  cfg.File,
			"error": err.Error(),
		})
		return logging.NewWriterLogger(level, stderr)
	}
	return logger
}

// openBackend constructs the hardware interface selected by the config
func openBackend(cfg config.Config) (gpu.Interface, error) {
	switch cfg.Backend {
	case config.BackendNVML:
		return gpu.NewNVML(), nil
	case config.BackendFixture:
		return gpu.LoadFixture(cfg.FixturePath)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// emitFailure writes a failure report for errors raised before collection
func emitFailure(stdout io.Writer, logger *logging.Logger, message string) int {
	if err := metrics.NewWriter(logger).Write(metrics.FailureReportMessage(message), stdout); err != nil {
		logger.Error("snapshot.write.failed", "Failed to write report", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return 1
}

// printUsage displays usage information
func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `gpusnap - GPU telemetry snapshot (version %s)

Collects one snapshot of every GPU and prints it as a single line of JSON
on stdout. Exits 0 when a report was produced, 1 when the hardware
interface is unavailable or no GPUs were found.

Usage:
  gpusnap [flags]

Flags:
%s
Environment:
  GPUSNAP_CONFIG_DIR   system config directory (default: /etc/gpusnap)
  GPUSNAP_BACKEND      nvml or fixture
  GPUSNAP_FIXTURE      fixture file for the fixture backend
  GPUSNAP_LOG_LEVEL    debug, info, warn, error
  GPUSNAP_LOG_FILE     write logs to this file instead of stderr
  GPUSNAP_REPORT_PATH  also write the report to this file
  GPUSNAP_TEXTFILE     also write Prometheus gauges to this .prom file
`, version, flagSet.FlagUsages())
}
