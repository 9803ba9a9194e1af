package gpu

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gpusnap/internal/logging"
)

const twoDeviceFixture = `
devices:
  - name: "Radeon RX 7900 XTX"
    driver_version: "24.10.1"
    memory_total_mib: 24576
    metrics:
      gpu_usage: 37.5
      graphics_clock_mhz: 2400
      memory_clock_mhz: 1250
      temperature_c: 61
      power_w: 212.4
      fan_speed: 1450
      memory_used_mib: 4096
    power_range: {min: 100, max: 355}
  - memory_total_mib: 512
    metrics_error: true
`

func TestParseFixture_Devices(t *testing.T) {
	fixture, err := ParseFixture([]byte(twoDeviceFixture))
	if err != nil {
		t.Fatalf("ParseFixture() error: %v", err)
	}

	if err := fixture.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	system, err := fixture.SystemServices()
	if err != nil {
		t.Fatalf("SystemServices() error: %v", err)
	}
	devices, err := system.EnumerateDevices()
	if err != nil {
		t.Fatalf("EnumerateDevices() error: %v", err)
	}
	if devices.Len() != 2 {
		t.Fatalf("Expected 2 devices, got %d", devices.Len())
	}

	first, err := devices.At(0)
	if err != nil {
		t.Fatalf("At(0) error: %v", err)
	}
	if name, _ := first.Name(); name != "Radeon RX 7900 XTX" {
		t.Errorf("Expected first device name, got %q", name)
	}
	versioner, ok := first.(DriverVersioner)
	if !ok {
		t.Fatal("Expected first device to expose DriverVersioner")
	}
	if version, _ := versioner.DriverVersion(); version != "24.10.1" {
		t.Errorf("Expected driver version 24.10.1, got %q", version)
	}

	perf, err := system.PerformanceMonitoring()
	if err != nil {
		t.Fatalf("PerformanceMonitoring() error: %v", err)
	}
	support, err := perf.MetricsSupport(first)
	if err != nil {
		t.Fatalf("MetricsSupport() error: %v", err)
	}
	if ok, _ := support.FanSpeedSupported(); !ok {
		t.Error("Expected fan speed to be supported")
	}
	if _, maxW, err := support.PowerRange(); err != nil || maxW != 355 {
		t.Errorf("PowerRange() = %v, %v; want max 355", maxW, err)
	}
	current, err := perf.CurrentMetrics(first)
	if err != nil {
		t.Fatalf("CurrentMetrics() error: %v", err)
	}
	if used, _ := current.MemoryUsedMiB(); used != 4096 {
		t.Errorf("Expected 4096 MiB used, got %d", used)
	}

	second, err := devices.At(1)
	if err != nil {
		t.Fatalf("At(1) error: %v", err)
	}
	if _, ok := second.(DriverVersioner); ok {
		t.Error("Expected second device without driver version to hide DriverVersioner")
	}
	if _, err := second.Name(); err == nil {
		t.Error("Expected Name() to fail for unnamed device")
	}
	if _, err := perf.CurrentMetrics(second); err == nil {
		t.Error("Expected CurrentMetrics() to fail for metrics_error device")
	}
	support, err = perf.MetricsSupport(second)
	if err != nil {
		t.Fatalf("MetricsSupport() error: %v", err)
	}
	if ok, _ := support.GPUUsageSupported(); ok {
		t.Error("Expected unset gpu_usage to be unsupported")
	}
}

func TestParseFixture_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed yaml", "devices: [unclosed"},
		{"unknown fail stage", "fail: reboot\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFixture([]byte(tt.data)); err == nil {
				t.Error("Expected ParseFixture() to fail")
			}
		})
	}
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	if err := os.WriteFile(path, []byte(twoDeviceFixture), 0o600); err != nil {
		t.Fatal(err)
	}

	fixture, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture() error: %v", err)
	}
	if len(fixture.file.Devices) != 2 {
		t.Errorf("Expected 2 devices, got %d", len(fixture.file.Devices))
	}

	if _, err := LoadFixture(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing fixture file")
	}
}

func TestFixture_FailStages(t *testing.T) {
	tests := []struct {
		stage    string
		sentinel error
	}{
		{FailInitialize, ErrInitialize},
		{FailSystem, ErrSystemServices},
		{FailPerformance, ErrPerformanceServices},
		{FailEnumerate, ErrNoDevices},
	}

	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			fixture := NewFixture(FixtureFile{Fail: tt.stage})
			_, err := Open(fixture, logging.NewLogger(logging.LevelError))
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("Open() error = %v, want %v", err, tt.sentinel)
			}
			if fixture.Initialized() {
				t.Error("Expected fixture to be terminated after failed Open")
			}
		})
	}
}
