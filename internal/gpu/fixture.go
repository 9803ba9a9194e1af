package gpu

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Fixture failure stages, set via the top-level "fail" key
const (
	FailInitialize  = "initialize"
	FailSystem      = "system"
	FailPerformance = "performance"
	FailEnumerate   = "enumerate"
)

var errFixture = errors.New("fixture: simulated failure")

// FixtureFile is the YAML document describing a simulated set of GPUs.
// A nil pointer means the value is unavailable on that device.
type FixtureFile struct {
	Fail    string          `yaml:"fail,omitempty"`
	Devices []FixtureDevice `yaml:"devices"`
}

// FixtureDevice describes one simulated GPU
type FixtureDevice struct {
	Name           *string            `yaml:"name,omitempty"`
	DriverVersion  *string            `yaml:"driver_version,omitempty"`
	MemoryTotalMiB *int64             `yaml:"memory_total_mib,omitempty"`
	HandleError    bool               `yaml:"handle_error,omitempty"`
	SupportError   bool               `yaml:"support_error,omitempty"`
	MetricsError   bool               `yaml:"metrics_error,omitempty"`
	Metrics        FixtureMetrics     `yaml:"metrics"`
	PowerRange     *FixturePowerRange `yaml:"power_range,omitempty"`
}

// FixtureMetrics holds the simulated readings; nil means unsupported
type FixtureMetrics struct {
	GPUUsage         *float64 `yaml:"gpu_usage,omitempty"`
	GraphicsClockMHz *int64   `yaml:"graphics_clock_mhz,omitempty"`
	MemoryClockMHz   *int64   `yaml:"memory_clock_mhz,omitempty"`
	TemperatureC     *float64 `yaml:"temperature_c,omitempty"`
	PowerW           *float64 `yaml:"power_w,omitempty"`
	FanSpeed         *int64   `yaml:"fan_speed,omitempty"`
	MemoryUsedMiB    *int64   `yaml:"memory_used_mib,omitempty"`
}

// FixturePowerRange is the simulated board power range in watts
type FixturePowerRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Fixture implements Interface from a FixtureFile
type Fixture struct {
	file        FixtureFile
	initialized bool
}

// LoadFixture reads a fixture from a YAML file
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from config or flags
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture parses a fixture from YAML
func ParseFixture(data []byte) (*Fixture, error) {
	var file FixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse fixture YAML: %w", err)
	}

	switch file.Fail {
	case "", FailInitialize, FailSystem, FailPerformance, FailEnumerate:
	default:
		return nil, fmt.Errorf("fixture: unknown fail stage %q", file.Fail)
	}

	return NewFixture(file), nil
}

// NewFixture wraps an in-memory fixture description
func NewFixture(file FixtureFile) *Fixture {
	return &Fixture{file: file}
}

// Initialize simulates interface initialization
func (f *Fixture) Initialize() error {
	if f.file.Fail == FailInitialize {
		return errFixture
	}
	f.initialized = true
	return nil
}

// Terminate simulates interface teardown
func (f *Fixture) Terminate() error {
	f.initialized = false
	return nil
}

// Initialized reports whether the fixture is between Initialize and Terminate
func (f *Fixture) Initialized() bool {
	return f.initialized
}

// SystemServices returns the simulated system view
func (f *Fixture) SystemServices() (System, error) {
	if f.file.Fail == FailSystem {
		return nil, errFixture
	}
	return fixtureSystem{f}, nil
}

type fixtureSystem struct {
	f *Fixture
}

func (s fixtureSystem) PerformanceMonitoring() (PerformanceMonitor, error) {
	if s.f.file.Fail == FailPerformance {
		return nil, errFixture
	}
	return fixturePerformance{}, nil
}

func (s fixtureSystem) EnumerateDevices() (DeviceList, error) {
	if s.f.file.Fail == FailEnumerate {
		return nil, errFixture
	}
	return fixtureDeviceList(s.f.file.Devices), nil
}

type fixtureDeviceList []FixtureDevice

func (l fixtureDeviceList) Len() int {
	return len(l)
}

func (l fixtureDeviceList) At(index int) (Device, error) {
	if index < 0 || index >= len(l) {
		return nil, fmt.Errorf("fixture: device index %d out of range", index)
	}
	spec := &l[index]
	if spec.HandleError {
		return nil, errFixture
	}

	device := fixtureDevice{spec: spec}
	if spec.DriverVersion != nil {
		return fixtureExtendedDevice{device}, nil
	}
	return device, nil
}

type fixtureDevice struct {
	spec *FixtureDevice
}

func (d fixtureDevice) Name() (string, error) {
	if d.spec.Name == nil {
		return "", errFixture
	}
	return *d.spec.Name, nil
}

func (d fixtureDevice) TotalMemoryMiB() (int64, error) {
	if d.spec.MemoryTotalMiB == nil {
		return 0, errFixture
	}
	return *d.spec.MemoryTotalMiB, nil
}

// fixtureExtendedDevice is a device exposing the DriverVersioner view
type fixtureExtendedDevice struct {
	fixtureDevice
}

func (d fixtureExtendedDevice) DriverVersion() (string, error) {
	return *d.spec.DriverVersion, nil
}

type fixturePerformance struct{}

func (fixturePerformance) MetricsSupport(device Device) (MetricsSupport, error) {
	spec, err := fixtureSpec(device)
	if err != nil {
		return nil, err
	}
	if spec.SupportError {
		return nil, errFixture
	}
	return fixtureSupport{spec}, nil
}

func (fixturePerformance) CurrentMetrics(device Device) (Metrics, error) {
	spec, err := fixtureSpec(device)
	if err != nil {
		return nil, err
	}
	if spec.MetricsError {
		return nil, errFixture
	}
	return fixtureMetrics{spec.Metrics}, nil
}

func fixtureSpec(device Device) (*FixtureDevice, error) {
	switch d := device.(type) {
	case fixtureDevice:
		return d.spec, nil
	case fixtureExtendedDevice:
		return d.spec, nil
	default:
		return nil, fmt.Errorf("fixture: unexpected device type %T", device)
	}
}

type fixtureSupport struct {
	spec *FixtureDevice
}

func (s fixtureSupport) GPUUsageSupported() (bool, error) {
	return s.spec.Metrics.GPUUsage != nil, nil
}

func (s fixtureSupport) GraphicsClockSupported() (bool, error) {
	return s.spec.Metrics.GraphicsClockMHz != nil, nil
}

func (s fixtureSupport) MemoryClockSupported() (bool, error) {
	return s.spec.Metrics.MemoryClockMHz != nil, nil
}

func (s fixtureSupport) TemperatureSupported() (bool, error) {
	return s.spec.Metrics.TemperatureC != nil, nil
}

func (s fixtureSupport) PowerSupported() (bool, error) {
	return s.spec.Metrics.PowerW != nil, nil
}

func (s fixtureSupport) FanSpeedSupported() (bool, error) {
	return s.spec.Metrics.FanSpeed != nil, nil
}

func (s fixtureSupport) MemoryUsedSupported() (bool, error) {
	return s.spec.Metrics.MemoryUsedMiB != nil, nil
}

func (s fixtureSupport) PowerRange() (float64, float64, error) {
	if s.spec.PowerRange == nil {
		return 0, 0, errFixture
	}
	return s.spec.PowerRange.Min, s.spec.PowerRange.Max, nil
}

type fixtureMetrics struct {
	m FixtureMetrics
}

func (f fixtureMetrics) GPUUsage() (float64, error)       { return deref(f.m.GPUUsage) }
func (f fixtureMetrics) GraphicsClockMHz() (int64, error) { return deref(f.m.GraphicsClockMHz) }
func (f fixtureMetrics) MemoryClockMHz() (int64, error)   { return deref(f.m.MemoryClockMHz) }
func (f fixtureMetrics) TemperatureC() (float64, error)   { return deref(f.m.TemperatureC) }
func (f fixtureMetrics) PowerW() (float64, error)         { return deref(f.m.PowerW) }
func (f fixtureMetrics) FanSpeed() (int64, error)         { return deref(f.m.FanSpeed) }
func (f fixtureMetrics) MemoryUsedMiB() (int64, error)    { return deref(f.m.MemoryUsedMiB) }

func deref[T any](v *T) (T, error) {
	if v == nil {
		var zero T
		return zero, errFixture
	}
	return *v, nil
}
