package metrics

import (
	"errors"

	"gpusnap/internal/gpu"
)

var errMock = errors.New("mock failure")

// mockInterface is a mock implementation of gpu.Interface for testing
type mockInterface struct {
	InitErr      error
	TerminateErr error
	SystemErr    error
	PerfErr      error
	EnumerateErr error
	Devices      []*mockDevice

	initCalls      int
	terminateCalls int
}

// mockDevice represents a mock GPU. Metrics are keyed by probe name.
type mockDevice struct {
	HandleErr error

	Name    string
	NameErr error

	// NoExtendedView hides the DriverVersioner capability
	NoExtendedView bool
	DriverVersion  string
	DriverErr      error

	MemoryTotal    int64
	MemoryTotalErr error

	SupportErr error
	MetricsErr error
	Supported  map[string]bool
	ProbeErr   map[string]error
	ReadErr    map[string]error

	GPUUsage      float64
	GraphicsClock int64
	MemoryClock   int64
	Temperature   float64
	Power         float64
	FanSpeed      int64
	MemoryUsed    int64

	PowerMin      float64
	PowerMax      float64
	PowerRangeErr error

	supportCalls int
	metricsCalls int
}

// fullySupported returns a device that supports every metric
func fullySupported(name string) *mockDevice {
	supported := make(map[string]bool)
	for _, p := range deviceMetrics {
		supported[p.name] = true
	}
	return &mockDevice{
		Name:          name,
		DriverVersion: "24.10.1",
		MemoryTotal:   8192,
		Supported:     supported,
		GPUUsage:      42.5,
		GraphicsClock: 2400,
		MemoryClock:   1250,
		Temperature:   61.0,
		Power:         212.4,
		FanSpeed:      1450,
		MemoryUsed:    4096,
		PowerMin:      100,
		PowerMax:      355,
	}
}

func (m *mockInterface) Initialize() error {
	m.initCalls++
	return m.InitErr
}

func (m *mockInterface) Terminate() error {
	m.terminateCalls++
	return m.TerminateErr
}

func (m *mockInterface) SystemServices() (gpu.System, error) {
	if m.SystemErr != nil {
		return nil, m.SystemErr
	}
	return mockSystem{m}, nil
}

type mockSystem struct {
	m *mockInterface
}

func (s mockSystem) PerformanceMonitoring() (gpu.PerformanceMonitor, error) {
	if s.m.PerfErr != nil {
		return nil, s.m.PerfErr
	}
	return mockPerformance{}, nil
}

func (s mockSystem) EnumerateDevices() (gpu.DeviceList, error) {
	if s.m.EnumerateErr != nil {
		return nil, s.m.EnumerateErr
	}
	return mockDeviceList(s.m.Devices), nil
}

type mockDeviceList []*mockDevice

func (l mockDeviceList) Len() int {
	return len(l)
}

func (l mockDeviceList) At(index int) (gpu.Device, error) {
	d := l[index]
	if d.HandleErr != nil {
		return nil, d.HandleErr
	}
	if d.NoExtendedView {
		return mockHandle{d}, nil
	}
	return mockExtendedHandle{mockHandle{d}}, nil
}

type mockHandle struct {
	d *mockDevice
}

func (h mockHandle) Name() (string, error) {
	return h.d.Name, h.d.NameErr
}

func (h mockHandle) TotalMemoryMiB() (int64, error) {
	return h.d.MemoryTotal, h.d.MemoryTotalErr
}

type mockExtendedHandle struct {
	mockHandle
}

func (h mockExtendedHandle) DriverVersion() (string, error) {
	return h.d.DriverVersion, h.d.DriverErr
}

type mockPerformance struct{}

func deviceOf(device gpu.Device) *mockDevice {
	switch h := device.(type) {
	case mockHandle:
		return h.d
	case mockExtendedHandle:
		return h.d
	}
	return nil
}

func (mockPerformance) MetricsSupport(device gpu.Device) (gpu.MetricsSupport, error) {
	d := deviceOf(device)
	d.supportCalls++
	if d.SupportErr != nil {
		return nil, d.SupportErr
	}
	return mockSupport{d}, nil
}

func (mockPerformance) CurrentMetrics(device gpu.Device) (gpu.Metrics, error) {
	d := deviceOf(device)
	d.metricsCalls++
	if d.MetricsErr != nil {
		return nil, d.MetricsErr
	}
	return mockMetrics{d}, nil
}

type mockSupport struct {
	d *mockDevice
}

func (s mockSupport) probe(name string) (bool, error) {
	if err := s.d.ProbeErr[name]; err != nil {
		return false, err
	}
	return s.d.Supported[name], nil
}

func (s mockSupport) GPUUsageSupported() (bool, error)      { return s.probe("gpu_usage") }
func (s mockSupport) GraphicsClockSupported() (bool, error) { return s.probe("graphics_clock") }
func (s mockSupport) MemoryClockSupported() (bool, error)   { return s.probe("memory_clock") }
func (s mockSupport) TemperatureSupported() (bool, error)   { return s.probe("temperature") }
func (s mockSupport) PowerSupported() (bool, error)         { return s.probe("power") }
func (s mockSupport) FanSpeedSupported() (bool, error)      { return s.probe("fan_speed") }
func (s mockSupport) MemoryUsedSupported() (bool, error)    { return s.probe("memory_used") }

func (s mockSupport) PowerRange() (float64, float64, error) {
	return s.d.PowerMin, s.d.PowerMax, s.d.PowerRangeErr
}

type mockMetrics struct {
	d *mockDevice
}

func (m mockMetrics) GPUUsage() (float64, error)       { return m.d.GPUUsage, m.d.ReadErr["gpu_usage"] }
func (m mockMetrics) GraphicsClockMHz() (int64, error) { return m.d.GraphicsClock, m.d.ReadErr["graphics_clock"] }
func (m mockMetrics) MemoryClockMHz() (int64, error)   { return m.d.MemoryClock, m.d.ReadErr["memory_clock"] }
func (m mockMetrics) TemperatureC() (float64, error)   { return m.d.Temperature, m.d.ReadErr["temperature"] }
func (m mockMetrics) PowerW() (float64, error)         { return m.d.Power, m.d.ReadErr["power"] }
func (m mockMetrics) FanSpeed() (int64, error)         { return m.d.FanSpeed, m.d.ReadErr["fan_speed"] }
func (m mockMetrics) MemoryUsedMiB() (int64, error)    { return m.d.MemoryUsed, m.d.ReadErr["memory_used"] }
