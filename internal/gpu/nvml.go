//go:build cuda

package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const bytesPerMiB = 1024 * 1024

// DeviceInterface is the subset of nvml.Device used for snapshots (for mocking)
type DeviceInterface interface {
	GetName() (string, nvml.Return)
	GetMemoryInfo() (nvml.Memory, nvml.Return)
	GetUtilizationRates() (nvml.Utilization, nvml.Return)
	GetClockInfo(clockType nvml.ClockType) (uint32, nvml.Return)
	GetTemperature(sensor nvml.TemperatureSensors) (uint32, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)
	GetFanSpeed() (uint32, nvml.Return)
	GetPowerManagementLimitConstraints() (uint32, uint32, nvml.Return)
}

// NVMLInterface defines the interface for NVML operations (for mocking)
type NVMLInterface interface {
	Init() nvml.Return
	Shutdown() nvml.Return
	DeviceGetCount() (int, nvml.Return)
	DeviceGetHandleByIndex(index int) (DeviceInterface, nvml.Return)
	SystemGetDriverVersion() (string, nvml.Return)
}

// realNVML implements NVMLInterface using the actual NVML library
type realNVML struct{}

func (realNVML) Init() nvml.Return {
	return nvml.Init()
}

func (realNVML) Shutdown() nvml.Return {
	return nvml.Shutdown()
}

func (realNVML) DeviceGetCount() (int, nvml.Return) {
	return nvml.DeviceGetCount()
}

func (realNVML) DeviceGetHandleByIndex(index int) (DeviceInterface, nvml.Return) {
	device, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		return nil, ret
	}
	return device, ret
}

func (realNVML) SystemGetDriverVersion() (string, nvml.Return) {
	return nvml.SystemGetDriverVersion()
}

// NVML adapts an NVMLInterface to Interface
type NVML struct {
	lib NVMLInterface
}

// NewNVML creates a backend on top of the system NVML library
func NewNVML() *NVML {
	return &NVML{lib: realNVML{}}
}

// NewNVMLWithInterface creates a backend with a custom NVML interface (for testing)
func NewNVMLWithInterface(lib NVMLInterface) *NVML {
	return &NVML{lib: lib}
}

// Initialize initializes NVML
func (n *NVML) Initialize() error {
	return nvmlError("init", n.lib.Init())
}

// Terminate shuts down NVML
func (n *NVML) Terminate() error {
	return nvmlError("shutdown", n.lib.Shutdown())
}

// SystemServices returns the NVML system view. NVML has no separate service
// objects, so this never fails once Init succeeded.
func (n *NVML) SystemServices() (System, error) {
	return nvmlSystem{lib: n.lib}, nil
}

type nvmlSystem struct {
	lib NVMLInterface
}

func (s nvmlSystem) PerformanceMonitoring() (PerformanceMonitor, error) {
	return nvmlPerformance{}, nil
}

func (s nvmlSystem) EnumerateDevices() (DeviceList, error) {
	count, ret := s.lib.DeviceGetCount()
	if err := nvmlError("device count", ret); err != nil {
		return nil, err
	}
	return nvmlDeviceList{lib: s.lib, count: count}, nil
}

type nvmlDeviceList struct {
	lib   NVMLInterface
	count int
}

func (l nvmlDeviceList) Len() int {
	return l.count
}

func (l nvmlDeviceList) At(index int) (Device, error) {
	device, ret := l.lib.DeviceGetHandleByIndex(index)
	if err := nvmlError("device handle", ret); err != nil {
		return nil, err
	}
	return nvmlDevice{lib: l.lib, device: device, cache: &sampleCache{}}, nil
}

type nvmlDevice struct {
	lib    NVMLInterface
	device DeviceInterface
	cache  *sampleCache
}

// sampleCache holds the single reading shared by MetricsSupport and
// CurrentMetrics for one device handle
type sampleCache struct {
	once   sync.Once
	sample *nvmlSample
}

func (d nvmlDevice) Name() (string, error) {
	name, ret := d.device.GetName()
	return name, nvmlError("name", ret)
}

func (d nvmlDevice) TotalMemoryMiB() (int64, error) {
	memory, ret := d.device.GetMemoryInfo()
	if err := nvmlError("memory info", ret); err != nil {
		return 0, err
	}
	return int64(memory.Total / bytesPerMiB), nil
}

// DriverVersion reports the system driver version; NVML has no per-device one
func (d nvmlDevice) DriverVersion() (string, error) {
	version, ret := d.lib.SystemGetDriverVersion()
	return version, nvmlError("driver version", ret)
}

type nvmlPerformance struct{}

func (nvmlPerformance) MetricsSupport(device Device) (MetricsSupport, error) {
	sample, err := sampleDevice(device)
	if err != nil {
		return nil, err
	}
	return nvmlSupport{sample}, nil
}

func (nvmlPerformance) CurrentMetrics(device Device) (Metrics, error) {
	sample, err := sampleDevice(device)
	if err != nil {
		return nil, err
	}
	return nvmlMetrics{sample}, nil
}

// nvmlSample captures every reading of a device in one pass. NVML has no
// capability query, so support is derived from the return codes.
type nvmlSample struct {
	utilization    nvml.Utilization
	utilizationRet nvml.Return
	graphicsClock  uint32
	graphicsRet    nvml.Return
	memoryClock    uint32
	memoryClockRet nvml.Return
	temperature    uint32
	temperatureRet nvml.Return
	powerMilliwatt uint32
	powerRet       nvml.Return
	fanSpeed       uint32
	fanRet         nvml.Return
	memory         nvml.Memory
	memoryRet      nvml.Return
	powerMinMW     uint32
	powerMaxMW     uint32
	powerRangeRet  nvml.Return
}

func sampleDevice(device Device) (*nvmlSample, error) {
	d, ok := device.(nvmlDevice)
	if !ok || d.cache == nil {
		return nil, fmt.Errorf("nvml: unexpected device type %T", device)
	}

	d.cache.once.Do(func() {
		d.cache.sample = readSample(d.device)
	})
	return d.cache.sample, nil
}

func readSample(device DeviceInterface) *nvmlSample {
	s := &nvmlSample{}
	s.utilization, s.utilizationRet = device.GetUtilizationRates()
	s.graphicsClock, s.graphicsRet = device.GetClockInfo(nvml.CLOCK_GRAPHICS)
	s.memoryClock, s.memoryClockRet = device.GetClockInfo(nvml.CLOCK_MEM)
	s.temperature, s.temperatureRet = device.GetTemperature(nvml.TEMPERATURE_GPU)
	s.powerMilliwatt, s.powerRet = device.GetPowerUsage()
	s.fanSpeed, s.fanRet = device.GetFanSpeed()
	s.memory, s.memoryRet = device.GetMemoryInfo()
	s.powerMinMW, s.powerMaxMW, s.powerRangeRet = device.GetPowerManagementLimitConstraints()
	return s
}

type nvmlSupport struct {
	s *nvmlSample
}

func (n nvmlSupport) GPUUsageSupported() (bool, error)      { return supported(n.s.utilizationRet) }
func (n nvmlSupport) GraphicsClockSupported() (bool, error) { return supported(n.s.graphicsRet) }
func (n nvmlSupport) MemoryClockSupported() (bool, error)   { return supported(n.s.memoryClockRet) }
func (n nvmlSupport) TemperatureSupported() (bool, error)   { return supported(n.s.temperatureRet) }
func (n nvmlSupport) PowerSupported() (bool, error)         { return supported(n.s.powerRet) }
func (n nvmlSupport) FanSpeedSupported() (bool, error)      { return supported(n.s.fanRet) }
func (n nvmlSupport) MemoryUsedSupported() (bool, error)    { return supported(n.s.memoryRet) }

func (n nvmlSupport) PowerRange() (float64, float64, error) {
	if err := nvmlError("power limit constraints", n.s.powerRangeRet); err != nil {
		return 0, 0, err
	}
	return float64(n.s.powerMinMW) / 1000.0, float64(n.s.powerMaxMW) / 1000.0, nil
}

type nvmlMetrics struct {
	s *nvmlSample
}

func (n nvmlMetrics) GPUUsage() (float64, error) {
	return float64(n.s.utilization.Gpu), nvmlError("utilization", n.s.utilizationRet)
}

func (n nvmlMetrics) GraphicsClockMHz() (int64, error) {
	return int64(n.s.graphicsClock), nvmlError("graphics clock", n.s.graphicsRet)
}

func (n nvmlMetrics) MemoryClockMHz() (int64, error) {
	return int64(n.s.memoryClock), nvmlError("memory clock", n.s.memoryClockRet)
}

func (n nvmlMetrics) TemperatureC() (float64, error) {
	return float64(n.s.temperature), nvmlError("temperature", n.s.temperatureRet)
}

func (n nvmlMetrics) PowerW() (float64, error) {
	return float64(n.s.powerMilliwatt) / 1000.0, nvmlError("power usage", n.s.powerRet)
}

// FanSpeed is the NVML fan speed as a percentage of the maximum
func (n nvmlMetrics) FanSpeed() (int64, error) {
	return int64(n.s.fanSpeed), nvmlError("fan speed", n.s.fanRet)
}

func (n nvmlMetrics) MemoryUsedMiB() (int64, error) {
	return int64(n.s.memory.Used / bytesPerMiB), nvmlError("memory info", n.s.memoryRet)
}

// errNotSupported marks NVML_ERROR_NOT_SUPPORTED results
var errNotSupported = errors.New("not supported")

func supported(ret nvml.Return) (bool, error) {
	switch ret {
	case nvml.SUCCESS:
		return true, nil
	case nvml.ERROR_NOT_SUPPORTED:
		return false, nil
	default:
		return false, nvmlError("support probe", ret)
	}
}

func nvmlError(op string, ret nvml.Return) error {
	switch ret {
	case nvml.SUCCESS:
		return nil
	case nvml.ERROR_NOT_SUPPORTED:
		return fmt.Errorf("nvml %s: %w", op, errNotSupported)
	default:
		return fmt.Errorf("nvml %s: %s", op, nvml.ErrorString(ret))
	}
}
