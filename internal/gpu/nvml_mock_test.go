//go:build cuda

package gpu

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// MockNVML is a mock implementation of NVMLInterface for testing
type MockNVML struct {
	InitReturn                   nvml.Return
	ShutdownReturn               nvml.Return
	DeviceCount                  int
	DeviceCountReturn            nvml.Return
	DriverVersion                string
	DriverVersionReturn          nvml.Return
	Devices                      []MockDevice
	DeviceGetHandleByIndexReturn nvml.Return

	shutdownCalls int
}

// MockDevice represents a mock GPU device
type MockDevice struct {
	Name              string
	NameReturn        nvml.Return
	MemoryTotal       uint64
	MemoryUsed        uint64
	MemoryInfoReturn  nvml.Return
	GPUUtil           uint32
	UtilizationReturn nvml.Return
	GraphicsClock     uint32
	MemoryClock       uint32
	ClockReturn       nvml.Return
	Temperature       uint32
	TemperatureReturn nvml.Return
	PowerUsage        uint32
	PowerUsageReturn  nvml.Return
	FanSpeed          uint32
	FanSpeedReturn    nvml.Return
	PowerMinMW        uint32
	PowerMaxMW        uint32
	PowerLimitReturn  nvml.Return

	utilizationCalls int
}

// NewMockNVML creates a new mock NVML instance
func NewMockNVML() *MockNVML {
	return &MockNVML{
		InitReturn:                   nvml.SUCCESS,
		ShutdownReturn:               nvml.SUCCESS,
		DeviceCountReturn:            nvml.SUCCESS,
		DriverVersionReturn:          nvml.SUCCESS,
		DeviceGetHandleByIndexReturn: nvml.SUCCESS,
		Devices:                      make([]MockDevice, 0),
	}
}

func (m *MockNVML) Init() nvml.Return {
	return m.InitReturn
}

func (m *MockNVML) Shutdown() nvml.Return {
	m.shutdownCalls++
	return m.ShutdownReturn
}

func (m *MockNVML) DeviceGetCount() (int, nvml.Return) {
	return m.DeviceCount, m.DeviceCountReturn
}

func (m *MockNVML) DeviceGetHandleByIndex(index int) (DeviceInterface, nvml.Return) {
	if index < 0 || index >= len(m.Devices) {
		return nil, nvml.ERROR_INVALID_ARGUMENT
	}
	if m.DeviceGetHandleByIndexReturn != nvml.SUCCESS {
		return nil, m.DeviceGetHandleByIndexReturn
	}
	return mockDeviceImpl{device: &m.Devices[index]}, nvml.SUCCESS
}

func (m *MockNVML) SystemGetDriverVersion() (string, nvml.Return) {
	return m.DriverVersion, m.DriverVersionReturn
}

// mockDeviceImpl implements DeviceInterface for testing
type mockDeviceImpl struct {
	device *MockDevice
}

func (m mockDeviceImpl) GetName() (string, nvml.Return) {
	return m.device.Name, m.device.NameReturn
}

func (m mockDeviceImpl) GetMemoryInfo() (nvml.Memory, nvml.Return) {
	return nvml.Memory{
		Total: m.device.MemoryTotal,
		Used:  m.device.MemoryUsed,
	}, m.device.MemoryInfoReturn
}

func (m mockDeviceImpl) GetUtilizationRates() (nvml.Utilization, nvml.Return) {
	m.device.utilizationCalls++
	return nvml.Utilization{Gpu: m.device.GPUUtil}, m.device.UtilizationReturn
}

func (m mockDeviceImpl) GetClockInfo(clockType nvml.ClockType) (uint32, nvml.Return) {
	if clockType == nvml.CLOCK_MEM {
		return m.device.MemoryClock, m.device.ClockReturn
	}
	return m.device.GraphicsClock, m.device.ClockReturn
}

func (m mockDeviceImpl) GetTemperature(sensor nvml.TemperatureSensors) (uint32, nvml.Return) {
	return m.device.Temperature, m.device.TemperatureReturn
}

func (m mockDeviceImpl) GetPowerUsage() (uint32, nvml.Return) {
	return m.device.PowerUsage, m.device.PowerUsageReturn
}

func (m mockDeviceImpl) GetFanSpeed() (uint32, nvml.Return) {
	return m.device.FanSpeed, m.device.FanSpeedReturn
}

func (m mockDeviceImpl) GetPowerManagementLimitConstraints() (uint32, uint32, nvml.Return) {
	return m.device.PowerMinMW, m.device.PowerMaxMW, m.device.PowerLimitReturn
}
