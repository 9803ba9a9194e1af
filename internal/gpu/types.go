package gpu

// Interface is a vendor management interface that exposes GPUs and their
// telemetry. Backends: NVML (built with -tags cuda) and YAML fixtures.
type Interface interface {
	Initialize() error
	Terminate() error
	SystemServices() (System, error)
}

// System gives access to the devices and the performance monitoring services
type System interface {
	PerformanceMonitoring() (PerformanceMonitor, error)
	EnumerateDevices() (DeviceList, error)
}

// DeviceList is the ordered result of a device enumeration.
// At may fail for a single position without invalidating the list.
type DeviceList interface {
	Len() int
	At(index int) (Device, error)
}

// Device is a handle to a single GPU
type Device interface {
	Name() (string, error)
	TotalMemoryMiB() (int64, error)
}

// DriverVersioner is an extended device view. Not every device exposes it,
// so callers type-assert and treat absence as "no driver version".
type DriverVersioner interface {
	DriverVersion() (string, error)
}

// PerformanceMonitor returns one support bundle and one metrics bundle per query
type PerformanceMonitor interface {
	MetricsSupport(device Device) (MetricsSupport, error)
	CurrentMetrics(device Device) (Metrics, error)
}

// MetricsSupport reports which metrics a device can provide
type MetricsSupport interface {
	GPUUsageSupported() (bool, error)
	GraphicsClockSupported() (bool, error)
	MemoryClockSupported() (bool, error)
	TemperatureSupported() (bool, error)
	PowerSupported() (bool, error)
	FanSpeedSupported() (bool, error)
	MemoryUsedSupported() (bool, error)
	// PowerRange returns the board power range in watts
	PowerRange() (minW, maxW float64, err error)
}

// Metrics holds the current readings of a device, captured at query time
type Metrics interface {
	GPUUsage() (float64, error)
	GraphicsClockMHz() (int64, error)
	MemoryClockMHz() (int64, error)
	TemperatureC() (float64, error)
	PowerW() (float64, error)
	FanSpeed() (int64, error)
	MemoryUsedMiB() (int64, error)
}
