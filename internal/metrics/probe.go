package metrics

import (
	"gpusnap/internal/gpu"
)

// metricProbe pairs a capability query with a reader that stores the value
// into a snapshot. Adding a metric is one entry in deviceMetrics.
type metricProbe struct {
	name      string
	supported func(gpu.MetricsSupport) (bool, error)
	read      func(gpu.Metrics, *DeviceSnapshot) error
}

var deviceMetrics = []metricProbe{
	{"gpu_usage", gpu.MetricsSupport.GPUUsageSupported, readInto(gpu.Metrics.GPUUsage, func(s *DeviceSnapshot) *float64 { return &s.GPUUtilPercent })},
	{"graphics_clock", gpu.MetricsSupport.GraphicsClockSupported, readInto(gpu.Metrics.GraphicsClockMHz, func(s *DeviceSnapshot) *int64 { return &s.ClockGraphicsMHz })},
	{"memory_clock", gpu.MetricsSupport.MemoryClockSupported, readInto(gpu.Metrics.MemoryClockMHz, func(s *DeviceSnapshot) *int64 { return &s.ClockMemoryMHz })},
	{"temperature", gpu.MetricsSupport.TemperatureSupported, readInto(gpu.Metrics.TemperatureC, func(s *DeviceSnapshot) *float64 { return &s.TemperatureC })},
	{"power", gpu.MetricsSupport.PowerSupported, readInto(gpu.Metrics.PowerW, func(s *DeviceSnapshot) *float64 { return &s.PowerDrawW })},
	{"fan_speed", gpu.MetricsSupport.FanSpeedSupported, readInto(gpu.Metrics.FanSpeed, func(s *DeviceSnapshot) *int64 { return &s.FanRPM })},
	{"memory_used", gpu.MetricsSupport.MemoryUsedSupported, readInto(gpu.Metrics.MemoryUsedMiB, func(s *DeviceSnapshot) *int64 { return &s.MemoryUsedMiB })},
}

// readInto builds a reader that only touches the field on a successful read
func readInto[T any](get func(gpu.Metrics) (T, error), field func(*DeviceSnapshot) *T) func(gpu.Metrics, *DeviceSnapshot) error {
	return func(m gpu.Metrics, s *DeviceSnapshot) error {
		v, err := get(m)
		if err != nil {
			return err
		}
		*field(s) = v
		return nil
	}
}

// probeOutcome describes why a metric was or was not populated
type probeOutcome string

const (
	outcomeRead        probeOutcome = "read"
	outcomeUnsupported probeOutcome = "unsupported"
	outcomeProbeFailed probeOutcome = "probe_failed"
	outcomeReadFailed  probeOutcome = "read_failed"
)

// apply runs the probe/read pair. Anything short of a successful read leaves
// the snapshot field untouched.
func (p metricProbe) apply(support gpu.MetricsSupport, current gpu.Metrics, s *DeviceSnapshot) (probeOutcome, error) {
	ok, err := p.supported(support)
	if err != nil {
		return outcomeProbeFailed, err
	}
	if !ok {
		return outcomeUnsupported, nil
	}
	if err := p.read(current, s); err != nil {
		return outcomeReadFailed, err
	}
	return outcomeRead, nil
}
