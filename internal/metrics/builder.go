package metrics

import (
	"fmt"
	"math"

	"gpusnap/internal/gpu"
	"gpusnap/internal/logging"
)

// Builder turns one device handle into a DeviceSnapshot.
// Per-field failures are logged at debug level and otherwise absorbed.
type Builder struct {
	logger *logging.Logger
	perf   gpu.PerformanceMonitor
}

// NewBuilder creates a snapshot builder bound to a performance monitor
func NewBuilder(perf gpu.PerformanceMonitor, logger *logging.Logger) *Builder {
	return &Builder{
		logger: logger,
		perf:   perf,
	}
}

// Build assembles the snapshot for the device at enumeration position index.
// Each query is attempted exactly once.
func (b *Builder) Build(index int, device gpu.Device) DeviceSnapshot {
	snapshot := DeviceSnapshot{Index: index}

	name, err := device.Name()
	if err != nil || name == "" {
		b.fieldSkipped(index, "name", err)
		name = fmt.Sprintf("GPU %d", index)
	}
	snapshot.Name = name

	if versioner, ok := device.(gpu.DriverVersioner); ok {
		version, err := versioner.DriverVersion()
		if err != nil {
			b.fieldSkipped(index, "driver_version", err)
		} else {
			snapshot.DriverVersion = version
		}
	}

	total, err := device.TotalMemoryMiB()
	if err != nil {
		b.fieldSkipped(index, "memory_total", err)
	} else if total > 0 {
		snapshot.MemoryTotalMiB = total
	}

	b.collectMetrics(index, device, &snapshot)

	normalize(&snapshot)
	return snapshot
}

// collectMetrics runs the probe table against one support bundle and one
// metrics bundle. Failure of either bundle leaves every metric at default.
func (b *Builder) collectMetrics(index int, device gpu.Device, snapshot *DeviceSnapshot) {
	if b.perf == nil {
		return
	}

	support, err := b.perf.MetricsSupport(device)
	if err != nil || support == nil {
		b.fieldSkipped(index, "metrics_support", err)
		return
	}

	current, err := b.perf.CurrentMetrics(device)
	if err != nil || current == nil {
		b.fieldSkipped(index, "current_metrics", err)
		return
	}

	for _, probe := range deviceMetrics {
		outcome, err := probe.apply(support, current, snapshot)
		if outcome != outcomeRead {
			b.logger.Debug("gpu.metric.skipped", "Metric not populated", map[string]interface{}{
				"index":   index,
				"metric":  probe.name,
				"outcome": string(outcome),
				"error":   errorString(err),
			})
		}
	}

	if _, maxW, err := support.PowerRange(); err != nil {
		b.fieldSkipped(index, "power_limit", err)
	} else {
		snapshot.PowerLimitW = maxW
	}
}

func (b *Builder) fieldSkipped(index int, field string, err error) {
	b.logger.Debug("gpu.field.skipped", "Device field left at default", map[string]interface{}{
		"index": index,
		"field": field,
		"error": errorString(err),
	})
}

// normalize clamps memory readings and replaces values JSON cannot carry
func normalize(s *DeviceSnapshot) {
	s.TemperatureC = finite(s.TemperatureC)
	s.GPUUtilPercent = finite(s.GPUUtilPercent)
	s.PowerDrawW = finite(s.PowerDrawW)
	s.PowerLimitW = finite(s.PowerLimitW)

	if s.MemoryTotalMiB <= 0 {
		s.MemoryTotalMiB = 0
		s.MemoryUsedMiB = 0
		s.MemoryFreeMiB = 0
		return
	}

	if s.MemoryUsedMiB < 0 {
		s.MemoryUsedMiB = 0
	}
	if s.MemoryUsedMiB > s.MemoryTotalMiB {
		s.MemoryUsedMiB = s.MemoryTotalMiB
	}
	s.MemoryFreeMiB = s.MemoryTotalMiB - s.MemoryUsedMiB
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
