package metrics

import (
	"errors"

	"github.com/google/uuid"

	"gpusnap/internal/gpu"
	"gpusnap/internal/logging"
)

// Report messages for top-level failures, in the wording the dashboard shows
var failureMessages = []struct {
	err     error
	message string
}{
	{gpu.ErrInitialize, "Hardware interface initialize failed"},
	{gpu.ErrSystemServices, "System services not available"},
	{gpu.ErrPerformanceServices, "Performance monitoring services not available"},
	{gpu.ErrNoDevices, "No GPUs detected"},
}

// Collector produces one Report per call from a hardware interface.
// Every log event of a collection carries the collector's snapshot ID.
type Collector struct {
	logger *logging.Logger
	iface  gpu.Interface
	id     string
}

// NewCollector creates a new snapshot collector
func NewCollector(iface gpu.Interface, logger *logging.Logger) *Collector {
	return &Collector{
		logger: logger,
		iface:  iface,
		id:     uuid.New().String(),
	}
}

// ID returns the snapshot ID used to correlate log events
func (c *Collector) ID() string {
	return c.id
}

// Collect opens the interface, builds one snapshot per device in
// enumeration order and releases the interface before returning.
// A non-nil error means the returned Report is a failure report.
func (c *Collector) Collect() (Report, error) {
	c.logger.Info("snapshot.collect.start", "Collecting GPU snapshot", map[string]interface{}{
		"snapshot_id": c.id,
	})

	session, err := gpu.Open(c.iface, c.logger)
	if err != nil {
		c.logger.Error("snapshot.collect.failed", "Snapshot aborted", map[string]interface{}{
			"snapshot_id": c.id,
			"error":       err.Error(),
		})
		return FailureReport(err), err
	}
	defer session.Close()

	builder := NewBuilder(session.Performance(), c.logger)
	devices := session.Devices()

	report := Report{
		HasInterface: true,
		GPUs:         make([]DeviceSnapshot, 0, devices.Len()),
	}

	for i := 0; i < devices.Len(); i++ {
		device, err := devices.At(i)
		if err != nil || device == nil {
			c.logger.Warn("gpu.device.handle.failed", "Failed to get device handle", map[string]interface{}{
				"snapshot_id": c.id,
				"index":       i,
				"error":       errorString(err),
			})
			continue
		}

		snapshot := builder.Build(i, device)
		report.GPUs = append(report.GPUs, snapshot)

		c.logger.Debug("gpu.device.snapshot", "GPU snapshot built", map[string]interface{}{
			"index":       snapshot.Index,
			"name":        snapshot.Name,
			"memory_used": snapshot.MemoryUsedMiB,
			"temperature": snapshot.TemperatureC,
		})
	}

	c.logger.Info("snapshot.collect.done", "GPU snapshot collected", map[string]interface{}{
		"snapshot_id": c.id,
		"gpus":        len(report.GPUs),
	})

	return report, nil
}

// FailureReport builds the report emitted instead of a snapshot when the
// interface is unusable
func FailureReport(err error) Report {
	return FailureReportMessage(failureMessage(err))
}

// FailureReportMessage builds a failure report with an explicit message
func FailureReportMessage(message string) Report {
	return Report{
		HasInterface: false,
		GPUs:         []DeviceSnapshot{},
		Error:        message,
	}
}

func failureMessage(err error) string {
	if err == nil {
		return "Unknown error"
	}
	for _, f := range failureMessages {
		if errors.Is(err, f.err) {
			return f.message
		}
	}
	return err.Error()
}
