package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"gpusnap/internal/metrics"
)

const (
	bytesPerMiB = 1024 * 1024
	hertzPerMHz = 1e6
)

var deviceLabels = []string{"index", "name"}

// Textfile renders a report as Prometheus gauges for the node_exporter
// textfile collector. It uses a custom registry so nothing leaks into the
// default one.
type Textfile struct {
	Registry *prometheus.Registry

	InterfaceUp       prometheus.Gauge
	Devices           prometheus.Gauge
	SnapshotTimestamp prometheus.Gauge

	Info              *prometheus.GaugeVec
	Temperature       *prometheus.GaugeVec
	GPUUtilization    *prometheus.GaugeVec
	MemoryUtilization *prometheus.GaugeVec
	MemoryTotal       *prometheus.GaugeVec
	MemoryUsed        *prometheus.GaugeVec
	MemoryFree        *prometheus.GaugeVec
	PowerDraw         *prometheus.GaugeVec
	PowerLimit        *prometheus.GaugeVec
	Clock             *prometheus.GaugeVec
	FanSpeed          *prometheus.GaugeVec
}

// NewTextfile creates the gauges and registers them on a fresh registry
func NewTextfile() *Textfile {
	reg := prometheus.NewRegistry()

	t := &Textfile{
		Registry: reg,

		InterfaceUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gpusnap_interface_up",
			Help: "1 when the hardware interface produced a snapshot, 0 otherwise.",
		}),
		Devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gpusnap_gpus",
			Help: "Number of GPUs in the last snapshot.",
		}),
		SnapshotTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gpusnap_snapshot_timestamp_seconds",
			Help: "Unix time the snapshot was exported.",
		}),

		Info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpusnap_gpu_info",
			Help: "Static GPU information, always 1.",
		}, []string{"index", "name", "driver_version"}),
		Temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpusnap_gpu_temperature_celsius",
			Help: "GPU temperature in degrees Celsius.",
		}, deviceLabels),
		GPUUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpusnap_gpu_utilization_percent",
			Help: "GPU utilization in percent.",
		}, deviceLabels),
		MemoryUtilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpusnap_gpu_memory_utilization_percent",
			Help: "Share of GPU memory in use, in percent.",
		}, deviceLabels),
		MemoryTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpusnap_gpu_memory_total_bytes",
			Help: "Total GPU memory in bytes.",
		}, deviceLabels),
		MemoryUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpusnap_gpu_memory_used_bytes",
			Help: "Used GPU memory in bytes.",
		}, deviceLabels),
		MemoryFree: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpusnap_gpu_memory_free_bytes",
			Help: "Free GPU memory in bytes.",
		}, deviceLabels),
		PowerDraw: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpusnap_gpu_power_draw_watts",
			Help: "Current board power draw in watts.",
		}, deviceLabels),
		PowerLimit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpusnap_gpu_power_limit_watts",
			Help: "Maximum board power in watts.",
		}, deviceLabels),
		Clock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpusnap_gpu_clock_hertz",
			Help: "Current clock frequency in hertz.",
		}, []string{"index", "name", "clock"}),
		FanSpeed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gpusnap_gpu_fan_speed",
			Help: "Fan speed as reported by the backend (RPM or percent).",
		}, deviceLabels),
	}

	reg.MustRegister(
		t.InterfaceUp,
		t.Devices,
		t.SnapshotTimestamp,
		t.Info,
		t.Temperature,
		t.GPUUtilization,
		t.MemoryUtilization,
		t.MemoryTotal,
		t.MemoryUsed,
		t.MemoryFree,
		t.PowerDraw,
		t.PowerLimit,
		t.Clock,
		t.FanSpeed,
	)

	return t
}

// Observe replaces every gauge value with the contents of report
func (t *Textfile) Observe(report metrics.Report) {
	for _, vec := range []*prometheus.GaugeVec{
		t.Info, t.Temperature, t.GPUUtilization, t.MemoryUtilization,
		t.MemoryTotal, t.MemoryUsed, t.MemoryFree, t.PowerDraw,
		t.PowerLimit, t.Clock, t.FanSpeed,
	} {
		vec.Reset()
	}

	if report.HasInterface {
		t.InterfaceUp.Set(1)
	} else {
		t.InterfaceUp.Set(0)
	}
	t.Devices.Set(float64(len(report.GPUs)))
	t.SnapshotTimestamp.SetToCurrentTime()

	for _, s := range report.GPUs {
		index := strconv.Itoa(s.Index)
		name := labelValue(s.Name)

		t.Info.WithLabelValues(index, name, labelValue(s.DriverVersion)).Set(1)
		t.Temperature.WithLabelValues(index, name).Set(s.TemperatureC)
		t.GPUUtilization.WithLabelValues(index, name).Set(s.GPUUtilPercent)
		t.MemoryUtilization.WithLabelValues(index, name).Set(s.MemoryUtilPercent())
		t.MemoryTotal.WithLabelValues(index, name).Set(float64(s.MemoryTotalMiB * bytesPerMiB))
		t.MemoryUsed.WithLabelValues(index, name).Set(float64(s.MemoryUsedMiB * bytesPerMiB))
		t.MemoryFree.WithLabelValues(index, name).Set(float64(s.MemoryFreeMiB * bytesPerMiB))
		t.PowerDraw.WithLabelValues(index, name).Set(s.PowerDrawW)
		t.PowerLimit.WithLabelValues(index, name).Set(s.PowerLimitW)
		t.Clock.WithLabelValues(index, name, "graphics").Set(float64(s.ClockGraphicsMHz) * hertzPerMHz)
		t.Clock.WithLabelValues(index, name, "memory").Set(float64(s.ClockMemoryMHz) * hertzPerMHz)
		t.FanSpeed.WithLabelValues(index, name).Set(float64(s.FanRPM))
	}
}

// labelValue replaces invalid UTF-8, which WithLabelValues rejects with a panic
func labelValue(v string) string {
	return strings.ToValidUTF8(v, "\uFFFD")
}

// WriteFile writes the registry in text exposition format. The write goes
// through a temp file and rename, as the textfile collector expects.
func (t *Textfile) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, t.Registry); err != nil {
		return fmt.Errorf("failed to write textfile metrics: %w", err)
	}
	return nil
}
