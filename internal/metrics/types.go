package metrics

// DeviceSnapshot is the normalized telemetry of one GPU at collection time.
// Every numeric field defaults to zero, so an unsupported metric and a
// metric that reads exactly zero look the same.
type DeviceSnapshot struct {
	Index         int
	Name          string
	DriverVersion string

	TemperatureC   float64
	GPUUtilPercent float64
	PowerDrawW     float64
	PowerLimitW    float64

	MemoryTotalMiB int64
	MemoryUsedMiB  int64
	MemoryFreeMiB  int64

	ClockGraphicsMHz int64
	ClockMemoryMHz   int64
	FanRPM           int64
}

// MemoryUtilPercent returns used/total*100, or 0 when total is unknown
func (s DeviceSnapshot) MemoryUtilPercent() float64 {
	if s.MemoryTotalMiB <= 0 {
		return 0
	}
	return float64(s.MemoryUsedMiB) / float64(s.MemoryTotalMiB) * 100.0
}

// Report is the complete output of one invocation
type Report struct {
	HasInterface bool
	GPUs         []DeviceSnapshot
	// Error is only set when HasInterface is false
	Error string
}

// Wire format. Key names are a contract with the dashboard consumer.
type reportDocument struct {
	HasAdlx bool             `json:"hasAdlx"`
	GPUs    []deviceDocument `json:"gpus"`
	Error   string           `json:"error,omitempty"`
}

type deviceDocument struct {
	Index         int                 `json:"index"`
	Name          string              `json:"name"`
	DriverVersion string              `json:"driverVersion"`
	Temperature   float64             `json:"temperature"`
	Utilization   utilizationDocument `json:"utilization"`
	Memory        memoryDocument      `json:"memory"`
	Power         powerDocument       `json:"power"`
	Clocks        clocksDocument      `json:"clocks"`
	Fan           fanDocument         `json:"fan"`
}

type utilizationDocument struct {
	GPU    float64 `json:"gpu"`
	Memory float64 `json:"memory"`
}

type memoryDocument struct {
	Total int64 `json:"total"`
	Free  int64 `json:"free"`
	Used  int64 `json:"used"`
}

type powerDocument struct {
	Draw  float64 `json:"draw"`
	Limit float64 `json:"limit"`
}

type clocksDocument struct {
	Graphics int64 `json:"graphics"`
	Memory   int64 `json:"memory"`
}

type fanDocument struct {
	Speed int64 `json:"speed"`
}
