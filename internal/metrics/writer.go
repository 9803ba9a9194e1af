package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gpusnap/internal/fsutil"
	"gpusnap/internal/logging"
)

// Writer serializes reports as a single line of JSON
type Writer struct {
	logger *logging.Logger
}

// NewWriter creates a new report writer
func NewWriter(logger *logging.Logger) *Writer {
	return &Writer{
		logger: logger,
	}
}

// Encode returns the JSON document for a report, terminated by a newline.
// Control characters in names, versions and messages are escaped by
// encoding/json; HTML escaping is off so names come through unchanged.
func Encode(report Report) ([]byte, error) {
	doc := reportDocument{
		HasAdlx: report.HasInterface,
		GPUs:    make([]deviceDocument, 0, len(report.GPUs)),
	}
	if !report.HasInterface {
		doc.Error = report.Error
	}

	for _, s := range report.GPUs {
		doc.GPUs = append(doc.GPUs, deviceDocument{
			Index:         s.Index,
			Name:          s.Name,
			DriverVersion: s.DriverVersion,
			Temperature:   finite(s.TemperatureC),
			Utilization: utilizationDocument{
				GPU:    finite(s.GPUUtilPercent),
				Memory: finite(s.MemoryUtilPercent()),
			},
			Memory: memoryDocument{
				Total: s.MemoryTotalMiB,
				Free:  s.MemoryFreeMiB,
				Used:  s.MemoryUsedMiB,
			},
			Power: powerDocument{
				Draw:  finite(s.PowerDrawW),
				Limit: finite(s.PowerLimitW),
			},
			Clocks: clocksDocument{
				Graphics: s.ClockGraphicsMHz,
				Memory:   s.ClockMemoryMHz,
			},
			Fan: fanDocument{
				Speed: s.FanRPM,
			},
		})
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return buf.Bytes(), nil
}

// Write encodes the report and writes it to out in one call
func (w *Writer) Write(report Report, out io.Writer) error {
	data, err := Encode(report)
	if err != nil {
		return err
	}

	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	w.logger.Debug("snapshot.report.written", "Report written", map[string]interface{}{
		"bytes":    len(data),
		"has_adlx": report.HasInterface,
	})

	return nil
}

// SaveFile writes the report to path in addition to stdout
func (w *Writer) SaveFile(report Report, path string) error {
	data, err := Encode(report)
	if err != nil {
		return err
	}

	if err := fsutil.AtomicWriteFile(path, data, fsutil.DefaultFilePermissions, w.logger); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	w.logger.Info("snapshot.report.saved", "GPU report saved", map[string]interface{}{
		"filepath": path,
	})

	return nil
}
