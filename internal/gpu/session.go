package gpu

import (
	"errors"
	"fmt"

	"gpusnap/internal/logging"
)

// Top-level failures. Any of these replaces the whole report.
var (
	ErrInitialize          = errors.New("hardware interface initialize failed")
	ErrSystemServices      = errors.New("system services not available")
	ErrPerformanceServices = errors.New("performance monitoring services not available")
	ErrNoDevices           = errors.New("no GPUs detected")
)

// Session owns an initialized Interface together with the services resolved
// from it. Close must be called exactly once after a successful Open.
type Session struct {
	iface   Interface
	perf    PerformanceMonitor
	devices DeviceList
	logger  *logging.Logger
	closed  bool
}

// Open initializes the interface and resolves everything a snapshot needs.
// On failure the interface is already terminated and the returned error
// wraps one of the Err* sentinels.
func Open(iface Interface, logger *logging.Logger) (*Session, error) {
	if iface == nil {
		return nil, fmt.Errorf("%w: no backend", ErrInitialize)
	}

	if err := iface.Initialize(); err != nil {
		logger.Warn("gpu.init.failed", "Hardware interface initialization failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", ErrInitialize, err)
	}

	s := &Session{iface: iface, logger: logger}

	system, err := iface.SystemServices()
	if err != nil || system == nil {
		s.Close()
		return nil, wrapFailure(ErrSystemServices, err)
	}

	perf, err := system.PerformanceMonitoring()
	if err != nil || perf == nil {
		s.Close()
		return nil, wrapFailure(ErrPerformanceServices, err)
	}
	s.perf = perf

	devices, err := system.EnumerateDevices()
	if err != nil || devices == nil || devices.Len() == 0 {
		s.Close()
		return nil, wrapFailure(ErrNoDevices, err)
	}
	s.devices = devices

	logger.Info("gpu.device.count", "Found GPU devices", map[string]interface{}{
		"count": devices.Len(),
	})

	return s, nil
}

// Devices returns the enumerated device list
func (s *Session) Devices() DeviceList {
	return s.devices
}

// Performance returns the performance monitoring services
func (s *Session) Performance() PerformanceMonitor {
	return s.perf
}

// Close terminates the interface. Calling it more than once is a no-op.
func (s *Session) Close() {
	if s == nil || s.closed {
		return
	}
	s.closed = true

	if err := s.iface.Terminate(); err != nil {
		s.logger.Warn("gpu.terminate.failed", "Hardware interface reported an error during terminate", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	s.logger.Debug("gpu.terminate", "Hardware interface terminated", nil)
}

func wrapFailure(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %v", sentinel, cause)
}
