//go:build !cuda

package gpu

import "errors"

var errNVMLDisabled = errors.New("NVML disabled: rebuild with -tags cuda")

// NVML is a placeholder backend for builds without CUDA support.
// Initialize always fails, so every snapshot becomes an error report.
type NVML struct{}

// NewNVML returns the placeholder backend when CUDA support is disabled.
func NewNVML() *NVML {
	return &NVML{}
}

// Initialize reports that NVML is unavailable in the current build.
func (n *NVML) Initialize() error {
	return errNVMLDisabled
}

// Terminate is a no-op for the placeholder backend.
func (n *NVML) Terminate() error {
	return nil
}

// SystemServices is never reached because Initialize fails.
func (n *NVML) SystemServices() (System, error) {
	return nil, errNVMLDisabled
}
