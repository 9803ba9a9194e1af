package fsutil

import (
	"fmt"
	"os"
	"path/filepath"

	"gpusnap/internal/logging"
)

const (
	// DefaultDirPermissions is used for directories created for report files
	DefaultDirPermissions = 0o750
	// DefaultFilePermissions is the permission for report files
	DefaultFilePermissions = 0o600
)

// AtomicWriteFile writes data next to path and renames it into place, so a
// reader polling the file never sees a partial report. Missing parent
// directories are created.
func AtomicWriteFile(path string, data []byte, perm os.FileMode, logger *logging.Logger) error {
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil && !os.IsNotExist(removeErr) {
			logger.Warn("fsutil.cleanup.failed", "Failed to remove temp file", map[string]interface{}{
				"path":  tmpPath,
				"error": removeErr.Error(),
			})
		}
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// CloseWithError closes a resource and logs any error.
// Intended for defer statements where the close error has nowhere else to go.
func CloseWithError(closer func() error, logger *logging.Logger, resource string) {
	if err := closer(); err != nil {
		logger.Warn("fsutil.close.failed", fmt.Sprintf("Failed to close %s", resource), map[string]interface{}{
			"error": err.Error(),
		})
	}
}
