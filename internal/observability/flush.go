package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// FlushTelemetry flushes buffered logs before process exit.
// Metrics are pull-based and need no flush.
func FlushTelemetry(ctx context.Context, logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	if err := logger.Sync(); err != nil && !isIgnorableSyncError(err) {
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}

// Sync on a terminal stderr fails with EINVAL/ENOTTY on Linux and macOS.
func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}
