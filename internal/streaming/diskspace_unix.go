//go:build !windows

package streaming

import (
	"fmt"
	"syscall"
)

// getAvailableSpace returns the free bytes available to this process on the
// filesystem holding path.
func getAvailableSpace(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to stat filesystem: %w", err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
