package tracker

import (
	"github.com/webitel/rocrate-exporter/internal/archive"
)

// WorkDirSizeMB is the size of everything under dir, 0 when it cannot be read.
func WorkDirSizeMB(dir string) int64 {
	if dir == "" {
		return 0
	}
	n, err := archive.DirSize(dir)
	if err != nil {
		return 0
	}
	return toMB(n)
}
