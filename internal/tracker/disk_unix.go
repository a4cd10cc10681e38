//go:build unix

package tracker

import (
	"os"

	"golang.org/x/sys/unix"
)

// TmpFreeSpaceMB reports free space available to unprivileged users in the temp dir.
func TmpFreeSpaceMB() int64 {
	var st unix.Statfs_t
	if err := unix.Statfs(os.TempDir(), &st); err != nil {
		return 0
	}
	return toMB(int64(st.Bavail) * int64(st.Bsize))
}
