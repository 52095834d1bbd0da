//go:build linux

package fqcomp

import (
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves size bytes for a sketch file before it is mapped, so
// a full disk fails here with an error instead of as SIGBUS during the write.
func fallocateFile(file *os.File, size int64) error {
	if err := unix.Fallocate(int(file.Fd()), 0, 0, size); err != nil {
		// Filesystems without fallocate (NFS, some FUSE mounts) still need the
		// file extended before mmap.
		return file.Truncate(size)
	}
	return nil
}
