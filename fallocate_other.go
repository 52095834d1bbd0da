//go:build !linux

package fqcomp

import "os"

// fallocateFile extends the file to size so it can be mapped. Disk blocks are
// not reserved on these platforms.
func fallocateFile(file *os.File, size int64) error {
	return file.Truncate(size)
}
