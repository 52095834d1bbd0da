//go:build !linux

package seqio

// fadviseSequential is a no-op outside Linux.
func fadviseSequential(fd int, offset, length int64) {}
