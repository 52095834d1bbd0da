package fqcomp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"

	fqerrors "github.com/tamirms/fqcomp/errors"
)

// sketchWriter writes a sketch file through a writable memory map.
// File layout: [Header 64B][NameLen 4B][Name][Hashes N×8B][Footer 32B]
type sketchWriter struct {
	path string
	file *os.File
	mmap mmap.MMap // Memory-mapped region
	data []byte    // View into mmap for direct writes

	hashRegionOffset uint64
	size             uint64
}

// WriteSketchFile writes s to path under the given name, replacing any
// existing file. On failure the partial file is removed.
func WriteSketchFile(path, name string, s *Sketch) error {
	if len(name) > maxNameLength {
		return fqerrors.ErrNameTooLong
	}
	w, err := newSketchWriter(path, len(name), s.Len())
	if err != nil {
		return err
	}
	w.write(name, s)
	return w.finalize()
}

// newSketchWriter creates path, preallocates its exact final size and maps it.
func newSketchWriter(path string, nameLen, numHashes int) (*sketchWriter, error) {
	hashRegionOffset := uint64(headerSize + 4 + nameLen)
	size := hashRegionOffset + uint64(numHashes)*hashEntrySize + footerSize

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create sketch file: %w", err)
	}

	// Pre-allocate disk blocks to prevent SIGBUS on disk full
	if err := fallocateFile(file, int64(size)); err != nil {
		primaryErr := fmt.Errorf("failed to allocate disk space: %w", err)
		return nil, errors.Join(primaryErr, file.Close(), os.Remove(path))
	}

	mm, err := mmap.MapRegion(file, int(size), mmap.RDWR, 0, 0)
	if err != nil {
		primaryErr := fmt.Errorf("failed to mmap file: %w", err)
		return nil, errors.Join(primaryErr, file.Close(), os.Remove(path))
	}

	return &sketchWriter{
		path:             path,
		file:             file,
		mmap:             mm,
		data:             []byte(mm),
		hashRegionOffset: hashRegionOffset,
		size:             size,
	}, nil
}

// write encodes every section directly into the mapping.
func (w *sketchWriter) write(name string, s *Sketch) {
	hdr := newHeader(s.params, s.Len())
	hdr.encodeTo(w.data[0:headerSize])

	binary.LittleEndian.PutUint32(w.data[headerSize:], uint32(len(name)))
	copy(w.data[headerSize+4:], name)

	off := w.hashRegionOffset
	for _, h := range s.hashes {
		binary.LittleEndian.PutUint64(w.data[off:], h)
		off += hashEntrySize
	}

	ftr := footer{
		PrefixHash:     xxhash.Sum64(w.data[:w.hashRegionOffset]),
		HashRegionHash: xxhash.Sum64(w.data[w.hashRegionOffset:off]),
	}
	ftr.encodeTo(w.data[off : off+footerSize])
}

// finalize flushes and unmaps the file. On error it delegates to abort.
func (w *sketchWriter) finalize() error {
	if err := w.mmap.Flush(); err != nil {
		return w.abort(fmt.Errorf("mmap flush failed: %w", err))
	}

	// Nil mmap regardless of outcome to prevent abort() from retrying.
	unmapErr := w.mmap.Unmap()
	w.mmap = nil
	if unmapErr != nil {
		return w.abort(fmt.Errorf("mmap unmap failed: %w", unmapErr))
	}

	closeErr := w.file.Close()
	w.file = nil
	if closeErr != nil {
		return w.abort(closeErr)
	}
	return nil
}

// abort releases everything and removes the partial file.
func (w *sketchWriter) abort(primaryErr error) error {
	var unmapErr, closeErr error
	if w.mmap != nil {
		unmapErr = w.mmap.Unmap()
		w.mmap = nil
	}
	if w.file != nil {
		closeErr = w.file.Close()
		w.file = nil
	}
	return errors.Join(primaryErr, unmapErr, closeErr, os.Remove(w.path))
}
