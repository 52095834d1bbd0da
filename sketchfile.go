package fqcomp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"

	fqerrors "github.com/tamirms/fqcomp/errors"
)

// minFileSize is the size of a valid file holding an empty sketch with an
// empty name: header + name length + footer.
const minFileSize = headerSize + 4 + footerSize

// SketchFile is a read-only, memory-mapped sketch file.
//
// Thread Safety:
// - Name, Params, NumHashes, Verify and Sketch are safe for concurrent use
// - Close must only be called after all other calls have completed
type SketchFile struct {
	// Memory map (no file handle needed after mmap)
	mmap mmap.MMap
	data []byte

	header *header
	name   string

	hashRegionOffset uint64
	hashRegionEnd    uint64

	closed atomic.Bool
}

// OpenSketchFile opens a sketch file for reading.
// It opens the file, memory-maps it, and closes the file descriptor.
func OpenSketchFile(path string) (*SketchFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sketch file: %w", err)
	}
	defer file.Close()
	return openFile(file)
}

func openFile(f *os.File) (*SketchFile, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat sketch file: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("open sketch file: %s is a directory", f.Name())
	}
	if stat.Size() < int64(minFileSize) {
		return nil, fqerrors.ErrTruncatedFile
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap sketch file: %w", err)
	}

	sf := &SketchFile{
		mmap: mm,
		data: []byte(mm),
	}
	if err := sf.initFromData(); err != nil {
		return nil, errors.Join(err, sf.Close())
	}
	return sf, nil
}

// OpenSketchBytes reads a sketch from an in-memory byte slice.
// No file is opened or memory-mapped; Close is a no-op.
// The caller must ensure data is not modified while the SketchFile is in use.
func OpenSketchBytes(data []byte) (*SketchFile, error) {
	if len(data) < minFileSize {
		return nil, fqerrors.ErrTruncatedFile
	}
	sf := &SketchFile{data: data}
	if err := sf.initFromData(); err != nil {
		return nil, err
	}
	return sf, nil
}

// initFromData parses the header and name section and checks that the file
// is exactly as long as the header says.
func (sf *SketchFile) initFromData() error {
	fileSize := uint64(len(sf.data))

	hdr, err := decodeHeader(sf.data[:headerSize])
	if err != nil {
		return err
	}
	sf.header = hdr

	// Layout: [Header 64B][NameLen 4B][Name][Hashes N×8B][Footer 32B]
	offset := uint64(headerSize)
	nameLen := uint64(binary.LittleEndian.Uint32(sf.data[offset:]))
	offset += 4
	if offset+nameLen+footerSize > fileSize {
		return fqerrors.ErrTruncatedFile
	}
	sf.name = string(sf.data[offset : offset+nameLen])
	offset += nameLen

	available := (fileSize - offset - footerSize) / hashEntrySize
	if hdr.NumHashes > available {
		return fqerrors.ErrTruncatedFile
	}
	sf.hashRegionOffset = offset
	sf.hashRegionEnd = offset + hdr.NumHashes*hashEntrySize
	if sf.hashRegionEnd+footerSize != fileSize {
		return fmt.Errorf("%w: %d trailing bytes", fqerrors.ErrCorruptedSketch,
			fileSize-sf.hashRegionEnd-footerSize)
	}
	return nil
}

// Close releases the memory map.
func (sf *SketchFile) Close() error {
	if sf.closed.Swap(true) {
		return nil // Already closed
	}
	if sf.mmap != nil {
		return sf.mmap.Unmap()
	}
	return nil
}

// Name returns the name recorded when the sketch was written.
func (sf *SketchFile) Name() string {
	return sf.name
}

// Params returns the parameters the sketch was built with.
func (sf *SketchFile) Params() Params {
	return sf.header.params()
}

// NumHashes returns the number of stored hashes.
func (sf *SketchFile) NumHashes() uint64 {
	return sf.header.NumHashes
}

// Size returns the file size in bytes.
func (sf *SketchFile) Size() int64 {
	return int64(len(sf.data))
}

// Verify checks both footer checksums.
func (sf *SketchFile) Verify() error {
	if sf.closed.Load() {
		return fqerrors.ErrSketchClosed
	}
	ft, err := decodeFooter(sf.data[sf.hashRegionEnd:])
	if err != nil {
		return err
	}
	if xxhash.Sum64(sf.data[:sf.hashRegionOffset]) != ft.PrefixHash {
		return fqerrors.ErrChecksumFailed
	}
	if xxhash.Sum64(sf.data[sf.hashRegionOffset:sf.hashRegionEnd]) != ft.HashRegionHash {
		return fqerrors.ErrChecksumFailed
	}
	return nil
}

// Sketch decodes the hash region into an in-memory Sketch. The result does
// not reference the mapping and stays valid after Close.
//
// Hashes must be strictly ascending and pass the file's scaling rule;
// anything else is reported as errors.ErrCorruptedSketch.
func (sf *SketchFile) Sketch() (*Sketch, error) {
	if sf.closed.Load() {
		return nil, fqerrors.ErrSketchClosed
	}
	p := sf.header.params()
	hashes := make([]uint64, sf.header.NumHashes)
	for i := range hashes {
		off := sf.hashRegionOffset + uint64(i)*hashEntrySize
		h := binary.LittleEndian.Uint64(sf.data[off:])
		if i > 0 && h <= hashes[i-1] {
			return nil, fmt.Errorf("%w: hashes not strictly ascending at entry %d", fqerrors.ErrCorruptedSketch, i)
		}
		if !p.Retains(h) {
			return nil, fmt.Errorf("%w: hash %d not retained at scaled=%d", fqerrors.ErrCorruptedSketch, h, p.Scaled)
		}
		hashes[i] = h
	}
	return &Sketch{params: p, hashes: hashes}, nil
}

// ReadSketchFile opens path, verifies its checksums, decodes the sketch and
// closes the file.
func ReadSketchFile(path string) (name string, sketch *Sketch, err error) {
	sf, err := OpenSketchFile(path)
	if err != nil {
		return "", nil, err
	}
	defer func() {
		err = errors.Join(err, sf.Close())
	}()

	if err := sf.Verify(); err != nil {
		return "", nil, err
	}
	sketch, err = sf.Sketch()
	if err != nil {
		return "", nil, err
	}
	return sf.Name(), sketch, nil
}
