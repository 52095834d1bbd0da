package fqcomp

import (
	"encoding/binary"
	"fmt"

	fqerrors "github.com/tamirms/fqcomp/errors"
)

const (
	// magic number for fqcomp sketch files
	// "FQSK" in little-endian
	magic = uint32(0x4B535146)

	// version is the current format version
	version = uint16(0x0001)

	// headerSize is the exact size of the serialized header (64 bytes)
	headerSize = 64

	// footerSize is the exact size of the serialized footer (32 bytes)
	footerSize = 32

	// hashEntrySize is the size of one stored hash (uint64_le)
	hashEntrySize = 8

	// maxNameLength is the longest sketch name the writer accepts.
	maxNameLength = 65535
)

// header is the 64-byte file header.
//
// Layout:
//
//	Offset  Size  Field         Type
//	0       4     Magic         0x4B535146 ("FQSK")
//	4       2     Version       0x0001
//	6       2     HashFunction  uint16_le (0=murmur3, 1=xxh3)
//	8       4     KSize         uint32_le
//	12      4     Seed          uint32_le
//	16      8     Scaled        uint64_le
//	24      8     NumHashes     uint64_le
//	32      32    Reserved      [32]byte (zero)
//
// The header is followed by [NameLen 4B][Name], the hash region
// (NumHashes × uint64_le, strictly ascending) and the footer.
type header struct {
	Magic        uint32       // 4 bytes: magic number 0x4B535146
	Version      uint16       // 2 bytes: format version
	HashFunction HashFunction // 2 bytes: k-mer hash function
	KSize        uint32       // 4 bytes: k-mer length
	Seed         uint32       // 4 bytes: hash seed
	Scaled       uint64       // 8 bytes: scaling factor
	NumHashes    uint64       // 8 bytes: number of stored hashes
	Reserved     [32]byte     // 32 bytes: reserved (zero)
}

func newHeader(p Params, numHashes int) header {
	return header{
		Magic:        magic,
		Version:      version,
		HashFunction: p.HashFunction,
		KSize:        uint32(p.KSize),
		Seed:         p.Seed,
		Scaled:       p.Scaled,
		NumHashes:    uint64(numHashes),
	}
}

// encodeTo serializes the header to an existing buffer.
func (h *header) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(h.HashFunction))
	binary.LittleEndian.PutUint32(buf[8:12], h.KSize)
	binary.LittleEndian.PutUint32(buf[12:16], h.Seed)
	binary.LittleEndian.PutUint64(buf[16:24], h.Scaled)
	binary.LittleEndian.PutUint64(buf[24:32], h.NumHashes)
	copy(buf[32:64], h.Reserved[:])
}

// decodeHeader parses a 64-byte header.
func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, fqerrors.ErrTruncatedFile
	}

	h := &header{
		Magic:        binary.LittleEndian.Uint32(buf[0:4]),
		Version:      binary.LittleEndian.Uint16(buf[4:6]),
		HashFunction: HashFunction(binary.LittleEndian.Uint16(buf[6:8])),
		KSize:        binary.LittleEndian.Uint32(buf[8:12]),
		Seed:         binary.LittleEndian.Uint32(buf[12:16]),
		Scaled:       binary.LittleEndian.Uint64(buf[16:24]),
		NumHashes:    binary.LittleEndian.Uint64(buf[24:32]),
	}
	copy(h.Reserved[:], buf[32:64])

	if h.Magic != magic {
		return nil, fqerrors.ErrInvalidMagic
	}
	if h.Version != version {
		return nil, fqerrors.ErrInvalidVersion
	}
	if err := h.params().Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", fqerrors.ErrCorruptedSketch, err)
	}

	return h, nil
}

// params returns the sketch parameters recorded in the header.
func (h *header) params() Params {
	return Params{
		KSize:        int(h.KSize),
		Scaled:       h.Scaled,
		HashFunction: h.HashFunction,
		Seed:         h.Seed,
	}
}

// footer is the 32-byte file footer.
//
// Layout:
//
//	Offset  Size  Field           Type
//	0       8     PrefixHash      uint64_le (xxHash64 of header + name section)
//	8       8     HashRegionHash  uint64_le (xxHash64 of the hash region)
//	16      16    Reserved        [16]byte (zero)
type footer struct {
	PrefixHash     uint64   // 8 bytes: xxHash64 of everything before the hash region
	HashRegionHash uint64   // 8 bytes: xxHash64 of the hash region
	Reserved       [16]byte // 16 bytes: reserved for future use
}

// encodeTo serializes the footer into an existing buffer.
func (f *footer) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], f.PrefixHash)
	binary.LittleEndian.PutUint64(buf[8:16], f.HashRegionHash)
	copy(buf[16:32], f.Reserved[:])
}

// decodeFooter parses a 32-byte footer.
func decodeFooter(buf []byte) (*footer, error) {
	if len(buf) < footerSize {
		return nil, fqerrors.ErrTruncatedFile
	}

	f := &footer{
		PrefixHash:     binary.LittleEndian.Uint64(buf[0:8]),
		HashRegionHash: binary.LittleEndian.Uint64(buf[8:16]),
	}
	copy(f.Reserved[:], buf[16:32])

	return f, nil
}
