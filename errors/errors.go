// Package errors defines all exported error sentinels for the fqcomp library.
//
// This is the single source of truth for error values. The top-level fqcomp
// package and the internal I/O packages import from here, so errors.Is checks
// work across package boundaries.
//
// Sentinels fall into the classes callers act on:
//
//   - ErrConfiguration: fatal to the whole run (reference library unusable).
//   - ErrReferenceLoad: one reference entry skipped, run continues.
//   - ErrSourceRead, ErrNoReads, ErrEmptySketch: fatal to one sample only.
//   - ErrZeroLengthSample: guard before the containment division.
//
// Class sentinels are attached next to the specific cause with a multi-%w
// fmt.Errorf, so both errors.Is(err, ErrConfiguration) and
// errors.Is(err, ErrNoValidReferences) hold for the same error.
package errors

import "errors"

// Run-level errors
var (
	ErrConfiguration     = errors.New("fqcomp: configuration error")
	ErrNoReferencesFound = errors.New("fqcomp: no reference sketches found")
	ErrNoValidReferences = errors.New("fqcomp: no valid reference sketches could be loaded")
)

// Per-reference errors
var (
	ErrReferenceLoad        = errors.New("fqcomp: reference load failed")
	ErrKSizeMismatch        = errors.New("fqcomp: k-mer size mismatch")
	ErrHashFunctionMismatch = errors.New("fqcomp: hash function or seed mismatch")
	ErrScaledIncompatible   = errors.New("fqcomp: scaled factors are not compatible")
	ErrDuplicateReference   = errors.New("fqcomp: duplicate reference name")
)

// Per-sample errors
var (
	ErrSourceRead       = errors.New("fqcomp: failed to read sequence source")
	ErrNoReads          = errors.New("fqcomp: no reads found")
	ErrEmptySketch      = errors.New("fqcomp: sketch is empty - no valid k-mers found")
	ErrZeroLengthSample = errors.New("fqcomp: sample sketch has zero length")
)

// Parameter errors
var (
	ErrInvalidKSize        = errors.New("fqcomp: k-mer size must be positive")
	ErrInvalidScaled       = errors.New("fqcomp: scaled factor must be positive")
	ErrUnknownHashFunction = errors.New("fqcomp: unknown hash function")
	ErrInvalidWorkers      = errors.New("fqcomp: worker count must not be negative")
)

// Sketch file errors
var (
	ErrInvalidMagic    = errors.New("fqcomp: invalid magic number")
	ErrInvalidVersion  = errors.New("fqcomp: unsupported version")
	ErrTruncatedFile   = errors.New("fqcomp: sketch file is truncated")
	ErrCorruptedSketch = errors.New("fqcomp: sketch data is corrupted")
	ErrChecksumFailed  = errors.New("fqcomp: file checksum verification failed")
	ErrSketchClosed    = errors.New("fqcomp: sketch file is closed")
	ErrNameTooLong     = errors.New("fqcomp: sketch name exceeds maximum length (65535 bytes)")
)
