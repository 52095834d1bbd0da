package fqcomp

import (
	"fmt"
	"iter"
	"slices"

	fqerrors "github.com/tamirms/fqcomp/errors"
)

const (
	// DefaultKSize is the k-mer length used unless WithKSize overrides it.
	DefaultKSize = 31

	// DefaultScaled keeps roughly one in a thousand distinct k-mers.
	DefaultScaled uint64 = 1000
)

// Params defines how a sketch was built. Two sketches can only be compared
// when KSize, HashFunction and Seed match, and one Scaled divides the other.
type Params struct {
	KSize        int
	Scaled       uint64
	HashFunction HashFunction
	Seed         uint32
}

// DefaultParams returns k=31, scaled=1000, MurmurHash3 with seed 42.
func DefaultParams() Params {
	return Params{
		KSize:        DefaultKSize,
		Scaled:       DefaultScaled,
		HashFunction: HashMurmur3,
		Seed:         DefaultSeed,
	}
}

// Validate reports whether p can be used to build a sketch.
func (p Params) Validate() error {
	if p.KSize <= 0 {
		return fmt.Errorf("%w: %d", fqerrors.ErrInvalidKSize, p.KSize)
	}
	if p.Scaled == 0 {
		return fqerrors.ErrInvalidScaled
	}
	if !p.HashFunction.valid() {
		return fmt.Errorf("%w: %d", fqerrors.ErrUnknownHashFunction, uint16(p.HashFunction))
	}
	return nil
}

// Retains reports whether hash h survives the scaling rule h mod Scaled == 0.
func (p Params) Retains(h uint64) bool {
	return h%p.Scaled == 0
}

func (p Params) String() string {
	return fmt.Sprintf("k=%d scaled=%d hash=%s seed=%d", p.KSize, p.Scaled, p.HashFunction, p.Seed)
}

// checkDefinition verifies that other hashes k-mers exactly like p.
func (p Params) checkDefinition(other Params) error {
	if p.KSize != other.KSize {
		return fmt.Errorf("%w: %d vs %d", fqerrors.ErrKSizeMismatch, other.KSize, p.KSize)
	}
	if p.HashFunction != other.HashFunction || p.Seed != other.Seed {
		return fmt.Errorf("%w: %s/%d vs %s/%d", fqerrors.ErrHashFunctionMismatch,
			other.HashFunction, other.Seed, p.HashFunction, p.Seed)
	}
	return nil
}

// checkReference verifies that a reference built with ref can be compared
// against samples built with p: same k-mer definition, and a reference scale
// that is equal to or finer than (a divisor of) the sample scale, so every
// hash the sample retains is one the reference would also have retained.
func (p Params) checkReference(ref Params) error {
	if err := p.checkDefinition(ref); err != nil {
		return err
	}
	if ref.Scaled == 0 || p.Scaled%ref.Scaled != 0 {
		return fmt.Errorf("%w: reference scaled=%d, sample scaled=%d",
			fqerrors.ErrScaledIncompatible, ref.Scaled, p.Scaled)
	}
	return nil
}

// Sketch is an immutable, sorted set of retained k-mer hashes.
// It is safe for concurrent reads.
type Sketch struct {
	params Params
	hashes []uint64 // ascending, unique, all retained by params
}

// NewSketch builds a sketch from arbitrary hash values. Values that fail the
// scaling rule are dropped and duplicates collapse, so the result depends
// only on the set of inputs, not their order or multiplicity.
func NewSketch(p Params, hashes []uint64) (*Sketch, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	kept := make([]uint64, 0, len(hashes))
	for _, h := range hashes {
		if p.Retains(h) {
			kept = append(kept, h)
		}
	}
	slices.Sort(kept)
	return &Sketch{params: p, hashes: slices.Compact(kept)}, nil
}

// Params returns the parameters the sketch was built with.
func (s *Sketch) Params() Params {
	return s.params
}

// Len returns the number of distinct retained hashes.
func (s *Sketch) Len() int {
	return len(s.hashes)
}

// Contains reports whether h is in the sketch.
func (s *Sketch) Contains(h uint64) bool {
	_, ok := slices.BinarySearch(s.hashes, h)
	return ok
}

// Hashes returns a copy of the retained hashes in ascending order.
func (s *Sketch) Hashes() []uint64 {
	return slices.Clone(s.hashes)
}

// All iterates over the retained hashes in ascending order without copying.
func (s *Sketch) All() iter.Seq[uint64] {
	return slices.Values(s.hashes)
}

// Downsample returns the subset of s retained at a coarser scale. scaled must
// be a multiple of the current scale; the same scale returns s itself.
func (s *Sketch) Downsample(scaled uint64) (*Sketch, error) {
	if scaled == 0 {
		return nil, fqerrors.ErrInvalidScaled
	}
	if scaled == s.params.Scaled {
		return s, nil
	}
	if scaled%s.params.Scaled != 0 {
		return nil, fmt.Errorf("%w: cannot downsample scaled=%d to %d",
			fqerrors.ErrScaledIncompatible, s.params.Scaled, scaled)
	}
	p := s.params
	p.Scaled = scaled
	out := make([]uint64, 0, len(s.hashes)/int(scaled/s.params.Scaled)+1)
	for _, h := range s.hashes {
		if p.Retains(h) {
			out = append(out, h)
		}
	}
	return &Sketch{params: p, hashes: out}, nil
}
