package fqcomp

import (
	"maps"
	"slices"
)

// Builder incrementally accumulates a scaled k-mer sketch.
//
// Usage:
//
//	b, err := fqcomp.NewBuilder(fqcomp.WithKSize(31), fqcomp.WithScaled(1000))
//	if err != nil { return err }
//	for seq := range reads {
//	    b.AddSequence(seq)
//	}
//	sketch := b.Sketch()
//
// Only hashes passing the scaling rule are stored, so memory grows with the
// number of distinct retained k-mers, never with the number of reads. The
// resulting set depends only on the hash function and the scaling rule, not
// on the order sequences arrive in.
//
// A Builder is not safe for concurrent use. Parallel callers give each
// goroutine its own Builder and Merge them afterwards.
type Builder struct {
	params    Params
	extractor *Extractor
	set       map[uint64]struct{}

	sequences uint64 // AddSequence calls
	kmers     uint64 // valid windows hashed, before scaling
}

// NewBuilder creates an empty builder. With no options it uses DefaultParams.
func NewBuilder(opts ...Option) (*Builder, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return newBuilder(cfg.params), nil
}

// newBuilder assumes p has been validated.
func newBuilder(p Params) *Builder {
	ext, err := NewExtractor(p.KSize, p.HashFunction, p.Seed)
	if err != nil {
		panic("fqcomp: newBuilder called with unvalidated params: " + err.Error())
	}
	return &Builder{
		params:    p,
		extractor: ext,
		set:       make(map[uint64]struct{}),
	}
}

// AddSequence hashes every valid window of seq into the sketch.
// seq is not retained.
func (b *Builder) AddSequence(seq []byte) {
	b.sequences++
	for h := range b.extractor.Hashes(seq) {
		b.kmers++
		b.AddHash(h)
	}
}

// AddHash inserts a canonical k-mer hash if it passes the scaling rule.
// It reports whether the set grew; re-adding a hash is a no-op.
func (b *Builder) AddHash(h uint64) bool {
	if !b.params.Retains(h) {
		return false
	}
	if _, ok := b.set[h]; ok {
		return false
	}
	b.set[h] = struct{}{}
	return true
}

// Merge adds every hash of other into b. Both builders must share Params.
// Merging is a set union, so the merge order does not affect the result.
func (b *Builder) Merge(other *Builder) error {
	if err := b.params.checkDefinition(other.params); err != nil {
		return err
	}
	if other.params.Scaled != b.params.Scaled {
		// Not reachable through BuildSketch; guards direct callers.
		if err := b.params.checkReference(other.params); err != nil {
			return err
		}
	}
	for h := range other.set {
		b.AddHash(h)
	}
	b.sequences += other.sequences
	b.kmers += other.kmers
	return nil
}

// Params returns the builder's sketch parameters.
func (b *Builder) Params() Params {
	return b.params
}

// Len returns the current number of distinct retained hashes.
func (b *Builder) Len() int {
	return len(b.set)
}

// Contains reports whether h has been retained.
func (b *Builder) Contains(h uint64) bool {
	_, ok := b.set[h]
	return ok
}

// Sequences returns the number of sequences added, including those that
// contributed no k-mers.
func (b *Builder) Sequences() uint64 {
	return b.sequences
}

// KmersSeen returns the number of valid k-mer windows hashed before scaling.
func (b *Builder) KmersSeen() uint64 {
	return b.kmers
}

// Sketch returns an immutable snapshot of the current set. The builder can
// keep accepting input afterwards without affecting the snapshot.
func (b *Builder) Sketch() *Sketch {
	return &Sketch{
		params: b.params,
		hashes: slices.Sorted(maps.Keys(b.set)),
	}
}
