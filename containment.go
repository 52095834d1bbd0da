package fqcomp

import (
	"fmt"

	fqerrors "github.com/tamirms/fqcomp/errors"
)

// CountCommon returns |a ∩ b| by walking both sorted hash lists once.
// It does not check parameters; Containment does.
func CountCommon(a, b *Sketch) int {
	x, y := a.hashes, b.hashes
	i, j, n := 0, 0, 0
	for i < len(x) && j < len(y) {
		switch {
		case x[i] < y[j]:
			i++
		case x[i] > y[j]:
			j++
		default:
			n++
			i++
			j++
		}
	}
	return n
}

// Containment estimates the fraction of the sample's distinct k-mers that are
// also present in the reference: |sample ∩ ref| / |sample|.
//
// This is not Jaccard similarity and it is not symmetric. A small reference
// (a spike-in control) can show high containment in a large sample only if
// most of the sample is that control, which is the question being asked.
//
// Both sketches must share k-mer size, hash function and seed. When their
// scales differ, one must divide the other and both are first downsampled to
// the coarser scale. An empty sample yields errors.ErrZeroLengthSample.
func Containment(sample, ref *Sketch) (float64, error) {
	if sample.Len() == 0 {
		return 0, fqerrors.ErrZeroLengthSample
	}
	if err := sample.params.checkDefinition(ref.params); err != nil {
		return 0, err
	}

	s, r := sample, ref
	if s.params.Scaled != r.params.Scaled {
		scaled, err := coarserScaled(s.params.Scaled, r.params.Scaled)
		if err != nil {
			return 0, err
		}
		if s, err = s.Downsample(scaled); err != nil {
			return 0, err
		}
		if r, err = r.Downsample(scaled); err != nil {
			return 0, err
		}
		if s.Len() == 0 {
			return 0, fmt.Errorf("%w: empty after downsampling to scaled=%d",
				fqerrors.ErrZeroLengthSample, scaled)
		}
	}

	return float64(CountCommon(s, r)) / float64(s.Len()), nil
}

// coarserScaled returns the larger of two scales when it is a multiple of the
// smaller one. Under the modulo rule only then is every hash retained at the
// coarse scale also retained at the fine scale.
func coarserScaled(a, b uint64) (uint64, error) {
	hi, lo := max(a, b), min(a, b)
	if hi%lo != 0 {
		return 0, fmt.Errorf("%w: %d and %d", fqerrors.ErrScaledIncompatible, a, b)
	}
	return hi, nil
}
