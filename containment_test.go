package fqcomp

import (
	"errors"
	"testing"

	fqerrors "github.com/tamirms/fqcomp/errors"
)

func TestCountCommon(t *testing.T) {
	a := exactSketch(t, []uint64{1, 3, 5, 7, 9})
	b := exactSketch(t, []uint64{2, 3, 4, 9, 10, 11})
	if got := CountCommon(a, b); got != 2 {
		t.Errorf("CountCommon = %d, want 2", got)
	}
	if got := CountCommon(a, exactSketch(t, nil)); got != 0 {
		t.Errorf("CountCommon with empty = %d", got)
	}
}

func TestContainment(t *testing.T) {
	sample := exactSketch(t, hashRange(0, 1000))
	tests := []struct {
		name string
		ref  *Sketch
		want float64
	}{
		{"identical", sample, 1},
		{"superset", exactSketch(t, hashRange(0, 5000)), 1},
		{"half", exactSketch(t, hashRange(500, 5000)), 0.5},
		{"disjoint", exactSketch(t, hashRange(1000, 2000)), 0},
		{"empty reference", exactSketch(t, nil), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Containment(sample, tt.ref)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Containment = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContainmentIsNotSymmetric(t *testing.T) {
	small := exactSketch(t, hashRange(0, 100))
	large := exactSketch(t, hashRange(0, 1000))
	c1, _ := Containment(small, large)
	c2, _ := Containment(large, small)
	if c1 != 1 || c2 != 0.1 {
		t.Errorf("C(small, large)=%v C(large, small)=%v, want 1 and 0.1", c1, c2)
	}
}

func TestContainmentErrors(t *testing.T) {
	sample := exactSketch(t, hashRange(0, 10))
	if _, err := Containment(exactSketch(t, nil), sample); !errors.Is(err, fqerrors.ErrZeroLengthSample) {
		t.Errorf("empty sample: got %v", err)
	}

	p := sample.Params()
	p.KSize = 31
	other, _ := NewSketch(p, hashRange(0, 10))
	if _, err := Containment(sample, other); !errors.Is(err, fqerrors.ErrKSizeMismatch) {
		t.Errorf("k mismatch: got %v", err)
	}

	p = sample.Params()
	p.HashFunction = HashXXH3
	other, _ = NewSketch(p, hashRange(0, 10))
	if _, err := Containment(sample, other); !errors.Is(err, fqerrors.ErrHashFunctionMismatch) {
		t.Errorf("hash mismatch: got %v", err)
	}
}

func TestContainmentAcrossScales(t *testing.T) {
	fine := Params{KSize: 21, Scaled: 10, HashFunction: HashMurmur3, Seed: DefaultSeed}
	coarse := fine
	coarse.Scaled = 100
	odd := fine
	odd.Scaled = 15

	sample, _ := NewSketch(coarse, hashRange(0, 10000)) // multiples of 100
	ref, _ := NewSketch(fine, hashRange(0, 5000))       // multiples of 10 below 5000
	c, err := Containment(sample, ref)
	if err != nil {
		t.Fatal(err)
	}
	if c != 0.5 {
		t.Errorf("coarse sample in fine reference = %v, want 0.5", c)
	}

	// The finer sample is downsampled to the reference scale first.
	c, err = Containment(ref, sample)
	if err != nil {
		t.Fatal(err)
	}
	if c != 1 {
		t.Errorf("fine sample in coarse reference = %v, want 1", c)
	}

	oddRef, _ := NewSketch(odd, hashRange(0, 1000))
	if _, err := Containment(sample, oddRef); !errors.Is(err, fqerrors.ErrScaledIncompatible) {
		t.Errorf("scaled 100 vs 15: got %v", err)
	}

	// Nothing survives downsampling to 100000.
	tiny, _ := NewSketch(fine, []uint64{10, 20})
	huge := fine
	huge.Scaled = 100000
	hugeRef, _ := NewSketch(huge, []uint64{100000})
	if _, err := Containment(tiny, hugeRef); !errors.Is(err, fqerrors.ErrZeroLengthSample) {
		t.Errorf("empty after downsampling: got %v", err)
	}
}
