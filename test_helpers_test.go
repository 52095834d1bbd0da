package fqcomp

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"testing"
)

const (
	testSeed1 = 0x243F6A8885A308D3
	testSeed2 = 0x13198A2E03707344
)

// newTestRNG returns a generator seeded from the test name, so each test is
// deterministic and independent of the others.
func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// randomSeq returns n random upper-case bases.
func randomSeq(rng *rand.Rand, n int) []byte {
	seq := make([]byte, n)
	for i := range seq {
		seq[i] = "ACGT"[rng.IntN(4)]
	}
	return seq
}

// tiledReads cuts genome into reads of length readLen starting every step
// bases, so every k-mer with k <= readLen-step+1 is covered.
func tiledReads(genome []byte, readLen, step int) [][]byte {
	var reads [][]byte
	for i := 0; i+readLen <= len(genome); i += step {
		reads = append(reads, genome[i:i+readLen])
	}
	return reads
}

// testParams keeps enough hashes for small synthetic genomes.
func testParams() Params {
	return Params{KSize: 21, Scaled: 10, HashFunction: HashMurmur3, Seed: DefaultSeed}
}

// sketchOf sketches seqs with p in a single pass.
func sketchOf(t testing.TB, p Params, seqs ...[]byte) *Sketch {
	t.Helper()
	b, err := NewBuilder(WithParams(p))
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range seqs {
		b.AddSequence(s)
	}
	return b.Sketch()
}

// exactSketch builds a scaled=1 sketch holding exactly the given hashes.
func exactSketch(t testing.TB, hashes []uint64) *Sketch {
	t.Helper()
	s, err := NewSketch(Params{KSize: 21, Scaled: 1, HashFunction: HashMurmur3, Seed: DefaultSeed}, hashes)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// hashRange returns [lo, hi).
func hashRange(lo, hi uint64) []uint64 {
	out := make([]uint64, 0, hi-lo)
	for h := lo; h < hi; h++ {
		out = append(out, h)
	}
	return out
}

// failingSource yields good reads and then an error.
type failingSource struct {
	reads [][]byte
	err   error
	pos   int
}

func (f *failingSource) Next() ([]byte, error) {
	if f.pos < len(f.reads) {
		f.pos++
		return f.reads[f.pos-1], nil
	}
	return nil, f.err
}

func (f *failingSource) Name() string { return "failing" }
