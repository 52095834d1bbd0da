package fqcomp

import (
	"bytes"
	"fmt"
	"iter"
	"strings"

	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"

	fqerrors "github.com/tamirms/fqcomp/errors"
)

// HashFunction identifies the 64-bit hash applied to canonical k-mers.
// It is stored in every sketch file: two sketches are only comparable when
// they were hashed with the same function and seed.
type HashFunction uint16

const (
	// HashMurmur3 takes the first 64 bits of MurmurHash3 x64-128. With seed 42
	// this matches the k-mer hash used by sourmash.
	HashMurmur3 HashFunction = 0

	// HashXXH3 is xxHash3-64 with the seed widened to 64 bits.
	HashXXH3 HashFunction = 1
)

// DefaultSeed is the hash seed used unless WithSeed overrides it.
const DefaultSeed uint32 = 42

// String returns the name accepted by ParseHashFunction.
func (h HashFunction) String() string {
	switch h {
	case HashMurmur3:
		return "murmur3"
	case HashXXH3:
		return "xxh3"
	default:
		return fmt.Sprintf("HashFunction(%d)", uint16(h))
	}
}

// ParseHashFunction maps a name ("murmur3", "xxh3") to a HashFunction.
func ParseHashFunction(name string) (HashFunction, error) {
	switch strings.ToLower(name) {
	case "murmur3", "murmur":
		return HashMurmur3, nil
	case "xxh3":
		return HashXXH3, nil
	default:
		return 0, fmt.Errorf("%w: %q", fqerrors.ErrUnknownHashFunction, name)
	}
}

func (h HashFunction) valid() bool {
	return h == HashMurmur3 || h == HashXXH3
}

// Sum64 hashes an already-canonical k-mer.
func (h HashFunction) Sum64(kmer []byte, seed uint32) uint64 {
	if h == HashXXH3 {
		return xxh3.HashSeed(kmer, uint64(seed))
	}
	h1, _ := murmur3.Sum128WithSeed(kmer, seed)
	return h1
}

// baseTable maps A/C/G/T (either case) to the upper-case base and every other
// byte to 0. complementTable maps an upper-case base to its complement; 0 stays 0.
var baseTable, complementTable [256]byte

func init() {
	for _, p := range [][2]byte{{'A', 'T'}, {'C', 'G'}, {'G', 'C'}, {'T', 'A'}} {
		baseTable[p[0]] = p[0]
		baseTable[p[0]+'a'-'A'] = p[0]
		complementTable[p[0]] = p[1]
	}
}

// ReverseComplement returns the upper-case reverse complement of seq.
// Bytes outside A/C/G/T become 'N'.
func ReverseComplement(seq []byte) []byte {
	out := make([]byte, len(seq))
	for i, c := range seq {
		rc := complementTable[baseTable[c]]
		if rc == 0 {
			rc = 'N'
		}
		out[len(seq)-1-i] = rc
	}
	return out
}

// Extractor slides a k-wide window over sequences and yields one canonical
// hash per window made only of A/C/G/T. A window's canonical form is the
// lexicographically smaller of its upper-cased forward strand and its reverse
// complement, so both strands of the same fragment hash identically.
//
// An Extractor reuses internal buffers and is not safe for concurrent use.
type Extractor struct {
	k    int
	hash HashFunction
	seed uint32

	fwd []byte // upper-cased sequence, 0 for non-ACGT
	rev []byte // complement of fwd, reversed
}

// NewExtractor returns an extractor for k-mers of length k.
func NewExtractor(k int, hash HashFunction, seed uint32) (*Extractor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: %d", fqerrors.ErrInvalidKSize, k)
	}
	if !hash.valid() {
		return nil, fmt.Errorf("%w: %d", fqerrors.ErrUnknownHashFunction, uint16(hash))
	}
	return &Extractor{k: k, hash: hash, seed: seed}, nil
}

// K returns the window width.
func (e *Extractor) K() int {
	return e.k
}

// Hashes returns a lazy sequence of canonical k-mer hashes for seq.
// Windows containing any byte outside A/C/G/T are skipped rather than failing
// the sequence. A sequence shorter than k yields nothing.
//
// The iterator shares e's buffers: finish (or abandon) one iteration before
// starting another on the same Extractor.
func (e *Extractor) Hashes(seq []byte) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		n, k := len(seq), e.k
		if n < k {
			return
		}
		e.fwd = growBuffer(e.fwd, n)
		e.rev = growBuffer(e.rev, n)
		for i, c := range seq {
			b := baseTable[c]
			e.fwd[i] = b
			e.rev[n-1-i] = complementTable[b]
		}

		run := 0 // valid bases ending at i
		for i := 0; i < n; i++ {
			if e.fwd[i] == 0 {
				run = 0
				continue
			}
			run++
			if run < k {
				continue
			}
			start := i - k + 1
			kmer := e.fwd[start : i+1]
			if rc := e.rev[n-1-i : n-start]; bytes.Compare(rc, kmer) < 0 {
				kmer = rc
			}
			if !yield(e.hash.Sum64(kmer, e.seed)) {
				return
			}
		}
	}
}

// KmerHashes is a convenience wrapper that hashes seq with the default hash
// function and seed. It yields nothing when k is not positive.
func KmerHashes(seq []byte, k int) iter.Seq[uint64] {
	e, err := NewExtractor(k, HashMurmur3, DefaultSeed)
	if err != nil {
		return func(func(uint64) bool) {}
	}
	return e.Hashes(seq)
}

func growBuffer(buf []byte, n int) []byte {
	if cap(buf) < n {
		return make([]byte, n)
	}
	return buf[:n]
}
