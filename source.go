package fqcomp

import "io"

// SequenceSource is the pull-based stream of reads the core consumes.
//
// Next returns the next sequence, or io.EOF once the stream is exhausted. The
// returned slice is only valid until the following call to Next. Callers stop
// pulling whenever they have enough reads; a source must not require the
// remainder of the stream to be drained.
//
// Name identifies the source (file path or URL) in results and errors.
type SequenceSource interface {
	Next() ([]byte, error)
	Name() string
}

// SliceSource serves sequences from memory. It is useful for tests and for
// callers that already hold their reads.
type SliceSource struct {
	name string
	seqs [][]byte
	pos  int
}

// NewSliceSource returns a source that yields seqs in order.
func NewSliceSource(name string, seqs ...[]byte) *SliceSource {
	return &SliceSource{name: name, seqs: seqs}
}

// Next implements SequenceSource.
func (s *SliceSource) Next() ([]byte, error) {
	if s.pos >= len(s.seqs) {
		return nil, io.EOF
	}
	seq := s.seqs[s.pos]
	s.pos++
	return seq, nil
}

// Name implements SequenceSource.
func (s *SliceSource) Name() string {
	return s.name
}

// Pulled returns how many sequences have been handed out so far.
func (s *SliceSource) Pulled() int {
	return s.pos
}
