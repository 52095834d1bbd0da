package seqio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// maxLineLength bounds a single input line (a long read or FASTA line).
const maxLineLength = 256 << 20

// Format is a sequence file format.
type Format int

const (
	FormatFASTQ Format = iota
	FormatFASTA
)

func (f Format) String() string {
	switch f {
	case FormatFASTQ:
		return "fastq"
	case FormatFASTA:
		return "fasta"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// Reader yields the sequences of a FASTQ or FASTA stream. It implements
// fqcomp.SequenceSource; a caller may stop pulling at any point and Close
// the Reader without draining the stream.
//
// FASTQ records are groups of four lines whose second line is the
// sequence. A partial record at the end of the stream is ignored. FASTA
// records may span several lines, which are joined.
type Reader struct {
	name    string
	format  Format
	rc      io.ReadCloser
	scanner *bufio.Scanner

	seq        []byte
	fastaStart bool // a '>' header has been consumed and its record is pending
	records    int
}

// NewReader wraps an already-decompressed stream. The format is sniffed from
// the first byte: '>' is FASTA and anything else is treated as FASTQ.
func NewReader(name string, r io.Reader) (*Reader, error) {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	return newReader(name, rc)
}

func newReader(name string, rc io.ReadCloser) (*Reader, error) {
	br := bufio.NewReaderSize(rc, readBufferSize)
	first, err := br.Peek(1)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	format := FormatFASTQ
	if len(first) == 1 && first[0] == '>' {
		format = FormatFASTA
	}

	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	return &Reader{name: name, format: format, rc: rc, scanner: sc}, nil
}

// Name returns the location the reader was opened from.
func (r *Reader) Name() string {
	return r.name
}

// Format returns the sniffed format.
func (r *Reader) Format() Format {
	return r.format
}

// Records returns how many sequences have been returned so far.
func (r *Reader) Records() int {
	return r.records
}

// Next returns the next sequence, or io.EOF at the end of the stream. The
// slice is reused by the following call.
func (r *Reader) Next() ([]byte, error) {
	var (
		seq []byte
		err error
	)
	if r.format == FormatFASTA {
		seq, err = r.nextFASTA()
	} else {
		seq, err = r.nextFASTQ()
	}
	if err != nil {
		return nil, err
	}
	r.records++
	return seq, nil
}

// Close releases the underlying stream.
func (r *Reader) Close() error {
	return r.rc.Close()
}

func (r *Reader) nextFASTQ() ([]byte, error) {
	for line := 0; line < 4; line++ {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		if line == 1 {
			r.seq = append(r.seq[:0], bytes.TrimSpace(r.scanner.Bytes())...)
		}
	}
	return r.seq, nil
}

func (r *Reader) nextFASTA() ([]byte, error) {
	r.seq = r.seq[:0]
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) > 0 && line[0] == '>' {
			if r.fastaStart {
				return r.seq, nil
			}
			r.fastaStart = true
			continue
		}
		r.fastaStart = true
		r.seq = append(r.seq, line...)
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if r.fastaStart {
		r.fastaStart = false
		return r.seq, nil
	}
	return nil, io.EOF
}
