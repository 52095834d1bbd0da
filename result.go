package fqcomp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	fqerrors "github.com/tamirms/fqcomp/errors"
)

// Component is one retained reference and its rounded containment.
type Component struct {
	Name     string
	Fraction float64
}

// Composition is an ordered name→fraction mapping. It encodes as a JSON
// object whose keys keep reference-library order.
type Composition []Component

// Get returns the fraction recorded for name.
func (c Composition) Get(name string) (float64, bool) {
	for _, comp := range c {
		if comp.Name == name {
			return comp.Fraction, true
		}
	}
	return 0, false
}

// Names returns the component names in order.
func (c Composition) Names() []string {
	names := make([]string, len(c))
	for i, comp := range c {
		names[i] = comp.Name
	}
	return names
}

// MarshalJSON implements json.Marshaler.
func (c Composition) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, comp := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(comp.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(comp.Fraction, 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, preserving key order.
func (c *Composition) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("composition: expected object, got %v", tok)
	}
	out := Composition{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("composition: expected string key, got %v", keyTok)
		}
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("composition: value for %q: %w", key, err)
		}
		out = append(out, Component{Name: key, Fraction: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

// Result is the outcome of one successful analysis. It is built once by
// Classify and never modified afterwards.
type Result struct {
	Source               string      `json:"source"`
	ReadsSampled         int         `json:"reads_sampled"`
	Composition          Composition `json:"composition_estimate"`
	UnknownContent       float64     `json:"unknown_content"`
	IsMixed              bool        `json:"is_mixed"`
	IsContaminated       bool        `json:"is_contaminated"`
	ContaminationWarning string      `json:"contamination_warning,omitempty"`

	// Which rule set IsContaminated. Not part of the wire format.
	PhixContamination  bool `json:"-"`
	CrossContamination bool `json:"-"`
}

// ErrorReport is the structured outcome of a failed analysis. It carries an
// "error" field and none of the Result fields, so consumers can tell the two
// apart from the JSON alone.
type ErrorReport struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Source string `json:"source,omitempty"`
}

// NewErrorReport converts an analysis error into its structured form.
func NewErrorReport(source string, err error) *ErrorReport {
	return &ErrorReport{
		Error:  err.Error(),
		Kind:   ErrorKind(err),
		Source: source,
	}
}

// errorKinds is checked in order; specific causes precede their class.
var errorKinds = []struct {
	err  error
	kind string
}{
	{fqerrors.ErrNoValidReferences, "no_valid_references"},
	{fqerrors.ErrNoReferencesFound, "no_references_found"},
	{fqerrors.ErrConfiguration, "configuration"},
	{fqerrors.ErrSourceRead, "source_read"},
	{fqerrors.ErrNoReads, "no_reads"},
	{fqerrors.ErrEmptySketch, "empty_sketch"},
	{fqerrors.ErrZeroLengthSample, "zero_length_sample"},
	{fqerrors.ErrKSizeMismatch, "ksize_mismatch"},
	{fqerrors.ErrHashFunctionMismatch, "hash_function_mismatch"},
	{fqerrors.ErrScaledIncompatible, "scaled_incompatible"},
	{context.Canceled, "canceled"},
	{context.DeadlineExceeded, "deadline_exceeded"},
}

// ErrorKind returns a stable snake_case name for the error's taxonomy class.
func ErrorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
