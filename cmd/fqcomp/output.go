package main

import (
	"encoding/json"
	"errors"
	"io"
	"syscall"
)

// encodePretty writes v as indented JSON to w.
func encodePretty(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isBrokenPipe(err error) bool {
	return err != nil && (errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe))
}

// writeOutput encodes v, treating a closed stdout as success.
func writeOutput(w io.Writer, v any) error {
	if err := encodePretty(w, v); err != nil && !isBrokenPipe(err) {
		return err
	}
	return nil
}
