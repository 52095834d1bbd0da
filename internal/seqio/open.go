// Package seqio opens FASTQ and FASTA inputs from local files, stdin or
// HTTP(S) URLs and serves their sequences one record at a time.
package seqio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	gzip "github.com/klauspost/pgzip"

	fqerrors "github.com/tamirms/fqcomp/errors"
)

// Stdin is the location that reads from standard input.
const Stdin = "-"

// readBufferSize is the bufio buffer placed in front of every stream.
const readBufferSize = 1 << 20

// multiReadCloser closes multiple io.Closers when Close() is called.
type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// IsURL reports whether location is fetched over HTTP rather than opened
// locally.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Open opens location and sniffs its format. Gzip input is detected by its
// magic bytes or a .gz suffix and decompressed transparently. ctx bounds
// HTTP requests for the life of the returned Reader.
//
// Failures wrap errors.ErrSourceRead.
func Open(ctx context.Context, location string) (*Reader, error) {
	return OpenClient(ctx, http.DefaultClient, location)
}

// OpenClient is Open with an explicit HTTP client for URL locations.
func OpenClient(ctx context.Context, client *http.Client, location string) (*Reader, error) {
	rc, err := openStream(ctx, client, location)
	if err != nil {
		return nil, sourceErr(location, err)
	}
	rc, err = maybeGunzip(rc, location)
	if err != nil {
		return nil, sourceErr(location, err)
	}
	r, err := newReader(location, rc)
	if err != nil {
		return nil, errors.Join(sourceErr(location, err), rc.Close())
	}
	return r, nil
}

// openStream returns the raw bytes behind location.
func openStream(ctx context.Context, client *http.Client, location string) (io.ReadCloser, error) {
	switch {
	case location == Stdin:
		return io.NopCloser(os.Stdin), nil
	case IsURL(location):
		return fetch(ctx, client, location)
	}

	fh, err := os.Open(location)
	if err != nil {
		return nil, err
	}
	if st, err := fh.Stat(); err == nil && st.IsDir() {
		_ = fh.Close()
		return nil, fmt.Errorf("%s is a directory", location)
	}
	fadviseSequential(int(fh.Fd()), 0, 0)
	return fh, nil
}

func fetch(ctx context.Context, client *http.Client, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", location, resp.Status)
	}
	return resp.Body, nil
}

// maybeGunzip wraps rc in a gzip reader when the stream starts with the gzip
// magic (1F 8B) or the location ends in .gz.
func maybeGunzip(rc io.ReadCloser, location string) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(rc, readBufferSize)
	sig, _ := br.Peek(2)
	isGzip := len(sig) == 2 && sig[0] == 0x1f && sig[1] == 0x8b
	if !isGzip && !hasGzipSuffix(location) {
		return &multiReadCloser{Reader: br, closers: []io.Closer{rc}}, nil
	}
	gr, err := gzip.NewReader(br)
	if err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return &multiReadCloser{Reader: gr, closers: []io.Closer{gr, rc}}, nil
}

func hasGzipSuffix(location string) bool {
	if IsURL(location) {
		if u, err := url.Parse(location); err == nil {
			return strings.HasSuffix(u.Path, ".gz")
		}
	}
	return strings.HasSuffix(location, ".gz")
}

func sourceErr(location string, err error) error {
	return fmt.Errorf("%w: %s: %w", fqerrors.ErrSourceRead, location, err)
}
