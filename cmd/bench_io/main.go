// bench_io compares input paths for FASTQ sampling:
//
//  1. "plain": uncompressed FASTQ read through seqio (fadvise sequential)
//  2. "gzip": the same reads compressed with pgzip
//
// Each mode writes a synthetic FASTQ file of roughly -size MB, then reads it
// back through seqio.Open, optionally sketching every read.
//
// Usage:
//
//	go run ./cmd/bench_io -size 500
//	go run ./cmd/bench_io -size 2000 -mode gzip -sketch
//
// To measure cold reads (data exceeding page cache):
//
//	sudo systemd-run --scope -p MemoryMax=1G --uid=$(id -u) \
//	  go run ./cmd/bench_io -size 4000
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	gzip "github.com/klauspost/pgzip"

	"github.com/tamirms/fqcomp"
	"github.com/tamirms/fqcomp/internal/seqio"
)

func main() {
	sizeMB := flag.Int("size", 500, "approximate uncompressed FASTQ size in MB")
	readLen := flag.Int("len", 150, "read length")
	mode := flag.String("mode", "both", "mode: plain, gzip, or both")
	sketch := flag.Bool("sketch", false, "sketch reads while reading")
	workers := flag.Int("workers", 1, "hashing goroutines when -sketch is set")
	tmpDir := flag.String("dir", "", "temp directory (default: os.TempDir())")
	flag.Parse()

	if *tmpDir == "" {
		*tmpDir = os.TempDir()
	}
	recordSize := 2*(*readLen) + 16
	numReads := int64(*sizeMB) * 1_000_000 / int64(recordSize)

	fmt.Printf("Configuration:\n")
	fmt.Printf("  Data size:    ~%d MB (%d reads × %d bp)\n", *sizeMB, numReads, *readLen)
	fmt.Printf("  Sketch:       %v (workers=%d)\n", *sketch, *workers)
	fmt.Printf("  Temp dir:     %s\n", *tmpDir)
	fmt.Printf("  GOMAXPROCS:   %d\n", runtime.GOMAXPROCS(0))
	fmt.Println()

	dir, err := os.MkdirTemp(*tmpDir, "fqcomp-bench-io-*")
	if err != nil {
		fmt.Printf("ERROR: create temp dir: %v\n", err)
		return
	}
	defer func() { _ = os.RemoveAll(dir) }()

	for _, m := range []string{"plain", "gzip"} {
		if *mode != m && *mode != "both" {
			continue
		}
		fmt.Printf("=== %s ===\n", m)
		path := filepath.Join(dir, "reads.fastq")
		if m == "gzip" {
			path += ".gz"
		}
		if err := benchMode(path, m == "gzip", numReads, *readLen, *sketch, *workers); err != nil {
			fmt.Printf("  ERROR: %v\n", err)
		}
		fmt.Println()
	}
}

func benchMode(path string, compress bool, numReads int64, readLen int, sketch bool, workers int) error {
	writeStart := time.Now()
	if err := writeReads(path, compress, numReads, readLen); err != nil {
		return err
	}
	writeDur := time.Since(writeStart)
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	fmt.Printf("  Write:  %6.2fs (%.1f MB on disk)\n", writeDur.Seconds(), float64(st.Size())/1e6)

	ctx := context.Background()
	readStart := time.Now()
	r, err := seqio.Open(ctx, path)
	if err != nil {
		return err
	}
	defer r.Close()

	var (
		reads int
		bases int64
	)
	if sketch {
		var s *fqcomp.Sketch
		s, reads, err = fqcomp.BuildSketch(ctx, r, -1, fqcomp.WithWorkers(workers))
		if err != nil {
			return err
		}
		bases = int64(reads) * int64(readLen)
		fmt.Printf("  Hashes: %d\n", s.Len())
	} else {
		for {
			seq, err := r.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			reads++
			bases += int64(len(seq))
		}
	}
	readDur := time.Since(readStart)

	fmt.Printf("  Read:   %6.2fs (%6.2f M reads/sec, %6.1f MB bases/sec)\n",
		readDur.Seconds(), float64(reads)/readDur.Seconds()/1e6, float64(bases)/readDur.Seconds()/1e6)
	return nil
}

// writeReads writes numReads random reads in FASTQ format.
func writeReads(path string, compress bool, numReads int64, readLen int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	var w io.Writer = f
	var zw *gzip.Writer
	if compress {
		zw = gzip.NewWriter(f)
		w = zw
	}
	bw := bufio.NewWriterSize(w, 1<<20)

	rng := rand.New(rand.NewPCG(42, 0))
	seq := make([]byte, readLen)
	qual := strings.Repeat("I", readLen)
	for i := range numReads {
		for j := range seq {
			seq[j] = "ACGT"[rng.IntN(4)]
		}
		if _, err := fmt.Fprintf(bw, "@r%d\n%s\n+\n%s\n", i, seq, qual); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if zw != nil {
		return zw.Close()
	}
	return nil
}
