// Bench measures sketch build throughput, sketch file I/O and containment
// speed on a synthetic genome and read set.
//
// Usage:
//
//	go run ./cmd/bench -genome 5000000 -reads 200000 -workers 4
//
// Flags:
//
//	-genome    Reference genome length in bases (default: 5,000,000)
//	-reads     Number of simulated reads (default: 200,000)
//	-len       Read length (default: 150)
//	-workers   Hashing goroutines (default: 1)
//	-ksize     k-mer size (default: 31)
//	-scaled    Scaling factor (default: 1000)
//	-hash      murmur3 or xxh3 (default: murmur3)
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tamirms/fqcomp"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024
	}
	return maxRSS
}

// peakSampler polls heap and RSS every 10ms until stopped.
type peakSampler struct {
	heap, rss atomic.Uint64
	done      chan struct{}
}

func startPeakSampler() *peakSampler {
	s := &peakSampler{done: make(chan struct{})}
	go func() {
		samples := []metrics.Sample{{Name: "/memory/classes/heap/objects:bytes"}}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				storeMax(&s.heap, samples[0].Value.Uint64())
				storeMax(&s.rss, getMaxRSS())
			}
		}
	}()
	return s
}

func (s *peakSampler) stop() (heap, rss uint64) {
	close(s.done)
	return s.heap.Load(), s.rss.Load()
}

func storeMax(v *atomic.Uint64, x uint64) {
	for {
		old := v.Load()
		if x <= old || v.CompareAndSwap(old, x) {
			return
		}
	}
}

func main() {
	genomeFlag := flag.Int("genome", 5_000_000, "reference genome length in bases")
	readsFlag := flag.Int("reads", 200_000, "number of simulated reads")
	lenFlag := flag.Int("len", 150, "read length")
	workersFlag := flag.Int("workers", 1, "hashing goroutines")
	ksizeFlag := flag.Int("ksize", fqcomp.DefaultKSize, "k-mer size")
	scaledFlag := flag.Uint64("scaled", fqcomp.DefaultScaled, "scaling factor")
	hashFlag := flag.String("hash", "murmur3", "k-mer hash: murmur3 or xxh3")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (sample sketch phase only)")
	flag.Parse()

	hash, err := fqcomp.ParseHashFunction(*hashFlag)
	if err != nil {
		fmt.Println(err)
		return
	}
	params := fqcomp.Params{KSize: *ksizeFlag, Scaled: *scaledFlag, HashFunction: hash, Seed: fqcomp.DefaultSeed}
	if err := params.Validate(); err != nil {
		fmt.Println(err)
		return
	}
	if *lenFlag > *genomeFlag {
		fmt.Println("-len must not exceed -genome")
		return
	}

	fmt.Println("Generating genome and reads...")
	rng := rand.New(rand.NewPCG(1, 2))
	genome := make([]byte, *genomeFlag)
	for i := range genome {
		genome[i] = "ACGT"[rng.IntN(4)]
	}
	reads := make([][]byte, *readsFlag)
	for i := range reads {
		off := rng.IntN(len(genome) - *lenFlag + 1)
		reads[i] = genome[off : off+*lenFlag]
	}

	ctx := context.Background()

	fmt.Println("Sketching reference...")
	refStart := time.Now()
	ref, _, err := fqcomp.BuildSketch(ctx, fqcomp.NewSliceSource("genome", genome), -1,
		fqcomp.WithParams(params), fqcomp.WithWorkers(*workersFlag))
	if err != nil {
		fmt.Printf("reference sketch failed: %v\n", err)
		return
	}
	refDuration := time.Since(refStart)

	runtime.GC()
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	baselineRSS := getMaxRSS()
	sampler := startPeakSampler()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	fmt.Println("Sketching reads...")
	sampleStart := time.Now()
	sample, n, err := fqcomp.BuildSketch(ctx, fqcomp.NewSliceSource("reads", reads...), -1,
		fqcomp.WithParams(params), fqcomp.WithWorkers(*workersFlag))
	sampleDuration := time.Since(sampleStart)
	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}
	peakHeap, peakRSS := sampler.stop()
	if err != nil {
		fmt.Printf("sample sketch failed: %v\n", err)
		return
	}

	tmpDir, err := os.MkdirTemp("", "fqcomp-bench-")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		return
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	path := filepath.Join(tmpDir, "reference.sketch")

	writeStart := time.Now()
	if err := fqcomp.WriteSketchFile(path, "reference", ref); err != nil {
		fmt.Printf("write failed: %v\n", err)
		return
	}
	writeDuration := time.Since(writeStart)

	readStart := time.Now()
	_, loaded, err := fqcomp.ReadSketchFile(path)
	if err != nil {
		fmt.Printf("read failed: %v\n", err)
		return
	}
	readDuration := time.Since(readStart)

	const rounds = 100
	var containment float64
	cmpStart := time.Now()
	for range rounds {
		containment, err = fqcomp.Containment(sample, loaded)
		if err != nil {
			fmt.Printf("containment failed: %v\n", err)
			return
		}
	}
	cmpDuration := time.Since(cmpStart) / rounds

	bases := float64(n * *lenFlag)
	info, _ := os.Stat(path)

	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦══════════════════╗\n")
	fmt.Printf("║ %-19s ║ %-16s ║\n", "Params", fmt.Sprintf("k=%d s=%d", params.KSize, params.Scaled))
	fmt.Printf("╠═════════════════════╬══════════════════╣\n")
	fmt.Printf("║ Reference hashes    ║ %10d       ║\n", ref.Len())
	fmt.Printf("║ Reference sketch    ║ %8.2f sec     ║\n", refDuration.Seconds())
	fmt.Printf("║ Sample hashes       ║ %10d       ║\n", sample.Len())
	fmt.Printf("║ Sample sketch       ║ %8.2f sec     ║\n", sampleDuration.Seconds())
	fmt.Printf("║ Read throughput     ║ %8.2f M/sec   ║\n", float64(n)/sampleDuration.Seconds()/1_000_000)
	fmt.Printf("║ Base throughput     ║ %8.1f MB/sec  ║\n", bases/sampleDuration.Seconds()/1_000_000)
	fmt.Printf("║ Sketch file size    ║ %8.1f KB      ║\n", float64(info.Size())/1000)
	fmt.Printf("║ Write               ║ %8.2f ms      ║\n", float64(writeDuration.Microseconds())/1000)
	fmt.Printf("║ Read + verify       ║ %8.2f ms      ║\n", float64(readDuration.Microseconds())/1000)
	fmt.Printf("║ Containment         ║ %8.2f μs      ║\n", float64(cmpDuration.Nanoseconds())/1000)
	fmt.Printf("║ Containment value   ║ %8.4f         ║\n", containment)
	fmt.Printf("║ Peak heap memory    ║ %8.1f MB      ║\n", float64(peakHeap-min(peakHeap, baseline.Alloc))/1_000_000)
	fmt.Printf("║ Peak RSS memory     ║ %8.1f MB      ║\n", float64(peakRSS-min(peakRSS, baselineRSS))/1_000_000)
	fmt.Printf("╚═════════════════════╩══════════════════╝\n")
}
