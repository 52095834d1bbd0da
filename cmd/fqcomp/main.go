// Command fqcomp estimates the organism composition of FASTQ files against a
// directory of reference sketches and flags PhiX and cross-sample
// contamination.
//
// Usage:
//
//	fqcomp analyze sample.fastq.gz
//	fqcomp analyze --url https://example.com/sample.fastq.gz --reads 10000
//	fqcomp sketch genome.fa.gz -o references/e_coli.sketch
//	fqcomp info references/*.sketch
//	fqcomp serve --addr :8080 --data-dir /data
//	fqcomp history --limit 10
//
// analyze exits 0 for a clean sample, 2 when contamination is detected and 1
// on any error.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tamirms/fqcomp"
)

// exitCode carries a process exit status through cobra. Its message, if any,
// has already been written.
type exitCode int

func (c exitCode) Error() string {
	return "exit status " + strconv.Itoa(int(c))
}

const (
	exitError        exitCode = 1
	exitContaminated exitCode = 2
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	refDir  string
	dbPath  string
	ksize   int
	scaled  uint64
	hash    string
	seed    uint32
	workers int
	verbose bool
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (g *globalFlags) logger() *slog.Logger {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// options turns the sketch flags into fqcomp options.
func (g *globalFlags) options(log *slog.Logger) ([]fqcomp.Option, error) {
	hash, err := fqcomp.ParseHashFunction(g.hash)
	if err != nil {
		return nil, err
	}
	return []fqcomp.Option{
		fqcomp.WithKSize(g.ksize),
		fqcomp.WithScaled(g.scaled),
		fqcomp.WithHashFunction(hash),
		fqcomp.WithSeed(g.seed),
		fqcomp.WithWorkers(g.workers),
		fqcomp.WithLogger(log),
	}, nil
}

func rootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "fqcomp",
		Short: "Detect organism composition in FASTQ files",
		Long: `fqcomp sketches a sample of reads with scaled MinHash and compares it against
a directory of reference sketches. It reports the fraction of the sample each
reference explains, the unexplained remainder, and flags PhiX spike-in and
cross-sample contamination.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&g.refDir, "ref-dir", envOr("FQCOMP_REF_DIR", "references/"), "directory containing reference .sketch files [$FQCOMP_REF_DIR]")
	pf.StringVar(&g.dbPath, "db", os.Getenv("FQCOMP_DB"), "SQLite run history database; empty disables history [$FQCOMP_DB]")
	pf.IntVar(&g.ksize, "ksize", fqcomp.DefaultKSize, "k-mer size")
	pf.Uint64Var(&g.scaled, "scaled", fqcomp.DefaultScaled, "scaling factor for MinHash")
	pf.StringVar(&g.hash, "hash", fqcomp.HashMurmur3.String(), "k-mer hash function: murmur3 or xxh3")
	pf.Uint32Var(&g.seed, "seed", fqcomp.DefaultSeed, "k-mer hash seed")
	pf.IntVarP(&g.workers, "workers", "j", 1, "goroutines hashing reads")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(analyzeCommand(g))
	root.AddCommand(sketchCommand(g))
	root.AddCommand(infoCommand(g))
	root.AddCommand(serveCommand(g))
	root.AddCommand(historyCommand(g))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCommand().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	var code exitCode
	if errors.As(err, &code) {
		os.Exit(int(code))
	}
	fmt.Fprintln(os.Stderr, "fqcomp:", err)
	os.Exit(int(exitError))
}
