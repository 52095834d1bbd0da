package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/tamirms/fqcomp"
	"github.com/tamirms/fqcomp/internal/history"
	"github.com/tamirms/fqcomp/internal/seqio"
)

func analyzeCommand(g *globalFlags) *cobra.Command {
	var (
		url   string
		reads int
	)
	cmd := &cobra.Command{
		Use:   "analyze [FASTQ]",
		Short: "Estimate the composition of a FASTQ file",
		Long: `Sample up to --reads reads from a FASTQ file (plain or gzipped, "-" for stdin)
or a URL, and print the composition estimate as JSON.

--reads 0 samples nothing and is reported as a no_reads error; a negative
value reads the whole input.

Exit status is 0 for a clean sample, 2 when contamination is detected and 1
on any error. Errors are printed as a JSON object with an "error" field.`,
		Example: `  fqcomp analyze sample.fastq.gz
  fqcomp analyze --url https://example.com/file.fastq.gz
  fqcomp analyze sample.fastq.gz --ref-dir ./my_refs --reads 10000`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var location string
			switch {
			case len(args) == 0 && url == "":
				return errors.New("either a FASTQ path or --url must be provided")
			case len(args) == 1 && url != "":
				return errors.New("cannot specify both a file path and --url")
			case url != "":
				location = url
			default:
				location = args[0]
			}
			return runAnalyze(cmd.Context(), cmd, g, location, reads)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "URL of a FASTQ file to stream")
	cmd.Flags().IntVar(&reads, "reads", fqcomp.DefaultReadLimit, "maximum number of reads to process (0 samples nothing, negative reads the whole input)")
	return cmd
}

func runAnalyze(ctx context.Context, cmd *cobra.Command, g *globalFlags, location string, reads int) error {
	log := g.logger()
	opts, err := g.options(log)
	if err != nil {
		return err
	}

	var store *history.Store
	if g.dbPath != "" {
		store, err = history.Open(ctx, g.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	res, err := analyzeLocation(ctx, g.refDir, location, reads, opts)
	out := cmd.OutOrStdout()
	if err != nil {
		report := fqcomp.NewErrorReport(location, err)
		if store != nil {
			if _, herr := store.RecordError(ctx, report); herr != nil {
				log.Warn("recording history failed", "err", herr)
			}
		}
		if werr := writeOutput(out, report); werr != nil {
			return werr
		}
		return exitError
	}

	if store != nil {
		if _, herr := store.RecordResult(ctx, res); herr != nil {
			log.Warn("recording history failed", "err", herr)
		}
	}
	if err := writeOutput(out, res); err != nil {
		return err
	}
	if res.IsContaminated {
		return exitContaminated
	}
	return nil
}

func analyzeLocation(ctx context.Context, refDir, location string, reads int, opts []fqcomp.Option) (*fqcomp.Result, error) {
	lib, err := fqcomp.LoadLibrary(ctx, refDir, opts...)
	if err != nil {
		return nil, err
	}
	src, err := seqio.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return fqcomp.Analyze(ctx, src, lib, reads, opts...)
}
