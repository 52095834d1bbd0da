package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tamirms/fqcomp"
	"github.com/tamirms/fqcomp/internal/seqio"
)

func sketchCommand(g *globalFlags) *cobra.Command {
	var (
		output string
		name   string
	)
	cmd := &cobra.Command{
		Use:   "sketch INPUT... -o OUTPUT",
		Short: "Build a reference sketch from FASTA or FASTQ files",
		Long: `Sketch every sequence of the inputs (FASTA or FASTQ, plain or gzipped, local
paths or URLs) into one reference sketch file. The file name becomes the
reference name used in composition reports: e_coli_k12.sketch is reported as
"E Coli K12".`,
		Example: `  fqcomp sketch GCF_000005845.fna.gz -o references/e_coli_k12.sketch
  fqcomp sketch phix.fa -o references/phix.sketch --scaled 100`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSketch(cmd.Context(), g, args, output, name)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output .sketch file")
	cmd.Flags().StringVar(&name, "name", "", "name recorded in the file (default: the first input's base name)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runSketch(ctx context.Context, g *globalFlags, inputs []string, output, name string) error {
	log := g.logger()
	opts, err := g.options(log)
	if err != nil {
		return err
	}
	if filepath.Ext(output) != fqcomp.SketchFileExt {
		log.Warn("output does not end in "+fqcomp.SketchFileExt+"; reference loading will ignore it", "output", output)
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(inputs[0]), ".gz")
	}

	src := &chainSource{ctx: ctx, locations: inputs}
	defer src.Close()

	sketch, records, err := fqcomp.BuildSketch(ctx, src, -1, opts...)
	if err != nil {
		return err
	}
	if sketch.Len() == 0 {
		return fmt.Errorf("no hashes retained from %d sequences; inputs too short for k=%d scaled=%d?",
			records, g.ksize, g.scaled)
	}
	if err := fqcomp.WriteSketchFile(output, name, sketch); err != nil {
		return err
	}
	log.Info("wrote sketch",
		"output", output,
		"reference", fqcomp.ReferenceName(output),
		"sequences", records,
		"hashes", sketch.Len(),
		"params", sketch.Params().String())
	return nil
}

// chainSource reads its locations one after another, opening each lazily.
type chainSource struct {
	ctx       context.Context
	locations []string
	cur       *seqio.Reader
}

func (c *chainSource) Next() ([]byte, error) {
	for {
		if c.cur == nil {
			if len(c.locations) == 0 {
				return nil, io.EOF
			}
			r, err := seqio.Open(c.ctx, c.locations[0])
			if err != nil {
				return nil, err
			}
			c.cur = r
			c.locations = c.locations[1:]
		}
		seq, err := c.cur.Next()
		if errors.Is(err, io.EOF) {
			if err := c.Close(); err != nil {
				return nil, err
			}
			continue
		}
		return seq, err
	}
}

func (c *chainSource) Name() string {
	if c.cur != nil {
		return c.cur.Name()
	}
	return strings.Join(c.locations, ",")
}

func (c *chainSource) Close() error {
	if c.cur == nil {
		return nil
	}
	err := c.cur.Close()
	c.cur = nil
	return err
}
