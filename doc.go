// Package fqcomp estimates the organism composition of a sequencing read set
// by comparing a scaled k-mer sketch of the sample against a library of
// reference sketches, and flags PhiX and cross-sample contamination.
//
// # Basic Usage
//
// Building a reference sketch:
//
//	b, err := fqcomp.NewBuilder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, contig := range genome {
//	    b.AddSequence(contig)
//	}
//	if err := fqcomp.WriteSketchFile("references/e_coli.sketch", "E. coli K-12", b.Sketch()); err != nil {
//	    log.Fatal(err)
//	}
//
// Analyzing a sample:
//
//	lib, err := fqcomp.LoadLibrary(ctx, "references")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := fqcomp.Analyze(ctx, reads, lib, fqcomp.DefaultReadLimit)
//	if err != nil {
//	    report := fqcomp.NewErrorReport(reads.Name(), err)
//	    ...
//	}
//
// # Sketches
//
// A sketch keeps the canonical k-mer hashes h with h mod scaled == 0, about
// one in scaled of the distinct k-mers. Containment of a sample in a
// reference is |sample ∩ reference| / |sample|; unlike Jaccard similarity it
// is meaningful when the two genomes differ greatly in size.
//
// # Package Structure
//
//   - K-mers: kmer.go (Extractor, HashFunction)
//   - Sketches: sketch.go (Params, Sketch), builder.go, builder_options.go,
//     builder_parallel.go (BuildSketch)
//   - Comparison: containment.go, classify.go, result.go, analyze.go
//   - References: reference.go (LoadLibrary), sketchfile.go,
//     sketchfile_writer.go, header.go (on-disk format)
//   - I/O: internal/seqio (FASTQ/FASTA, gzip, URLs), internal/history,
//     internal/server, cmd/fqcomp
package fqcomp
