package fqcomp

import (
	"context"
	"fmt"
	"slices"

	fqerrors "github.com/tamirms/fqcomp/errors"
)

// DefaultReadLimit is the number of reads sampled when the caller does not
// choose one.
const DefaultReadLimit = 50000

// Analyze sketches up to readLimit reads from src and classifies the sample
// against lib.
//
// The sample is always sketched with lib.Params(), so sketch options passed
// here (WithKSize and friends) are ignored; WithWorkers, WithBatchSize and
// WithLogger apply. readLimit == 0 samples nothing and readLimit < 0 reads
// the whole source.
//
// Every failure is a typed error for one sample: errors.ErrSourceRead when
// the source fails, errors.ErrNoReads when it yields no records, and
// errors.ErrEmptySketch when no read contained a retained k-mer. Callers
// processing many samples can turn each into an ErrorReport and carry on.
func Analyze(ctx context.Context, src SequenceSource, lib *Library, readLimit int, opts ...Option) (*Result, error) {
	if lib == nil {
		return nil, fmt.Errorf("%w: %w", fqerrors.ErrConfiguration, fqerrors.ErrNoValidReferences)
	}
	cfg, err := newConfig(append(slices.Clone(opts), WithParams(lib.params)))
	if err != nil {
		return nil, err
	}

	log := cfg.logger.With("source", src.Name())
	log.Info("analyzing sample", "read_limit", readLimit, "workers", max(cfg.workers, 1))

	b, reads, err := buildFromSource(ctx, cfg, src, readLimit)
	if err != nil {
		return nil, err
	}
	if reads == 0 {
		return nil, fmt.Errorf("%w in %s", fqerrors.ErrNoReads, src.Name())
	}
	if b.Len() == 0 {
		return nil, fmt.Errorf("%w: %d reads from %s", fqerrors.ErrEmptySketch, reads, src.Name())
	}
	log.Debug("sample sketched", "reads", reads, "kmers", b.KmersSeen(), "hashes", b.Len())

	res, err := Classify(src.Name(), reads, b.Sketch(), lib)
	if err != nil {
		return nil, err
	}
	log.Info("sample classified",
		"contaminated", res.IsContaminated,
		"mixed", res.IsMixed,
		"unknown", res.UnknownContent)
	return res, nil
}
