package fqcomp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"golang.org/x/sync/errgroup"

	fqerrors "github.com/tamirms/fqcomp/errors"
)

const (
	// contextCheckInterval is how often (in reads) the pull loop checks for
	// context cancellation.
	contextCheckInterval = 10000

	// workChanBufferMultiplier is the multiplier for work channel buffer size
	workChanBufferMultiplier = 2
)

// BuildSketch pulls up to readLimit sequences from src and sketches them.
// readLimit == 0 pulls nothing and readLimit < 0 drains the source. It
// returns the sketch and the number of reads pulled.
//
// The source is never asked for more than readLimit sequences. Errors from
// the source are wrapped with errors.ErrSourceRead.
//
// With WithWorkers(n > 1) reads are copied into batches and hashed by n
// goroutines, each filling its own Builder. The partial sets are merged
// before returning, and because insertion is idempotent and commutative the
// result is identical to a single-threaded pass over the same reads.
func BuildSketch(ctx context.Context, src SequenceSource, readLimit int, opts ...Option) (*Sketch, int, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, 0, err
	}
	b, reads, err := buildFromSource(ctx, cfg, src, readLimit)
	if err != nil {
		return nil, reads, err
	}
	return b.Sketch(), reads, nil
}

func buildFromSource(ctx context.Context, cfg *config, src SequenceSource, readLimit int) (*Builder, int, error) {
	if cfg.workers > 1 {
		return buildParallel(ctx, cfg, src, readLimit)
	}
	return buildSequential(ctx, cfg, src, readLimit)
}

// buildSequential hashes each read as soon as it is pulled.
func buildSequential(ctx context.Context, cfg *config, src SequenceSource, readLimit int) (*Builder, int, error) {
	b := newBuilder(cfg.params)
	reads := 0
	for readLimit < 0 || reads < readLimit {
		if reads%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, reads, err
			}
		}
		seq, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, reads, sourceError(src, err)
		}
		b.AddSequence(seq)
		reads++
	}
	return b, reads, nil
}

// buildParallel pulls reads on the calling goroutine and fans batches out to
// cfg.workers hashing goroutines.
func buildParallel(ctx context.Context, cfg *config, src SequenceSource, readLimit int) (*Builder, int, error) {
	g, gctx := errgroup.WithContext(ctx)
	work := make(chan [][]byte, cfg.workers*workChanBufferMultiplier)

	partials := make([]*Builder, cfg.workers)
	for i := range partials {
		b := newBuilder(cfg.params)
		partials[i] = b
		g.Go(func() error {
			for batch := range work {
				for _, seq := range batch {
					b.AddSequence(seq)
				}
			}
			return nil
		})
	}

	reads, readErr := dispatchReads(gctx, cfg, src, readLimit, work)
	close(work)
	if err := errors.Join(readErr, g.Wait()); err != nil {
		return nil, reads, err
	}

	merged := partials[0]
	for _, p := range partials[1:] {
		if err := merged.Merge(p); err != nil {
			return nil, reads, err
		}
	}
	return merged, reads, nil
}

// dispatchReads copies reads into batches of cfg.batchSize and sends them to
// work. Reads are copied because a source may reuse its buffer on Next.
func dispatchReads(ctx context.Context, cfg *config, src SequenceSource, readLimit int, work chan<- [][]byte) (int, error) {
	reads := 0
	batch := make([][]byte, 0, cfg.batchSize)
	send := func() error {
		select {
		case work <- batch:
			batch = make([][]byte, 0, cfg.batchSize)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for readLimit < 0 || reads < readLimit {
		if reads%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return reads, err
			}
		}
		seq, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return reads, sourceError(src, err)
		}
		batch = append(batch, slices.Clone(seq))
		reads++
		if len(batch) == cfg.batchSize {
			if err := send(); err != nil {
				return reads, err
			}
		}
	}
	if len(batch) > 0 {
		return reads, send()
	}
	return reads, nil
}

// sourceError tags err as a source failure unless the source already did.
func sourceError(src SequenceSource, err error) error {
	if errors.Is(err, fqerrors.ErrSourceRead) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", fqerrors.ErrSourceRead, src.Name(), err)
}
