package fqcomp

import (
	"fmt"
	"log/slog"

	fqerrors "github.com/tamirms/fqcomp/errors"
)

const (
	// defaultBatchSize is the number of reads handed to a worker at once.
	defaultBatchSize = 1024

	// defaultLoadConcurrency bounds concurrent reference file loads.
	defaultLoadConcurrency = 4
)

// Option is a functional option for building sketches, loading references
// and running analyses.
type Option func(*config)

type config struct {
	params          Params
	workers         int
	batchSize       int
	loadConcurrency int
	logger          *slog.Logger
}

func defaultConfig() *config {
	return &config{
		params:          DefaultParams(),
		workers:         0, // Default to single-threaded; use WithWorkers(n) to parallelize
		batchSize:       defaultBatchSize,
		loadConcurrency: defaultLoadConcurrency,
		logger:          slog.New(slog.DiscardHandler),
	}
}

func newConfig(opts []Option) (*config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.params.Validate(); err != nil {
		return nil, err
	}
	if cfg.workers < 0 {
		return nil, fmt.Errorf("%w: %d", fqerrors.ErrInvalidWorkers, cfg.workers)
	}
	if cfg.batchSize <= 0 {
		cfg.batchSize = defaultBatchSize
	}
	if cfg.loadConcurrency <= 0 {
		cfg.loadConcurrency = 1
	}
	return cfg, nil
}

// WithParams replaces all sketch parameters at once.
func WithParams(p Params) Option {
	return func(c *config) {
		c.params = p
	}
}

// WithKSize sets the k-mer length.
func WithKSize(k int) Option {
	return func(c *config) {
		c.params.KSize = k
	}
}

// WithScaled sets the scaling factor. A hash h is kept iff h mod scaled == 0.
func WithScaled(scaled uint64) Option {
	return func(c *config) {
		c.params.Scaled = scaled
	}
}

// WithHashFunction selects the k-mer hash function.
func WithHashFunction(h HashFunction) Option {
	return func(c *config) {
		c.params.HashFunction = h
	}
}

// WithSeed sets the k-mer hash seed.
func WithSeed(seed uint32) Option {
	return func(c *config) {
		c.params.Seed = seed
	}
}

// WithWorkers sets the number of goroutines hashing reads. Reading the source
// is always sequential; with n > 1 reads are batched out to n workers whose
// partial sketches are merged before the sketch is returned.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithBatchSize sets how many reads are handed to a worker at once.
func WithBatchSize(n int) Option {
	return func(c *config) {
		c.batchSize = n
	}
}

// WithLoadConcurrency bounds how many reference files LoadLibrary reads at once.
func WithLoadConcurrency(n int) Option {
	return func(c *config) {
		c.loadConcurrency = n
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
