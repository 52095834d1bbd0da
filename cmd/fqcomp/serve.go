package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamirms/fqcomp"
	"github.com/tamirms/fqcomp/internal/history"
	"github.com/tamirms/fqcomp/internal/server"
)

const shutdownTimeout = 10 * time.Second

func serveCommand(g *globalFlags) *cobra.Command {
	var (
		addr     string
		dataDir  string
		maxReads int
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve composition analysis over HTTP",
		Long: `Load the reference library once and serve:

  GET  /health
  GET  /references
  POST /analyze   {"path": "sample.fastq.gz"} or {"url": "https://..."}, optional "reads"
  GET  /history?limit=N

Local paths are resolved inside --data-dir and rejected when it is unset.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), g, addr, server.Config{
				DataDir:        dataDir,
				MaxReads:       maxReads,
				AnalyzeTimeout: timeout,
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOr("FQCOMP_ADDR", ":8080"), "listen address [$FQCOMP_ADDR]")
	cmd.Flags().StringVar(&dataDir, "data-dir", envOr("FQCOMP_DATA_DIR", ""), "directory local sample paths are resolved in [$FQCOMP_DATA_DIR]")
	cmd.Flags().IntVar(&maxReads, "max-reads", 1_000_000, "upper bound on \"reads\" per request (0 = unbounded)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "per-analysis timeout (0 = none)")
	return cmd
}

func runServe(ctx context.Context, g *globalFlags, addr string, cfg server.Config) error {
	log := g.logger()
	opts, err := g.options(log)
	if err != nil {
		return err
	}

	lib, err := fqcomp.LoadLibrary(ctx, g.refDir, opts...)
	if err != nil {
		return err
	}

	if g.dbPath != "" {
		store, err := history.Open(ctx, g.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		cfg.History = store
		log.Info("recording run history", "db", g.dbPath)
	}
	cfg.Options = opts
	cfg.Logger = log

	var writeTimeout time.Duration
	if cfg.AnalyzeTimeout > 0 {
		writeTimeout = cfg.AnalyzeTimeout + 60*time.Second
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.NewRouter(server.NewHandler(lib, cfg)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "references", lib.Len())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
