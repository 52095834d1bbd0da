package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/tamirms/fqcomp/internal/history"
)

func historyCommand(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analyses from the run history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.dbPath == "" {
				return errors.New("--db (or $FQCOMP_DB) is required")
			}
			store, err := history.Open(cmd.Context(), g.dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if entries == nil {
				entries = []history.Entry{}
			}
			return writeOutput(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "number of runs to show")
	return cmd
}
