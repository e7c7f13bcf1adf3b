package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/standings/internal/config"
	"github.com/okian/standings/internal/domain/model"
)

func newShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "show <competition>",
		Short:   "Fetch, rank and print one competition's leaderboard",
		Example: "standings show titanic --json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := show(cmd.Context(), cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			return printTable(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the API response body instead of a table")
	return cmd
}

// show runs one pipeline pass without starting any server.
func show(ctx context.Context, logOut io.Writer, competition string) (model.Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, err := setup(ctx, logOut)
	if err != nil {
		return model.Record{}, err
	}

	svc, err := newService(cfg, log)
	if err != nil {
		return model.Record{}, err
	}
	if err := svc.Start(ctx); err != nil {
		return model.Record{}, err
	}
	defer svc.Stop()

	return svc.Update(ctx, competition)
}

type leaderboardBody struct {
	Leaderboard []model.Entry `json:"leaderboard"`
	LastUpdated string        `json:"last_updated"`
}

func printJSON(w io.Writer, rec model.Record) error {
	entries := rec.Entries
	if entries == nil {
		entries = []model.Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(leaderboardBody{
		Leaderboard: entries,
		LastUpdated: rec.LastUpdated.Format(config.LastUpdatedLayout),
	})
}

func printTable(w io.Writer, rec model.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tupdated %s\n", rec.Competition, rec.LastUpdated.Format(config.LastUpdatedLayout))
	fmt.Fprintln(tw, "RANK\tTEAM\tSUBMITTED\tSCORE")
	for _, e := range rec.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%g\n", e.Rank, e.Team, e.SubmissionDate, e.Score)
	}
	return tw.Flush()
}
