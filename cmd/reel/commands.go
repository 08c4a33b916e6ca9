package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"trend-reel/internal/assemble"
	"trend-reel/internal/history"
)

// runCmd runs the full daily job
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Update every group and render its video",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, log, err := setup()
		if err != nil {
			return err
		}
		rep, err := a.Runner.Run(cmd.Context(), date())
		if err != nil {
			return err
		}
		failed := 0
		for _, res := range rep.Results {
			if res.Err != nil {
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", res.Group, res.Output)
		}
		log.Info("run complete", slog.Int("groups", len(rep.Results)), slog.Int("failed", failed))
		return nil
	},
}

// updateCmd records one group's ranking
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Record one group's ranking for a date",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, _, err := setup()
		if err != nil {
			return err
		}
		g, err := lookupGroup(a)
		if err != nil {
			return err
		}
		d := date()
		items, err := a.Pageviews.TopArticles(cmd.Context(), g.Code, d, a.Config.Video.TopN)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("no ranking published for %s on %s", g.Code, d)
		}

		unlock := a.History.Lock(g.Code)
		defer unlock()
		snap, err := a.History.Update(cmd.Context(), history.Group{Code: g.Code, Project: g.Project}, d, items)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d items, %d dates retained\n", g.Code, len(snap.Articles), len(snap.Dates))
		return nil
	},
}

// renderCmd renders one group's video from stored history
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one group's video from stored history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, log, err := setup()
		if err != nil {
			return err
		}
		g, err := lookupGroup(a)
		if err != nil {
			return err
		}

		unlock := a.History.Lock(g.Code)
		defer unlock()
		snap, err := a.History.Snapshot(g.Code)
		if err != nil {
			return err
		}
		res, err := a.Assembler.Assemble(cmd.Context(), g.Code, date(), snap)
		if err != nil {
			return err
		}
		if _, err := assemble.CleanupOldVideos(res.Output); err != nil {
			log.Warn("cleaning old videos failed", slog.String("error", err.Error()))
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Output)
		return nil
	},
}
