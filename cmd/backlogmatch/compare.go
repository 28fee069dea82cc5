package main

import (
	"github.com/aluiziolira/backlog-match/scraper"
	"github.com/aluiziolira/backlog-match/similarity"
	"github.com/spf13/cobra"
)

func compareCMD(opts *rootOptions) *cobra.Command {
	var concurrent bool
	cmd := &cobra.Command{
		Use:   "compare <user|url> <user|url>",
		Short: "Collect two catalogues, save them, and score their similarity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			profiles, err := resolveProfiles(cfg, args...)
			if err != nil {
				return err
			}

			metrics := scraper.NewMetrics()
			stopMetrics := serveMetrics(cfg, metrics)
			defer stopMetrics()

			sources, cleanup, err := openSources(cfg, profiles)
			if err != nil {
				return err
			}
			defer cleanup()

			// A browser session serves one collection at a time.
			parallel := concurrent && cfg.Backend == "http"
			collections, err := collectAll(cmd.Context(), cfg, profiles, sources, metrics, parallel)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, c := range collections {
				printCollection(out, c)
			}

			left, right := collections[0], collections[1]
			result, ok := similarity.Compare(left.result.Catalogue, right.result.Catalogue,
				similarity.WithMode(similarity.Mode(cfg.ScoreMode)))
			printScore(out, left.profile.username, right.profile.username, result, ok)
			return nil
		},
	}
	cmd.Flags().BoolVar(&concurrent, "concurrent", false, "collect both profiles at once (http backend only)")
	return cmd
}
