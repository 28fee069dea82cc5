package main

import (
	"github.com/aluiziolira/backlog-match/scraper"
	"github.com/spf13/cobra"
)

func fetchCMD(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <user|url>",
		Short: "Collect one catalogue and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			profiles, err := resolveProfiles(cfg, args[0])
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

			collections, err := collectAll(cmd.Context(), cfg, profiles, sources, metrics, false)
			if err != nil {
				return err
			}
			printCollection(cmd.OutOrStdout(), collections[0])
			return nil
		},
	}
}
