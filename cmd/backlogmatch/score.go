package main

import (
	"path/filepath"
	"strings"

	"github.com/aluiziolira/backlog-match/pipeline"
	"github.com/aluiziolira/backlog-match/similarity"
	"github.com/spf13/cobra"
)

func scoreCMD(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "score <a.csv> <b.csv>",
		Short: "Score two saved catalogues without fetching",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			left, err := pipeline.ReadCSV(args[0])
			if err != nil {
				return err
			}
			right, err := pipeline.ReadCSV(args[1])
			if err != nil {
				return err
			}

			result, ok := similarity.Compare(left, right, similarity.WithMode(similarity.Mode(cfg.ScoreMode)))
			printScore(cmd.OutOrStdout(), catalogueName(args[0]), catalogueName(args[1]), result, ok)
			return nil
		},
	}
}

// catalogueName turns output/alice_games.csv into alice.
func catalogueName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.TrimSuffix(name, "_games")
}
