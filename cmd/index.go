package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nordscout/prospector/internal/localdb"
	"github.com/nordscout/prospector/internal/retriever"
	"github.com/nordscout/prospector/pkg/embeddings"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the knowledge chunk index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		local, err := localdb.Open(ctx, cfg.Profiles.SQLitePath)
		if err != nil {
			return err
		}
		defer local.Close()

		embedder := embeddings.NewClient(cfg.OpenAI.Key, cfg.OpenAI.EmbeddingModel)
		ret := retriever.New(local, embedder)

		n, err := ret.Rebuild(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("index rebuilt", zap.Int("chunks", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
