package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nordscout/prospector/internal/enrich"
	"github.com/nordscout/prospector/internal/localdb"
	"github.com/nordscout/prospector/internal/model"
)

var batchesLimit int

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List recent enrichment batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		local, err := localdb.Open(ctx, cfg.Profiles.SQLitePath)
		if err != nil {
			return err
		}
		defer local.Close()

		batches, err := enrich.ListBatches(ctx, local, batchesLimit)
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			fmt.Fprintln(os.Stderr, "No batches found.")
			return nil
		}

		formatBatchList(os.Stdout, batches)
		return nil
	},
}

func formatBatchList(w io.Writer, batches []model.BatchResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BATCH\tSTARTED\tENRICHED\tSKIPPED\tFAILED\tDURATION\tLLM CALLS\tCOST (USD)")
	for _, b := range batches {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%d\t%.4f\n",
			b.BatchID[:8],
			b.StartedAt.Format("2006-01-02 15:04"),
			len(b.Enriched),
			len(b.Skipped),
			len(b.Failed),
			b.Duration.Round(time.Second),
			b.Usage.LLMCalls,
			b.Usage.EstimatedCost,
		)
	}
	_ = tw.Flush()
}

func init() {
	batchesCmd.Flags().IntVar(&batchesLimit, "limit", 20, "maximum batches to list")
	rootCmd.AddCommand(batchesCmd)
}
