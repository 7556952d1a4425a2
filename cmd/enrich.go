package main

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	enrichFilePath     string
	enrichForceRefresh bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich [org-id...]",
	Short: "Generate AI business profiles for the given companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		orgIDs := append([]string(nil), args...)
		if enrichFilePath != "" {
			fromFile, err := readOrgIDs(enrichFilePath)
			if err != nil {
				return err
			}
			orgIDs = append(orgIDs, fromFile...)
		}
		if len(orgIDs) == 0 {
			return eris.New("cmd: no org ids given, pass them as arguments or via --file")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orchestrator.Run(ctx, orgIDs, enrichForceRefresh)
		if err != nil {
			return err
		}

		zap.L().Info("enrichment batch complete",
			zap.String("batch_id", result.BatchID),
			zap.Int("enriched", len(result.Enriched)),
			zap.Int("skipped", len(result.Skipped)),
			zap.Int("failed", len(result.Failed)),
			zap.Duration("duration", result.Duration),
		)

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return eris.Wrap(err, "cmd: marshal batch result")
		}
		cmd.Println(string(data))
		return nil
	},
}

// readOrgIDs reads one org id per line, skipping blanks and # comments.
func readOrgIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "cmd: open org id file")
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "cmd: read org id file")
	}
	return ids, nil
}

func init() {
	enrichCmd.Flags().StringVar(&enrichFilePath, "file", "", "path to a file with one org id per line")
	enrichCmd.Flags().BoolVar(&enrichForceRefresh, "force-refresh", false, "re-enrich companies that already have a profile")
	rootCmd.AddCommand(enrichCmd)
}
