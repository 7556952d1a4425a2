package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nordscout/prospector/internal/filter"
)

var (
	queryPriorPath string
	queryOutPath   string
)

var queryCmd = &cobra.Command{
	Use:   "query [prompt]",
	Short: "Compile a natural-language prompt into a company filter and run it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// A prior filter turns this invocation into a refinement.
		var prior *filter.CompiledFilter
		if queryPriorPath != "" {
			data, err := os.ReadFile(queryPriorPath)
			if err != nil {
				return eris.Wrap(err, "cmd: read prior filter")
			}
			prior = &filter.CompiledFilter{}
			if err := json.Unmarshal(data, prior); err != nil {
				return eris.Wrap(err, "cmd: parse prior filter")
			}
		}

		compiled, result, err := env.Compiler.Compile(ctx, args[0], prior)
		if err != nil {
			return err
		}

		zap.L().Info("query complete",
			zap.String("source", string(compiled.Source)),
			zap.Int("predicates", len(compiled.Predicates)),
			zap.Int("matched", result.TotalMatched),
			zap.Int("returned", result.ReturnedCount),
			zap.Bool("capped", result.Capped),
		)

		out := struct {
			Filter *filter.CompiledFilter `json:"filter"`
			Result any                    `json:"result"`
		}{Filter: compiled, Result: result}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return eris.Wrap(err, "cmd: marshal query output")
		}

		if queryOutPath != "" {
			if err := os.WriteFile(queryOutPath, data, 0o644); err != nil {
				return eris.Wrap(err, "cmd: write query output")
			}
			return nil
		}

		cmd.Println(string(data))
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryPriorPath, "prior", "", "path to a previously compiled filter JSON to refine")
	queryCmd.Flags().StringVar(&queryOutPath, "out", "", "write the compiled filter and result to this file instead of stdout")
	rootCmd.AddCommand(queryCmd)
}
