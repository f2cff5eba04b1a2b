package cmd

import (
	"github.com/spf13/cobra"
	"go.pollpulse.org/infra/insights/go/aggregator"
	"go.pollpulse.org/infra/insights/go/builders"
	"go.pollpulse.org/infra/insights/go/config"
)

var aggregateFlags config.EngineFlags

// aggregateCmd represents the aggregate command
var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Rebuild stale statistic records.",
	Long: `Takes one batch of unsynced statistic records, recounts each one
from the raw responses that back it, and marks it synced. Safe to re-run at
any time.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, instanceConfig, err := setupFromFlags(cmd, aggregateFlags)
		if err != nil {
			return err
		}

		statStore, err := builders.NewStatStoreFromConfig(ctx, instanceConfig)
		if err != nil {
			return err
		}
		respStore, err := builders.NewResponseStoreFromConfig(ctx, instanceConfig)
		if err != nil {
			return err
		}
		surveyStore, err := builders.NewSurveyStoreFromConfig(ctx, instanceConfig)
		if err != nil {
			return err
		}

		return aggregator.New(statStore, respStore, surveyStore, instanceConfig.EngineConfig).Run(ctx)
	},
}

func aggregateInit() {
	rootCmd.AddCommand(aggregateCmd)
	aggregateFlags.Register(aggregateCmd.Flags())
}
