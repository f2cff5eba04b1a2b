package cmd

import (
	"github.com/spf13/cobra"
	"go.pollpulse.org/infra/insights/go/builders"
	"go.pollpulse.org/infra/insights/go/config"
	"go.pollpulse.org/infra/insights/go/correlation"
)

var correlateFlags config.EngineFlags

// correlateCmd represents the correlate command
var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Detect correlated question pairs.",
	Long: `Collects paired numeric answers over the trailing ranges, computes
the Pearson coefficient per question pair, and writes deduplicated
correlation notifications for the pairs that clear the sample size adaptive
threshold.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, instanceConfig, err := setupFromFlags(cmd, correlateFlags)
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
		notifStore, err := builders.NewNotificationStoreFromConfig(ctx, instanceConfig)
		if err != nil {
			return err
		}

		return correlation.New(respStore, surveyStore, notifStore, instanceConfig.EngineConfig).Run(ctx)
	},
}

func correlateInit() {
	rootCmd.AddCommand(correlateCmd)
	correlateFlags.Register(correlateCmd.Flags())
}
