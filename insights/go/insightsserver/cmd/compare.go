package cmd

import (
	"github.com/spf13/cobra"
	"go.pollpulse.org/infra/insights/go/builders"
	"go.pollpulse.org/infra/insights/go/config"
	"go.pollpulse.org/infra/insights/go/shift"
)

var compareFlags config.EngineFlags

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Detect shifts between consecutive windows.",
	Long: `Compares each trailing window against the window before it, per
survey and per question instance, and writes an anomaly notification for
every significant change. Re-detection within a window deduplicates.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, instanceConfig, err := setupFromFlags(cmd, compareFlags)
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
		notifStore, err := builders.NewNotificationStoreFromConfig(ctx, instanceConfig)
		if err != nil {
			return err
		}

		return shift.New(statStore, respStore, surveyStore, notifStore, instanceConfig.EngineConfig).Run(ctx)
	},
}

func compareInit() {
	rootCmd.AddCommand(compareCmd)
	compareFlags.Register(compareCmd.Flags())
}
