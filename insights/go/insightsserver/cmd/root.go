package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.pollpulse.org/infra/go/metrics2"
	"go.pollpulse.org/infra/go/sklog"
	"go.pollpulse.org/infra/go/sklog/sklogimpl"
	"go.pollpulse.org/infra/go/sklog/stdlogging"
	"go.pollpulse.org/infra/insights/go/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "insightsserver",
	Short: "The survey analytics engines.",
	Long: `The survey analytics engines.

Each engine runs as a sub-command that performs a single batch invocation and
exits, so an external scheduler drives the cadence. For example to rebuild
stale statistic records:

	insightsserver aggregate --config_filename=instance_config.json ...

`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	initSubCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initSubCommands() {
	aggregateInit()
	compareInit()
	correlateInit()
}

// setupFromFlags does the startup work every subcommand shares: logging,
// metrics, and loading the instance config.
func setupFromFlags(cmd *cobra.Command, flags config.EngineFlags) (context.Context, *config.InstanceConfig, error) {
	// Log to stdout.
	sklogimpl.SetLogger(stdlogging.New(os.Stdout))

	instanceConfig, err := config.InstanceConfigFromFile(flags.InstanceConfigFile)
	if err != nil {
		return nil, nil, err
	}

	metrics2.InitPrometheus(flags.PromPort)

	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		sklog.Infof("Flags: --%s=%v", f.Name, f.Value)
	})

	return context.Background(), instanceConfig, nil
}
