package config

import (
	"github.com/spf13/pflag"
)

// EngineFlags are the command line flags shared by every engine subcommand.
type EngineFlags struct {
	// InstanceConfigFile is the instance config filename.
	InstanceConfigFile string

	// PromPort is the address the metrics endpoint listens on.
	PromPort string
}

// Register the flags in the given FlagSet.
func (f *EngineFlags) Register(fs *pflag.FlagSet) {
	fs.StringVar(&f.InstanceConfigFile, "config_filename", "", "Instance config file. Must be supplied.")
	fs.StringVar(&f.PromPort, "prom_port", ":20000", "Metrics service address (e.g., ':20000')")
}
