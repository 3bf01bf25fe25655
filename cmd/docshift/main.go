// Docshift copies every document of one collection into another,
// backing off while either side throttles, and writes the documents
// it could not copy to a failure file.
package main

import (
	"os"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/level"
	"github.com/mongodb/grip/send"
	"github.com/spf13/cobra"
)

var (
	configPath string
	isDebug    bool
)

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "docshift",
		Short:         "Copy a collection into a rate-limited document store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigration(cmd.Context(), configPath, isDebug)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "docshift.toml", "path to the TOML configuration file")
	cmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")

	return cmd
}

func setLogLevel(name string, debug bool) error {
	threshold := level.FromString(name)
	if debug {
		threshold = level.Debug
	}

	return grip.GetSender().SetLevel(send.LevelInfo{Default: level.Info, Threshold: threshold})
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		grip.Alert(err)
		os.Exit(1)
	}
}
