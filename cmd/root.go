package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "mirrorgate",
	Short:        "Mirrorgate installer distribution gateway",
	Long:         "Mirrorgate serves software installers behind signed, short-lived download URLs,\nwith per-client burst detection, operator alerting and a dynamic IP blocklist.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
