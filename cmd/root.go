package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	rootDebug      bool
	rootConfigPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "integctl",
	Short: "Provision ephemeral applications for integration tests",
	Long: `integctl generates, builds and deploys short-lived applications
from a declarative description, waits until they are ready, detects failures,
collects their logs and tears them down again, locally or on OpenShift.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. failed builds or deployments)
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "integctl version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newTeardownCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAppsCmd())

	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Configuration file (default: layered lookup of .integctl/config.yaml)")
}
