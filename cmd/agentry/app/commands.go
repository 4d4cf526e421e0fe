// Package app provides the entry point for the agentry command-line
// application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loopwork/agentry/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "agentry",
	DisableAutoGenTag: true,
	Short:             "Agentry hosts agents whose tools authenticate themselves",
	Long: `Agentry is a small runtime for agents that call external HTTP tools.
Each tool declares how it authenticates (API key, HTTP bearer, OAuth2,
OpenID Connect); the runtime discovers endpoints, exchanges and refreshes
tokens, and suspends a run when a tool needs the user's authorization.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(*cobra.Command, []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates the root command for the agentry CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Fatalf("binding debug flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)

	return rootCmd
}
