package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chainbridge",
	Short: "Simulated ERC20/TRC20 token bridge",
	Long: `chainbridge runs the core of a cross-chain token bridge between the
Ethereum (ERC20) and TRON (TRC20) account models. It keeps a wallet session,
quotes fees, and drives simulated transfers through approval, bridge and
delayed settlement, either behind an HTTP API or from a TOML scenario.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
