package cmd

import (
	"log/slog"

	"github.com/matrixise/chainbridge/internal/config"
	"github.com/matrixise/chainbridge/internal/logger"
	"github.com/matrixise/chainbridge/internal/scheduler"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file syntax and values without starting a session.`,
	RunE:  validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	logger.Setup(logLevel)

	cfg, databaseURL, err := config.LoadWithDefaults(cfgFile)
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		return err
	}

	// Load only checks syntax; building the session inputs catches the rest.
	opts, err := sessionOptions(cfg)
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		return err
	}

	slog.Info("✓ Configuration valid",
		"wallet", cfg.Wallet.Address,
		"network", cfg.Wallet.Network,
		"strategies", cfg.Wallet.Strategies,
		"tokens", opts.Catalog.Len(),
		"oracle", cfg.Oracle.Kind,
		"rpc_urls", len(cfg.Oracle.RPCUrls),
		"refresh", scheduler.DescribeSchedule(cfg.RefreshInterval, nil),
		"approval_delay", opts.Timings.Approval,
		"bridge_delay", opts.Timings.Bridge,
		"log_level", cfg.LogLevel,
		"database_url_set", databaseURL != "",
	)

	return nil
}
