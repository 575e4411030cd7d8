package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/matrixise/chainbridge/internal/config"
	"github.com/matrixise/chainbridge/internal/eventloop"
	"github.com/matrixise/chainbridge/internal/logger"
	"github.com/matrixise/chainbridge/internal/oracle"
	"github.com/matrixise/chainbridge/internal/scenario"
	"github.com/matrixise/chainbridge/internal/session"
	"github.com/matrixise/chainbridge/internal/wallet"
)

// simulatedWallet is used when no config file is given.
const simulatedWallet = "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"

var jsonOutput bool

var simulateCmd = &cobra.Command{
	Use:   "simulate <scenario.toml>",
	Short: "Replay a scenario script on virtual time",
	Long: `Run a TOML scenario against a fresh bridge session. Delays are virtual:
advance and settle steps move the clock instantly, so a scenario runs in
milliseconds and produces the same result every time.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	logger.Setup(logLevel)

	sc, err := scenario.Load(args[0])
	if err != nil {
		slog.Error("Failed to load scenario", "error", err)
		return err
	}

	opts := session.Options{
		Connectors: wallet.SimulatedChain(simulatedWallet, "ethereum", "", wallet.DefaultOrder),
		Logger:     slog.Default(),
	}
	var seed uint64
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			slog.Error("Configuration error", "error", err)
			return err
		}
		if opts, err = sessionOptions(cfg); err != nil {
			return err
		}
		seed = cfg.Simulation.Seed
	}

	fixture, err := sc.Fixture()
	if err != nil {
		return err
	}
	if fixture != nil {
		opts.Oracle = oracle.NewStatic(fixture)
	} else {
		cat := opts.Catalog
		if cat == nil {
			cat = catalog.Default()
		}
		opts.Oracle = oracle.NewSimulated(cat, seed)
	}

	queue := eventloop.NewQueue(sc.Start)
	opts.Scheduler = queue

	sess, err := session.New(opts)
	if err != nil {
		return err
	}

	res, runErr := scenario.Run(context.Background(), sc, sess, queue, slog.Default())
	if res != nil {
		if err := printResult(cmd, res); err != nil {
			return err
		}
	}
	if runErr != nil {
		slog.Error("Scenario failed", "error", runErr)
		return runErr
	}
	return nil
}

func printResult(cmd *cobra.Command, res *scenario.Result) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(out, "Scenario: %s\n\n", res.Name)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTIME\tSTEP\tSTATUS\tERROR")
	for _, st := range res.Steps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", st.Index, st.At.Format("15:04:05.000"), st.Step, st.Status, st.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nBalances:")
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, b := range res.Final.Balances {
		fmt.Fprintf(tw, "  %s-%s\t%s\n", b.Symbol, b.Family, b.Balance)
	}
	return tw.Flush()
}
