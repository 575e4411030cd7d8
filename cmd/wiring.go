package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matrixise/chainbridge/internal/balance"
	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/matrixise/chainbridge/internal/config"
	"github.com/matrixise/chainbridge/internal/lifecycle"
	"github.com/matrixise/chainbridge/internal/oracle"
	"github.com/matrixise/chainbridge/internal/session"
	"github.com/matrixise/chainbridge/internal/wallet"
)

// newOracle builds the configured balance source. The returned closer is
// never nil.
func newOracle(ctx context.Context, cfg *config.Config, cat *catalog.Catalog) (balance.Oracle, *oracle.Ethereum, func(), error) {
	switch cfg.Oracle.Kind {
	case "ethereum":
		eth, err := oracle.NewEthereum(ctx, cat, cfg.Oracle.RPCUrls)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to RPC: %w", err)
		}
		if len(cfg.Oracle.RPCUrls) == 1 {
			slog.Info("RPC connection established", "endpoint", cfg.Oracle.RPCUrls[0])
		} else {
			slog.Info("RPC connection established with failover",
				"endpoints", len(cfg.Oracle.RPCUrls),
				"primary", cfg.Oracle.RPCUrls[0])
		}
		return eth, eth, eth.Close, nil
	default:
		seed := cfg.Simulation.Seed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		slog.Info("Using simulated balances", "seed", seed)
		return oracle.NewSimulated(cat, seed), nil, func() {}, nil
	}
}

// sessionOptions maps the configuration onto session options. Oracle and
// Scheduler are left to the caller.
func sessionOptions(cfg *config.Config) (session.Options, error) {
	cat, err := cfg.Catalog()
	if err != nil {
		return session.Options{}, err
	}
	timings, err := cfg.Timings()
	if err != nil {
		return session.Options{}, err
	}
	strategies, err := cfg.Strategies()
	if err != nil {
		return session.Options{}, err
	}

	return session.Options{
		Catalog: cat,
		Connectors: wallet.SimulatedChain(
			cfg.Wallet.Address,
			cfg.Wallet.Network,
			cfg.Wallet.WalletConnectProjectID,
			strategies,
		),
		Timings:  timings,
		Networks: cfg.Wallet.Networks,
		Logger:   slog.Default(),
	}, nil
}

func logTimings(t lifecycle.Timings) {
	slog.Info("Simulated latencies",
		"approval", t.Approval,
		"bridge", t.Bridge,
		"settlement", t.Settlement,
		"reset", t.Reset,
		"error_reset", t.ErrorReset,
	)
}
