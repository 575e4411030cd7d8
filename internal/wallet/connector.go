package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Strategy names a way of reaching a wallet.
type Strategy string

const (
	StrategyMetaMask      Strategy = "metamask"
	StrategyInjected      Strategy = "injected"
	StrategyWalletConnect Strategy = "walletconnect"
)

// DefaultOrder is the fallback order used by Connect.
var DefaultOrder = []Strategy{StrategyMetaMask, StrategyInjected, StrategyWalletConnect}

var (
	ErrConnectorUnavailable = errors.New("connector unavailable")
	ErrMissingProjectID     = errors.New("walletconnect project id not configured")
)

// ParseStrategy accepts a strategy name in any case.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range DefaultOrder {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown wallet strategy %q", s)
}

// Account is what a successful connector attempt yields.
type Account struct {
	Address string
	Network string
}

// Connector is one strategy in the connect fallback chain.
type Connector interface {
	Strategy() Strategy
	AttemptConnect(ctx context.Context) (Account, error)
}

// SimulatedConnector stands in for a browser wallet. It succeeds only when
// Available is set.
type SimulatedConnector struct {
	Kind      Strategy
	Address   string
	Network   string
	Available bool
	// ProjectID is required by the walletconnect strategy.
	ProjectID string
}

func (c *SimulatedConnector) Strategy() Strategy {
	return c.Kind
}

func (c *SimulatedConnector) AttemptConnect(ctx context.Context) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if !c.Available {
		return Account{}, fmt.Errorf("%s: %w", c.Kind, ErrConnectorUnavailable)
	}
	if c.Kind == StrategyWalletConnect && c.ProjectID == "" {
		return Account{}, fmt.Errorf("%s: %w", c.Kind, ErrMissingProjectID)
	}
	return Account{Address: c.Address, Network: c.Network}, nil
}

// SimulatedChain builds the three connectors in fallback order, marking
// those listed in available as reachable.
func SimulatedChain(address, network, projectID string, available []Strategy) []Connector {
	reachable := make(map[Strategy]bool, len(available))
	for _, s := range available {
		reachable[s] = true
	}

	chain := make([]Connector, 0, len(DefaultOrder))
	for _, s := range DefaultOrder {
		chain = append(chain, &SimulatedConnector{
			Kind:      s,
			Address:   address,
			Network:   network,
			Available: reachable[s],
			ProjectID: projectID,
		})
	}
	return chain
}
