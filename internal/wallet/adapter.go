// Package wallet wraps the external wallet provider behind a deterministic
// connect-with-fallback sequence.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

var (
	ErrWalletUnavailable  = errors.New("no wallet connector succeeded")
	ErrNotConnected       = errors.New("wallet not connected")
	ErrUnsupportedNetwork = errors.New("unsupported network")
)

// Connection is the wallet state the rest of the core reads.
type Connection struct {
	Address   string
	Connected bool
	Network   string
}

// ShortAddress renders 0x1234...abcd.
func (c Connection) ShortAddress() string {
	return ShortAddress(c.Address)
}

// ShortAddress keeps the first 6 and last 4 characters of an address.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// AttemptObserver is told about every connector attempt.
type AttemptObserver func(s Strategy, err error)

// Adapter owns the WalletConnection.
type Adapter struct {
	connectors []Connector
	networks   []string
	conn       Connection
	lastErr    error
	observer   AttemptObserver
	logger     *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithNetworks restricts SwitchNetwork to the given identifiers.
func WithNetworks(networks ...string) Option {
	return func(a *Adapter) {
		a.networks = networks
	}
}

// WithObserver registers a callback for each connector attempt.
func WithObserver(o AttemptObserver) Option {
	return func(a *Adapter) {
		a.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// NewAdapter creates an adapter trying connectors in the given order.
func NewAdapter(connectors []Connector, opts ...Option) *Adapter {
	a := &Adapter{
		connectors: connectors,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Connect tries each connector in order and stops at the first success.
// Exhausting the chain is logged and leaves the connection unestablished;
// the cause is available through LastError.
func (a *Adapter) Connect(ctx context.Context) Connection {
	if a.conn.Connected {
		return a.conn
	}

	var errs []error
	for _, c := range a.connectors {
		acct, err := c.AttemptConnect(ctx)
		if a.observer != nil {
			a.observer(c.Strategy(), err)
		}
		if err != nil {
			a.logger.Debug("Wallet connector failed, trying next", "strategy", c.Strategy(), "error", err)
			errs = append(errs, err)
			continue
		}

		a.conn = Connection{Address: acct.Address, Connected: true, Network: acct.Network}
		a.lastErr = nil
		a.logger.Info("Wallet connected", "strategy", c.Strategy(), "address", a.conn.ShortAddress(), "network", acct.Network)
		return a.conn
	}

	a.lastErr = ErrWalletUnavailable
	if len(errs) > 0 {
		a.lastErr = fmt.Errorf("%w: %w", ErrWalletUnavailable, errors.Join(errs...))
	}
	a.logger.Warn("Failed to connect wallet", "attempts", len(a.connectors), "error", a.lastErr)
	return a.conn
}

// Disconnect clears the connection.
func (a *Adapter) Disconnect() {
	if a.conn.Connected {
		a.logger.Info("Wallet disconnected", "address", a.conn.ShortAddress())
	}
	a.conn = Connection{}
}

// SwitchNetwork changes the active network of a connected wallet.
func (a *Adapter) SwitchNetwork(network string) error {
	if !a.conn.Connected {
		return ErrNotConnected
	}
	if len(a.networks) > 0 && !slices.Contains(a.networks, network) {
		return fmt.Errorf("%w: %q", ErrUnsupportedNetwork, network)
	}
	a.conn.Network = network
	a.logger.Info("Wallet network switched", "network", network)
	return nil
}

// Connection returns the current connection state.
func (a *Adapter) Connection() Connection {
	return a.conn
}

// CurrentAddress returns the connected address or "".
func (a *Adapter) CurrentAddress() string {
	return a.conn.Address
}

// LastError returns why the last Connect failed, nil after a success.
func (a *Adapter) LastError() error {
	return a.lastErr
}
